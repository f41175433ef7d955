package services

import (
	"reflect"
	"testing"

	"github.com/fmorante/lexagenda-be/internal/models"
)

func localEvent(id, date, clock, title string) models.EventRecord {
	return models.EventRecord{
		ID: id, Title: title, Kind: models.KindMeeting,
		Date: date, Time: clock, Origin: models.OriginLocal,
	}
}

func caseEvent(id, date, clock, title string) models.EventRecord {
	return models.EventRecord{
		ID: id, Title: title, Kind: models.KindHearing,
		Date: date, Time: clock, Origin: models.OriginCase,
	}
}

func TestMergeEventsIdempotent(t *testing.T) {
	local := []models.EventRecord{
		localEvent("evt-1", "2026-01-20", "09:00", "Audiencia Civil"),
		localEvent("evt-2", "2026-01-18", "16:00", "Reunión cliente"),
	}
	cases := []models.EventRecord{
		caseEvent("case-7", "2026-01-19", "10:30", "Audiencia 123/2026"),
	}

	merged, _ := MergeEvents(local, cases)
	remerged, stats := MergeEvents(merged)

	if !reflect.DeepEqual(merged, remerged) {
		t.Errorf("re-merging merged output changed it:\nfirst:  %+v\nsecond: %+v", merged, remerged)
	}
	if stats.Dropped != 0 || stats.DuplicateIDs != 0 || stats.FallbackMerges != 0 {
		t.Errorf("re-merge should discard nothing, stats = %+v", stats)
	}
}

func TestMergeEventsDuplicateIDFirstSourceWins(t *testing.T) {
	local := []models.EventRecord{localEvent("evt-1", "2026-01-20", "09:00", "Copia editada")}
	cases := []models.EventRecord{caseEvent("evt-1", "2026-01-20", "09:00", "Copia derivada vieja")}

	merged, stats := MergeEvents(local, cases)
	if len(merged) != 1 {
		t.Fatalf("got %d events, want 1", len(merged))
	}
	if merged[0].Title != "Copia editada" {
		t.Errorf("kept %q, want the local copy", merged[0].Title)
	}
	if stats.DuplicateIDs != 1 {
		t.Errorf("DuplicateIDs = %d, want 1", stats.DuplicateIDs)
	}
}

// A manually created local event and a case-derived one describing the same
// hearing have different ids but identical date/time/title; the local copy
// must suppress the derived one.
func TestMergeEventsCrossOriginDedup(t *testing.T) {
	local := []models.EventRecord{localEvent("evt-1", "2026-01-20", "09:00", "Audiencia Civil")}
	cases := []models.EventRecord{caseEvent("case-99", "2026-01-20", "09:00", "Audiencia Civil")}

	merged, stats := MergeEvents(local, cases)
	if len(merged) != 1 {
		t.Fatalf("got %d events, want 1", len(merged))
	}
	if merged[0].ID != "evt-1" {
		t.Errorf("kept id %q, want evt-1", merged[0].ID)
	}
	if stats.FallbackMerges != 1 {
		t.Errorf("FallbackMerges = %d, want 1", stats.FallbackMerges)
	}
}

func TestMergeEventsSortInvariant(t *testing.T) {
	events := []models.EventRecord{
		localEvent("e1", "2026-02-01", "08:00", "a"),
		localEvent("e2", "2026-01-20", "18:00", "b"),
		localEvent("e3", "2026-01-20", "07:15", "c"),
		localEvent("e4", "2025-12-31", "23:59", "d"),
		localEvent("e5", "2026-01-20", "", "e"), // empty time sorts as 09:00
	}

	merged, _ := MergeEvents(events)
	if len(merged) != len(events) {
		t.Fatalf("got %d events, want %d", len(merged), len(events))
	}
	for i := 1; i < len(merged); i++ {
		prev, cur := merged[i-1], merged[i]
		prevKey := prev.Date + " " + orSentinel(prev.Time)
		curKey := cur.Date + " " + orSentinel(cur.Time)
		if prevKey > curKey {
			t.Errorf("output out of order at %d: %q > %q", i, prevKey, curKey)
		}
	}
	// The record with no time lands between 07:15 and 18:00 on the same day.
	if merged[2].ID != "e5" {
		t.Errorf("event with empty time sorted to position of %q, want e5 third", merged[2].ID)
	}
}

func orSentinel(clock string) string {
	if clock == "" {
		return "09:00"
	}
	return clock
}

func TestMergeEventsDropsMalformed(t *testing.T) {
	events := []models.EventRecord{
		localEvent("ok", "2026-01-20", "09:00", "fine"),
		localEvent("bad-date", "2026-02-30", "09:00", "no such day"),
		localEvent("bad-format", "20/01/2026", "09:00", "wrong layout"),
		localEvent("bad-time", "2026-01-20", "25:61", "wrong clock"),
	}

	merged, stats := MergeEvents(events)
	if len(merged) != 1 || merged[0].ID != "ok" {
		t.Fatalf("expected only the valid record to survive, got %+v", merged)
	}
	if stats.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", stats.Dropped)
	}
}

func TestMergeEventsStableTies(t *testing.T) {
	// Same (date, time), different titles: both survive and keep source order.
	local := []models.EventRecord{localEvent("e1", "2026-01-20", "10:00", "Primera")}
	cases := []models.EventRecord{caseEvent("e2", "2026-01-20", "10:00", "Segunda")}

	merged, _ := MergeEvents(local, cases)
	if len(merged) != 2 {
		t.Fatalf("got %d events, want 2", len(merged))
	}
	if merged[0].ID != "e1" || merged[1].ID != "e2" {
		t.Errorf("tie order not preserved: %q, %q", merged[0].ID, merged[1].ID)
	}
}

// Degraded pass: one source failed and contributed nothing, the others still
// merge cleanly.
func TestMergeEventsWithEmptySource(t *testing.T) {
	local := []models.EventRecord{
		localEvent("e1", "2026-01-20", "09:00", "a"),
		localEvent("e2", "2026-01-21", "09:00", "b"),
	}
	tasks := []models.EventRecord{{
		ID: "task-9", Title: "Presentar escrito", Kind: models.KindTask,
		Date: "2026-01-22", Time: "09:00", Origin: models.OriginTask,
	}}

	merged, _ := MergeEvents(local, nil, tasks)
	if len(merged) != 3 {
		t.Errorf("got %d events, want 3", len(merged))
	}
}
