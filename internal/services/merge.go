package services

import (
	"sort"
	"strings"

	"github.com/fmorante/lexagenda-be/internal/civil"
	"github.com/fmorante/lexagenda-be/internal/models"
)

// MergeStats counts what the merger discarded, for diagnostics. DuplicateIDs
// and FallbackMerges are reported separately because the fallback rule
// (matching on date+time+title) trades recall for precision: two distinct
// events sharing a title and the default time will be collapsed.
type MergeStats struct {
	Dropped        int `json:"dropped"`
	DuplicateIDs   int `json:"duplicateIds"`
	FallbackMerges int `json:"fallbackMerges"`
}

// mergedEvent pairs a record with its parsed sort key so the comparator never
// re-parses date strings.
type mergedEvent struct {
	record models.EventRecord
	date   civil.Date
	clock  civil.Clock
}

// MergeEvents combines event lists from all sources into one deduplicated,
// chronologically sorted sequence.
//
// Sources must be passed in priority order: local first, then case-derived,
// then task-derived. Two records are duplicates when their ids match, or when
// date, time and title all match (a manually created local event and a
// re-imported derived one describing the same occurrence). The first
// occurrence wins, so an edited local copy suppresses a stale derived copy.
//
// Records whose date or time does not parse are dropped and counted; the merge
// itself never fails. Feeding the output back in as a single source returns
// the same sequence.
func MergeEvents(sources ...[]models.EventRecord) ([]models.EventRecord, MergeStats) {
	var stats MergeStats
	seenID := make(map[string]bool)
	seenSlot := make(map[string]bool)
	var kept []mergedEvent

	for _, source := range sources {
		for _, rec := range source {
			date, err := civil.ParseDate(rec.Date)
			if err != nil {
				stats.Dropped++
				continue
			}
			clock, err := civil.ParseClockOrDefault(rec.Time)
			if err != nil {
				stats.Dropped++
				continue
			}

			if rec.ID != "" && seenID[rec.ID] {
				stats.DuplicateIDs++
				continue
			}
			slot := slotKey(date, clock, rec.Title)
			if seenSlot[slot] {
				stats.FallbackMerges++
				continue
			}

			if rec.ID != "" {
				seenID[rec.ID] = true
			}
			seenSlot[slot] = true
			kept = append(kept, mergedEvent{record: rec, date: date, clock: clock})
		}
	}

	// Stable: ties in (date, time) keep the source-priority order from above.
	sort.SliceStable(kept, func(i, j int) bool {
		if c := kept[i].date.Compare(kept[j].date); c != 0 {
			return c < 0
		}
		return kept[i].clock.Compare(kept[j].clock) < 0
	})

	out := make([]models.EventRecord, len(kept))
	for i, m := range kept {
		out[i] = m.record
	}
	return out, stats
}

// slotKey builds the fallback identity: same day, same time, same title. The
// clock is normalized so "" and the 09:00 sentinel collide on purpose.
func slotKey(date civil.Date, clock civil.Clock, title string) string {
	return date.String() + "|" + clock.String() + "|" + strings.TrimSpace(title)
}
