package services

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fmorante/lexagenda-be/internal/database"
	"github.com/fmorante/lexagenda-be/internal/localstore"
	"github.com/fmorante/lexagenda-be/internal/models"
)

type fakeCaseQuerier struct {
	cases []models.CaseRecord
	err   error
}

func (f *fakeCaseQuerier) QueryCases(ctx context.Context, organizationID string) ([]models.CaseRecord, error) {
	return f.cases, f.err
}

type fakeTaskLister struct {
	tasks []models.TaskRecord
	err   error
}

func (f *fakeTaskLister) ListTasks(ctx context.Context, organizationID string) ([]models.TaskRecord, error) {
	return f.tasks, f.err
}

type mirrorCall struct {
	collection string
	id         string
	fields     map[string]any
}

type fakeMirror struct {
	mu      sync.Mutex
	fail    bool
	creates []string
	updates []mirrorCall
	deletes []mirrorCall
}

func (f *fakeMirror) CreateDocument(ctx context.Context, collection string, doc any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("remote down")
	}
	f.creates = append(f.creates, collection)
	return "remote-id", nil
}

func (f *fakeMirror) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("remote down")
	}
	f.updates = append(f.updates, mirrorCall{collection: collection, id: id, fields: fields})
	return nil
}

func (f *fakeMirror) DeleteDocument(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("remote down")
	}
	f.deletes = append(f.deletes, mirrorCall{collection: collection, id: id})
	return nil
}

func (f *fakeMirror) lastUpdate() (mirrorCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return mirrorCall{}, false
	}
	return f.updates[len(f.updates)-1], true
}

type testEnv struct {
	svc    *AgendaService
	store  *localstore.Store
	db     *sql.DB
	cases  *fakeCaseQuerier
	tasks  *fakeTaskLister
	mirror *fakeMirror
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "agenda.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		store:  localstore.New(db),
		db:     db,
		cases:  &fakeCaseQuerier{},
		tasks:  &fakeTaskLister{},
		mirror: &fakeMirror{},
	}
	env.svc = NewAgendaService(
		env.store,
		NewCaseEventSource(env.cases),
		env.tasks,
		env.mirror,
		NewSyncLogService(db),
		nil,
		time.Second,
	)
	return env
}

func TestRefreshAggregatesAllSources(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	if err := env.store.SaveAll(org, []models.EventRecord{
		{ID: "evt-1", OrganizationID: org, Title: "Reunión", Kind: models.KindMeeting, Date: "2026-01-22", Time: "16:00", Origin: models.OriginLocal, Synced: true},
	}); err != nil {
		t.Fatal(err)
	}
	env.cases.cases = []models.CaseRecord{
		{ID: "7", Number: "123/2026", HearingDate: "2026-01-20", HearingTime: "10:30"},
	}
	env.tasks.tasks = []models.TaskRecord{
		{ID: "9", Description: "Presentar escrito", DueDate: "2026-01-21"},
	}

	view, err := env.svc.Refresh(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(view.Events), view.Events)
	}
	// Chronological: hearing (20th), task (21st), local meeting (22nd).
	if view.Events[0].ID != "case-7" || view.Events[1].ID != "task-9" || view.Events[2].ID != "evt-1" {
		t.Errorf("unexpected order: %q %q %q", view.Events[0].ID, view.Events[1].ID, view.Events[2].ID)
	}
	if view.Days["2026-01-20"] != 1 || view.Days["2026-01-21"] != 1 || view.Days["2026-01-22"] != 1 {
		t.Errorf("day index = %v", view.Days)
	}
	if len(view.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", view.Warnings)
	}
}

// A dead remote degrades the pass to the surviving sources instead of failing
// it.
func TestRefreshDegradesWhenCaseQueryFails(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	if err := env.store.SaveAll(org, []models.EventRecord{
		{ID: "evt-1", OrganizationID: org, Title: "a", Date: "2026-01-20", Time: "09:00", Origin: models.OriginLocal, Synced: true},
		{ID: "evt-2", OrganizationID: org, Title: "b", Date: "2026-01-21", Time: "09:00", Origin: models.OriginLocal, Synced: true},
	}); err != nil {
		t.Fatal(err)
	}
	env.cases.err = errors.New("timeout")
	env.tasks.tasks = []models.TaskRecord{
		{ID: "9", Description: "Presentar escrito", DueDate: "2026-01-22"},
	}

	view, err := env.svc.Refresh(context.Background(), org)
	if err != nil {
		t.Fatalf("degraded pass must not fail: %v", err)
	}
	if len(view.Events) != 3 {
		t.Errorf("got %d events, want 3 (2 local + 1 task)", len(view.Events))
	}
	if len(view.Warnings) != 1 {
		t.Errorf("warnings = %v, want one for the case source", view.Warnings)
	}
}

func TestCreateEventLocalFirstEvenWhenMirrorFails(t *testing.T) {
	env := newTestEnv(t)
	env.mirror.fail = true
	const org = "org-1"

	rec, err := env.svc.CreateEvent(context.Background(), org, EventInput{
		Title: "Audiencia Civil", Date: "2026-01-20", Time: "09:00", Kind: models.KindHearing,
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if rec.Origin != models.OriginLocal || rec.ID == "" {
		t.Errorf("record = %+v", rec)
	}

	// Durable before any remote outcome.
	stored := env.store.LoadAll(org)
	if len(stored) != 1 || stored[0].ID != rec.ID {
		t.Fatalf("local store does not contain the new event: %+v", stored)
	}

	// Visible in the in-memory view before any refresh.
	view, err := env.svc.CurrentView(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Events) != 1 || view.Events[0].ID != rec.ID {
		t.Errorf("view does not contain the new event: %+v", view.Events)
	}
}

func TestCreateEventValidation(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	cases := []EventInput{
		{Title: "", Date: "2026-01-20", Time: "10:00"},
		{Title: "x", Date: "", Time: "10:00"},
		{Title: "x", Date: "2026-01-20", Time: ""},
		{Title: "x", Date: "2026-02-30", Time: "10:00"},
		{Title: "x", Date: "2026-01-20", Time: "26:00"},
	}
	for _, input := range cases {
		_, err := env.svc.CreateEvent(context.Background(), org, input)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("input %+v: err = %v, want ValidationError", input, err)
		}
	}

	if stored := env.store.LoadAll(org); len(stored) != 0 {
		t.Errorf("rejected writes reached the store: %+v", stored)
	}
}

func TestCreateEventMirrorSuccessMarksSynced(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	rec, err := env.svc.CreateEvent(context.Background(), org, EventInput{
		Title: "Reunión", Date: "2026-01-20", Time: "10:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	// The mirror write is asynchronous; poll briefly for the flag.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored := env.store.LoadAll(org)
		if len(stored) == 1 && stored[0].Synced {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("synced flag never set for %s", rec.ID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUpdateLocalEvent(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	rec, err := env.svc.CreateEvent(context.Background(), org, EventInput{
		Title: "Reunión", Date: "2026-01-20", Time: "10:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := env.svc.UpdateEvent(context.Background(), org, rec.ID, EventInput{
		Title: "Reunión (reprogramada)", Date: "2026-01-27", Time: "12:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Date != "2026-01-27" || updated.Title != "Reunión (reprogramada)" {
		t.Errorf("updated = %+v", updated)
	}

	stored := env.store.LoadAll(org)
	if len(stored) != 1 || stored[0].Date != "2026-01-27" {
		t.Errorf("store not updated: %+v", stored)
	}
}

func TestUpdateUnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.UpdateEvent(context.Background(), "org-1", "missing", EventInput{
		Title: "x", Date: "2026-01-20", Time: "10:00",
	})
	if !errors.Is(err, ErrEventNotFound) {
		t.Errorf("err = %v, want ErrEventNotFound", err)
	}
}

// Editing a case-derived event must not touch the local store: the edit goes
// to the source case, and the agenda picks it up on the next pass.
func TestUpdateCaseDerivedEventRoutesToSource(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"
	env.cases.cases = []models.CaseRecord{
		{ID: "99", Number: "123/2026", HearingDate: "2026-01-20", HearingTime: "09:00"},
	}

	updated, err := env.svc.UpdateEvent(context.Background(), org, "case-99", EventInput{
		Title: "Audiencia Civil", Date: "2026-02-03", Time: "11:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	call, ok := env.mirror.lastUpdate()
	if !ok {
		t.Fatal("no routed update reached the remote")
	}
	if call.collection != "cases" || call.id != "99" {
		t.Errorf("routed to %s/%s, want cases/99", call.collection, call.id)
	}
	if call.fields["hearingDate"] != "2026-02-03" {
		t.Errorf("hearingDate = %v", call.fields["hearingDate"])
	}

	if stored := env.store.LoadAll(org); len(stored) != 0 {
		t.Errorf("derived edit leaked into the local store: %+v", stored)
	}
	// The returned record is whatever the next pass derives; with the fake
	// still serving the old date, the event is still present.
	if updated.ID != "" && updated.Origin != models.OriginCase {
		t.Errorf("unexpected routed result: %+v", updated)
	}
}

func TestUpdateDerivedEventRemoteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mirror.fail = true

	_, err := env.svc.UpdateEvent(context.Background(), "org-1", "case-99", EventInput{
		Title: "Audiencia", Date: "2026-02-03", Time: "11:00",
	})
	if !errors.Is(err, ErrRemoteUnavailable) {
		t.Errorf("err = %v, want ErrRemoteUnavailable", err)
	}
}

func TestDeleteLocalEvent(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	rec, err := env.svc.CreateEvent(context.Background(), org, EventInput{
		Title: "Reunión", Date: "2026-01-20", Time: "10:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := env.svc.DeleteEvent(context.Background(), org, rec.ID); err != nil {
		t.Fatal(err)
	}
	if stored := env.store.LoadAll(org); len(stored) != 0 {
		t.Errorf("event still in store after delete: %+v", stored)
	}
}

func TestDeleteTaskDerivedEventDeletesSourceTask(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	if err := env.svc.DeleteEvent(context.Background(), org, "task-5"); err != nil {
		t.Fatal(err)
	}

	env.mirror.mu.Lock()
	defer env.mirror.mu.Unlock()
	if len(env.mirror.deletes) != 1 {
		t.Fatalf("deletes = %+v, want one", env.mirror.deletes)
	}
	if env.mirror.deletes[0].collection != "tasks" || env.mirror.deletes[0].id != "5" {
		t.Errorf("deleted %s/%s, want tasks/5", env.mirror.deletes[0].collection, env.mirror.deletes[0].id)
	}
}

// An edited record whose original mirror create succeeded must retry as an
// update; a second create would duplicate the remote document.
func TestRefreshRetriesMirroredRecordAsUpdate(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	if err := env.store.SaveAll(org, []models.EventRecord{
		{ID: "evt-1", OrganizationID: org, Title: "Reunión", Kind: models.KindMeeting, Date: "2026-01-20", Time: "10:00", Origin: models.OriginLocal, Synced: false, Mirrored: true},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.svc.Refresh(context.Background(), org); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		stored := env.store.LoadAll(org)
		if len(stored) == 1 && stored[0].Synced {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("record never re-synced")
		}
		time.Sleep(10 * time.Millisecond)
	}

	call, ok := env.mirror.lastUpdate()
	if !ok {
		t.Fatal("no update reached the remote")
	}
	if call.collection != "events" || call.id != "evt-1" {
		t.Errorf("retried to %s/%s, want events/evt-1", call.collection, call.id)
	}
	env.mirror.mu.Lock()
	defer env.mirror.mu.Unlock()
	if len(env.mirror.creates) != 0 {
		t.Errorf("retry duplicated the remote document: %v", env.mirror.creates)
	}
}

// A record the mirror never accepted retries as a create.
func TestRefreshRetriesUnmirroredRecordAsCreate(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	if err := env.store.SaveAll(org, []models.EventRecord{
		{ID: "evt-1", OrganizationID: org, Title: "Reunión", Kind: models.KindMeeting, Date: "2026-01-20", Time: "10:00", Origin: models.OriginLocal},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.svc.Refresh(context.Background(), org); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		stored := env.store.LoadAll(org)
		if len(stored) == 1 && stored[0].Synced && stored[0].Mirrored {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("record never synced")
		}
		time.Sleep(10 * time.Millisecond)
	}

	env.mirror.mu.Lock()
	defer env.mirror.mu.Unlock()
	if len(env.mirror.creates) != 1 {
		t.Errorf("creates = %v, want one", env.mirror.creates)
	}
}

// Write routing follows the record's origin, not the shape of its id: a local
// record whose id collides with the derived prefix is still edited in place.
func TestUpdatePrefixedLocalEventStaysLocal(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	if err := env.store.SaveAll(org, []models.EventRecord{
		{ID: "case-import-1", OrganizationID: org, Title: "Audiencia importada", Kind: models.KindHearing, Date: "2026-01-20", Time: "09:00", Origin: models.OriginLocal, Synced: true, Mirrored: true},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Refresh(context.Background(), org); err != nil {
		t.Fatal(err)
	}

	updated, err := env.svc.UpdateEvent(context.Background(), org, "case-import-1", EventInput{
		Title: "Audiencia importada", Date: "2026-01-27", Time: "10:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Origin != models.OriginLocal || updated.Date != "2026-01-27" {
		t.Errorf("updated = %+v", updated)
	}

	stored := env.store.LoadAll(org)
	if len(stored) != 1 || stored[0].Date != "2026-01-27" {
		t.Errorf("store not updated in place: %+v", stored)
	}
	if call, ok := env.mirror.lastUpdate(); ok && call.collection == "cases" {
		t.Errorf("local edit was routed to the cases collection: %+v", call)
	}
}

// An identical manual copy of a remote hearing collapses to the local record.
func TestRefreshScenarioLocalCopySuppressesDerived(t *testing.T) {
	env := newTestEnv(t)
	const org = "org-1"

	// A case with no number or client derives the bare title "Audiencia"; the
	// user also created that hearing by hand before the case was filed.
	if err := env.store.SaveAll(org, []models.EventRecord{
		{ID: "evt-1", OrganizationID: org, Title: "Audiencia", Kind: models.KindHearing, Date: "2026-01-20", Time: "09:00", Origin: models.OriginLocal, Synced: true},
	}); err != nil {
		t.Fatal(err)
	}
	env.cases.cases = []models.CaseRecord{
		{ID: "99", HearingDate: "2026-01-20", HearingTime: "09:00"},
	}

	view, err := env.svc.Refresh(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(view.Events))
	}
	if view.Events[0].ID != "evt-1" {
		t.Errorf("kept %q, want the local evt-1", view.Events[0].ID)
	}
	if view.Stats.FallbackMerges != 1 {
		t.Errorf("FallbackMerges = %d, want 1", view.Stats.FallbackMerges)
	}
}

func TestSyncLogRecordsMirrorFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mirror.fail = true
	const org = "org-1"

	rec, err := env.svc.CreateEvent(context.Background(), org, EventInput{
		Title: "Reunión", Date: "2026-01-20", Time: "10:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	syncLog := NewSyncLogService(env.db)
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := syncLog.GetRecent(org, 10)
		if err != nil {
			t.Fatal(err)
		}
		var sawFailure bool
		for _, e := range entries {
			if e.EventID == rec.ID && e.Outcome == models.OutcomeRemoteFailed {
				sawFailure = true
			}
		}
		if sawFailure {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no remote.failed entry for %s; entries: %+v", rec.ID, entries)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
