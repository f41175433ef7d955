package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fmorante/lexagenda-be/internal/civil"
	"github.com/fmorante/lexagenda-be/internal/localstore"
	"github.com/fmorante/lexagenda-be/internal/models"
	"github.com/fmorante/lexagenda-be/internal/remote"
	"github.com/fmorante/lexagenda-be/internal/websocket"
)

// Derived event ids carry the id of their source entity behind a fixed prefix,
// so the same case or task always maps to the same event. The prefixes also
// route edits back to the right collection.
const (
	caseIDPrefix = "case-"
	taskIDPrefix = "task-"
)

// MirrorWriter is the best-effort remote mirror for local events and the
// routing target for edits to derived events.
type MirrorWriter interface {
	CreateDocument(ctx context.Context, collection string, doc any) (string, error)
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error
	DeleteDocument(ctx context.Context, collection, id string) error
}

// EventInput carries the user-editable fields of an agenda event.
type EventInput struct {
	Title    string           `json:"title"`
	Kind     models.EventKind `json:"kind"`
	Date     string           `json:"date"`
	Time     string           `json:"time"`
	Place    string           `json:"place"`
	Judge    string           `json:"judge"`
	Counsel  string           `json:"counsel"`
	Notes    string           `json:"notes"`
	Priority models.Priority  `json:"priority"`
	CaseRef  *models.CaseRef  `json:"caseRef"`
}

// AgendaView is the result of one aggregation pass: the merged event list,
// its derived day index, and what the pass had to discard along the way.
type AgendaView struct {
	Events   []models.EventRecord `json:"events"`
	Days     DayIndex             `json:"days"`
	Stats    MergeStats           `json:"stats"`
	Warnings []string             `json:"warnings,omitempty"`
}

// AgendaServiceProvider defines the interface for the agenda engine.
type AgendaServiceProvider interface {
	Refresh(ctx context.Context, organizationID string) (AgendaView, error)
	CurrentView(ctx context.Context, organizationID string) (AgendaView, error)
	CreateEvent(ctx context.Context, organizationID string, input EventInput) (models.EventRecord, error)
	UpdateEvent(ctx context.Context, organizationID, eventID string, input EventInput) (models.EventRecord, error)
	DeleteEvent(ctx context.Context, organizationID, eventID string) error
}

// AgendaService aggregates events from the local store, the remote case
// collection and the remote task collection, and owns the local-first write
// path. The per-organization merged view is the only shared mutable state and
// is always replaced wholesale, never patched.
type AgendaService struct {
	store         *localstore.Store
	caseSource    *CaseEventSource
	tasks         TaskLister
	mirror        MirrorWriter
	syncLog       SyncLogServiceProvider
	hub           *websocket.Hub
	remoteTimeout time.Duration

	// writeMu serializes load-modify-save cycles against the local store.
	writeMu sync.Mutex

	mu        sync.Mutex
	views     map[string]AgendaView
	derived   map[string]derivedCache
	started   map[string]uint64
	committed map[string]uint64
}

// derivedCache keeps the last fetched case/task projections so a local write
// can rebuild the merged view synchronously, without touching the network.
type derivedCache struct {
	caseEvents []models.EventRecord
	taskEvents []models.EventRecord
}

// NewAgendaService creates a new AgendaService. The hub may be nil when no
// push notifications are wanted (tests, one-shot tools).
func NewAgendaService(store *localstore.Store, caseSource *CaseEventSource, tasks TaskLister, mirror MirrorWriter, syncLog SyncLogServiceProvider, hub *websocket.Hub, remoteTimeout time.Duration) *AgendaService {
	if remoteTimeout <= 0 {
		remoteTimeout = 5 * time.Second
	}
	return &AgendaService{
		store:         store,
		caseSource:    caseSource,
		tasks:         tasks,
		mirror:        mirror,
		syncLog:       syncLog,
		hub:           hub,
		remoteTimeout: remoteTimeout,
		views:         make(map[string]AgendaView),
		derived:       make(map[string]derivedCache),
		started:       make(map[string]uint64),
		committed:     make(map[string]uint64),
	}
}

// Refresh runs one aggregation pass: read the local store, query cases and
// tasks concurrently, merge, index, and replace the in-memory view. A remote
// failure degrades the pass to the sources that answered; it never fails the
// pass. Overlapping passes resolve last-started-wins: a pass that finishes
// after a newer one committed is discarded.
func (s *AgendaService) Refresh(ctx context.Context, organizationID string) (AgendaView, error) {
	gen := s.beginPass(organizationID)

	local := s.store.LoadAll(organizationID)

	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	var (
		wg         sync.WaitGroup
		caseEvents []models.EventRecord
		taskEvents []models.EventRecord
		caseErr    error
		taskErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		caseEvents, caseErr = s.caseSource.FetchHearingEvents(rctx, organizationID)
	}()
	go func() {
		defer wg.Done()
		var tasks []models.TaskRecord
		tasks, taskErr = s.tasks.ListTasks(rctx, organizationID)
		if taskErr == nil {
			taskEvents = ProjectTaskEvents(organizationID, tasks)
		}
	}()
	wg.Wait()

	var warnings []string
	if caseErr != nil {
		log.Warn().Err(caseErr).Str("organization_id", organizationID).Msg("Case query failed, aggregating without hearings")
		warnings = append(warnings, "case source unavailable")
	}
	if taskErr != nil {
		log.Warn().Err(taskErr).Str("organization_id", organizationID).Msg("Task query failed, aggregating without tasks")
		warnings = append(warnings, "task source unavailable")
	}

	merged, stats := MergeEvents(local, caseEvents, taskEvents)
	if stats.Dropped > 0 {
		log.Warn().Int("dropped", stats.Dropped).Str("organization_id", organizationID).Msg("Malformed records dropped during merge")
	}

	view := AgendaView{
		Events:   merged,
		Days:     BuildDayIndex(merged),
		Stats:    stats,
		Warnings: warnings,
	}

	if s.commitPass(organizationID, gen, view, &derivedCache{caseEvents: caseEvents, taskEvents: taskEvents}) {
		s.notify(organizationID, view)
		s.retryUnsynced(organizationID, local)
	}
	return s.currentOrZero(organizationID), nil
}

// CurrentView returns the latest committed view, running a pass first if the
// organization has none yet.
func (s *AgendaService) CurrentView(ctx context.Context, organizationID string) (AgendaView, error) {
	s.mu.Lock()
	view, ok := s.views[organizationID]
	s.mu.Unlock()
	if ok {
		return view, nil
	}
	return s.Refresh(ctx, organizationID)
}

// CreateEvent creates a local-origin event. The local write must succeed or
// the whole operation fails; the remote mirror is attempted afterwards in the
// background and its outcome never rolls the event back.
func (s *AgendaService) CreateEvent(ctx context.Context, organizationID string, input EventInput) (models.EventRecord, error) {
	if err := validateInput(input); err != nil {
		return models.EventRecord{}, err
	}
	kind := input.Kind
	if kind == "" {
		kind = models.KindMeeting
	}
	if !models.ValidKind(kind) {
		return models.EventRecord{}, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}

	rec := models.EventRecord{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Title:          strings.TrimSpace(input.Title),
		Kind:           kind,
		Date:           input.Date,
		Time:           input.Time,
		Origin:         models.OriginLocal,
		CaseRef:        input.CaseRef,
		Priority:       input.Priority,
		Place:          input.Place,
		Judge:          input.Judge,
		Counsel:        input.Counsel,
		Notes:          input.Notes,
	}

	s.writeMu.Lock()
	events := append(s.store.LoadAll(organizationID), rec)
	err := s.store.SaveAll(organizationID, events)
	s.writeMu.Unlock()
	if err != nil {
		return models.EventRecord{}, &LocalPersistenceError{Err: err}
	}

	s.syncLog.Record(organizationID, rec.ID, "event.create", models.OutcomeLocalCommitted, "")
	// The caller must observe the new event before any network step.
	s.recomputeFromLocal(organizationID, events)

	go s.mirrorCreate(organizationID, rec)
	return rec, nil
}

// UpdateEvent edits an event by id. Local-origin events follow the same
// local-first protocol as creation. Case- and task-derived events have no
// local copy: the edit is routed to the source entity, and the agenda picks up
// the change on the next pass.
func (s *AgendaService) UpdateEvent(ctx context.Context, organizationID, eventID string, input EventInput) (models.EventRecord, error) {
	switch s.resolveOrigin(organizationID, eventID) {
	case models.OriginCase:
		return s.routeCaseEdit(ctx, organizationID, eventID, input)
	case models.OriginTask:
		return s.routeTaskEdit(ctx, organizationID, eventID, input)
	}

	if err := validateInput(input); err != nil {
		return models.EventRecord{}, err
	}

	s.writeMu.Lock()
	events := s.store.LoadAll(organizationID)
	idx := indexByID(events, eventID)
	if idx < 0 {
		s.writeMu.Unlock()
		return models.EventRecord{}, ErrEventNotFound
	}
	rec := events[idx]
	rec.Title = strings.TrimSpace(input.Title)
	if input.Kind != "" {
		if !models.ValidKind(input.Kind) {
			s.writeMu.Unlock()
			return models.EventRecord{}, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", input.Kind)}
		}
		rec.Kind = input.Kind
	}
	rec.Date = input.Date
	rec.Time = input.Time
	rec.Place = input.Place
	rec.Judge = input.Judge
	rec.Counsel = input.Counsel
	rec.Notes = input.Notes
	rec.Priority = input.Priority
	if input.CaseRef != nil {
		rec.CaseRef = input.CaseRef
	}
	rec.Synced = false
	events[idx] = rec
	err := s.store.SaveAll(organizationID, events)
	s.writeMu.Unlock()
	if err != nil {
		return models.EventRecord{}, &LocalPersistenceError{Err: err}
	}

	s.syncLog.Record(organizationID, rec.ID, "event.update", models.OutcomeLocalCommitted, "")
	s.recomputeFromLocal(organizationID, events)

	go s.mirrorUpdate(organizationID, rec)
	return rec, nil
}

// DeleteEvent removes an event by id. For a local event the removal is
// local-first with a best-effort mirror delete. For a case-derived event the
// hearing date is cleared on the source case; for a task-derived event the
// source task is deleted.
func (s *AgendaService) DeleteEvent(ctx context.Context, organizationID, eventID string) error {
	switch s.resolveOrigin(organizationID, eventID) {
	case models.OriginCase:
		caseID := strings.TrimPrefix(eventID, caseIDPrefix)
		err := s.routedRemoteCall(ctx, func(rctx context.Context) error {
			return s.mirror.UpdateDocument(rctx, remote.CollectionCases, caseID, map[string]any{
				"hearingDate": "",
				"hearingTime": "",
			})
		})
		s.recordRouted(organizationID, eventID, "event.route.case.delete", err)
		if err != nil {
			return err
		}
		go s.backgroundRefresh(organizationID)
		return nil

	case models.OriginTask:
		taskID := strings.TrimPrefix(eventID, taskIDPrefix)
		err := s.routedRemoteCall(ctx, func(rctx context.Context) error {
			return s.mirror.DeleteDocument(rctx, remote.CollectionTasks, taskID)
		})
		s.recordRouted(organizationID, eventID, "event.route.task.delete", err)
		if err != nil {
			return err
		}
		go s.backgroundRefresh(organizationID)
		return nil
	}

	s.writeMu.Lock()
	events := s.store.LoadAll(organizationID)
	idx := indexByID(events, eventID)
	if idx < 0 {
		s.writeMu.Unlock()
		return ErrEventNotFound
	}
	events = append(events[:idx], events[idx+1:]...)
	err := s.store.SaveAll(organizationID, events)
	s.writeMu.Unlock()
	if err != nil {
		return &LocalPersistenceError{Err: err}
	}

	s.syncLog.Record(organizationID, eventID, "event.delete", models.OutcomeLocalCommitted, "")
	s.recomputeFromLocal(organizationID, events)

	go s.mirrorDelete(organizationID, eventID)
	return nil
}

// resolveOrigin decides where a write to eventID goes. The record's origin in
// the committed view is authoritative; only ids absent from the view fall back
// to the derived-id prefix, so a local record whose id happens to collide with
// the prefix is still edited locally.
func (s *AgendaService) resolveOrigin(organizationID, eventID string) models.EventOrigin {
	s.mu.Lock()
	view, ok := s.views[organizationID]
	s.mu.Unlock()
	if ok {
		if idx := indexByID(view.Events, eventID); idx >= 0 {
			return view.Events[idx].Origin
		}
	}
	switch {
	case strings.HasPrefix(eventID, caseIDPrefix):
		return models.OriginCase
	case strings.HasPrefix(eventID, taskIDPrefix):
		return models.OriginTask
	}
	return models.OriginLocal
}

// routeCaseEdit pushes an edited hearing back onto its source case.
func (s *AgendaService) routeCaseEdit(ctx context.Context, organizationID, eventID string, input EventInput) (models.EventRecord, error) {
	if err := validateInput(input); err != nil {
		return models.EventRecord{}, err
	}
	caseID := strings.TrimPrefix(eventID, caseIDPrefix)
	fields := map[string]any{
		"hearingDate": input.Date,
		"hearingTime": input.Time,
		"place":       input.Place,
		"judge":       input.Judge,
		"counsel":     input.Counsel,
		"notes":       input.Notes,
	}
	err := s.routedRemoteCall(ctx, func(rctx context.Context) error {
		return s.mirror.UpdateDocument(rctx, remote.CollectionCases, caseID, fields)
	})
	s.recordRouted(organizationID, eventID, "event.route.case.update", err)
	if err != nil {
		return models.EventRecord{}, err
	}
	return s.refreshedEvent(ctx, organizationID, eventID)
}

// routeTaskEdit pushes an edited due date back onto its source task.
func (s *AgendaService) routeTaskEdit(ctx context.Context, organizationID, eventID string, input EventInput) (models.EventRecord, error) {
	if input.Date == "" {
		return models.EventRecord{}, &ValidationError{Field: "date", Reason: "must not be empty"}
	}
	if _, err := civil.ParseDate(input.Date); err != nil {
		return models.EventRecord{}, &ValidationError{Field: "date", Reason: err.Error()}
	}
	taskID := strings.TrimPrefix(eventID, taskIDPrefix)
	fields := map[string]any{
		"dueDate": input.Date,
	}
	if input.Title != "" {
		fields["description"] = strings.TrimSpace(input.Title)
	}
	if input.Priority != "" {
		fields["priority"] = input.Priority
	}
	err := s.routedRemoteCall(ctx, func(rctx context.Context) error {
		return s.mirror.UpdateDocument(rctx, remote.CollectionTasks, taskID, fields)
	})
	s.recordRouted(organizationID, eventID, "event.route.task.update", err)
	if err != nil {
		return models.EventRecord{}, err
	}
	return s.refreshedEvent(ctx, organizationID, eventID)
}

// refreshedEvent re-aggregates and returns the routed event as the next pass
// sees it. The zero record with nil error means the event disappeared (e.g.
// the source lost its date).
func (s *AgendaService) refreshedEvent(ctx context.Context, organizationID, eventID string) (models.EventRecord, error) {
	view, err := s.Refresh(ctx, organizationID)
	if err != nil {
		return models.EventRecord{}, err
	}
	if idx := indexByID(view.Events, eventID); idx >= 0 {
		return view.Events[idx], nil
	}
	return models.EventRecord{}, nil
}

// mirrorCreate pushes a local event to the remote events collection and, on
// success, flips the record's synced flag in the local store.
func (s *AgendaService) mirrorCreate(organizationID string, rec models.EventRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout)
	defer cancel()

	if _, err := s.mirror.CreateDocument(ctx, remote.CollectionEvents, rec); err != nil {
		log.Warn().Err(err).Str("event_id", rec.ID).Msg("Remote mirror create failed, event remains local-only")
		s.syncLog.Record(organizationID, rec.ID, "event.create", models.OutcomeRemoteFailed, err.Error())
		return
	}
	s.syncLog.Record(organizationID, rec.ID, "event.create", models.OutcomeRemoteSynced, "")
	s.markSynced(organizationID, rec.ID)
}

func (s *AgendaService) mirrorUpdate(organizationID string, rec models.EventRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout)
	defer cancel()

	fields := map[string]any{
		"title":    rec.Title,
		"kind":     rec.Kind,
		"date":     rec.Date,
		"time":     rec.Time,
		"place":    rec.Place,
		"judge":    rec.Judge,
		"counsel":  rec.Counsel,
		"notes":    rec.Notes,
		"priority": rec.Priority,
	}
	if err := s.mirror.UpdateDocument(ctx, remote.CollectionEvents, rec.ID, fields); err != nil {
		log.Warn().Err(err).Str("event_id", rec.ID).Msg("Remote mirror update failed")
		s.syncLog.Record(organizationID, rec.ID, "event.update", models.OutcomeRemoteFailed, err.Error())
		return
	}
	s.syncLog.Record(organizationID, rec.ID, "event.update", models.OutcomeRemoteSynced, "")
	s.markSynced(organizationID, rec.ID)
}

func (s *AgendaService) mirrorDelete(organizationID, eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout)
	defer cancel()

	if err := s.mirror.DeleteDocument(ctx, remote.CollectionEvents, eventID); err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("Remote mirror delete failed")
		s.syncLog.Record(organizationID, eventID, "event.delete", models.OutcomeRemoteFailed, err.Error())
		return
	}
	s.syncLog.Record(organizationID, eventID, "event.delete", models.OutcomeRemoteSynced, "")
}

// retryUnsynced re-attempts the mirror for local records whose earlier mirror
// write failed. A record that was already mirrored once retries as an update;
// creating it again would leave a duplicate remote document.
func (s *AgendaService) retryUnsynced(organizationID string, local []models.EventRecord) {
	for _, rec := range local {
		if rec.Origin != models.OriginLocal || rec.Synced {
			continue
		}
		if rec.Mirrored {
			go s.mirrorUpdate(organizationID, rec)
		} else {
			go s.mirrorCreate(organizationID, rec)
		}
	}
}

// markSynced flips the synced and mirrored flags of one stored record.
func (s *AgendaService) markSynced(organizationID, eventID string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	events := s.store.LoadAll(organizationID)
	idx := indexByID(events, eventID)
	if idx < 0 {
		return
	}
	events[idx].Synced = true
	events[idx].Mirrored = true
	if err := s.store.SaveAll(organizationID, events); err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("Failed to persist synced flag")
	}
}

// recomputeFromLocal rebuilds the in-memory view from fresh local events plus
// the cached derived projections, with no network round trip. The rebuild
// counts as a new generation so an in-flight pass started earlier cannot
// clobber it.
func (s *AgendaService) recomputeFromLocal(organizationID string, local []models.EventRecord) {
	gen := s.beginPass(organizationID)

	s.mu.Lock()
	cache := s.derived[organizationID]
	s.mu.Unlock()

	merged, stats := MergeEvents(local, cache.caseEvents, cache.taskEvents)
	view := AgendaView{Events: merged, Days: BuildDayIndex(merged), Stats: stats}

	if s.commitPass(organizationID, gen, view, nil) {
		s.notify(organizationID, view)
	}
}

func (s *AgendaService) routedRemoteCall(ctx context.Context, call func(context.Context) error) error {
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	if err := call(rctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

func (s *AgendaService) recordRouted(organizationID, eventID, action string, err error) {
	if err != nil {
		s.syncLog.Record(organizationID, eventID, action, models.OutcomeRemoteFailed, err.Error())
		return
	}
	s.syncLog.Record(organizationID, eventID, action, models.OutcomeRemoteSynced, "")
}

func (s *AgendaService) backgroundRefresh(organizationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout+time.Second)
	defer cancel()
	if _, err := s.Refresh(ctx, organizationID); err != nil {
		log.Warn().Err(err).Str("organization_id", organizationID).Msg("Background refresh failed")
	}
}

func (s *AgendaService) beginPass(organizationID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started[organizationID]++
	return s.started[organizationID]
}

// commitPass installs a view if no newer pass has committed since gen started.
func (s *AgendaService) commitPass(organizationID string, gen uint64, view AgendaView, cache *derivedCache) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.committed[organizationID] {
		return false
	}
	s.committed[organizationID] = gen
	s.views[organizationID] = view
	if cache != nil {
		s.derived[organizationID] = *cache
	}
	return true
}

func (s *AgendaService) currentOrZero(organizationID string) AgendaView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views[organizationID]
}

func (s *AgendaService) notify(organizationID string, view AgendaView) {
	if s.hub == nil {
		return
	}
	payload := map[string]any{
		"organizationId": organizationID,
		"eventCount":     len(view.Events),
		"warnings":       view.Warnings,
	}
	if msg := websocket.Encode(websocket.ActionAgendaUpdated, payload); msg != nil {
		s.hub.BroadcastTo(organizationID, msg)
	}
}

func validateInput(input EventInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if input.Date == "" {
		return &ValidationError{Field: "date", Reason: "must not be empty"}
	}
	if _, err := civil.ParseDate(input.Date); err != nil {
		return &ValidationError{Field: "date", Reason: err.Error()}
	}
	if input.Time == "" {
		return &ValidationError{Field: "time", Reason: "must not be empty"}
	}
	if _, err := civil.ParseClock(input.Time); err != nil {
		return &ValidationError{Field: "time", Reason: err.Error()}
	}
	return nil
}

func indexByID(events []models.EventRecord, id string) int {
	for i, e := range events {
		if e.ID == id {
			return i
		}
	}
	return -1
}
