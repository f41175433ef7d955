package models

// EventOrigin identifies which source produced an event record. Origin
// determines write routing: local records live in the local store, case and
// task records are regenerated from their source entity on every aggregation
// pass and are never stored independently.
type EventOrigin string

const (
	OriginLocal EventOrigin = "local"
	OriginCase  EventOrigin = "case"
	OriginTask  EventOrigin = "task"
)

// EventKind classifies an agenda entry.
type EventKind string

const (
	KindHearing     EventKind = "hearing"
	KindMeeting     EventKind = "meeting"
	KindDeadline    EventKind = "deadline"
	KindAppointment EventKind = "appointment"
	KindReminder    EventKind = "reminder"
	KindTask        EventKind = "task"
)

// ValidKind reports whether k is one of the known event kinds.
func ValidKind(k EventKind) bool {
	switch k {
	case KindHearing, KindMeeting, KindDeadline, KindAppointment, KindReminder, KindTask:
		return true
	}
	return false
}

// Priority is the urgency of a task-derived event.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// CaseRef links an event back to the case it belongs to.
type CaseRef struct {
	CaseID string `json:"caseId,omitempty"`
	Number string `json:"number,omitempty"`
}

// EventRecord is the normalized agenda entry every source is mapped into.
// Dates are plain "YYYY-MM-DD" strings and times are "HH:MM"; the civil
// package owns parsing and comparison so no timezone math ever touches them.
type EventRecord struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organizationId"`
	Title          string      `json:"title"`
	Kind           EventKind   `json:"kind"`
	Date           string      `json:"date"`
	Time           string      `json:"time"`
	Origin         EventOrigin `json:"origin"`
	CaseRef        *CaseRef    `json:"caseRef,omitempty"`
	Priority       Priority    `json:"priority,omitempty"`
	Place          string      `json:"place,omitempty"`
	Judge          string      `json:"judge,omitempty"`
	Counsel        string      `json:"counsel,omitempty"`
	Notes          string      `json:"notes,omitempty"`

	// Synced records whether the best-effort remote mirror write succeeded.
	// Only meaningful for local-origin records.
	Synced bool `json:"synced"`
	// Mirrored records whether the event has ever existed in the remote
	// collection. An unsynced record that was already mirrored retries as an
	// update; creating it again would duplicate the remote document.
	Mirrored bool `json:"mirrored,omitempty"`
	// Demo marks seed data; demo records are pruned when loading the local
	// store.
	Demo bool `json:"demo,omitempty"`
}
