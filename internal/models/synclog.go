package models

import "time"

// SyncLogEntry is one line in the append-only audit trail of the write path.
// Remote mirror failures are invisible to the operation that caused them, so
// the log is the only durable place they show up.
type SyncLogEntry struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	EventID        string    `json:"eventId,omitempty"`
	Action         string    `json:"action"`  // e.g., "event.create", "event.route.case"
	Outcome        string    `json:"outcome"` // "local.committed", "remote.synced", "remote.failed"
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Sync log outcomes.
const (
	OutcomeLocalCommitted = "local.committed"
	OutcomeRemoteSynced   = "remote.synced"
	OutcomeRemoteFailed   = "remote.failed"
)
