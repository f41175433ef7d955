package services

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fmorante/lexagenda-be/internal/models"
)

// SyncLogServiceProvider defines the interface for the sync audit trail.
type SyncLogServiceProvider interface {
	Record(organizationID, eventID, action, outcome, detail string)
	GetRecent(organizationID string, limit int) ([]models.SyncLogEntry, error)
}

// SyncLogService persists write-path outcomes. Mirror failures never surface
// to the operation that caused them, so this log is where they become visible.
type SyncLogService struct {
	db *sql.DB
}

// NewSyncLogService creates a new SyncLogService.
func NewSyncLogService(db *sql.DB) *SyncLogService {
	return &SyncLogService{db: db}
}

// Record appends one entry. It is best-effort: a failed audit write is logged
// and swallowed, it must never break the operation being audited.
func (s *SyncLogService) Record(organizationID, eventID, action, outcome, detail string) {
	_, err := s.db.Exec(
		"INSERT INTO sync_log (id, organization_id, event_id, action, outcome, detail, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		uuid.New().String(), organizationID, eventID, action, outcome, detail,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("Failed to record sync log entry")
	}
}

// GetRecent retrieves the most recent entries for an organization.
func (s *SyncLogService) GetRecent(organizationID string, limit int) ([]models.SyncLogEntry, error) {
	rows, err := s.db.Query(
		"SELECT id, organization_id, event_id, action, outcome, detail, created_at FROM sync_log WHERE organization_id = ? ORDER BY created_at DESC LIMIT ?",
		organizationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.SyncLogEntry
	for rows.Next() {
		var entry models.SyncLogEntry
		var eventID, detail sql.NullString
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &eventID, &entry.Action, &entry.Outcome, &detail, &createdAt); err != nil {
			return nil, err
		}
		entry.EventID = eventID.String
		entry.Detail = detail.String
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			entry.CreatedAt = ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
