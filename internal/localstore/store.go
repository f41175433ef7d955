// Package localstore persists the full agenda event list per organization.
//
// This is the local-first half of the sync design: writes land here before any
// network attempt, so a created event survives a dead remote. The layout is
// deliberately a key-value table (one JSON array per organization) rather than
// one row per event; saveAll replaces the whole set, which keeps re-running the
// aggregation idempotent and removes any need for incremental patching.
package localstore

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fmorante/lexagenda-be/internal/models"
)

const demoIDPrefix = "demo-"

// Store is the durable client-local event store.
type Store struct {
	db *sql.DB
}

// New creates a Store over an already-migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// LoadAll returns every persisted event for the organization. A missing row or
// a corrupt JSON payload yields an empty list, never an error: local history
// being unreadable must not take the whole agenda down. Demo/seed records are
// pruned on load and the cleaned set is written back once.
func (s *Store) LoadAll(organizationID string) []models.EventRecord {
	var raw string
	err := s.db.QueryRow(
		"SELECT events_json FROM organization_events WHERE organization_id = ?",
		organizationID,
	).Scan(&raw)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Warn().Err(err).Str("organization_id", organizationID).Msg("Local store read failed, treating as empty")
		}
		return nil
	}

	var events []models.EventRecord
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		log.Warn().Err(err).Str("organization_id", organizationID).Msg("Local store payload corrupt, treating as empty")
		return nil
	}

	cleaned := pruneDemo(events)
	if len(cleaned) != len(events) {
		log.Info().
			Str("organization_id", organizationID).
			Int("pruned", len(events)-len(cleaned)).
			Msg("Pruned demo events from local store")
		if err := s.SaveAll(organizationID, cleaned); err != nil {
			log.Warn().Err(err).Msg("Failed to persist demo prune")
		}
	}
	return cleaned
}

// SaveAll replaces the organization's persisted event set wholesale.
func (s *Store) SaveAll(organizationID string, events []models.EventRecord) error {
	if events == nil {
		events = []models.EventRecord{}
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO organization_events (organization_id, events_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(organization_id) DO UPDATE SET events_json = excluded.events_json, updated_at = excluded.updated_at`,
		organizationID, string(payload), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Organizations lists every organization with a persisted event set, so the
// background refresher knows which tenants to re-aggregate.
func (s *Store) Organizations() ([]string, error) {
	rows, err := s.db.Query("SELECT organization_id FROM organization_events ORDER BY organization_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		orgs = append(orgs, id)
	}
	return orgs, rows.Err()
}

// pruneDemo drops seed records that leaked into a production store. Both the
// explicit flag and the legacy "demo-" id prefix are recognized.
func pruneDemo(events []models.EventRecord) []models.EventRecord {
	cleaned := events[:0:0]
	for _, e := range events {
		if e.Demo || strings.HasPrefix(e.ID, demoIDPrefix) {
			continue
		}
		cleaned = append(cleaned, e)
	}
	return cleaned
}
