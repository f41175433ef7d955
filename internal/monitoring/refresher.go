package monitoring

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/fmorante/lexagenda-be/internal/services"
)

// OrganizationLister enumerates the tenants with a persisted agenda.
type OrganizationLister interface {
	Organizations() ([]string, error)
}

// Refresher re-runs the aggregation pass for every known organization on a
// cron cadence, so derived events keep tracking their source cases and tasks
// even when no client is connected.
type Refresher struct {
	agenda   services.AgendaServiceProvider
	orgs     OrganizationLister
	schedule cron.Schedule
	nextRun  time.Time
	ticker   *time.Ticker
	done     chan bool
}

// NewRefresher creates a Refresher from a standard cron expression.
func NewRefresher(spec string, agenda services.AgendaServiceProvider, orgs OrganizationLister) (*Refresher, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}
	return &Refresher{
		agenda:   agenda,
		orgs:     orgs,
		schedule: schedule,
		done:     make(chan bool),
	}, nil
}

// Run starts the refresher's ticking loop.
func (r *Refresher) Run() {
	log.Info().Msg("Starting background agenda refresher...")
	r.ticker = time.NewTicker(1 * time.Minute)
	defer r.ticker.Stop()

	// Run once immediately on start, then fall into the cron cadence.
	r.refreshAll()
	r.nextRun = r.schedule.Next(time.Now())

	for {
		select {
		case <-r.done:
			log.Info().Msg("Stopping background agenda refresher.")
			return
		case now := <-r.ticker.C:
			if now.After(r.nextRun) {
				r.refreshAll()
				r.nextRun = r.schedule.Next(now)
			}
		}
	}
}

// Stop halts the refresher.
func (r *Refresher) Stop() {
	r.done <- true
}

func (r *Refresher) refreshAll() {
	orgs, err := r.orgs.Organizations()
	if err != nil {
		log.Error().Err(err).Msg("Refresher: failed to list organizations")
		return
	}

	for _, org := range orgs {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := r.agenda.Refresh(ctx, org); err != nil {
			log.Warn().Err(err).Str("organization_id", org).Msg("Refresher: aggregation pass failed")
		}
		cancel()
	}
}
