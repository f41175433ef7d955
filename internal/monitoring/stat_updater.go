package monitoring

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/fmorante/lexagenda-be/internal/models"
	ws "github.com/fmorante/lexagenda-be/internal/websocket"
)

// StatProvider exposes the latest host stats sample.
type StatProvider interface {
	Latest() models.SystemStats
}

// StatUpdater periodically samples host CPU and memory and pushes the sample
// to connected clients. Useful for spotting a box drowning in aggregation
// passes before users notice.
type StatUpdater struct {
	hub    *ws.Hub
	ticker *time.Ticker
	done   chan bool

	mu     sync.RWMutex
	latest models.SystemStats
}

// NewStatUpdater creates a new StatUpdater.
func NewStatUpdater(hub *ws.Hub) *StatUpdater {
	return &StatUpdater{
		hub:  hub,
		done: make(chan bool),
	}
}

// Run starts the periodic updates.
func (su *StatUpdater) Run() {
	log.Info().Msg("Starting background stat updater...")
	su.ticker = time.NewTicker(15 * time.Second)
	defer su.ticker.Stop()

	// Sample once immediately on start
	su.sample()

	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping background stat updater.")
			return
		case <-su.ticker.C:
			su.sample()
		}
	}
}

// Stop halts the periodic updates.
func (su *StatUpdater) Stop() {
	su.done <- true
}

// Latest returns the most recent sample.
func (su *StatUpdater) Latest() models.SystemStats {
	su.mu.RLock()
	defer su.mu.RUnlock()
	return su.latest
}

func (su *StatUpdater) sample() {
	stats := models.SystemStats{
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  time.Now().UTC(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	} else if err != nil {
		log.Warn().Err(err).Msg("StatUpdater: could not sample CPU")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = vm.Used / (1024 * 1024)
	} else {
		log.Warn().Err(err).Msg("StatUpdater: could not sample memory")
	}

	su.mu.Lock()
	su.latest = stats
	su.mu.Unlock()

	if su.hub != nil {
		if msg := ws.Encode(ws.ActionSystemStats, stats); msg != nil {
			su.hub.Broadcast <- msg
		}
	}
}
