package models

import "time"

// SystemStats is a point-in-time sample of host and process health.
type SystemStats struct {
	CPUPercent    float64   `json:"cpuPercent"`
	MemoryPercent float64   `json:"memoryPercent"`
	MemoryUsedMB  uint64    `json:"memoryUsedMB"`
	Goroutines    int       `json:"goroutines"`
	SampledAt     time.Time `json:"sampledAt"`
}
