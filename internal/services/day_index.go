package services

import (
	"strings"

	"github.com/fmorante/lexagenda-be/internal/models"
)

// DayIndex maps a "YYYY-MM-DD" date to the number of events on that day. It is
// derived from the merged agenda for calendar highlighting and is rebuilt, not
// mutated, on every change.
type DayIndex map[string]int

// BuildDayIndex derives the per-day event counts from a merged event list.
func BuildDayIndex(events []models.EventRecord) DayIndex {
	index := make(DayIndex, len(events))
	for _, e := range events {
		index[e.Date]++
	}
	return index
}

// FilterMonth returns the subset of the index falling in the given "YYYY-MM"
// month. An empty month returns the index unchanged.
func (d DayIndex) FilterMonth(month string) DayIndex {
	if month == "" {
		return d
	}
	filtered := make(DayIndex)
	for date, count := range d {
		if strings.HasPrefix(date, month+"-") {
			filtered[date] = count
		}
	}
	return filtered
}
