package services

import (
	"context"

	"github.com/fmorante/lexagenda-be/internal/civil"
	"github.com/fmorante/lexagenda-be/internal/models"
)

// TaskLister is the remote task collection the agenda reads from.
type TaskLister interface {
	ListTasks(ctx context.Context, organizationID string) ([]models.TaskRecord, error)
}

// ProjectTaskEvents maps task records into agenda events. Only tasks with a
// due date that are not completed are projected; a completed task never
// appears, regardless of its dates. Tasks have no time granularity, so every
// projected event gets the sentinel time.
func ProjectTaskEvents(organizationID string, tasks []models.TaskRecord) []models.EventRecord {
	var events []models.EventRecord
	for _, t := range tasks {
		if t.Completed || t.DueDate == "" {
			continue
		}
		e := models.EventRecord{
			ID:             "task-" + t.ID,
			OrganizationID: organizationID,
			Title:          t.Description,
			Kind:           models.KindTask,
			Date:           t.DueDate,
			Time:           civil.DefaultClock,
			Origin:         models.OriginTask,
			Priority:       t.Priority,
			Synced:         true,
		}
		if t.CaseID != "" || t.CaseNumber != "" {
			e.CaseRef = &models.CaseRef{CaseID: t.CaseID, Number: t.CaseNumber}
		}
		events = append(events, e)
	}
	return events
}
