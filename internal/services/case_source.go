package services

import (
	"context"

	"github.com/fmorante/lexagenda-be/internal/models"
)

// CaseQuerier is the remote case collection the agenda reads from.
type CaseQuerier interface {
	QueryCases(ctx context.Context, organizationID string) ([]models.CaseRecord, error)
}

// CaseEventSource projects case records carrying a hearing date into agenda
// events.
type CaseEventSource struct {
	cases CaseQuerier
}

// NewCaseEventSource creates a CaseEventSource.
func NewCaseEventSource(cases CaseQuerier) *CaseEventSource {
	return &CaseEventSource{cases: cases}
}

// FetchHearingEvents queries the organization's cases and maps those with a
// hearing date into events. The id is derived from the case id so the same
// case always produces the same event across reloads. A remote failure is
// returned to the caller, who treats it as a degraded pass, not a fatal one.
func (s *CaseEventSource) FetchHearingEvents(ctx context.Context, organizationID string) ([]models.EventRecord, error) {
	cases, err := s.cases.QueryCases(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	var events []models.EventRecord
	for _, c := range cases {
		if c.HearingDate == "" {
			continue
		}
		events = append(events, models.EventRecord{
			ID:             "case-" + c.ID,
			OrganizationID: organizationID,
			Title:          hearingTitle(c),
			Kind:           models.KindHearing,
			Date:           c.HearingDate,
			Time:           c.HearingTime,
			Origin:         models.OriginCase,
			CaseRef:        &models.CaseRef{CaseID: c.ID, Number: c.Number},
			Place:          c.Place,
			Judge:          c.Judge,
			Counsel:        c.Counsel,
			Notes:          c.Notes,
			// Derived records have no mirror of their own.
			Synced: true,
		})
	}
	return events, nil
}

func hearingTitle(c models.CaseRecord) string {
	switch {
	case c.Number != "" && c.Client != "":
		return "Audiencia " + c.Number + " - " + c.Client
	case c.Number != "":
		return "Audiencia " + c.Number
	case c.Client != "":
		return "Audiencia - " + c.Client
	default:
		return "Audiencia"
	}
}
