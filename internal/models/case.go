package models

// CaseRecord is the slice of a remote case document the aggregation engine
// cares about. Case CRUD itself lives in another service; only cases carrying
// a hearing date ever become agenda events.
type CaseRecord struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	Client      string `json:"client,omitempty"`
	HearingDate string `json:"hearingDate,omitempty"`
	HearingTime string `json:"hearingTime,omitempty"`
	Place       string `json:"place,omitempty"`
	Judge       string `json:"judge,omitempty"`
	Counsel     string `json:"counsel,omitempty"`
	Notes       string `json:"notes,omitempty"`
}
