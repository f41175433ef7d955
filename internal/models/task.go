package models

// TaskRecord is a task document from the remote task collection. Tasks belong
// to a case and optionally carry a due date; open tasks with a due date are
// projected into agenda events.
type TaskRecord struct {
	ID          string   `json:"id"`
	CaseID      string   `json:"caseId,omitempty"`
	CaseNumber  string   `json:"caseNumber,omitempty"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Completed   bool     `json:"completed"`
}
