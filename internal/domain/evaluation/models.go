package evaluation

import "time"

type Evaluation struct {
	ID                string        `json:"id"`
	EmployeeID        string        `json:"employee_id,omitempty"`
	EmployeeName      string        `json:"employee_name,omitempty"`
	Type              Type          `json:"type"`
	Period            string        `json:"period"`
	Status            Status        `json:"status"`
	Score             *float64      `json:"score"`
	ObjectivesScore   *float64      `json:"objectives_score"`
	CompetenciesScore *float64      `json:"competencies_score"`
	ReviewerID        string        `json:"reviewer_id,omitempty"`
	Reviewer          string        `json:"reviewer,omitempty"`
	CreatedAt         *time.Time    `json:"created_at,omitempty"`
	ActivityLog       []RawActivity `json:"-"`
}

type Objective struct {
	ID           string          `json:"id"`
	EvaluationID string          `json:"evaluation_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Target       float64         `json:"target"`
	Achieved     float64         `json:"achieved"`
	Weight       float64         `json:"weight"`
	Status       ObjectiveStatus `json:"status"`
}

type Competency struct {
	ID            string   `json:"id"`
	EvaluationID  string   `json:"evaluation_id"`
	Name          string   `json:"name"`
	Category      Category `json:"category"`
	RequiredLevel float64  `json:"required_level"`
	ActualLevel   float64  `json:"actual_level"`
	Weight        float64  `json:"weight"`
	Description   string   `json:"description"`
}

// ActivityEntry is one normalized row of the audit trail.
type ActivityEntry struct {
	ID          int       `json:"id"`
	Status      Status    `json:"activitystatus"`
	Action      LogAction `json:"action"`
	Actor       string    `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
	Comment     string    `json:"comment,omitempty"`
	IsRejection bool      `json:"is_rejection"`
}

// ActivityDay is the set of entries that fall on one local calendar day.
type ActivityDay struct {
	Day     time.Time       `json:"day"`
	Entries []ActivityEntry `json:"entries"`
}

// NewEvaluation is the create payload.
type NewEvaluation struct {
	EmployeeID string `json:"employee_id"`
	Type       Type   `json:"type"`
	Period     string `json:"period"`
	ReviewerID string `json:"reviewer_id,omitempty"`
	Status     Status `json:"status"`
}

// EvaluationPatch carries the fields the workflow is allowed to mutate.
type EvaluationPatch struct {
	Status *Status  `json:"status,omitempty"`
	Score  *float64 `json:"score,omitempty"`
}

// NewActivity is the remote log-append payload.
type NewActivity struct {
	EvaluationID string `json:"evaluation_id"`
	Status       string `json:"activitystatus"`
	Action       string `json:"action"`
	Comment      string `json:"comment,omitempty"`
	IsRejection  bool   `json:"is_rejection"`
}

// ListFilter narrows an evaluation listing.
type ListFilter struct {
	EmployeeID string
	Status     Status
	Type       Type
	Period     string
	ReviewerID string
}
