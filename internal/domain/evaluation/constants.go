package evaluation

import "strings"

// Status is a position on the evaluation approval line.
type Status string

const (
	StatusDraft          Status = "Draft"
	StatusPendingHoD     Status = "Pending HoD Approval"
	StatusPendingHR      Status = "Pending HR Approval"
	StatusEmployeeReview Status = "Employee Review"
	StatusApproved       Status = "Approved"
	StatusCompleted      Status = "Completed"

	// StatusRejected is a signal, not a rest state. It never appears in
	// Statuses and is normalized at the adapter boundary.
	StatusRejected Status = "Rejected"
)

// Statuses is the ordered approval line used for progress display.
var Statuses = []Status{
	StatusDraft,
	StatusPendingHoD,
	StatusPendingHR,
	StatusEmployeeReview,
	StatusApproved,
	StatusCompleted,
}

var statusCodes = map[Status]string{
	StatusDraft:          "DRAFT",
	StatusPendingHoD:     "PENDING_HOD",
	StatusPendingHR:      "PENDING_HR",
	StatusEmployeeReview: "EMPLOYEE_REVIEW",
	StatusApproved:       "APPROVED",
	StatusCompleted:      "COMPLETED",
	StatusRejected:       "REJECTED",
}

var statusSecondaryLabels = map[Status]string{
	StatusDraft:          "مسودة",
	StatusPendingHoD:     "بانتظار موافقة رئيس القسم",
	StatusPendingHR:      "بانتظار موافقة الموارد البشرية",
	StatusEmployeeReview: "مراجعة الموظف",
	StatusApproved:       "معتمد",
	StatusCompleted:      "مكتمل",
	StatusRejected:       "مرفوض",
}

// Index returns the position on the approval line, or -1 for Rejected and
// unknown values.
func (s Status) Index() int {
	for i, candidate := range Statuses {
		if candidate == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool {
	return s.Index() >= 0
}

func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Code is the upper-snake form used by the activity-log endpoints.
func (s Status) Code() string {
	if code, ok := statusCodes[s]; ok {
		return code
	}
	return strings.ToUpper(strings.ReplaceAll(string(s), " ", "_"))
}

// SecondaryLabel is the localized caption shown under the status badge.
func (s Status) SecondaryLabel() string {
	return statusSecondaryLabels[s]
}

// Type is the evaluation kind.
type Type string

const (
	TypeQuarterly Type = "Quarterly"
	TypeAnnual    Type = "Annual"
	TypeOptional  Type = "Optional"
	TypeSelf      Type = "Self Evaluation"
)

var Types = []Type{TypeQuarterly, TypeAnnual, TypeOptional, TypeSelf}

func (t Type) Valid() bool {
	for _, candidate := range Types {
		if candidate == t {
			return true
		}
	}
	return false
}

// LogAction is the action recorded on an activity-log entry.
type LogAction string

const (
	LogCreated         LogAction = "Created"
	LogSubmitted       LogAction = "Submitted"
	LogSubmittedToHoD  LogAction = "Submitted to HoD"
	LogApproved        LogAction = "Approved"
	LogRejected        LogAction = "Rejected"
	LogCompleted       LogAction = "Completed"
	LogComment         LogAction = "Comment"
	LogSelfEvalCreated LogAction = "Self Evaluation Created"
)

var logActionCodes = map[LogAction]string{
	LogCreated:         "CREATED",
	LogSubmitted:       "SUBMITTED",
	LogSubmittedToHoD:  "SUBMITTED_TO_HOD",
	LogApproved:        "APPROVED",
	LogRejected:        "REJECTED",
	LogCompleted:       "COMPLETED",
	LogComment:         "COMMENT",
	LogSelfEvalCreated: "SELF_EVALUATION_CREATED",
}

func (a LogAction) Code() string {
	if code, ok := logActionCodes[a]; ok {
		return code
	}
	return strings.ToUpper(strings.ReplaceAll(string(a), " ", "_"))
}

// ObjectiveStatus tracks progress on a single objective.
type ObjectiveStatus string

const (
	ObjectiveNotStarted ObjectiveStatus = "Not started"
	ObjectiveInProgress ObjectiveStatus = "In-progress"
	ObjectiveCompleted  ObjectiveStatus = "Completed"
)

var ObjectiveStatuses = []ObjectiveStatus{ObjectiveNotStarted, ObjectiveInProgress, ObjectiveCompleted}

// Category groups competencies.
type Category string

const (
	CategoryCore       Category = "Core"
	CategoryLeadership Category = "Leadership"
	CategoryFunctional Category = "Functional"
)

var Categories = []Category{CategoryCore, CategoryLeadership, CategoryFunctional}

const (
	MinObjectivesForDecision = 4
	MaxObjectives            = 6

	MinObjectiveWeight = 10
	MaxObjectiveWeight = 40
	WeightBudget       = 100

	MinObjectiveMark = 1
	MaxObjectiveMark = 10

	MinRequiredLevel = 1
	MaxLevel         = 4
)
