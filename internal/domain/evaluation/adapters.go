package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The remote API is inconsistent about ids (numbers or strings), numbers
// (sometimes quoted), booleans and timestamps. The flex types below absorb
// that so the rest of the package sees one shape.

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*f = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	case data[0] == '{':
		var obj struct {
			ID flexString `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*f = obj.ID
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unsupported identifier %s", data)
	}
	*f = flexString(n.String())
	return nil
}

type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = flexFloat{}
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
		if raw == "" {
			*f = flexFloat{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*f = flexFloat{Value: v, Set: true}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.ToLower(string(bytes.TrimSpace(data))), `"`)
	switch raw {
	case "true", "1", "yes":
		*f = true
	case "false", "0", "no", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

type flexTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil || strings.TrimSpace(raw) == "" {
		*f = flexTime{}
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", raw)
}

func firstTime(values ...flexTime) time.Time {
	for _, v := range values {
		if t := time.Time(v); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// ref is a related record the API sends either as a bare id or as an object.
type ref struct {
	ID   string
	Name string
	Role string
}

func decodeRef(data json.RawMessage) ref {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return ref{}
	}
	if data[0] != '{' {
		var id flexString
		if err := json.Unmarshal(data, &id); err != nil {
			return ref{}
		}
		// A bare string here is either an id or a display name; callers
		// decide which by context.
		return ref{ID: string(id), Name: string(id)}
	}
	var obj struct {
		ID        flexString `json:"id"`
		Name      string     `json:"name"`
		FullName  string     `json:"full_name"`
		FirstName string     `json:"first_name"`
		LastName  string     `json:"last_name"`
		Username  string     `json:"username"`
		Role      string     `json:"role"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return ref{}
	}
	name := firstNonEmpty(obj.FullName, obj.Name, strings.TrimSpace(obj.FirstName+" "+obj.LastName), obj.Username)
	return ref{ID: string(obj.ID), Name: name, Role: obj.Role}
}

// NormalizeStatus maps an upstream status to an actionable one. Rejected and
// missing statuses read as Draft.
func NormalizeStatus(raw string) Status {
	status := ParseStatus(raw)
	if status == "" || status == StatusRejected {
		return StatusDraft
	}
	return status
}

func (e *Evaluation) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID                flexString      `json:"id"`
		EvaluationID      flexString      `json:"evaluation_id"`
		Employee          json.RawMessage `json:"employee"`
		EmployeeID        flexString      `json:"employee_id"`
		EmployeeName      string          `json:"employee_name"`
		Type              string          `json:"type"`
		EvaluationType    string          `json:"evaluation_type"`
		Period            flexString      `json:"period"`
		Status            string          `json:"status"`
		Score             flexFloat       `json:"score"`
		ObjectivesScore   flexFloat       `json:"objectives_score"`
		CompetenciesScore flexFloat       `json:"competencies_score"`
		Reviewer          json.RawMessage `json:"reviewer"`
		ReviewerID        flexString      `json:"reviewer_id"`
		ReviewerName      string          `json:"reviewer_name"`
		CreatedAt         flexTime        `json:"created_at"`
		ActivityLog       []RawActivity   `json:"activity_log"`
		ActivityLogs      []RawActivity   `json:"activity_logs"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	employee := decodeRef(wire.Employee)
	reviewer := decodeRef(wire.Reviewer)
	*e = Evaluation{
		ID:                firstNonEmpty(string(wire.ID), string(wire.EvaluationID)),
		EmployeeID:        firstNonEmpty(string(wire.EmployeeID), employee.ID),
		EmployeeName:      wire.EmployeeName,
		Type:              ParseType(firstNonEmpty(wire.Type, wire.EvaluationType)),
		Period:            string(wire.Period),
		Status:            NormalizeStatus(wire.Status),
		Score:             wire.Score.ptr(),
		ObjectivesScore:   wire.ObjectivesScore.ptr(),
		CompetenciesScore: wire.CompetenciesScore.ptr(),
		ReviewerID:        firstNonEmpty(string(wire.ReviewerID), reviewer.ID),
		Reviewer:          wire.ReviewerName,
		ActivityLog:       wire.ActivityLog,
	}
	if e.EmployeeName == "" && employee.Name != employee.ID {
		e.EmployeeName = employee.Name
	}
	if e.Reviewer == "" && reviewer.Name != reviewer.ID {
		e.Reviewer = reviewer.Name
	}
	if len(e.ActivityLog) == 0 {
		e.ActivityLog = wire.ActivityLogs
	}
	if created := time.Time(wire.CreatedAt); !created.IsZero() {
		e.CreatedAt = &created
	}
	return nil
}

func (o *Objective) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID           flexString `json:"id"`
		ObjectiveID  flexString `json:"objective_id"`
		EvaluationID flexString `json:"evaluation_id"`
		Evaluation   flexString `json:"evaluation"`
		Title        string     `json:"title"`
		Description  string     `json:"description"`
		Target       flexFloat  `json:"target"`
		Achieved     flexFloat  `json:"achieved"`
		Weight       flexFloat  `json:"weight"`
		Status       string     `json:"status"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*o = Objective{
		ID:           firstNonEmpty(string(wire.ObjectiveID), string(wire.ID)),
		EvaluationID: firstNonEmpty(string(wire.EvaluationID), string(wire.Evaluation)),
		Title:        wire.Title,
		Description:  wire.Description,
		Target:       wire.Target.Value,
		Achieved:     wire.Achieved.Value,
		Weight:       ToPercent(wire.Weight.Value),
		Status:       parseObjectiveStatus(wire.Status),
	}
	return nil
}

func parseObjectiveStatus(raw string) ObjectiveStatus {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(raw))
	for _, status := range ObjectiveStatuses {
		if strings.NewReplacer("-", "", " ", "").Replace(strings.ToLower(string(status))) == key {
			return status
		}
	}
	return ObjectiveStatus(raw)
}

func (c *Competency) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID            flexString `json:"id"`
		CompetenceID  flexString `json:"competence_id"`
		CompetencyID  flexString `json:"competency_id"`
		EvaluationID  flexString `json:"evaluation_id"`
		Evaluation    flexString `json:"evaluation"`
		Name          string     `json:"name"`
		Category      string     `json:"category"`
		RequiredLevel flexFloat  `json:"required_level"`
		ActualLevel   flexFloat  `json:"actual_level"`
		Weight        flexFloat  `json:"weight"`
		Description   string     `json:"description"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*c = Competency{
		ID:            firstNonEmpty(string(wire.CompetenceID), string(wire.CompetencyID), string(wire.ID)),
		EvaluationID:  firstNonEmpty(string(wire.EvaluationID), string(wire.Evaluation)),
		Name:          wire.Name,
		Category:      Category(titleCase(wire.Category)),
		RequiredLevel: wire.RequiredLevel.Value,
		ActualLevel:   wire.ActualLevel.Value,
		Weight:        ToPercent(wire.Weight.Value),
		Description:   wire.Description,
	}
	return nil
}
