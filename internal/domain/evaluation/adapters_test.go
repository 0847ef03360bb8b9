package evaluation

import (
	"encoding/json"
	"testing"

	"evalconsole/internal/domain/auth"
)

func TestEvaluationDecodesVariants(t *testing.T) {
	payload := `{
		"id": 12,
		"employee": {"id": 4, "full_name": "Lina Haddad"},
		"evaluation_type": "Annual",
		"period": 2025,
		"status": "REJECTED",
		"score": "81.5",
		"objectives_score": null,
		"reviewer": {"id": "r9", "name": "Omar"},
		"created_at": "2025-01-05T10:00:00Z",
		"activity_logs": [{"activitystatus": "DRAFT", "action": "CREATED"}]
	}`
	var ev Evaluation
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.ID != "12" || ev.EmployeeID != "4" || ev.EmployeeName != "Lina Haddad" {
		t.Fatalf("unexpected identity %+v", ev)
	}
	if ev.Type != TypeAnnual || ev.Period != "2025" {
		t.Fatalf("unexpected type/period %q %q", ev.Type, ev.Period)
	}
	if ev.Status != StatusDraft {
		t.Fatalf("expected rejected to read as draft, got %q", ev.Status)
	}
	if ev.Score == nil || *ev.Score != 81.5 || ev.ObjectivesScore != nil {
		t.Fatalf("unexpected scores %v %v", ev.Score, ev.ObjectivesScore)
	}
	if ev.ReviewerID != "r9" || ev.Reviewer != "Omar" {
		t.Fatalf("unexpected reviewer %q %q", ev.ReviewerID, ev.Reviewer)
	}
	if len(ev.ActivityLog) != 1 || ev.CreatedAt == nil {
		t.Fatalf("expected embedded log and created_at, got %+v", ev)
	}
}

func TestEvaluationStatusCodes(t *testing.T) {
	var ev Evaluation
	if err := json.Unmarshal([]byte(`{"id":"1","status":"PENDING_HR"}`), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Status != StatusPendingHR {
		t.Fatalf("unexpected status %q", ev.Status)
	}
}

func TestParseTypeWireCodes(t *testing.T) {
	cases := map[string]Type{
		"SELF_EVALUATION": TypeSelf,
		"self_evaluation": TypeSelf,
		"Self Evaluation": TypeSelf,
		"self":            TypeSelf,
		"QUARTERLY":       TypeQuarterly,
		" annual ":        TypeAnnual,
		"optional":        TypeOptional,
		"Probation":       "Probation",
		"":                "",
	}
	for raw, want := range cases {
		if got := ParseType(raw); got != want {
			t.Fatalf("ParseType(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestSelfEvaluationWireCodeIsEditableByOwner(t *testing.T) {
	var ev Evaluation
	if err := json.Unmarshal([]byte(`{"id":"9","employee_id":"e1","type":"SELF_EVALUATION","status":"DRAFT"}`), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != TypeSelf {
		t.Fatalf("type = %q", ev.Type)
	}
	next, err := Transition(TransitionRequest{
		Type:           ev.Type,
		Status:         ev.Status,
		Actor:          actor(auth.RoleEmployee),
		Action:         ActionSubmit,
		ObjectiveCount: 4,
	})
	if err != nil || next.To != StatusPendingHoD {
		t.Fatalf("owner submit: %+v, %v", next, err)
	}
}

func TestObjectiveDecodesFractionalWeight(t *testing.T) {
	var o Objective
	payload := `{"objective_id": 5, "evaluation_id": "12", "title": "Ship", "target": "8", "achieved": 6, "weight": 0.3, "status": "in_progress"}`
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if o.ID != "5" || o.Weight != 30 || o.Target != 8 {
		t.Fatalf("unexpected objective %+v", o)
	}
	if o.Status != ObjectiveInProgress {
		t.Fatalf("unexpected status %q", o.Status)
	}
}

func TestCompetencyDecodesCompetenceID(t *testing.T) {
	var c Competency
	payload := `{"competence_id": 9, "evaluation": 12, "name": "Teamwork", "category": "core", "required_level": 3, "actual_level": "2", "weight": "25%"}`
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.ID != "9" || c.EvaluationID != "12" || c.Category != CategoryCore {
		t.Fatalf("unexpected competency %+v", c)
	}
	if c.ActualLevel != 2 || c.Weight != 25 {
		t.Fatalf("unexpected levels %+v", c)
	}
}
