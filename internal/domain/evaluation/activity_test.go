package evaluation

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRawActivityAcceptsFieldVariants(t *testing.T) {
	payload := `[
		{"id": 7, "evaluation_id": 3, "activitystatus": "PENDING_HOD", "action": "SUBMITTED", "actor": "Omar", "actor_role": "LINE_MANAGER", "created_at": "2025-04-02T10:00:00Z"},
		{"id": "8", "status": "Pending HR Approval", "action": "Approved", "actor": {"full_name": "Rana"}, "role": "HoD", "timestamp": "2025-04-03 08:30:00", "is_rejection": "false"}
	]`
	var rows []RawActivity
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	first := Normalize(rows[0])
	if first.Status != StatusPendingHoD || first.Action != LogSubmitted {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if first.Actor != "Omar (Line Manager)" {
		t.Fatalf("unexpected actor %q", first.Actor)
	}
	second := Normalize(rows[1])
	if second.Status != StatusPendingHR || second.Actor != "Rana (HoD)" {
		t.Fatalf("unexpected second entry %+v", second)
	}
	if second.Timestamp.IsZero() {
		t.Fatal("expected timestamp from the timestamp field")
	}
}

func TestUnknownCodesPassThroughTitleCased(t *testing.T) {
	if got := ParseStatus("ON_HOLD"); got != "On Hold" {
		t.Fatalf("unexpected status %q", got)
	}
	if got := ParseLogAction("REASSIGNED"); got != "Reassigned" {
		t.Fatalf("unexpected action %q", got)
	}
}

func rawAt(action, status string, at time.Time) RawActivity {
	return RawActivity{Action: action, Status: status, Timestamp: at}
}

func TestReconcilePrefersAPIOverEmbedded(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	api := []RawActivity{
		rawAt("CREATED", "DRAFT", base),
		rawAt("SUBMITTED", "PENDING_HOD", base.Add(time.Hour)),
	}
	embedded := []RawActivity{rawAt("CREATED", "DRAFT", base.Add(-time.Hour))}

	feed := Reconcile(Sources{API: api, Embedded: embedded})
	if len(feed) != 2 {
		t.Fatalf("expected 2 entries from the API source, got %d", len(feed))
	}
	if feed[0].Action != LogSubmitted || feed[0].ID != 1 || feed[1].ID != 2 {
		t.Fatalf("expected newest first with sequential ids, got %+v", feed)
	}

	feed = Reconcile(Sources{Embedded: embedded})
	if len(feed) != 1 || !feed[0].Timestamp.Equal(base.Add(-time.Hour)) {
		t.Fatalf("expected the embedded log when the API has none, got %+v", feed)
	}
}

func TestReconcileMergesUnconfirmedPending(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	api := []RawActivity{rawAt("SUBMITTED", "PENDING_HOD", base)}
	pending := []ActivityEntry{
		{Action: LogSubmitted, Status: StatusPendingHoD, Timestamp: base.Add(30 * time.Second)},
		{Action: LogApproved, Status: StatusPendingHR, Timestamp: base.Add(time.Hour)},
	}
	feed := Reconcile(Sources{API: api, Pending: pending})
	if len(feed) != 2 {
		t.Fatalf("expected the confirmed pending entry to collapse, got %+v", feed)
	}
	if feed[0].Action != LogApproved {
		t.Fatalf("expected the unconfirmed approval first, got %+v", feed[0])
	}
}

func TestGroupByDayUsesLocation(t *testing.T) {
	riyadh := time.FixedZone("AST", 3*60*60)
	entries := []ActivityEntry{
		{Action: LogApproved, Timestamp: time.Date(2025, 6, 1, 22, 30, 0, 0, time.UTC)},
		{Action: LogSubmitted, Timestamp: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)},
		{Action: LogCreated, Timestamp: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
	}

	utcDays := GroupByDay(entries, time.UTC)
	if len(utcDays) != 1 || len(utcDays[0].Entries) != 3 {
		t.Fatalf("expected one UTC day, got %+v", utcDays)
	}

	localDays := GroupByDay(entries, riyadh)
	if len(localDays) != 2 {
		t.Fatalf("expected two local days, got %d", len(localDays))
	}
	if localDays[0].Day.Day() != 2 || len(localDays[0].Entries) != 1 {
		t.Fatalf("expected the late entry on June 2, got %+v", localDays[0])
	}
	second := localDays[1].Entries
	if second[0].Action != LogSubmitted || second[1].Action != LogCreated {
		t.Fatalf("expected descending order within a day, got %+v", second)
	}
}

func TestSeedEntry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := SeedEntry(Evaluation{Type: TypeSelf}, Actor{Name: "Lina", Role: "employee"}, now)
	if entry.Action != LogSelfEvalCreated || entry.Status != StatusDraft {
		t.Fatalf("unexpected seed %+v", entry)
	}
	if SeedEntry(Evaluation{Type: TypeAnnual}, Actor{}, now).Action != LogCreated {
		t.Fatal("expected Created for a managed evaluation")
	}
	payload := ToNewActivity("9", entry)
	if payload.Status != "DRAFT" || payload.Action != "SELF_EVALUATION_CREATED" {
		t.Fatalf("expected codes on the wire, got %+v", payload)
	}
}

func TestNeedsSeed(t *testing.T) {
	if !NeedsSeed(Evaluation{Status: StatusDraft}, nil) {
		t.Fatal("expected a bare draft to need a seed")
	}
	if NeedsSeed(Evaluation{Status: StatusPendingHoD}, nil) {
		t.Fatal("expected no seed past draft")
	}
	if NeedsSeed(Evaluation{Status: StatusDraft, ActivityLog: []RawActivity{{Action: "CREATED"}}}, nil) {
		t.Fatal("expected no seed with an embedded log")
	}
}
