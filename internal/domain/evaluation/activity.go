package evaluation

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"evalconsole/internal/domain/auth"
)

// RawActivity is an activity-log row as the API or an embedded evaluation
// log returns it, before normalization.
type RawActivity struct {
	ID           string
	EvaluationID string
	Status       string
	Action       string
	Actor        string
	Role         string
	Timestamp    time.Time
	Comment      string
	IsRejection  bool
}

func (r *RawActivity) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID             flexString      `json:"id"`
		EvaluationID   flexString      `json:"evaluation_id"`
		Evaluation     flexString      `json:"evaluation"`
		ActivityStatus string          `json:"activitystatus"`
		Status         string          `json:"status"`
		Action         string          `json:"action"`
		Actor          json.RawMessage `json:"actor"`
		ActorName      string          `json:"actor_name"`
		ActorRole      string          `json:"actor_role"`
		Role           string          `json:"role"`
		CreatedAt      flexTime        `json:"created_at"`
		Timestamp      flexTime        `json:"timestamp"`
		Comment        *string         `json:"comment"`
		IsRejection    flexBool        `json:"is_rejection"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	actor := decodeRef(wire.Actor)
	*r = RawActivity{
		ID:           string(wire.ID),
		EvaluationID: firstNonEmpty(string(wire.EvaluationID), string(wire.Evaluation)),
		Status:       firstNonEmpty(wire.ActivityStatus, wire.Status),
		Action:       wire.Action,
		Actor:        firstNonEmpty(actor.Name, wire.ActorName),
		Role:         firstNonEmpty(wire.ActorRole, wire.Role, actor.Role),
		Timestamp:    firstTime(wire.CreatedAt, wire.Timestamp),
		IsRejection:  bool(wire.IsRejection),
	}
	if wire.Comment != nil {
		r.Comment = *wire.Comment
	}
	return nil
}

var statusLookup = func() map[string]Status {
	out := map[string]Status{
		"PENDING_HOD_APPROVAL": StatusPendingHoD,
		"PENDING_HR_APPROVAL":  StatusPendingHR,
	}
	for status, code := range statusCodes {
		out[code] = status
		out[strings.ToUpper(string(status))] = status
	}
	return out
}()

var actionLookup = func() map[string]LogAction {
	out := map[string]LogAction{
		"SUBMIT":  LogSubmitted,
		"APPROVE": LogApproved,
		"REJECT":  LogRejected,
		"CREATE":  LogCreated,
	}
	for action, code := range logActionCodes {
		out[code] = action
		out[strings.ToUpper(string(action))] = action
	}
	return out
}()

func lookupKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ParseStatus maps a wire code ("PENDING_HOD") or a display string to a
// Status. Unknown values pass through title-cased.
func ParseStatus(raw string) Status {
	if raw == "" {
		return ""
	}
	if status, ok := statusLookup[lookupKey(raw)]; ok {
		return status
	}
	return Status(titleCase(raw))
}

var typeLookup = func() map[string]Type {
	out := map[string]Type{"SELF": TypeSelf}
	for _, t := range Types {
		out[strings.ToUpper(string(t))] = t
		out[strings.ReplaceAll(strings.ToUpper(string(t)), " ", "_")] = t
	}
	return out
}()

// ParseType accepts "SELF_EVALUATION", "self_evaluation" or "Self Evaluation"
// alike. Unknown values pass through trimmed.
func ParseType(raw string) Type {
	if t, ok := typeLookup[strings.ReplaceAll(lookupKey(raw), "-", "_")]; ok {
		return t
	}
	return Type(strings.TrimSpace(raw))
}

func ParseLogAction(raw string) LogAction {
	if raw == "" {
		return ""
	}
	if action, ok := actionLookup[lookupKey(raw)]; ok {
		return action
	}
	return LogAction(titleCase(raw))
}

// RoleLabel renders an upstream role code for display.
func RoleLabel(raw string) string {
	if role := auth.ParseRole(raw); role != "" {
		return role.DisplayName()
	}
	return titleCase(raw)
}

func titleCase(raw string) string {
	words := strings.Fields(strings.ReplaceAll(strings.TrimSpace(raw), "_", " "))
	for i, word := range words {
		lower := strings.ToLower(word)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}

// Normalize maps one raw row through the lookup tables.
func Normalize(raw RawActivity) ActivityEntry {
	action := ParseLogAction(raw.Action)
	return ActivityEntry{
		Status:      ParseStatus(raw.Status),
		Action:      action,
		Actor:       FormatActor(RoleLabel(raw.Role), raw.Actor),
		Timestamp:   raw.Timestamp,
		Comment:     strings.TrimSpace(raw.Comment),
		IsRejection: raw.IsRejection || action == LogRejected,
	}
}

// Sources are the inputs of one feed rebuild. API wins over Embedded; Pending
// holds local entries (seed and optimistic transitions) not yet confirmed.
type Sources struct {
	API      []RawActivity
	Embedded []RawActivity
	Pending  []ActivityEntry
}

// PendingMatchWindow is how far apart a pending entry and its persisted copy
// may be stamped and still be treated as the same event.
const PendingMatchWindow = 2 * time.Minute

func (e ActivityEntry) sameEvent(other ActivityEntry) bool {
	if e.Action != other.Action || e.Status != other.Status || e.Comment != other.Comment {
		return false
	}
	delta := e.Timestamp.Sub(other.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta <= PendingMatchWindow
}

// Reconcile builds the feed: one remote source by precedence, plus the
// pending entries the chosen source does not yet contain, newest first with
// sequential local ids.
func Reconcile(src Sources) []ActivityEntry {
	chosen := src.API
	if len(chosen) == 0 {
		chosen = src.Embedded
	}
	entries := make([]ActivityEntry, 0, len(chosen)+len(src.Pending))
	for _, raw := range chosen {
		entries = append(entries, Normalize(raw))
	}
	persisted := len(entries)
	for _, pending := range src.Pending {
		found := false
		for _, existing := range entries[:persisted] {
			if existing.sameEvent(pending) {
				found = true
				break
			}
		}
		if !found {
			entries = append(entries, pending)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	for i := range entries {
		entries[i].ID = i + 1
	}
	return entries
}

// GroupByDay buckets entries by calendar day in loc. Days and entries within
// a day are newest first.
func GroupByDay(entries []ActivityEntry, loc *time.Location) []ActivityDay {
	if loc == nil {
		loc = time.UTC
	}
	sorted := append([]ActivityEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	var days []ActivityDay
	for _, entry := range sorted {
		local := entry.Timestamp.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		if n := len(days); n > 0 && days[n-1].Day.Equal(day) {
			days[n-1].Entries = append(days[n-1].Entries, entry)
			continue
		}
		days = append(days, ActivityDay{Day: day, Entries: []ActivityEntry{entry}})
	}
	return days
}

// NeedsSeed reports whether an evaluation has no log anywhere and is still
// brand new.
func NeedsSeed(ev Evaluation, api []RawActivity) bool {
	return len(api) == 0 && len(ev.ActivityLog) == 0 && ev.Status == StatusDraft
}

// SeedEntry is the synthetic first entry of a new evaluation's feed.
func SeedEntry(ev Evaluation, actor Actor, now time.Time) ActivityEntry {
	action := LogCreated
	if ev.Type == TypeSelf {
		action = LogSelfEvalCreated
	}
	return ActivityEntry{
		Status:    StatusDraft,
		Action:    action,
		Actor:     actor.Label(),
		Timestamp: now,
	}
}

// ToNewActivity builds the remote log-append payload, which uses codes.
func ToNewActivity(evaluationID string, entry ActivityEntry) NewActivity {
	return NewActivity{
		EvaluationID: evaluationID,
		Status:       entry.Status.Code(),
		Action:       entry.Action.Code(),
		Comment:      entry.Comment,
		IsRejection:  entry.IsRejection,
	}
}
