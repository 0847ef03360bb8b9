package shared

import (
	"cmp"
	"net/http"
	"slices"
	"strings"

	"evalconsole/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects every problem with a request before answering, so a
// form can highlight all bad fields at once. The zero value is usable.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

// Add records an issue. An empty reason is ignored.
func (v *Validator) Add(field, reason string) {
	reason = strings.TrimSpace(reason)
	if v == nil || reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
}

func (v *Validator) Check(ok bool, field, reason string) {
	if !ok {
		v.Add(field, reason)
	}
}

func (v *Validator) Required(field, value, reason string) {
	v.Check(strings.TrimSpace(value) != "", field, reason)
}

// Enum accepts an empty value or any of allowed, compared case-insensitively.
func (v *Validator) Enum(field, value string, allowed []string, reason string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	v.Check(slices.ContainsFunc(allowed, func(a string) bool {
		return strings.EqualFold(value, strings.TrimSpace(a))
	}), field, reason)
}

// Fields adds one issue per entry of a domain validation map.
func (v *Validator) Fields(fields map[string]string) {
	for field, reason := range fields {
		v.Add(field, reason)
	}
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

// Issues returns a copy ordered by field, then reason.
func (v *Validator) Issues() []ValidationIssue {
	if !v.HasIssues() {
		return nil
	}
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b ValidationIssue) int {
		return cmp.Or(cmp.Compare(a.Field, b.Field), cmp.Compare(a.Reason, b.Reason))
	})
	return out
}

// Reject writes a 400 with every issue and reports whether it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	FailValidationMessage(w, requestID, "payload validation failed", issues)
}

func FailValidationMessage(w http.ResponseWriter, requestID, message string, issues []ValidationIssue) {
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", message,
		map[string]any{"fields": issues}, requestID)
}
