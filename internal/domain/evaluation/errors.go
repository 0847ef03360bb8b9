package evaluation

import (
	"errors"
	"strings"
)

var (
	ErrInsufficientObjectives = errors.New("at least 4 objectives are required before approving or rejecting this evaluation")
	ErrCommentRequired        = errors.New("a comment is required when rejecting")
	ErrTransitionNotAllowed   = errors.New("transition not allowed")
	ErrTerminal               = errors.New("evaluation is completed")
	ErrBusy                   = errors.New("a transition is already in progress for this evaluation")
	ErrForbidden              = errors.New("forbidden")
	ErrObjectiveLimit         = errors.New("an evaluation can hold at most 6 objectives")
	ErrNotSelfEvaluation      = errors.New("evaluation is not a self evaluation")
)

// ValidationError is a client-local, field-level failure. It never reaches
// the network.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors collects every failing field of one form.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, issue := range v {
		parts = append(parts, issue.Error())
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() []error {
	out := make([]error, len(v))
	for i, issue := range v {
		out[i] = issue
	}
	return out
}

func (v *ValidationErrors) add(field, message string) {
	*v = append(*v, &ValidationError{Field: field, Message: message})
}

func (v ValidationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func fieldError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// Fields maps each failing field to its message for the HTTP layer.
func (e *ValidationError) Fields() map[string]string {
	return map[string]string{e.Field: e.Message}
}

func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, issue := range v {
		if _, seen := out[issue.Field]; !seen {
			out[issue.Field] = issue.Message
		}
	}
	return out
}
