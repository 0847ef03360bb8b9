package shared

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"evalconsole/internal/domain/evaluation"
	"evalconsole/internal/domain/org"
	"evalconsole/internal/platform/apiclient"
	"evalconsole/internal/transport/http/api"
)

type fielder interface {
	Fields() map[string]string
}

// WriteError maps a service error onto the response envelope. fallbackCode
// names the failure when nothing more specific applies.
func WriteError(w http.ResponseWriter, requestID, fallbackCode string, err error) {
	var (
		fields fielder
		apiErr *apiclient.APIError
	)
	switch {
	case errors.Is(err, evaluation.ErrBusy):
		api.Fail(w, http.StatusConflict, "transition_in_flight", err.Error(), requestID)
	case errors.Is(err, evaluation.ErrTerminal), errors.Is(err, evaluation.ErrTransitionNotAllowed):
		api.Fail(w, http.StatusConflict, "transition_not_allowed", err.Error(), requestID)
	case errors.Is(err, evaluation.ErrNotSelfEvaluation):
		api.Fail(w, http.StatusConflict, "not_self_evaluation", err.Error(), requestID)
	case errors.Is(err, evaluation.ErrForbidden), errors.Is(err, org.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
	case errors.Is(err, org.ErrUnknownLevel):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.As(err, &fields):
		issues := issuesOf(fields.Fields())
		message := "payload validation failed"
		if len(issues) == 1 {
			message = issues[0].Reason
		}
		FailValidationMessage(w, requestID, message, issues)
	case errors.As(err, &apiErr):
		writeUpstream(w, requestID, apiErr)
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("upstream timeout", "code", fallbackCode, "err", err)
		api.Fail(w, http.StatusGatewayTimeout, "upstream_timeout", "the HR service did not answer in time", requestID)
	default:
		slog.Warn("request failed", "code", fallbackCode, "err", err)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "internal error", requestID)
	}
}

func writeUpstream(w http.ResponseWriter, requestID string, apiErr *apiclient.APIError) {
	status := apiErr.StatusCode
	if status >= 500 {
		slog.Warn("upstream failed", "status", status, "body", apiErr.Body)
		status = http.StatusBadGateway
	}
	message := apiErr.Message
	if message == "" {
		message = http.StatusText(apiErr.StatusCode)
	}
	if len(apiErr.Fields) > 0 {
		api.FailWithDetails(w, status, "upstream_rejected", message, map[string]any{"fields": issuesOf(apiErr.Fields)}, requestID)
		return
	}
	api.Fail(w, status, "upstream_error", message, requestID)
}

func issuesOf(fields map[string]string) []ValidationIssue {
	v := NewValidator()
	v.Fields(fields)
	return v.Issues()
}
