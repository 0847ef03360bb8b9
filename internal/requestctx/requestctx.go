// Package requestctx carries per-request metadata below the HTTP layer.
package requestctx

import (
	"context"
	"log/slog"
)

// Meta is attached once per request. Later middleware fills UserID in place
// so handlers wrapped further out still see it after the call returns.
type Meta struct {
	RequestID string
	UserID    string
}

type metaKey struct{}

func With(ctx context.Context, meta *Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// From returns the request's Meta, or nil outside a request.
func From(ctx context.Context) *Meta {
	meta, _ := ctx.Value(metaKey{}).(*Meta)
	return meta
}

func RequestID(ctx context.Context) string {
	if meta := From(ctx); meta != nil {
		return meta.RequestID
	}
	return ""
}

// SetUser records the signed-in user. It is a no-op without Meta.
func SetUser(ctx context.Context, userID string) {
	if meta := From(ctx); meta != nil {
		meta.UserID = userID
	}
}

// Logger returns the default logger tagged with the request's identifiers.
func Logger(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	meta := From(ctx)
	if meta == nil {
		return logger
	}
	if meta.RequestID != "" {
		logger = logger.With("requestId", meta.RequestID)
	}
	if meta.UserID != "" {
		logger = logger.With("userId", meta.UserID)
	}
	return logger
}
