package requestctx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestMetaRoundTrip(t *testing.T) {
	if RequestID(context.Background()) != "" {
		t.Fatal("expected empty request id outside a request")
	}
	SetUser(context.Background(), "ignored")

	meta := &Meta{RequestID: "req-1"}
	ctx := With(context.Background(), meta)
	SetUser(ctx, "u-7")
	if RequestID(ctx) != "req-1" || meta.UserID != "u-7" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestLoggerTagsRequest(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := With(context.Background(), &Meta{RequestID: "req-9", UserID: "u-1"})
	Logger(ctx).Warn("something")
	out := buf.String()
	if !strings.Contains(out, "requestId=req-9") || !strings.Contains(out, "userId=u-1") {
		t.Fatalf("log line missing ids: %s", out)
	}
}
