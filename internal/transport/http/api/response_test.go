package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEmptyPageEncodesArray(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, NewPage[string](nil, 0, 50, 0), "req-1")
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", rec.Body.String())
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("expected no-store")
	}
}

func TestFailEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, http.StatusConflict, "conflict", "already submitted", "req-2")
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusConflict || env.Success || env.Error == nil || env.Error.Code != "conflict" || env.RequestID != "req-2" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if strings.Contains(rec.Body.String(), "details") {
		t.Fatalf("details should be omitted: %s", rec.Body.String())
	}
}
