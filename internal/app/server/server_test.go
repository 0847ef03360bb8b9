package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evalconsole/internal/platform/config"
)

func testConfig(t *testing.T, apiURL string) config.Config {
	t.Helper()
	t.Setenv("API_BASE_URL", apiURL)
	cfg := config.Load()
	cfg.FrontendDir = t.TempDir()
	cfg.CacheEvaluationTTL = time.Minute
	return cfg
}

func TestRouterWithoutJournal(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	defer upstream.Close()

	app, err := New(testConfig(t, upstream.URL), nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if app.Journal != nil || app.Jobs != nil {
		t.Fatal("expected no journal without a database")
	}
	router := app.Router()

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/evaluations", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/auth/me", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected security and request id headers, got %v", rec.Header())
	}
}

func TestAPIOrigin(t *testing.T) {
	if got := apiOrigin("https://hr.example.com/api/v1"); got != "https://hr.example.com" {
		t.Fatalf("unexpected origin %q", got)
	}
	if got := apiOrigin("::"); got != "" {
		t.Fatalf("expected empty origin, got %q", got)
	}
}
