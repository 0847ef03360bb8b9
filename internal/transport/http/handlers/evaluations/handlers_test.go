package evaluationshandler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"evalconsole/internal/domain/evaluation"
	"evalconsole/internal/platform/apiclient"
	"evalconsole/internal/transport/http/middleware"
)

// fakeHR is an in-memory stand-in for the remote HR API.
type fakeHR struct {
	mu         sync.Mutex
	evaluation map[string]any
	objectives []map[string]any
	logs       []map[string]any
	patches    []map[string]any
	tokens     []string
}

func newFakeHR(status string, objectives int) *fakeHR {
	f := &fakeHR{evaluation: map[string]any{
		"id": "12", "employee_id": "e9", "evaluation_type": "Annual", "period": "2025", "status": status,
	}}
	for i := 0; i < objectives; i++ {
		f.objectives = append(f.objectives, map[string]any{
			"id": i + 1, "evaluation_id": "12", "title": "Objective", "target": 5, "achieved": 4, "weight": 25, "status": "In-progress",
		})
	}
	return f
}

func (f *fakeHR) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.tokens = append(f.tokens, r.Header.Get("Authorization"))
			f.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	r.Get("/evaluations/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.evaluation)
	})
	r.Patch("/evaluations/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.patches = append(f.patches, patch)
		for k, v := range patch {
			f.evaluation[k] = v
		}
		writeJSON(w, f.evaluation)
	})
	r.Get("/objectives", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.objectives)
	})
	r.Get("/competencies", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"results": []any{}})
	})
	r.Get("/activity-logs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.logs)
	})
	r.Post("/activity-logs", func(w http.ResponseWriter, r *http.Request) {
		var entry map[string]any
		_ = json.NewDecoder(r.Body).Decode(&entry)
		f.mu.Lock()
		entry["created_at"] = time.Now().UTC().Format(time.RFC3339)
		f.logs = append(f.logs, entry)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, entry)
	})
	return r
}

func token(t *testing.T, role, employeeID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u-" + role, "employee_id": employeeID, "role": role, "name": "Rana",
	}).SignedString([]byte("upstream"))
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return signed
}

func newConsole(t *testing.T, hr *fakeHR) http.Handler {
	t.Helper()
	upstream := httptest.NewServer(hr.routes())
	t.Cleanup(upstream.Close)
	svc := evaluation.NewService(apiclient.New(upstream.URL, time.Second), nil, nil)
	router := chi.NewRouter()
	router.Use(middleware.Auth)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)
		NewHandler(svc, middleware.NewIdempotencyStore(16, time.Minute)).RegisterRoutes(r)
	})
	return router
}

func do(t *testing.T, h http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestDetailsSeedsNewEvaluationAndForwardsToken(t *testing.T) {
	hr := newFakeHR("Draft", 0)
	console := newConsole(t, hr)
	caller := token(t, "line_manager", "e1")

	rec := do(t, console, http.MethodGet, "/evaluations/12", caller, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var details evaluation.Details
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if len(details.Feed) != 1 || len(details.Feed[0].Entries) != 1 || details.Feed[0].Entries[0].Action != evaluation.LogCreated {
		t.Fatalf("expected one seeded entry, got %+v", details.Feed)
	}

	rec = do(t, console, http.MethodGet, "/evaluations/12", caller, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on reopen, got %d", rec.Code)
	}
	hr.mu.Lock()
	defer hr.mu.Unlock()
	if len(hr.logs) != 1 || len(hr.patches) != 1 {
		t.Fatalf("expected a single seed, got %d logs and %d patches", len(hr.logs), len(hr.patches))
	}
	for _, got := range hr.tokens {
		if got != "Bearer "+caller {
			t.Fatalf("expected the caller's token upstream, got %q", got)
		}
	}
}

func TestTransitionApprovePersists(t *testing.T) {
	hr := newFakeHR("Pending HoD Approval", 4)
	console := newConsole(t, hr)

	rec := do(t, console, http.MethodPost, "/evaluations/12/transitions", token(t, "HoD", "e2"), `{"action":"approve"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res evaluation.TransitionResult
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.To != evaluation.StatusPendingHR {
		t.Fatalf("unexpected result %+v", res)
	}
	hr.mu.Lock()
	defer hr.mu.Unlock()
	if hr.evaluation["status"] != "Pending HR Approval" {
		t.Fatalf("expected the status patched, got %v", hr.evaluation["status"])
	}
	if len(hr.logs) != 1 || hr.logs[0]["action"] != "APPROVED" {
		t.Fatalf("unexpected log writes %v", hr.logs)
	}
}

func TestTransitionErrors(t *testing.T) {
	cases := []struct {
		name       string
		status     string
		objectives int
		role       string
		body       string
		want       int
		code       string
	}{
		{"reject without comment", "Pending HoD Approval", 4, "hod", `{"action":"reject"}`, http.StatusBadRequest, "validation_error"},
		{"too few objectives", "Pending HoD Approval", 3, "hod", `{"action":"approve"}`, http.StatusBadRequest, "validation_error"},
		{"wrong role", "Pending HR Approval", 4, "hod", `{"action":"approve"}`, http.StatusConflict, "transition_not_allowed"},
		{"unknown action", "Draft", 4, "hr", `{"action":"escalate"}`, http.StatusBadRequest, "validation_error"},
		{"terminal", "Completed", 4, "hr", `{"action":"comment","comment":"late note"}`, http.StatusConflict, "transition_not_allowed"},
	}
	for _, tc := range cases {
		hr := newFakeHR(tc.status, tc.objectives)
		rec := do(t, newConsole(t, hr), http.MethodPost, "/evaluations/12/transitions", token(t, tc.role, "e2"), tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
		if env := decodeEnvelope(t, rec); env.Error.Code != tc.code {
			t.Fatalf("%s: expected code %s, got %+v", tc.name, tc.code, env.Error)
		}
		hr.mu.Lock()
		writes := len(hr.patches) + len(hr.logs)
		hr.mu.Unlock()
		if writes != 0 {
			t.Fatalf("%s: expected no upstream writes, got %d", tc.name, writes)
		}
	}
}

func TestEmployeeCannotOpenSomeoneElsesEvaluation(t *testing.T) {
	console := newConsole(t, newFakeHR("Draft", 0))
	rec := do(t, console, http.MethodGet, "/evaluations/12", token(t, "employee", "e1"), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	rec := do(t, newConsole(t, newFakeHR("Draft", 0)), http.MethodGet, "/evaluations/12", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestReportIsPDF(t *testing.T) {
	console := newConsole(t, newFakeHR("Pending HR Approval", 4))
	rec := do(t, console, http.MethodGet, "/evaluations/12/report.pdf", token(t, "hr", "e3"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/pdf" || !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatalf("expected a PDF, got %q", rec.Header().Get("Content-Type"))
	}
}
