package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/domain/evaluation"
	"evalconsole/internal/domain/org"
)

type staticTokens struct {
	token     string
	refreshed string
	refreshes atomic.Int64
	fail      bool
}

func (s *staticTokens) Token(context.Context) (string, error) { return s.token, nil }

func (s *staticTokens) Refresh(context.Context) (string, error) {
	s.refreshes.Add(1)
	if s.fail {
		return "", errors.New("refresh rejected")
	}
	s.token = s.refreshed
	return s.token, nil
}

type upstream struct {
	calls  atomic.Int64
	errors atomic.Int64
}

func (u *upstream) RecordUpstream(status int, _ time.Duration) {
	u.calls.Add(1)
	if status == 0 || status >= 500 {
		u.errors.Add(1)
	}
}

func TestListAcceptsBareAndWrappedArrays(t *testing.T) {
	bodies := map[string]string{
		"/objectives":    `[{"objective_id": 1, "title": "Ship", "weight": 0.3, "target": 5, "achieved": 4}]`,
		"/competencies":  `{"count": 1, "results": [{"competence_id": "c1", "name": "Teamwork", "weight": 25}]}`,
		"/activity-logs": `{"success": true, "data": {"items": [{"activitystatus": "DRAFT", "action": "CREATED"}]}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("evaluation_id") != "12" {
			t.Errorf("missing evaluation filter on %s", r.URL)
		}
		_, _ = io.WriteString(w, bodies[r.URL.Path])
	}))
	defer srv.Close()
	c := New(srv.URL+"/", time.Second)
	ctx := context.Background()

	objectives, err := c.ListObjectives(ctx, "12")
	if err != nil {
		t.Fatalf("objectives: %v", err)
	}
	if len(objectives) != 1 || objectives[0].ID != "1" || objectives[0].Weight != 30 {
		t.Fatalf("unexpected objectives %+v", objectives)
	}
	competencies, err := c.ListCompetencies(ctx, "12")
	if err != nil {
		t.Fatalf("competencies: %v", err)
	}
	if len(competencies) != 1 || competencies[0].ID != "c1" {
		t.Fatalf("unexpected competencies %+v", competencies)
	}
	activity, err := c.ListActivity(ctx, "12")
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(activity) != 1 {
		t.Fatalf("unexpected activity %+v", activity)
	}
}

func TestGetUnwrapsDataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/evaluations/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"success": true, "data": {"id": 7, "status": "Draft", "evaluation_type": "Annual", "period": "2025"}}`)
	}))
	defer srv.Close()
	ev, err := New(srv.URL, time.Second).GetEvaluation(context.Background(), "7")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ev.ID != "7" || ev.Status != evaluation.StatusDraft || ev.Period != "2025" {
		t.Fatalf("unexpected evaluation %+v", ev)
	}
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail": "Weight exceeds budget", "weight": ["too large"]}`)
	}))
	defer srv.Close()
	rec := &upstream{}
	c := New(srv.URL, time.Second)
	c.Metrics = rec
	_, err := c.CreateObjective(context.Background(), evaluation.Objective{Title: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Message != "Weight exceeds budget" || apiErr.Fields["weight"] != "too large" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if rec.calls.Load() != 1 || rec.errors.Load() != 0 {
		t.Fatalf("unexpected upstream counters %d/%d", rec.calls.Load(), rec.errors.Load())
	}
}

func TestUnauthorizedRefreshesOnce(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail": "token expired"}`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "stale", refreshed: "fresh"}
	c := New(srv.URL, time.Second)
	c.Tokens = tokens
	if _, err := c.ListEvaluations(context.Background(), evaluation.ListFilter{}); err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
	if tokens.refreshes.Load() != 1 || hits.Load() != 2 {
		t.Fatalf("expected one refresh and two calls, got %d/%d", tokens.refreshes.Load(), hits.Load())
	}

	failing := &staticTokens{token: "stale", fail: true}
	c.Tokens = failing
	_, err := c.ListEvaluations(context.Background(), evaluation.ListFilter{})
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected the 401 to surface, got %v", err)
	}
}

func TestContextTokenSkipsRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer caller" {
			t.Errorf("expected the caller's token, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	tokens := &staticTokens{token: "service", refreshed: "fresh"}
	c := New(srv.URL, time.Second)
	c.Tokens = tokens
	_, err := c.GetEvaluation(WithToken(context.Background(), "caller"), "1")
	if !IsStatus(err, http.StatusUnauthorized) || tokens.refreshes.Load() != 0 {
		t.Fatalf("expected a plain 401, got %v after %d refreshes", err, tokens.refreshes.Load())
	}
}

func TestStatusPatchAndLogAppendBodies(t *testing.T) {
	var patch, appended map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPatch && r.URL.Path == "/evaluations/3":
			_ = json.NewDecoder(r.Body).Decode(&patch)
			_, _ = io.WriteString(w, `{"id": 3, "status": "Pending HoD Approval"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/activity-logs":
			_ = json.NewDecoder(r.Body).Decode(&appended)
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second)
	status := evaluation.StatusPendingHoD
	ev, err := c.UpdateEvaluation(context.Background(), "3", evaluation.EvaluationPatch{Status: &status})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patch["status"] != "Pending HoD Approval" || ev.Status != evaluation.StatusPendingHoD {
		t.Fatalf("unexpected patch %v -> %+v", patch, ev)
	}
	if err := c.AppendActivity(context.Background(), evaluation.NewActivity{EvaluationID: "3", Status: "PENDING_HOD", Action: "SUBMITTED"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if appended["activitystatus"] != "PENDING_HOD" || appended["action"] != "SUBMITTED" {
		t.Fatalf("unexpected log body %v", appended)
	}
}

func TestLoginIsAnonymousAndRefreshKeepsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("auth endpoints must not carry a bearer token")
		}
		switch r.URL.Path {
		case "/auth/login":
			_, _ = io.WriteString(w, `{"access": "a1", "refresh": "r1", "user": {"id": 5, "username": "lina", "role": "HR"}}`)
		case "/auth/refresh":
			_, _ = io.WriteString(w, `{"access_token": "a2"}`)
		}
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second)
	c.Tokens = &staticTokens{token: "ignored"}

	s, err := c.Login(context.Background(), "lina", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s.AccessToken != "a1" || s.RefreshToken != "r1" || s.User.ID != "5" {
		t.Fatalf("unexpected session %+v", s)
	}

	var persisted Session
	tokens := NewRefreshingTokens(c, "a1", "r1")
	tokens.OnRefresh = func(s Session) { persisted = s }
	token, err := tokens.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if token != "a2" || persisted.RefreshToken != "r1" {
		t.Fatalf("unexpected refresh result %q %+v", token, persisted)
	}
}

func TestImportSendsMultipartWithDryRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/imports/employees" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse: %v", err)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file: %v", err)
			return
		}
		body, _ := io.ReadAll(file)
		if header.Filename != "staff.csv" || string(body) != "a,b\n" || r.FormValue("dryRun") != "true" {
			t.Errorf("unexpected upload %q %q %q", header.Filename, body, r.FormValue("dryRun"))
		}
		_, _ = io.WriteString(w, `{"total": 1, "created": 0, "errors": [{"row": 2, "message": "missing email"}]}`)
	}))
	defer srv.Close()
	res, err := New(srv.URL, time.Second).Import(context.Background(), org.ImportEmployees, "staff.csv", strings.NewReader("a,b\n"), true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Total != 1 || len(res.Errors) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestListUnitsFiltersByParent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sections" || r.URL.Query().Get("sub_department_id") != "4" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = io.WriteString(w, `{"results": [{"id": 9, "name": "Payroll", "code": "PAY", "sub_department_id": 4}]}`)
	}))
	defer srv.Close()
	units, err := New(srv.URL, time.Second).ListUnits(context.Background(), org.LevelSection, "4")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(units) != 1 || units[0].Level != org.LevelSection || units[0].ParentID != "4" {
		t.Fatalf("unexpected units %+v", units)
	}
}

func TestSharedClientServesConcurrentDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/evaluations/"):
			_, _ = io.WriteString(w, `{"id": "1", "employee_id": "e1", "type": "Quarterly", "status": "DRAFT"}`)
		case r.Method == http.MethodGet:
			_, _ = io.WriteString(w, `[]`)
		default:
			_, _ = io.WriteString(w, `{}`)
		}
	}))
	defer srv.Close()

	// Fresh client: nothing may be initialized lazily under the fan-out.
	svc := evaluation.NewService(New(srv.URL, time.Second), nil, nil)
	hr := evaluation.Actor{ID: "u1", Name: "Lina", Role: auth.RoleHR}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Details(context.Background(), hr, "1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("details: %v", err)
	}
}

func TestNewBuildsHTTPClient(t *testing.T) {
	c := New("http://example.invalid", 3*time.Second)
	if c.HTTPClient == nil || c.HTTPClient.Timeout != 3*time.Second {
		t.Fatalf("expected a ready http client, got %+v", c.HTTPClient)
	}
}
