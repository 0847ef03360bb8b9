package authhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/domain/org"
	"evalconsole/internal/platform/apiclient"
	"evalconsole/internal/transport/http/middleware"
)

type fakeAuth struct {
	access     string
	loggedOut  string
	rejectNext bool
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (apiclient.Session, error) {
	if password != "correct-horse1" {
		return apiclient.Session{}, &apiclient.APIError{StatusCode: http.StatusUnauthorized, Message: "No active account"}
	}
	return apiclient.Session{AccessToken: f.access, RefreshToken: "r1", User: org.User{ID: "5", Username: username, Role: "HR"}}, nil
}

func (f *fakeAuth) Refresh(_ context.Context, refresh string) (apiclient.Session, error) {
	if f.rejectNext {
		return apiclient.Session{}, errors.New("expired")
	}
	return apiclient.Session{AccessToken: f.access, RefreshToken: refresh}, nil
}

func (f *fakeAuth) Logout(_ context.Context, refresh string) error {
	f.loggedOut = refresh
	return nil
}

func accessToken(t *testing.T, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "5", "role": role}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return signed
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestLoginReturnsCapabilities(t *testing.T) {
	h := NewHandler(&fakeAuth{access: accessToken(t, "hr")}, nil)
	rec := post(h.HandleLogin, `{"username":"lina","password":"correct-horse1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data sessionResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Role != string(auth.RoleHR) || env.Data.RefreshToken != "r1" {
		t.Fatalf("unexpected session %+v", env.Data)
	}
	found := false
	for _, perm := range env.Data.Capabilities {
		found = found || perm == auth.PermImport
	}
	if !found {
		t.Fatalf("expected HR to carry the import capability, got %v", env.Data.Capabilities)
	}
}

func TestLoginFailures(t *testing.T) {
	h := NewHandler(&fakeAuth{access: accessToken(t, "hr")}, nil)
	if rec := post(h.HandleLogin, `{"username":"lina","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := post(h.HandleLogin, `{"username":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	fake := &fakeAuth{access: accessToken(t, "employee")}
	h := NewHandler(fake, nil)
	if rec := post(h.HandleRefresh, `{"refresh_token":"r9"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	fake.rejectNext = true
	if rec := post(h.HandleRefresh, `{"refresh_token":"r9"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on a dead refresh token, got %d", rec.Code)
	}
	if rec := post(h.HandleLogout, `{"refresh_token":"r9"}`); rec.Code != http.StatusOK || fake.loggedOut != "r9" {
		t.Fatalf("expected logout forwarded, got %d %q", rec.Code, fake.loggedOut)
	}
}

func TestMe(t *testing.T) {
	h := NewHandler(&fakeAuth{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{UserID: "5", Name: "Lina", Role: auth.RoleLineManager}))
	rec := httptest.NewRecorder()
	h.HandleMe(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"roleName":"Line Manager"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestChangePasswordValidatesLocally(t *testing.T) {
	h := NewHandler(&fakeAuth{}, org.NewService(nil, nil))
	rec := post(h.HandleChangePassword, `{"current_password":"abc","new_password":"short","confirm_password":"other"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}
