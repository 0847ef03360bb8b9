package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/domain/evaluation"
	"evalconsole/internal/domain/org"
	"evalconsole/internal/platform/session"
)

func accessToken(t *testing.T, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u-7",
		"role":    role,
	}).SignedString([]byte("upstream-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type upstream struct {
	mu          sync.Mutex
	refreshCode int
	access      string
	seenAuth    []string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch r.URL.Path {
	case "/auth/refresh":
		if u.refreshCode != 0 {
			w.WriteHeader(u.refreshCode)
			_, _ = w.Write([]byte(`{"detail":"token is blacklisted"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access": u.access, "refresh": "r-2"})
	case "/evaluations":
		u.seenAuth = append(u.seenAuth, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"results":[{"id":"e1","type":"Annual","period":"2025","status":"Draft"}]}`))
	default:
		http.NotFound(w, r)
	}
}

func setup(t *testing.T, up *upstream) *session.Store {
	t.Helper()
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)
	path := filepath.Join(t.TempDir(), "session.db")
	viper.Set("api-url", srv.URL)
	viper.Set("session", path)
	viper.Set("timezone", "UTC")
	t.Cleanup(viper.Reset)

	store, err := session.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWithConsoleRefreshesAndRotates(t *testing.T) {
	up := &upstream{access: accessToken(t, "HR")}
	store := setup(t, up)
	ctx := context.Background()
	if err := store.Save(ctx, org.User{ID: "u-7", Username: "hana", FirstName: "Hana"}, "r-1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	err := withConsole(ctx, func(ctx context.Context, c *console) error {
		if c.User.Role != auth.RoleHR || c.User.Name != "Hana" {
			t.Fatalf("unexpected user %+v", c.User)
		}
		items, err := c.Evaluations.List(ctx, c.actor(), evaluation.ListFilter{})
		if err != nil {
			return err
		}
		if len(items) != 1 || items[0].ID != "e1" {
			t.Fatalf("unexpected evaluations %+v", items)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withConsole: %v", err)
	}
	if len(up.seenAuth) != 1 || up.seenAuth[0] != "Bearer "+up.access {
		t.Fatalf("expected the refreshed access token upstream, got %v", up.seenAuth)
	}
	user, refresh, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if refresh != "r-2" || user.Username != "hana" {
		t.Fatalf("expected rotated token and kept user, got %q %+v", refresh, user)
	}
}

func TestWithConsoleExpiredSessionClears(t *testing.T) {
	up := &upstream{refreshCode: http.StatusUnauthorized}
	store := setup(t, up)
	ctx := context.Background()
	if err := store.Save(ctx, org.User{ID: "u-7"}, "r-1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	err := withConsole(ctx, func(context.Context, *console) error {
		t.Fatal("callback must not run")
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "session expired") {
		t.Fatalf("expected session expired, got %v", err)
	}
	if _, _, err := store.Load(ctx); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected the session cleared, got %v", err)
	}
}

func TestWithConsoleRequiresLogin(t *testing.T) {
	setup(t, &upstream{})
	err := withConsole(context.Background(), func(context.Context, *console) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "evalctl login") {
		t.Fatalf("expected a login hint, got %v", err)
	}
}

func TestFillUser(t *testing.T) {
	user := auth.UserContext{UserID: "u-1"}
	fillUser(&user, org.User{ID: "ignored", EmployeeID: "emp-3", Username: "sam", Role: "Line Manager"})
	if user.UserID != "u-1" || user.EmployeeID != "emp-3" || user.Name != "sam" || user.Role != auth.RoleLineManager {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := parseLevel("departments"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := parseLevel("teams"); err == nil || !strings.Contains(err.Error(), "sub-sections") {
		t.Fatalf("expected the level list in the error, got %v", err)
	}
}
