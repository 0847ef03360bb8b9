package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestUserFromToken(t *testing.T) {
	expires := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	token := signedToken(t, Claims{
		UserID:   "u-1",
		Username: "jdoe",
		Role:     "HOD",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	user, err := UserFromToken(token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if user.UserID != "u-1" || user.Role != RoleHoD || user.Name != "jdoe" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if !user.ExpiresAt.Equal(expires) {
		t.Fatalf("expected expiry %v, got %v", expires, user.ExpiresAt)
	}
	if user.Token != token {
		t.Fatal("expected raw token to be kept")
	}
}

func TestUserFromTokenFallsBackToSubject(t *testing.T) {
	token := signedToken(t, Claims{
		Role:             "hr",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-9"},
	})
	user, err := UserFromToken(token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if user.UserID != "u-9" {
		t.Fatalf("expected subject as user id, got %q", user.UserID)
	}
}

func TestUserFromTokenRejectsGarbage(t *testing.T) {
	if _, err := UserFromToken("not-a-token"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := UserFromToken(signedToken(t, Claims{Role: "hr"})); err == nil {
		t.Fatal("expected error for token without user id")
	}
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	user := UserContext{ExpiresAt: now.Add(30 * time.Second)}
	if !NeedsRefresh(user, now, time.Minute) {
		t.Fatal("expected refresh inside skew window")
	}
	user.ExpiresAt = now.Add(10 * time.Minute)
	if NeedsRefresh(user, now, time.Minute) {
		t.Fatal("did not expect refresh outside skew window")
	}
	if NeedsRefresh(UserContext{}, now, time.Minute) {
		t.Fatal("tokens without expiry never need refresh")
	}
}
