package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are read from the access token the remote API issues. The console
// cannot verify the signature, so nothing here may be used for security
// decisions.
type Claims struct {
	UserID     string `json:"user_id"`
	EmployeeID string `json:"employee_id,omitempty"`
	Username   string `json:"username,omitempty"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

type UserContext struct {
	UserID     string
	EmployeeID string
	Name       string
	Role       Role
	Token      string
	ExpiresAt  time.Time
}

func (u UserContext) Capabilities() Capabilities {
	return CapabilitiesFor(u.Role)
}

var ErrInvalidToken = errors.New("invalid token")

func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func UserFromToken(token string) (UserContext, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return UserContext{}, err
	}
	user := UserContext{
		UserID:     claims.UserID,
		EmployeeID: claims.EmployeeID,
		Name:       claims.Name,
		Role:       ParseRole(claims.Role),
		Token:      token,
	}
	if user.Name == "" {
		user.Name = claims.Username
	}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}
	return user, nil
}

// NeedsRefresh reports whether the token expires within skew of now.
func NeedsRefresh(user UserContext, now time.Time, skew time.Duration) bool {
	if user.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(user.ExpiresAt)
}
