package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"evalconsole/internal/domain/org"
)

var ErrNoRefreshToken = errors.New("no refresh token")

// Session is what the API hands back on login or refresh. Refresh responses
// may omit the refresh token and the user.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         org.User `json:"user"`
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var wire struct {
		Access       string          `json:"access"`
		AccessToken  string          `json:"access_token"`
		Token        string          `json:"token"`
		Refresh      string          `json:"refresh"`
		RefreshToken string          `json:"refresh_token"`
		User         json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = Session{
		AccessToken:  firstNonEmpty(wire.Access, wire.AccessToken, wire.Token),
		RefreshToken: firstNonEmpty(wire.Refresh, wire.RefreshToken),
	}
	if len(wire.User) > 0 && string(wire.User) != "null" {
		if err := json.Unmarshal(wire.User, &s.User); err != nil {
			return err
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Client) postAnonymous(ctx context.Context, endpoint string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.send(ctx, request{
		method:      http.MethodPost,
		endpoint:    endpoint,
		body:        b,
		contentType: "application/json",
		anonymous:   true,
	}, out)
}

func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	var s Session
	err := c.postAnonymous(ctx, "auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &s)
	return s, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, ErrNoRefreshToken
	}
	var s Session
	err := c.postAnonymous(ctx, "auth/refresh", map[string]string{"refresh": refreshToken}, &s)
	if err == nil && s.RefreshToken == "" {
		s.RefreshToken = refreshToken
	}
	return s, err
}

func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, http.MethodPost, "auth/logout", map[string]string{"refresh": refreshToken}, nil)
}

func (c *Client) ChangePassword(ctx context.Context, p org.PasswordChange) error {
	return c.do(ctx, http.MethodPost, "auth/change-password", p, nil)
}

// RefreshingTokens is a TokenSource backed by a refresh token. OnRefresh
// runs after every successful refresh so callers can persist the new pair.
type RefreshingTokens struct {
	Client    *Client
	OnRefresh func(Session)

	mu      sync.Mutex
	access  string
	refresh string
}

func NewRefreshingTokens(client *Client, access, refresh string) *RefreshingTokens {
	return &RefreshingTokens{Client: client, access: access, refresh: refresh}
}

func (t *RefreshingTokens) Token(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.access, nil
}

func (t *RefreshingTokens) Refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.Client.Refresh(ctx, t.refresh)
	if err != nil {
		return "", err
	}
	t.access, t.refresh = s.AccessToken, s.RefreshToken
	if t.OnRefresh != nil {
		t.OnRefresh(s)
	}
	return t.access, nil
}
