package authhandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/domain/org"
	"evalconsole/internal/platform/apiclient"
	"evalconsole/internal/transport/http/api"
	"evalconsole/internal/transport/http/middleware"
	"evalconsole/internal/transport/http/shared"
)

// Authenticator is the slice of the API client that owns sign-in.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (apiclient.Session, error)
	Refresh(ctx context.Context, refreshToken string) (apiclient.Session, error)
	Logout(ctx context.Context, refreshToken string) error
}

type Handler struct {
	Auth Authenticator
	Org  *org.Service
}

func NewHandler(authenticator Authenticator, orgService *org.Service) *Handler {
	return &Handler{Auth: authenticator, Org: orgService}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// sessionResponse is what the browser keeps: the refresh token and user go
// to local storage under fixed keys, the access token stays in memory.
type sessionResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	User         org.User `json:"user"`
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
}

func toResponse(s apiclient.Session) sessionResponse {
	resp := sessionResponse{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, User: s.User}
	role := auth.ParseRole(s.User.Role)
	if user, err := auth.UserFromToken(s.AccessToken); err == nil && user.Role != "" {
		role = user.Role
	}
	resp.Role = string(role)
	resp.Capabilities = auth.CapabilitiesFor(role).List()
	return resp
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("username", payload.Username, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	s, err := h.Auth.Login(r.Context(), strings.TrimSpace(payload.Username), payload.Password)
	if err != nil {
		if apiclient.IsStatus(err, http.StatusUnauthorized) || apiclient.IsStatus(err, http.StatusBadRequest) {
			api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", middleware.GetRequestID(r.Context()))
			return
		}
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "login_failed", err)
		return
	}
	api.Success(w, toResponse(s), middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var payload refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	s, err := h.Auth.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "session_expired", "please sign in again", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, toResponse(s), middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var payload refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&payload)
	if payload.RefreshToken != "" {
		if err := h.Auth.Logout(r.Context(), payload.RefreshToken); err != nil {
			slog.Warn("upstream logout failed", "err", err)
		}
	}
	api.Success(w, map[string]string{"status": "logged_out"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	api.Success(w, map[string]any{
		"userId":       user.UserID,
		"employeeId":   user.EmployeeID,
		"name":         user.Name,
		"role":         user.Role,
		"roleName":     user.Role.DisplayName(),
		"expiresAt":    user.ExpiresAt,
		"capabilities": user.Capabilities().List(),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	profile, err := h.Org.Profile(r.Context(), user)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "profile_load_failed", err)
		return
	}
	api.Success(w, profile, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload org.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	saved, err := h.Org.UpdateProfile(r.Context(), user, payload)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "profile_update_failed", err)
		return
	}
	api.Success(w, saved, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload org.PasswordChange
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Org.ChangePassword(r.Context(), payload); err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "password_change_failed", err)
		return
	}
	api.Success(w, map[string]string{"status": "password_changed"}, middleware.GetRequestID(r.Context()))
}
