package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"evalconsole/internal/transport/http/api"
)

// rateLimitKeys bounds how many distinct callers one limiter tracks. The
// least recently seen caller is forgotten first.
const rateLimitKeys = 8192

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(rl *rateLimiter) {
		if fn != nil {
			rl.keyFn = fn
		}
	}
}

// rateWindow counts hits for one key inside a fixed window.
type rateWindow struct {
	hits    int
	resetAt time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	name    string
	limit   int
	window  time.Duration
	keyFn   RateLimitKeyFunc
	windows *expirable.LRU[string, *rateWindow]
}

func newRateLimiter(name string, limit int, window time.Duration, keyFn RateLimitKeyFunc) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &rateLimiter{
		name:    name,
		limit:   limit,
		window:  window,
		keyFn:   keyFn,
		windows: expirable.NewLRU[string, *rateWindow](rateLimitKeys, nil, window),
	}
}

// RateLimit applies one budget per actor (or client address) to every request.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter("global", limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(rl)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.allow(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// rateRule routes matching mutations through extra, tighter limiters.
type rateRule struct {
	name     string
	match    func(path string) bool
	limiters []*rateLimiter
}

// SensitiveMutationRateLimit adds tighter budgets on sign-in traffic and on
// mutations that move an evaluation or write to the HR API in bulk. Reads
// are never counted here.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	actorLimit := max(baseLimit/2, 1)
	actorLimiter := newRateLimiter("workflow", actorLimit, window, actorOrIPKey)

	rules := []rateRule{
		{
			name:  "auth",
			match: pathIn("/auth/login", "/auth/refresh", "/auth/change-password"),
			limiters: []*rateLimiter{
				newRateLimiter("auth-ip", authLimit, window, clientIPKey),
				newRateLimiter("auth-account", authLimit, window, AuthFieldOrIPKey("username")),
			},
		},
		{
			name: "workflow",
			match: func(path string) bool {
				return strings.HasPrefix(path, "/evaluations/") &&
					(strings.HasSuffix(path, "/transitions") || strings.HasSuffix(path, "/self-submit"))
			},
			limiters: []*rateLimiter{actorLimiter},
		},
		{
			name:     "imports",
			match:    func(path string) bool { return strings.HasPrefix(path, "/imports/") },
			limiters: []*rateLimiter{actorLimiter},
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rule, ok := matchRateRule(rules, r); ok {
				for _, rl := range rule.limiters {
					if !rl.allow(w, r) {
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matchRateRule(rules []rateRule, r *http.Request) (rateRule, bool) {
	switch strings.ToUpper(r.Method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return rateRule{}, false
	}
	path := apiPath(r.URL.Path)
	for _, rule := range rules {
		if rule.match(path) {
			return rule, true
		}
	}
	return rateRule{}, false
}

func pathIn(paths ...string) func(string) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(path string) bool {
		_, ok := set[path]
		return ok
	}
}

// apiPath strips the /api/v1 mount so rules match handler-relative paths.
func apiPath(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/api/v1")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// hit counts one request for key and reports the window state after it.
func (rl *rateLimiter) hit(key string, now time.Time) (remaining int, resetIn time.Duration, allowed bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	win, ok := rl.windows.Get(key)
	if !ok || !now.Before(win.resetAt) {
		win = &rateWindow{resetAt: now.Add(rl.window)}
		rl.windows.Add(key, win)
	}
	win.hits++
	return rl.limit - win.hits, win.resetAt.Sub(now), win.hits <= rl.limit
}

func (rl *rateLimiter) allow(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 {
		return true
	}
	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}

	remaining, resetIn, allowed := rl.hit(key, time.Now())
	resetSec := ceilSeconds(resetIn)
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.Itoa(resetSec))
	if allowed {
		return true
	}

	retryAfter := max(resetSec, 1)
	h.Set("Retry-After", strconv.Itoa(retryAfter))
	slog.Warn("rate limit exceeded",
		"limiter", rl.name,
		"key", key,
		"method", r.Method,
		"path", r.URL.Path,
		"limit", rl.limit,
	)
	api.FailWithDetails(w, http.StatusTooManyRequests, "rate_limited", "too many requests",
		map[string]any{"limiter": rl.name, "limit": rl.limit, "retryAfterSeconds": retryAfter},
		GetRequestID(r.Context()))
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// AuthFieldOrIPKey keys sign-in attempts by the submitted account name, so
// spraying many accounts from one address still trips the per-account budget.
func AuthFieldOrIPKey(field string) RateLimitKeyFunc {
	field = strings.TrimSpace(field)
	if field == "" {
		field = "username"
	}
	return func(r *http.Request) string {
		if value := peekJSONString(r, field); value != "" {
			return field + ":" + strings.ToLower(value)
		}
		return clientIPKey(r)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

// peekJSONString reads one string field from a JSON body and restores the
// body for the next handler.
func peekJSONString(r *http.Request, field string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(payload[field], &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}
