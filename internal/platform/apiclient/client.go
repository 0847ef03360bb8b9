package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const DefaultTimeout = 15 * time.Second

// TokenSource supplies the bearer token for outgoing calls and a fresh one
// after the API answers 401.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

type Recorder interface {
	RecordUpstream(status int, duration time.Duration)
}

// Client talks to the remote HR REST API. It is the only place that knows
// the API's response shapes.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Tokens     TokenSource
	Metrics    Recorder
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Timeout:    timeout,
	}
}

// httpClient never writes to c: one Client serves concurrent requests.
func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

type tokenKey struct{}

// WithToken makes calls made with ctx carry token instead of the client's
// token source. A 401 on such a call is returned as is.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

type request struct {
	method      string
	endpoint    string
	query       url.Values
	body        []byte
	contentType string
	anonymous   bool
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	req := request{method: method, endpoint: endpoint}
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		req.body = buf.Bytes()
		req.contentType = "application/json"
	}
	return c.send(ctx, req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return c.send(ctx, request{method: http.MethodGet, endpoint: endpoint, query: query}, out)
}

func (c *Client) send(ctx context.Context, req request, out any) error {
	token, fromCtx := tokenFrom(ctx)
	if !fromCtx && !req.anonymous && c.Tokens != nil {
		var err error
		if token, err = c.Tokens.Token(ctx); err != nil {
			return fmt.Errorf("token: %w", err)
		}
	}
	if req.anonymous {
		token = ""
	}
	raw, err := c.roundTrip(ctx, req, token)
	if IsStatus(err, http.StatusUnauthorized) && !fromCtx && !req.anonymous && c.Tokens != nil {
		fresh, refreshErr := c.Tokens.Refresh(ctx)
		if refreshErr != nil {
			return errors.Join(err, fmt.Errorf("refresh: %w", refreshErr))
		}
		raw, err = c.roundTrip(ctx, req, fresh)
	}
	if err != nil {
		return err
	}
	return decodeInto(raw, out)
}

func (c *Client) roundTrip(ctx context.Context, r request, token string) ([]byte, error) {
	target := c.base() + "/" + strings.TrimLeft(r.endpoint, "/")
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, bytes.NewReader(r.body))
	if err != nil {
		return nil, err
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.record(0, start)
		return nil, err
	}
	defer resp.Body.Close()
	c.record(resp.StatusCode, start)
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, b)
	}
	return b, nil
}

func (c *Client) record(status int, start time.Time) {
	if c.Metrics != nil {
		c.Metrics.RecordUpstream(status, time.Since(start))
	}
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) != nil {
		return apiErr
	}
	for _, key := range []string{"message", "detail", "error"} {
		if msg := messageOf(fields[key]); msg != "" {
			apiErr.Message = msg
			break
		}
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch key {
		case "message", "detail", "error", "code", "success", "requestId", "status":
			continue
		}
		var list []string
		if json.Unmarshal(fields[key], &list) == nil && len(list) > 0 {
			if apiErr.Fields == nil {
				apiErr.Fields = map[string]string{}
			}
			apiErr.Fields[key] = list[0]
		}
	}
	if apiErr.Message == "" && len(apiErr.Fields) > 0 {
		apiErr.Message = "validation failed"
	}
	return apiErr
}

// messageOf reads a string, or the message of a nested error object.
func messageOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var nested struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(raw, &nested) == nil {
		if nested.Message != "" {
			return nested.Message
		}
		return nested.Detail
	}
	return ""
}

// decodeInto unwraps a {"data": {...}} envelope before decoding.
func decodeInto(raw []byte, out any) error {
	if out == nil {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if dst, ok := out.(*json.RawMessage); ok {
		*dst = append((*dst)[:0], raw...)
		return nil
	}
	return json.Unmarshal(unwrap(raw), out)
}

func unwrap(raw []byte) []byte {
	if len(raw) == 0 || raw[0] != '{' {
		return raw
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return raw
	}
	data, ok := fields["data"]
	if !ok {
		return raw
	}
	if _, hasID := fields["id"]; hasID {
		return raw
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		return data
	}
	return raw
}

// decodeList accepts a bare array or an array under results, data or items.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for _, key := range []string{"results", "data", "items"} {
		inner := bytes.TrimSpace(fields[key])
		if len(inner) == 0 {
			continue
		}
		if inner[0] == '[' || inner[0] == '{' {
			return decodeList[T](inner)
		}
	}
	return nil, fmt.Errorf("unexpected list response: %.80s", raw)
}

func (c *Client) list(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, endpoint, query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func path(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.Join(escaped, "/")
}

func query(pairs ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i] != "" && pairs[i+1] != "" {
			q.Set(pairs[i], pairs[i+1])
		}
	}
	return q
}
