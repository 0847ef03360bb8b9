package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"evalconsole/internal/transport/http/api"
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

const HeaderIdempotencyKey = "Idempotency-Key"

type storedResponse struct {
	hash        string
	status      int
	contentType string
	body        []byte
}

// IdempotencyStore remembers successful mutation responses for a while so a
// retried POST with the same key replays instead of running twice.
type IdempotencyStore struct {
	entries *expirable.LRU[string, storedResponse]
}

func NewIdempotencyStore(size int, ttl time.Duration) *IdempotencyStore {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IdempotencyStore{entries: expirable.NewLRU[string, storedResponse](size, nil, ttl)}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func storeKey(userID, endpoint, key string) string {
	return userID + "\x00" + endpoint + "\x00" + key
}

func (s *IdempotencyStore) Check(userID, endpoint, key, requestHash string) (storedResponse, bool, error) {
	if s == nil {
		return storedResponse{}, false, nil
	}
	stored, ok := s.entries.Get(storeKey(userID, endpoint, key))
	if !ok {
		return storedResponse{}, false, nil
	}
	if stored.hash != requestHash {
		return storedResponse{}, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

func (s *IdempotencyStore) Save(userID, endpoint, key string, resp storedResponse) error {
	if s == nil {
		return nil
	}
	k := storeKey(userID, endpoint, key)
	if existing, ok := s.entries.Get(k); ok && existing.hash != resp.hash {
		return ErrIdempotencyConflict
	}
	s.entries.Add(k, resp)
	return nil
}

type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bodyRecorder) WriteHeader(code int) {
	b.status = code
	b.ResponseWriter.WriteHeader(code)
}

func (b *bodyRecorder) Write(p []byte) (int, error) {
	b.body.Write(p)
	return b.ResponseWriter.Write(p)
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through untouched.
func Idempotency(store *IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if key == "" || store == nil || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			userID := ""
			if user, ok := GetUser(r.Context()); ok {
				userID = user.UserID
			}
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_payload", "unable to read request body", GetRequestID(r.Context()))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
			hash := RequestHash(raw)

			stored, ok, err := store.Check(userID, r.URL.Path, key, hash)
			if err != nil {
				api.Fail(w, http.StatusConflict, "idempotency_conflict", err.Error(), GetRequestID(r.Context()))
				return
			}
			if ok {
				w.Header().Set("Content-Type", stored.contentType)
				w.Header().Set("Idempotent-Replay", "true")
				w.WriteHeader(stored.status)
				_, _ = w.Write(stored.body)
				return
			}

			rec := &bodyRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= 200 && rec.status < 300 {
				_ = store.Save(userID, r.URL.Path, key, storedResponse{
					hash:        hash,
					status:      rec.status,
					contentType: w.Header().Get("Content-Type"),
					body:        rec.body.Bytes(),
				})
			}
		})
	}
}
