package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"evalconsole/internal/domain/org"
	"evalconsole/internal/platform/crypto"

	_ "modernc.org/sqlite"
)

// Fixed keys, shared with the browser console's local storage.
const (
	KeyUser         = "user"
	KeyRefreshToken = "refresh_token"
)

var ErrNoSession = errors.New("not logged in")

// Store is a small key/value file that survives between CLI invocations.
type Store struct {
	DB *sql.DB
	// Sealer encrypts the refresh token at rest when it holds a key.
	Sealer *crypto.Sealer
}

// DefaultPath is ~/.evalctl/session.db, or ./.evalctl when there is no home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".evalctl", "session.db")
}

func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{DB: conn}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.DB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the signed-in user and refresh token in one transaction.
func (s *Store) Save(ctx context.Context, user org.User, refreshToken string) error {
	encoded, err := json.Marshal(user)
	if err != nil {
		return err
	}
	refreshToken, err = s.Sealer.Seal(refreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for key, value := range map[string]string{KeyUser: string(encoded), KeyRefreshToken: refreshToken} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Load(ctx context.Context) (org.User, string, error) {
	refresh, ok, err := s.Get(ctx, KeyRefreshToken)
	if err != nil {
		return org.User{}, "", err
	}
	if !ok || refresh == "" {
		return org.User{}, "", ErrNoSession
	}
	if refresh, err = s.Sealer.Open(refresh); err != nil {
		return org.User{}, "", fmt.Errorf("stored refresh token: %w", err)
	}
	var user org.User
	if raw, ok, err := s.Get(ctx, KeyUser); err != nil {
		return org.User{}, "", err
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return org.User{}, "", fmt.Errorf("stored user: %w", err)
		}
	}
	return user, refresh, nil
}

func (s *Store) Clear(ctx context.Context) error {
	return s.Delete(ctx, KeyUser, KeyRefreshToken)
}
