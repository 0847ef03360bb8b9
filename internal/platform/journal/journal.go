package journal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"evalconsole/internal/domain/evaluation"
	"evalconsole/internal/platform/db"
	"evalconsole/internal/requestctx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates the journal and job_runs tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return db.Migrate(ctx, pool, migrations, "migrations")
}

var ErrNotFound = errors.New("journal entry not found")

type Entry struct {
	ID           string     `json:"id"`
	EvaluationID string     `json:"evaluationId"`
	Actor        string     `json:"actor"`
	Action       string     `json:"action"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	Outcome      string     `json:"outcome"`
	Error        string     `json:"error,omitempty"`
	RequestID    string     `json:"requestId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
}

type Filter struct {
	EvaluationID string
	Outcome      string
	OpenOnly     bool
	Since        time.Time
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

// Record implements evaluation.Journal. Committed and compensated rows are
// written already resolved.
func (s *Service) Record(ctx context.Context, rec evaluation.TransitionRecord) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	var resolvedAt *time.Time
	if rec.Outcome != evaluation.OutcomeUnresolved {
		resolvedAt = &at
	}
	_, err := s.DB.Exec(ctx, `
    INSERT INTO transition_journal (id, evaluation_id, actor, action, from_status, to_status, outcome, error, request_id, created_at, resolved_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
  `, uuid.NewString(), rec.EvaluationID, rec.Actor, string(rec.Action), string(rec.From), string(rec.To),
		string(rec.Outcome), rec.Error, requestctx.RequestID(ctx), at, resolvedAt)
	return err
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Entry, error) {
	query, args := buildBaseQuery(`SELECT id::text, evaluation_id, actor, action, from_status, to_status, outcome, error, request_id, created_at, resolved_at`, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EvaluationID, &e.Actor, &e.Action, &e.From, &e.To, &e.Outcome, &e.Error, &e.RequestID, &e.CreatedAt, &e.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Resolve marks an unresolved row as handled by an operator.
func (s *Service) Resolve(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE transition_journal
    SET resolved_at = now()
    WHERE id::text = $1 AND resolved_at IS NULL
  `, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type SweepResult struct {
	Unresolved int   `json:"unresolved"`
	Pruned     int64 `json:"pruned"`
}

// Sweep counts open partial failures and prunes resolved rows older than
// retention.
func (s *Service) Sweep(ctx context.Context, retention time.Duration, now time.Time) (SweepResult, error) {
	var res SweepResult
	open, err := s.Count(ctx, Filter{OpenOnly: true})
	if err != nil {
		return res, err
	}
	res.Unresolved = open
	if retention <= 0 {
		return res, nil
	}
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM transition_journal
    WHERE resolved_at IS NOT NULL AND resolved_at < $1
  `, now.Add(-retention))
	if err != nil {
		return res, err
	}
	res.Pruned = tag.RowsAffected()
	return res, nil
}

// Ping backs the readiness check.
func (s *Service) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM transition_journal WHERE 1=1"
	var args []any
	if filter.EvaluationID != "" {
		args = append(args, filter.EvaluationID)
		query += fmt.Sprintf(" AND evaluation_id = $%d", len(args))
	}
	if filter.Outcome != "" {
		args = append(args, filter.Outcome)
		query += fmt.Sprintf(" AND outcome = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.OpenOnly {
		query += " AND resolved_at IS NULL"
	}
	return query, args
}
