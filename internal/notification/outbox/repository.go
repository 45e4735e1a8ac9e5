// Package outbox persists emails that failed immediate delivery so the
// scheduler can retry them with backoff.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"

	errRepoNotConfigured = "email outbox repository not configured"
)

// MaxAttempts is the delivery cap before a record is marked failed for good.
const MaxAttempts = 5

type Record struct {
	ID       uuid.UUID
	Kind     string
	Payload  json.RawMessage
	RunAt    time.Time
	Status   Status
	Attempts int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert queues an email for later delivery.
func (r *Repository) Insert(ctx context.Context, kind string, payload any, runAt time.Time) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errors.New(errRepoNotConfigured)
	}
	if kind == "" {
		return uuid.Nil, errors.New("kind is required")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal outbox payload: %w", err)
	}

	var id uuid.UUID
	err = r.pool.QueryRow(ctx, `
		INSERT INTO crm_email_outbox (kind, payload, run_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, kind, data, runAt).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert outbox record: %w", err)
	}

	return id, nil
}

// ClaimDue atomically moves up to limit due pending records to processing
// and returns them. Concurrent workers will not pick up the same record.
func (r *Repository) ClaimDue(ctx context.Context, limit int) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx, `
		UPDATE crm_email_outbox
		SET status = 'processing', updated_at = now()
		WHERE id IN (
			SELECT id FROM crm_email_outbox
			WHERE status = 'pending' AND run_at <= now()
			ORDER BY run_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, run_at, status, attempts
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due outbox records: %w", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rec Record
		err := row.Scan(&rec.ID, &rec.Kind, &rec.Payload, &rec.RunAt, &rec.Status, &rec.Attempts)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox records: %w", err)
	}

	return records, nil
}

// MarkSucceeded finalizes a delivered record.
func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE crm_email_outbox
		SET status = 'succeeded', updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// MarkFailed records a delivery failure. Records under the attempt cap are
// rescheduled with quadratic backoff; the rest are marked failed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, sendErr error) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}

	message := ""
	if sendErr != nil {
		message = sendErr.Error()
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE crm_email_outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
		    run_at = now() + make_interval(mins => (attempts + 1) * (attempts + 1)),
		    updated_at = now()
		WHERE id = $1
	`, id, message, MaxAttempts)
	return err
}

// DeleteOld removes terminal records older than the retention cutoff.
func (r *Repository) DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM crm_email_outbox
		WHERE status IN ('succeeded', 'failed') AND updated_at < now() - make_interval(secs => $1)
	`, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("delete old outbox records: %w", err)
	}

	return tag.RowsAffected(), nil
}
