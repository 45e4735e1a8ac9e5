package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrTokenNotFound = errors.New("refresh token not found")

func (r *Repository) CreateRefreshToken(ctx context.Context, agentID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crm_agent_refresh_tokens (agent_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, agentID, tokenHash, expiresAt)
	return err
}

// ConsumeRefreshToken revokes the token and returns its owning agent id if the
// token is valid, unrevoked, and unexpired.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	var agentID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		UPDATE crm_agent_refresh_tokens
		SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > now()
		RETURNING agent_id
	`, tokenHash).Scan(&agentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrTokenNotFound
	}
	return agentID, err
}

func (r *Repository) RevokeAgentTokens(ctx context.Context, agentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE crm_agent_refresh_tokens
		SET revoked_at = now()
		WHERE agent_id = $1 AND revoked_at IS NULL
	`, agentID)
	return err
}

func (r *Repository) DeleteExpiredTokens(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM crm_agent_refresh_tokens WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key")
}
