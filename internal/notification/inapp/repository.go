package inapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prime_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate      = "notification.inapp.repository.create"
	opList        = "notification.inapp.repository.list"
	opCountUnread = "notification.inapp.repository.count_unread"
	opMarkRead    = "notification.inapp.repository.mark_read"
	opMarkAllRead = "notification.inapp.repository.mark_all_read"
	opDelete      = "notification.inapp.repository.delete"

	errRepoNotConfigured = "in-app notification repository not configured"
	errAgentIDRequired   = "agentId is required"
)

type Notification struct {
	ID        uuid.UUID  `json:"id"`
	AgentID   uuid.UUID  `json:"agentId"`
	LeadID    *uuid.UUID `json:"leadId,omitempty"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	ActionURL string     `json:"actionUrl"`
	IsRead    bool       `json:"isRead"`
	CreatedAt time.Time  `json:"createdAt"`
}

type CreateParams struct {
	AgentID   uuid.UUID
	LeadID    *uuid.UUID
	Type      string
	Title     string
	Message   string
	ActionURL string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if r == nil || r.pool == nil {
		return Notification{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.AgentID == uuid.Nil {
		return Notification{}, apperr.Validation(errAgentIDRequired).WithOp(opCreate)
	}
	if p.Type == "" || p.Title == "" || p.Message == "" {
		return Notification{}, apperr.Validation("type, title and message are required").WithOp(opCreate)
	}

	var n Notification
	err := r.pool.QueryRow(ctx, `
		INSERT INTO crm_notifications
		(agent_id, lead_id, notification_type, title, message, action_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, agent_id, lead_id, notification_type, title, message, action_url, read, created_at
	`, p.AgentID, p.LeadID, p.Type, p.Title, p.Message, p.ActionURL).Scan(
		&n.ID, &n.AgentID, &n.LeadID, &n.Type, &n.Title, &n.Message, &n.ActionURL, &n.IsRead, &n.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Notification{}, apperr.Validation("invalid agentId or leadId").WithOp(opCreate)
		}
		return Notification{}, apperr.Internal(fmt.Sprintf("create notification failed: %v", err)).WithOp(opCreate)
	}

	return n, nil
}

func (r *Repository) List(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}
	if agentID == uuid.Nil {
		return nil, 0, apperr.Validation(errAgentIDRequired).WithOp(opList)
	}

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM crm_notifications WHERE agent_id = $1`, agentID).Scan(&total)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count notifications failed: %v", err)).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, agent_id, lead_id, notification_type, title, message, action_url, read, created_at
		FROM crm_notifications
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, agentID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notifications query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if scanErr := rows.Scan(&n.ID, &n.AgentID, &n.LeadID, &n.Type, &n.Title, &n.Message, &n.ActionURL, &n.IsRead, &n.CreatedAt); scanErr != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan notifications failed: %v", scanErr)).WithOp(opList)
		}
		items = append(items, n)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate notifications failed: %v", rowsErr)).WithOp(opList)
	}

	return items, total, nil
}

func (r *Repository) CountUnread(ctx context.Context, agentID uuid.UUID) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opCountUnread)
	}
	if agentID == uuid.Nil {
		return 0, apperr.Validation(errAgentIDRequired).WithOp(opCountUnread)
	}

	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM crm_notifications
		WHERE agent_id = $1 AND read = FALSE
	`, agentID).Scan(&count)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread notifications failed: %v", err)).WithOp(opCountUnread)
	}

	return count, nil
}

func (r *Repository) MarkRead(ctx context.Context, agentID, notificationID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}
	if agentID == uuid.Nil || notificationID == uuid.Nil {
		return apperr.Validation("agentId and notificationId are required").WithOp(opMarkRead)
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE crm_notifications
		SET read = TRUE, read_at = now()
		WHERE id = $1 AND agent_id = $2
	`, notificationID, agentID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark notification read failed: %v", err)).WithOp(opMarkRead)
	}

	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, agentID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkAllRead)
	}
	if agentID == uuid.Nil {
		return apperr.Validation(errAgentIDRequired).WithOp(opMarkAllRead)
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE crm_notifications
		SET read = TRUE, read_at = now()
		WHERE agent_id = $1 AND read = FALSE
	`, agentID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark all notifications read failed: %v", err)).WithOp(opMarkAllRead)
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, agentID, notificationID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opDelete)
	}
	if agentID == uuid.Nil || notificationID == uuid.Nil {
		return apperr.Validation("agentId and notificationId are required").WithOp(opDelete)
	}

	_, err := r.pool.Exec(ctx, `
		DELETE FROM crm_notifications
		WHERE id = $1 AND agent_id = $2
	`, notificationID, agentID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("delete notification failed: %v", err)).WithOp(opDelete)
	}

	return nil
}
