package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prime_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	opAddActivity    = "leads.repository.add_activity"
	opListActivities = "leads.repository.list_activities"
)

// Activity types an agent can log. 'system' entries are written by the
// routing jobs, never through the API.
const (
	ActivityCall     = "call"
	ActivityEmail    = "email"
	ActivityWhatsApp = "whatsapp"
	ActivityMeeting  = "meeting"
	ActivityNote     = "note"
	ActivitySystem   = "system"
)

// firstActionTypes are the activity types that count as contact for the
// first-action SLA.
var firstActionTypes = map[string]bool{
	ActivityCall:     true,
	ActivityEmail:    true,
	ActivityWhatsApp: true,
	ActivityMeeting:  true,
}

type Activity struct {
	ID        uuid.UUID  `json:"id"`
	LeadID    uuid.UUID  `json:"leadId"`
	AgentID   *uuid.UUID `json:"agentId,omitempty"`
	Type      string     `json:"activityType"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"createdAt"`
}

type AddActivityParams struct {
	LeadID  uuid.UUID
	AgentID *uuid.UUID
	Type    string
	Notes   string
}

// AddActivity records a timeline entry. The first contact-type activity on a
// lead also completes the first-action SLA, atomically with the insert.
func (r *Repository) AddActivity(ctx context.Context, p AddActivityParams) (Activity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Activity{}, apperr.Internal(fmt.Sprintf("begin activity tx failed: %v", err)).WithOp(opAddActivity)
	}
	defer tx.Rollback(ctx)

	var a Activity
	err = tx.QueryRow(ctx, `
		INSERT INTO crm_activities (lead_id, agent_id, activity_type, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, agent_id, activity_type, notes, created_at
	`, p.LeadID, p.AgentID, p.Type, p.Notes).Scan(
		&a.ID, &a.LeadID, &a.AgentID, &a.Type, &a.Notes, &a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return Activity{}, ErrNotFound
			case "23514":
				return Activity{}, apperr.Validation("invalid activity type").WithOp(opAddActivity)
			}
		}
		return Activity{}, apperr.Internal(fmt.Sprintf("insert activity failed: %v", err)).WithOp(opAddActivity)
	}

	if firstActionTypes[p.Type] {
		if _, err = tx.Exec(ctx, `
			UPDATE crm_leads SET first_action_completed = TRUE, updated_at = now()
			WHERE id = $1 AND first_action_completed = FALSE
		`, p.LeadID); err != nil {
			return Activity{}, apperr.Internal(fmt.Sprintf("mark first action failed: %v", err)).WithOp(opAddActivity)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return Activity{}, apperr.Internal(fmt.Sprintf("commit activity tx failed: %v", err)).WithOp(opAddActivity)
	}
	return a, nil
}

func (r *Repository) ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, agent_id, activity_type, notes, created_at
		FROM crm_activities
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list activities failed: %v", err)).WithOp(opListActivities)
	}
	defer rows.Close()

	activities := make([]Activity, 0, limit)
	for rows.Next() {
		var a Activity
		if scanErr := rows.Scan(&a.ID, &a.LeadID, &a.AgentID, &a.Type, &a.Notes, &a.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan activity failed: %v", scanErr)).WithOp(opListActivities)
		}
		activities = append(activities, a)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate activities failed: %v", rowsErr)).WithOp(opListActivities)
	}

	return activities, nil
}
