package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prime_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ClaimBreach is a lead flagged for exceeding its claim window entirely.
type ClaimBreach struct {
	LeadID    uuid.UUID
	Language  string
	CreatedAt time.Time
}

// MarkClaimSLABreaches flags unclaimed leads whose claim window lapsed and
// that were not flagged before. The UPDATE itself decides which rows qualify,
// so concurrent runs never flag a lead twice.
func (r *Repository) MarkClaimSLABreaches(ctx context.Context, limit int) ([]ClaimBreach, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE crm_leads SET claim_sla_breached = TRUE, updated_at = now()
		WHERE id IN (
			SELECT id FROM crm_leads
			WHERE lead_claimed = FALSE
			  AND claim_sla_breached = FALSE
			  AND archived = FALSE
			  AND is_night_held = FALSE
			  AND claim_window_expires_at IS NOT NULL
			  AND claim_window_expires_at <= now()
			ORDER BY claim_window_expires_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, language, created_at
	`, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("mark claim sla breaches failed: %v", err)).WithOp(opClaimSLA)
	}
	defer rows.Close()

	breaches := []ClaimBreach{}
	for rows.Next() {
		var b ClaimBreach
		if scanErr := rows.Scan(&b.LeadID, &b.Language, &b.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan claim sla breach failed: %v", scanErr)).WithOp(opClaimSLA)
		}
		breaches = append(breaches, b)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate claim sla breaches failed: %v", rowsErr)).WithOp(opClaimSLA)
	}
	return breaches, nil
}

// ActionBreach is a claimed lead whose agent logged no contact in time.
type ActionBreach struct {
	LeadID     uuid.UUID
	AgentID    *uuid.UUID
	AssignedAt time.Time
}

// MarkFirstActionSLABreaches flags claimed leads with no recorded contact
// within the window. Admin fallback assignments are exempt: the admin
// inherited a problem, not an SLA.
func (r *Repository) MarkFirstActionSLABreaches(ctx context.Context, window time.Duration, limit int) ([]ActionBreach, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE crm_leads SET sla_breached = TRUE, sla_breached_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM crm_leads
			WHERE lead_claimed = TRUE
			  AND first_action_completed = FALSE
			  AND sla_breached = FALSE
			  AND archived = FALSE
			  AND (assignment_method IS NULL OR assignment_method <> 'admin_fallback')
			  AND assigned_at IS NOT NULL
			  AND assigned_at <= now() - make_interval(secs => $1)
			ORDER BY assigned_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, assigned_agent_id, assigned_at
	`, window.Seconds(), limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("mark action sla breaches failed: %v", err)).WithOp(opActionSLA)
	}
	defer rows.Close()

	breaches := []ActionBreach{}
	for rows.Next() {
		var b ActionBreach
		if scanErr := rows.Scan(&b.LeadID, &b.AgentID, &b.AssignedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan action sla breach failed: %v", scanErr)).WithOp(opActionSLA)
		}
		breaches = append(breaches, b)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate action sla breaches failed: %v", rowsErr)).WithOp(opActionSLA)
	}
	return breaches, nil
}

// ListDueNightHeld returns ids of overnight-held leads whose release time
// has arrived.
func (r *Repository) ListDueNightHeld(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM crm_leads
		WHERE is_night_held = TRUE
		  AND lead_claimed = FALSE
		  AND archived = FALSE
		  AND scheduled_release_at IS NOT NULL
		  AND scheduled_release_at <= now()
		ORDER BY scheduled_release_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list due night leads failed: %v", err)).WithOp(opNightDue)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan due night lead failed: %v", scanErr)).WithOp(opNightDue)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReleaseNightHeld moves one held lead onto the round 1 board with a fresh
// claim window. Re-checks the hold under a row lock so a concurrent claim or
// release wins cleanly.
func (r *Repository) ReleaseNightHeld(ctx context.Context, leadID uuid.UUID, defaultWindowMinutes int) (BroadcastOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return BroadcastOutcome{}, apperr.Internal(fmt.Sprintf("begin night release tx failed: %v", err)).WithOp(opNightRelease)
	}
	defer tx.Rollback(ctx)

	var language, priority string
	err = tx.QueryRow(ctx, `
		SELECT language, lead_priority FROM crm_leads
		WHERE id = $1
		  AND is_night_held = TRUE
		  AND lead_claimed = FALSE
		  AND archived = FALSE
		FOR UPDATE
	`, leadID).Scan(&language, &priority)
	if errors.Is(err, pgx.ErrNoRows) {
		return BroadcastOutcome{}, ErrNotFound
	}
	if err != nil {
		return BroadcastOutcome{}, apperr.Internal(fmt.Sprintf("lock night lead failed: %v", err)).WithOp(opNightRelease)
	}

	outcome, err := startRound(ctx, tx, leadID, language, priority, 1, defaultWindowMinutes)
	if err != nil {
		return BroadcastOutcome{}, err
	}

	if err = insertSystemActivity(ctx, tx, leadID, nil, "Released from overnight hold"); err != nil {
		return BroadcastOutcome{}, apperr.Internal(fmt.Sprintf("night release activity failed: %v", err)).WithOp(opNightRelease)
	}

	if err = tx.Commit(ctx); err != nil {
		return BroadcastOutcome{}, apperr.Internal(fmt.Sprintf("commit night release failed: %v", err)).WithOp(opNightRelease)
	}
	return outcome, nil
}

// AddSystemActivity writes a system timeline entry outside a transaction.
func (r *Repository) AddSystemActivity(ctx context.Context, leadID uuid.UUID, note string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crm_activities (lead_id, activity_type, notes)
		VALUES ($1, 'system', $2)
	`, leadID, note)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("add system activity failed: %v", err))
	}
	return nil
}

// AlarmHit is a lead that crossed an alarm threshold.
type AlarmHit struct {
	LeadID          uuid.UUID
	Language        string
	Level           int
	CreatedAt       time.Time
	WindowExpiresAt *time.Time
}

// RaiseAlarms advances unclaimed leads to the given alarm level once they
// have sat on the board for level minutes. Bumping last_alarm_level in the
// same statement that selects the rows makes each alarm fire exactly once.
func (r *Repository) RaiseAlarms(ctx context.Context, level int) ([]AlarmHit, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE crm_leads SET last_alarm_level = $1, updated_at = now()
		WHERE id IN (
			SELECT id FROM crm_leads
			WHERE lead_claimed = FALSE
			  AND claim_sla_breached = FALSE
			  AND archived = FALSE
			  AND is_night_held = FALSE
			  AND last_alarm_level = $1 - 1
			  AND claim_timer_started_at IS NOT NULL
			  AND claim_timer_started_at <= now() - make_interval(mins => $1)
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, language, created_at, claim_window_expires_at
	`, level)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("raise alarms failed: %v", err)).WithOp(opRaiseAlarms)
	}
	defer rows.Close()

	hits := []AlarmHit{}
	for rows.Next() {
		h := AlarmHit{Level: level}
		if scanErr := rows.Scan(&h.LeadID, &h.Language, &h.CreatedAt, &h.WindowExpiresAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan alarm hit failed: %v", scanErr)).WithOp(opRaiseAlarms)
		}
		hits = append(hits, h)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate alarm hits failed: %v", rowsErr)).WithOp(opRaiseAlarms)
	}
	return hits, nil
}
