package repository

import (
	"context"
	"errors"
	"fmt"

	"prime_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNoAdminAvailable is returned when a lead must fall back to an admin but
// no active admin exists.
var ErrNoAdminAvailable = errors.New("no active admin available for fallback")

const (
	opAssignByRule  = "routing.repository.assign_by_rule"
	opStartRoundOne = "routing.repository.start_round_one"
	opListExpired   = "routing.repository.list_expired"
	opEscalate      = "routing.repository.escalate_lead"
	opClaimSLA      = "routing.repository.mark_claim_sla"
	opActionSLA     = "routing.repository.mark_action_sla"
	opNightDue      = "routing.repository.list_night_due"
	opNightRelease  = "routing.repository.release_night_held"
	opRaiseAlarms   = "routing.repository.raise_alarms"
)

// Outcome status values for an escalation attempt.
const (
	StatusSkipped       = "skipped"
	StatusEscalated     = "escalated"
	StatusStalled       = "stalled"
	StatusAdminFallback = "admin_fallback"
)

// adminFallbackLabel is what claimed_by shows for leads nobody claimed.
const adminFallbackLabel = "Unclaimed - Admin Fallback"

// EscalationOutcome describes what happened to one expired lead.
type EscalationOutcome struct {
	Status        string
	LeadID        uuid.UUID
	Language      string
	Priority      string
	NewRound      int
	AgentIDs      []uuid.UUID
	WindowMinutes int
	AdminID       uuid.UUID
	RoundsUsed    int
}

// BroadcastOutcome describes a round start for a new or released lead.
type BroadcastOutcome struct {
	LeadID        uuid.UUID
	Language      string
	Priority      string
	Round         int
	AgentIDs      []uuid.UUID
	WindowMinutes int
}

// RuleAssignment reports how a direct rule assignment attempt resolved.
type RuleAssignment int

const (
	RuleAssigned RuleAssignment = iota
	RuleLeadGone
	RuleAgentUnavailable
)

// AssignByRule assigns a lead directly to a rule's target agent. The agent
// row is locked and checked first: an inactive, closed or full agent yields
// RuleAgentUnavailable and no writes. The lead row, agent capacity and
// timeline entry then move in one transaction, and only if the lead is still
// unclaimed.
func (r *Repository) AssignByRule(ctx context.Context, leadID, agentID, ruleID uuid.UUID, ruleName string) (RuleAssignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return RuleLeadGone, apperr.Internal(fmt.Sprintf("begin rule assign tx failed: %v", err)).WithOp(opAssignByRule)
	}
	defer tx.Rollback(ctx)

	var available bool
	err = tx.QueryRow(ctx, `
		SELECT is_active AND accepts_new_leads AND current_lead_count < max_active_leads
		FROM crm_agents
		WHERE id = $1
		FOR UPDATE
	`, agentID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return RuleAgentUnavailable, nil
	}
	if err != nil {
		return RuleLeadGone, apperr.Internal(fmt.Sprintf("check rule agent failed: %v", err)).WithOp(opAssignByRule)
	}
	if !available {
		return RuleAgentUnavailable, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE crm_leads SET
			lead_claimed = TRUE,
			claimed_by = $2,
			assigned_agent_id = $3,
			assigned_at = now(),
			assignment_method = 'rule_based',
			routing_rule_id = $4,
			claim_window_expires_at = NULL,
			claim_timer_started_at = NULL,
			updated_at = now()
		WHERE id = $1 AND lead_claimed = FALSE AND archived = FALSE
	`, leadID, "Rule: "+ruleName, agentID, ruleID)
	if err != nil {
		return RuleLeadGone, apperr.Internal(fmt.Sprintf("rule assign update failed: %v", err)).WithOp(opAssignByRule)
	}
	if tag.RowsAffected() == 0 {
		return RuleLeadGone, nil
	}

	if _, err = tx.Exec(ctx, `
		UPDATE crm_agents SET current_lead_count = current_lead_count + 1, updated_at = now()
		WHERE id = $1
	`, agentID); err != nil {
		return RuleLeadGone, apperr.Internal(fmt.Sprintf("rule assign capacity failed: %v", err)).WithOp(opAssignByRule)
	}

	if err = insertSystemActivity(ctx, tx, leadID, &agentID,
		fmt.Sprintf("Auto-assigned by routing rule %q", ruleName)); err != nil {
		return RuleLeadGone, apperr.Internal(fmt.Sprintf("rule assign activity failed: %v", err)).WithOp(opAssignByRule)
	}

	if err = tx.Commit(ctx); err != nil {
		return RuleLeadGone, apperr.Internal(fmt.Sprintf("commit rule assign tx failed: %v", err)).WithOp(opAssignByRule)
	}
	return RuleAssigned, nil
}

// StartRoundOne opens the first claim window for a fresh lead and returns
// the agents to notify. The window length comes from the language's round 1
// config, falling back to defaultWindowMinutes.
func (r *Repository) StartRoundOne(ctx context.Context, leadID uuid.UUID, defaultWindowMinutes int) (BroadcastOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return BroadcastOutcome{}, apperr.Internal(fmt.Sprintf("begin broadcast tx failed: %v", err)).WithOp(opStartRoundOne)
	}
	defer tx.Rollback(ctx)

	var language, priority string
	err = tx.QueryRow(ctx, `
		SELECT language, lead_priority FROM crm_leads
		WHERE id = $1 AND lead_claimed = FALSE AND archived = FALSE
		FOR UPDATE
	`, leadID).Scan(&language, &priority)
	if errors.Is(err, pgx.ErrNoRows) {
		return BroadcastOutcome{}, ErrNotFound
	}
	if err != nil {
		return BroadcastOutcome{}, apperr.Internal(fmt.Sprintf("lock lead for broadcast failed: %v", err)).WithOp(opStartRoundOne)
	}

	outcome, err := startRound(ctx, tx, leadID, language, priority, 1, defaultWindowMinutes)
	if err != nil {
		return BroadcastOutcome{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return BroadcastOutcome{}, apperr.Internal(fmt.Sprintf("commit broadcast tx failed: %v", err)).WithOp(opStartRoundOne)
	}
	return outcome, nil
}

// ListExpired returns ids of unclaimed leads whose claim window has lapsed,
// oldest expiry first.
func (r *Repository) ListExpired(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM crm_leads
		WHERE lead_claimed = FALSE
		  AND archived = FALSE
		  AND is_night_held = FALSE
		  AND claim_window_expires_at IS NOT NULL
		  AND claim_window_expires_at <= now()
		ORDER BY claim_window_expires_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list expired leads failed: %v", err)).WithOp(opListExpired)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan expired lead failed: %v", scanErr)).WithOp(opListExpired)
		}
		ids = append(ids, id)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate expired leads failed: %v", rowsErr)).WithOp(opListExpired)
	}
	return ids, nil
}

// EscalateLead moves one expired lead to its next round, or assigns it to an
// admin when the rounds are exhausted. The decision is made here, under a
// row lock with the expiry re-checked, so a claim that lands between the
// scan and this call wins and the escalation is skipped.
func (r *Repository) EscalateLead(ctx context.Context, leadID uuid.UUID, maxRounds, defaultWindowMinutes int) (EscalationOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return EscalationOutcome{}, apperr.Internal(fmt.Sprintf("begin escalate tx failed: %v", err)).WithOp(opEscalate)
	}
	defer tx.Rollback(ctx)

	var (
		language, priority string
		currentRound       int
	)
	err = tx.QueryRow(ctx, `
		SELECT language, lead_priority, current_round FROM crm_leads
		WHERE id = $1
		  AND lead_claimed = FALSE
		  AND archived = FALSE
		  AND is_night_held = FALSE
		  AND claim_window_expires_at IS NOT NULL
		  AND claim_window_expires_at <= now()
		FOR UPDATE
	`, leadID).Scan(&language, &priority, &currentRound)
	if errors.Is(err, pgx.ErrNoRows) {
		return EscalationOutcome{Status: StatusSkipped, LeadID: leadID}, nil
	}
	if err != nil {
		return EscalationOutcome{}, apperr.Internal(fmt.Sprintf("lock expired lead failed: %v", err)).WithOp(opEscalate)
	}

	nextRound := currentRound + 1

	var cfg RoundConfig
	cfgRow := tx.QueryRow(ctx, `
		SELECT`+roundConfigColumns+`
		FROM crm_round_robin_config
		WHERE language = $1 AND round_number = $2 AND is_active
	`, language, nextRound)
	cfg, cfgErr := scanRoundConfig(cfgRow)
	if cfgErr != nil && !errors.Is(cfgErr, ErrNotFound) {
		return EscalationOutcome{}, apperr.Internal(fmt.Sprintf("load next round config failed: %v", cfgErr)).WithOp(opEscalate)
	}

	roundsExhausted := errors.Is(cfgErr, ErrNotFound) || cfg.IsAdminFallback || nextRound > maxRounds
	if roundsExhausted {
		adminID, adminErr := resolveFallbackAdmin(ctx, tx, language, cfg.FallbackAdminID)
		if adminErr != nil {
			return EscalationOutcome{}, adminErr
		}

		if _, err = tx.Exec(ctx, `
			UPDATE crm_leads SET
				lead_claimed = TRUE,
				claimed_by = $2,
				assigned_agent_id = $3,
				assigned_at = now(),
				assignment_method = 'admin_fallback',
				claim_window_expires_at = NULL,
				claim_timer_started_at = NULL,
				updated_at = now()
			WHERE id = $1
		`, leadID, adminFallbackLabel, adminID); err != nil {
			return EscalationOutcome{}, apperr.Internal(fmt.Sprintf("admin fallback update failed: %v", err)).WithOp(opEscalate)
		}
		if _, err = tx.Exec(ctx, `
			UPDATE crm_agents SET current_lead_count = current_lead_count + 1, updated_at = now()
			WHERE id = $1
		`, adminID); err != nil {
			return EscalationOutcome{}, apperr.Internal(fmt.Sprintf("admin fallback capacity failed: %v", err)).WithOp(opEscalate)
		}
		if err = insertSystemActivity(ctx, tx, leadID, nil,
			fmt.Sprintf("No agent claimed this lead after %d round(s). Assigned to admin.", currentRound)); err != nil {
			return EscalationOutcome{}, apperr.Internal(fmt.Sprintf("admin fallback activity failed: %v", err)).WithOp(opEscalate)
		}
		if err = tx.Commit(ctx); err != nil {
			return EscalationOutcome{}, apperr.Internal(fmt.Sprintf("commit admin fallback failed: %v", err)).WithOp(opEscalate)
		}
		return EscalationOutcome{
			Status:     StatusAdminFallback,
			LeadID:     leadID,
			Language:   language,
			Priority:   priority,
			AdminID:    adminID,
			RoundsUsed: currentRound,
		}, nil
	}

	broadcast, err := startRound(ctx, tx, leadID, language, priority, nextRound, defaultWindowMinutes)
	if err != nil {
		return EscalationOutcome{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return EscalationOutcome{}, apperr.Internal(fmt.Sprintf("commit escalate tx failed: %v", err)).WithOp(opEscalate)
	}

	status := StatusEscalated
	if len(broadcast.AgentIDs) == 0 {
		status = StatusStalled
	}
	return EscalationOutcome{
		Status:        status,
		LeadID:        leadID,
		Language:      language,
		Priority:      priority,
		NewRound:      nextRound,
		AgentIDs:      broadcast.AgentIDs,
		WindowMinutes: broadcast.WindowMinutes,
	}, nil
}

// startRound opens a claim window for the given round inside tx and returns
// the capacity-filtered agents for that round.
func startRound(ctx context.Context, tx pgx.Tx, leadID uuid.UUID, language, priority string, round, defaultWindowMinutes int) (BroadcastOutcome, error) {
	windowMinutes := defaultWindowMinutes
	var configured []uuid.UUID

	cfgRow := tx.QueryRow(ctx, `
		SELECT`+roundConfigColumns+`
		FROM crm_round_robin_config
		WHERE language = $1 AND round_number = $2 AND is_active
	`, language, round)
	cfg, err := scanRoundConfig(cfgRow)
	switch {
	case err == nil:
		if cfg.ClaimWindowMinutes > 0 {
			windowMinutes = cfg.ClaimWindowMinutes
		}
		configured = cfg.AgentIDs
	case errors.Is(err, ErrNotFound):
		// No config for this round; broadcast to every eligible agent.
	default:
		return BroadcastOutcome{}, apperr.Internal(fmt.Sprintf("load round config failed: %v", err)).WithOp(opStartRoundOne)
	}

	agentIDs, err := eligibleAgents(ctx, tx, language, configured)
	if err != nil {
		return BroadcastOutcome{}, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE crm_leads SET
			current_round = $2,
			round_broadcast_at = now(),
			claim_timer_started_at = now(),
			claim_window_expires_at = now() + make_interval(mins => $3),
			last_alarm_level = 0,
			is_night_held = FALSE,
			scheduled_release_at = NULL,
			updated_at = now()
		WHERE id = $1
	`, leadID, round, windowMinutes); err != nil {
		return BroadcastOutcome{}, apperr.Internal(fmt.Sprintf("open claim window failed: %v", err)).WithOp(opStartRoundOne)
	}

	if err = insertSystemActivity(ctx, tx, leadID, nil,
		fmt.Sprintf("Broadcast to %d agent(s) in round %d (%d minute window)", len(agentIDs), round, windowMinutes)); err != nil {
		return BroadcastOutcome{}, apperr.Internal(fmt.Sprintf("broadcast activity failed: %v", err)).WithOp(opStartRoundOne)
	}

	return BroadcastOutcome{
		LeadID:        leadID,
		Language:      language,
		Priority:      priority,
		Round:         round,
		AgentIDs:      agentIDs,
		WindowMinutes: windowMinutes,
	}, nil
}

// eligibleAgents filters the configured agent list down to active agents
// that accept new leads and have free capacity. With no configured list it
// falls back to every eligible agent speaking the lead's language.
func eligibleAgents(ctx context.Context, tx pgx.Tx, language string, configured []uuid.UUID) ([]uuid.UUID, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(configured) > 0 {
		rows, err = tx.Query(ctx, `
			SELECT id FROM crm_agents
			WHERE id = ANY($1)
			  AND is_active
			  AND accepts_new_leads
			  AND current_lead_count < max_active_leads
			ORDER BY current_lead_count ASC
		`, configured)
	} else {
		rows, err = tx.Query(ctx, `
			SELECT id FROM crm_agents
			WHERE is_active
			  AND accepts_new_leads
			  AND current_lead_count < max_active_leads
			  AND $1 = ANY(languages)
			ORDER BY current_lead_count ASC
		`, language)
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("filter eligible agents failed: %v", err)).WithOp(opStartRoundOne)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan eligible agent failed: %v", scanErr)).WithOp(opStartRoundOne)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// resolveFallbackAdmin picks the admin who inherits an unclaimed lead:
// the round config's fallback admin, any configured fallback for the
// language, or the least loaded active admin.
func resolveFallbackAdmin(ctx context.Context, tx pgx.Tx, language string, configured *uuid.UUID) (uuid.UUID, error) {
	if configured != nil {
		return *configured, nil
	}

	var adminID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT fallback_admin_id FROM crm_round_robin_config
		WHERE language = $1 AND fallback_admin_id IS NOT NULL AND is_active
		ORDER BY round_number DESC
		LIMIT 1
	`, language).Scan(&adminID)
	if err == nil {
		return adminID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, apperr.Internal(fmt.Sprintf("lookup fallback admin failed: %v", err)).WithOp(opEscalate)
	}

	err = tx.QueryRow(ctx, `
		SELECT id FROM crm_agents
		WHERE role = 'admin' AND is_active
		ORDER BY current_lead_count ASC
		LIMIT 1
	`).Scan(&adminID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNoAdminAvailable
	}
	if err != nil {
		return uuid.Nil, apperr.Internal(fmt.Sprintf("lookup active admin failed: %v", err)).WithOp(opEscalate)
	}
	return adminID, nil
}

func insertSystemActivity(ctx context.Context, tx pgx.Tx, leadID uuid.UUID, agentID *uuid.UUID, note string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO crm_activities (lead_id, agent_id, activity_type, notes)
		VALUES ($1, $2, 'system', $3)
	`, leadID, agentID, note)
	return err
}
