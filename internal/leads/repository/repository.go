// Package repository provides PostgreSQL persistence for leads, their
// activity timeline and file attachments.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prime_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a lead does not exist.
	ErrNotFound = errors.New("lead not found")
	// ErrAlreadyClaimed is returned when a claim races against another agent
	// or the lead was already routed off the board.
	ErrAlreadyClaimed = errors.New("lead already claimed")
)

const (
	opCreate   = "leads.repository.create"
	opGet      = "leads.repository.get"
	opList     = "leads.repository.list"
	opClaim    = "leads.repository.claim"
	opReassign = "leads.repository.reassign"
	opArchive  = "leads.repository.archive"
	opStatus   = "leads.repository.update_status"
)

// leadColumns is the canonical SELECT list, kept in sync with scanLead.
const leadColumns = `
	id, first_name, last_name, phone_number, email, language,
	lead_source, lead_source_detail, page_url, page_type, page_slug, referrer, message,
	budget_range, timeframe, property_type, property_purpose, bedrooms_desired,
	location_preference, sea_view_importance, intake_complete, questions_answered,
	lead_score, lead_segment, lead_priority, lead_status,
	lead_claimed, claimed_by, claim_window_expires_at, claim_timer_started_at,
	current_round, round_broadcast_at, last_alarm_level,
	assigned_agent_id, assigned_at, assignment_method, routing_rule_id,
	previous_agent_id, reassignment_count, reassignment_reason, reassigned_at,
	first_action_completed, sla_breached, sla_breached_at, claim_sla_breached,
	is_night_held, scheduled_release_at,
	archived, created_at, updated_at`

// Lead mirrors a crm_leads row.
type Lead struct {
	ID       uuid.UUID `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Phone     string   `json:"phoneNumber"`
	Email     *string  `json:"email,omitempty"`
	Language  string   `json:"language"`

	LeadSource       string  `json:"leadSource"`
	LeadSourceDetail *string `json:"leadSourceDetail,omitempty"`
	PageURL          *string `json:"pageUrl,omitempty"`
	PageType         *string `json:"pageType,omitempty"`
	PageSlug         *string `json:"pageSlug,omitempty"`
	Referrer         *string `json:"referrer,omitempty"`
	Message          *string `json:"message,omitempty"`

	BudgetRange        *string  `json:"budgetRange,omitempty"`
	Timeframe          *string  `json:"timeframe,omitempty"`
	PropertyType       []string `json:"propertyType"`
	PropertyPurpose    *string  `json:"propertyPurpose,omitempty"`
	BedroomsDesired    *string  `json:"bedroomsDesired,omitempty"`
	LocationPreference []string `json:"locationPreference"`
	SeaViewImportance  *string  `json:"seaViewImportance,omitempty"`
	IntakeComplete     bool     `json:"intakeComplete"`
	QuestionsAnswered  int      `json:"questionsAnswered"`

	Score    int    `json:"leadScore"`
	Segment  string `json:"leadSegment"`
	Priority string `json:"leadPriority"`
	Status   string `json:"leadStatus"`

	Claimed              bool       `json:"leadClaimed"`
	ClaimedBy            *string    `json:"claimedBy,omitempty"`
	ClaimWindowExpiresAt *time.Time `json:"claimWindowExpiresAt,omitempty"`
	ClaimTimerStartedAt  *time.Time `json:"claimTimerStartedAt,omitempty"`
	CurrentRound         int        `json:"currentRound"`
	RoundBroadcastAt     *time.Time `json:"roundBroadcastAt,omitempty"`
	LastAlarmLevel       int        `json:"lastAlarmLevel"`

	AssignedAgentID  *uuid.UUID `json:"assignedAgentId,omitempty"`
	AssignedAt       *time.Time `json:"assignedAt,omitempty"`
	AssignmentMethod *string    `json:"assignmentMethod,omitempty"`
	RoutingRuleID    *uuid.UUID `json:"routingRuleId,omitempty"`

	PreviousAgentID    *uuid.UUID `json:"previousAgentId,omitempty"`
	ReassignmentCount  int        `json:"reassignmentCount"`
	ReassignmentReason *string    `json:"reassignmentReason,omitempty"`
	ReassignedAt       *time.Time `json:"reassignedAt,omitempty"`

	FirstActionCompleted bool       `json:"firstActionCompleted"`
	SLABreached          bool       `json:"slaBreached"`
	SLABreachedAt        *time.Time `json:"slaBreachedAt,omitempty"`
	ClaimSLABreached     bool       `json:"claimSlaBreached"`

	IsNightHeld        bool       `json:"isNightHeld"`
	ScheduledReleaseAt *time.Time `json:"scheduledReleaseAt,omitempty"`

	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName returns the lead's display name.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// CreateParams carries a scored lead ready for insertion. Routing fields
// (claim window, assignment) are written afterwards by the routing layer.
type CreateParams struct {
	FirstName string
	LastName  string
	Phone     string
	Email     *string
	Language  string

	LeadSource       string
	LeadSourceDetail *string
	PageURL          *string
	PageType         *string
	PageSlug         *string
	Referrer         *string
	Message          *string

	BudgetRange        *string
	Timeframe          *string
	PropertyType       []string
	PropertyPurpose    *string
	BedroomsDesired    *string
	LocationPreference []string
	SeaViewImportance  *string
	IntakeComplete     bool
	QuestionsAnswered  int

	Score    int
	Segment  string
	Priority string

	IsNightHeld        bool
	ScheduledReleaseAt *time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Phone, &l.Email, &l.Language,
		&l.LeadSource, &l.LeadSourceDetail, &l.PageURL, &l.PageType, &l.PageSlug, &l.Referrer, &l.Message,
		&l.BudgetRange, &l.Timeframe, &l.PropertyType, &l.PropertyPurpose, &l.BedroomsDesired,
		&l.LocationPreference, &l.SeaViewImportance, &l.IntakeComplete, &l.QuestionsAnswered,
		&l.Score, &l.Segment, &l.Priority, &l.Status,
		&l.Claimed, &l.ClaimedBy, &l.ClaimWindowExpiresAt, &l.ClaimTimerStartedAt,
		&l.CurrentRound, &l.RoundBroadcastAt, &l.LastAlarmLevel,
		&l.AssignedAgentID, &l.AssignedAt, &l.AssignmentMethod, &l.RoutingRuleID,
		&l.PreviousAgentID, &l.ReassignmentCount, &l.ReassignmentReason, &l.ReassignedAt,
		&l.FirstActionCompleted, &l.SLABreached, &l.SLABreachedAt, &l.ClaimSLABreached,
		&l.IsNightHeld, &l.ScheduledReleaseAt,
		&l.Archived, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Lead, error) {
	if p.PropertyType == nil {
		p.PropertyType = []string{}
	}
	if p.LocationPreference == nil {
		p.LocationPreference = []string{}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO crm_leads (
			first_name, last_name, phone_number, email, language,
			lead_source, lead_source_detail, page_url, page_type, page_slug, referrer, message,
			budget_range, timeframe, property_type, property_purpose, bedrooms_desired,
			location_preference, sea_view_importance, intake_complete, questions_answered,
			lead_score, lead_segment, lead_priority,
			is_night_held, scheduled_release_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21,
			$22, $23, $24,
			$25, $26
		)
		RETURNING`+leadColumns,
		p.FirstName, p.LastName, p.Phone, p.Email, p.Language,
		p.LeadSource, p.LeadSourceDetail, p.PageURL, p.PageType, p.PageSlug, p.Referrer, p.Message,
		p.BudgetRange, p.Timeframe, p.PropertyType, p.PropertyPurpose, p.BedroomsDesired,
		p.LocationPreference, p.SeaViewImportance, p.IntakeComplete, p.QuestionsAnswered,
		p.Score, p.Segment, p.Priority,
		p.IsNightHeld, p.ScheduledReleaseAt,
	)
	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("create lead failed: %v", err)).WithOp(opCreate)
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+leadColumns+` FROM crm_leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, ErrNotFound) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("get lead failed: %v", err)).WithOp(opGet)
	}
	return lead, nil
}

// ListFilter narrows the lead listing. Zero values mean "no filter".
type ListFilter struct {
	Status          string
	Segment         string
	Priority        string
	Language        string
	AssignedAgentID *uuid.UUID
	Claimed         *bool
	Unclaimed       bool
	IncludeArchived bool
	Limit           int
	Offset          int
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Lead, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.IncludeArchived {
		where = append(where, "archived = FALSE")
	}
	if f.Status != "" {
		where = append(where, "lead_status = "+arg(f.Status))
	}
	if f.Segment != "" {
		where = append(where, "lead_segment = "+arg(f.Segment))
	}
	if f.Priority != "" {
		where = append(where, "lead_priority = "+arg(f.Priority))
	}
	if f.Language != "" {
		where = append(where, "language = "+arg(f.Language))
	}
	if f.AssignedAgentID != nil {
		where = append(where, "assigned_agent_id = "+arg(*f.AssignedAgentID))
	}
	if f.Claimed != nil {
		where = append(where, "lead_claimed = "+arg(*f.Claimed))
	}
	if f.Unclaimed {
		where = append(where, "lead_claimed = FALSE AND is_night_held = FALSE")
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM crm_leads WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count leads failed: %v", err)).WithOp(opList)
	}

	query := `SELECT` + leadColumns + ` FROM crm_leads WHERE ` + cond +
		` ORDER BY created_at DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list leads failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	leads := make([]Lead, 0, f.Limit)
	for rows.Next() {
		lead, scanErr := scanLead(rows)
		if scanErr != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan lead failed: %v", scanErr)).WithOp(opList)
		}
		leads = append(leads, lead)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate leads failed: %v", rowsErr)).WithOp(opList)
	}

	return leads, total, nil
}

// Claim atomically claims a lead for an agent. The conditional UPDATE is the
// single source of truth for claimability: whoever's UPDATE matches the row
// wins, everyone else gets ErrAlreadyClaimed. The agent's active lead count
// is incremented in the same transaction.
func (r *Repository) Claim(ctx context.Context, leadID, agentID uuid.UUID, claimedBy string) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("begin claim tx failed: %v", err)).WithOp(opClaim)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE crm_leads SET
			lead_claimed = TRUE,
			claimed_by = $2,
			assigned_agent_id = $3,
			assigned_at = now(),
			assignment_method = 'claimed',
			lead_status = 'claimed',
			claim_window_expires_at = NULL,
			claim_timer_started_at = NULL,
			updated_at = now()
		WHERE id = $1
		  AND lead_claimed = FALSE
		  AND archived = FALSE
		  AND is_night_held = FALSE
		RETURNING`+leadColumns,
		leadID, claimedBy, agentID,
	)
	lead, err := scanLead(row)
	if errors.Is(err, ErrNotFound) {
		// Distinguish a lost race from a missing lead.
		var exists bool
		if checkErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM crm_leads WHERE id = $1)`, leadID).Scan(&exists); checkErr != nil {
			return Lead{}, apperr.Internal(fmt.Sprintf("claim existence check failed: %v", checkErr)).WithOp(opClaim)
		}
		if exists {
			return Lead{}, ErrAlreadyClaimed
		}
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("claim lead failed: %v", err)).WithOp(opClaim)
	}

	if _, err = tx.Exec(ctx, `
		UPDATE crm_agents SET current_lead_count = current_lead_count + 1, updated_at = now()
		WHERE id = $1
	`, agentID); err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("increment agent capacity failed: %v", err)).WithOp(opClaim)
	}

	if err = tx.Commit(ctx); err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("commit claim tx failed: %v", err)).WithOp(opClaim)
	}
	return lead, nil
}

// Reassign moves a claimed lead to another agent, adjusting both agents'
// active lead counts in one transaction.
func (r *Repository) Reassign(ctx context.Context, leadID, toAgentID uuid.UUID, claimedBy, reason string) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("begin reassign tx failed: %v", err)).WithOp(opReassign)
	}
	defer tx.Rollback(ctx)

	var fromAgentID *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT assigned_agent_id FROM crm_leads
		WHERE id = $1 AND archived = FALSE
		FOR UPDATE
	`, leadID).Scan(&fromAgentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("lock lead for reassign failed: %v", err)).WithOp(opReassign)
	}

	row := tx.QueryRow(ctx, `
		UPDATE crm_leads SET
			previous_agent_id = assigned_agent_id,
			assigned_agent_id = $2,
			assigned_at = now(),
			assignment_method = 'manual_reassign',
			lead_claimed = TRUE,
			claimed_by = $3,
			reassignment_count = reassignment_count + 1,
			reassignment_reason = $4,
			reassigned_at = now(),
			claim_window_expires_at = NULL,
			claim_timer_started_at = NULL,
			is_night_held = FALSE,
			scheduled_release_at = NULL,
			updated_at = now()
		WHERE id = $1
		RETURNING`+leadColumns,
		leadID, toAgentID, claimedBy, reason,
	)
	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("reassign lead failed: %v", err)).WithOp(opReassign)
	}

	if fromAgentID != nil && *fromAgentID != toAgentID {
		if _, err = tx.Exec(ctx, `
			UPDATE crm_agents SET current_lead_count = GREATEST(current_lead_count - 1, 0), updated_at = now()
			WHERE id = $1
		`, *fromAgentID); err != nil {
			return Lead{}, apperr.Internal(fmt.Sprintf("decrement previous agent failed: %v", err)).WithOp(opReassign)
		}
	}
	if fromAgentID == nil || *fromAgentID != toAgentID {
		if _, err = tx.Exec(ctx, `
			UPDATE crm_agents SET current_lead_count = current_lead_count + 1, updated_at = now()
			WHERE id = $1
		`, toAgentID); err != nil {
			return Lead{}, apperr.Internal(fmt.Sprintf("increment new agent failed: %v", err)).WithOp(opReassign)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("commit reassign tx failed: %v", err)).WithOp(opReassign)
	}
	return lead, nil
}

// Archive removes a lead from the active board and releases the assigned
// agent's capacity slot.
func (r *Repository) Archive(ctx context.Context, leadID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("begin archive tx failed: %v", err)).WithOp(opArchive)
	}
	defer tx.Rollback(ctx)

	var agentID *uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE crm_leads SET archived = TRUE, updated_at = now()
		WHERE id = $1 AND archived = FALSE
		RETURNING assigned_agent_id
	`, leadID).Scan(&agentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return apperr.Internal(fmt.Sprintf("archive lead failed: %v", err)).WithOp(opArchive)
	}

	if agentID != nil {
		if _, err = tx.Exec(ctx, `
			UPDATE crm_agents SET current_lead_count = GREATEST(current_lead_count - 1, 0), updated_at = now()
			WHERE id = $1
		`, *agentID); err != nil {
			return apperr.Internal(fmt.Sprintf("release agent capacity failed: %v", err)).WithOp(opArchive)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) UpdateStatus(ctx context.Context, leadID uuid.UUID, status string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE crm_leads SET lead_status = $2, updated_at = now()
		WHERE id = $1 AND archived = FALSE
		RETURNING`+leadColumns,
		leadID, status,
	)
	lead, err := scanLead(row)
	if errors.Is(err, ErrNotFound) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, apperr.Internal(fmt.Sprintf("update lead status failed: %v", err)).WithOp(opStatus)
	}
	return lead, nil
}
