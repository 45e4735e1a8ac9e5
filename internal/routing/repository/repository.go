// Package repository provides PostgreSQL persistence for the routing layer:
// round robin configuration, routing rules, and the atomic lead state
// transitions used by the escalation jobs.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prime_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a config row or rule does not exist.
var ErrNotFound = errors.New("routing config not found")

const (
	opListRoundConfigs  = "routing.repository.list_round_configs"
	opUpsertRoundConfig = "routing.repository.upsert_round_config"
	opListRules         = "routing.repository.list_rules"
	opCreateRule        = "routing.repository.create_rule"
	opUpdateRule        = "routing.repository.update_rule"
	opDeleteRule        = "routing.repository.delete_rule"
	opRecordRuleMatch   = "routing.repository.record_rule_match"
)

// RoundConfig is one broadcast round for one language.
type RoundConfig struct {
	ID                 uuid.UUID   `json:"id"`
	Language           string      `json:"language"`
	RoundNumber        int         `json:"roundNumber"`
	AgentIDs           []uuid.UUID `json:"agentIds"`
	ClaimWindowMinutes int         `json:"claimWindowMinutes"`
	IsAdminFallback    bool        `json:"isAdminFallback"`
	FallbackAdminID    *uuid.UUID  `json:"fallbackAdminId,omitempty"`
	IsActive           bool        `json:"isActive"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// Rule is a tier-1 direct assignment rule. A nil match list means "match
// anything" for that dimension.
type Rule struct {
	ID                  uuid.UUID  `json:"id"`
	RuleName            string     `json:"ruleName"`
	Priority            int        `json:"priority"`
	IsActive            bool       `json:"isActive"`
	MatchLanguage       []string   `json:"matchLanguage,omitempty"`
	MatchPageType       []string   `json:"matchPageType,omitempty"`
	MatchPageSlug       []string   `json:"matchPageSlug,omitempty"`
	MatchLeadSource     []string   `json:"matchLeadSource,omitempty"`
	MatchLeadSegment    []string   `json:"matchLeadSegment,omitempty"`
	MatchBudgetRange    []string   `json:"matchBudgetRange,omitempty"`
	MatchPropertyType   []string   `json:"matchPropertyType,omitempty"`
	MatchTimeframe      []string   `json:"matchTimeframe,omitempty"`
	AssignToAgentID     uuid.UUID  `json:"assignToAgentId"`
	FallbackToBroadcast bool       `json:"fallbackToBroadcast"`
	TotalMatches        int        `json:"totalMatches"`
	LastMatchedAt       *time.Time `json:"lastMatchedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roundConfigColumns = `
	id, language, round_number, agent_ids, claim_window_minutes,
	is_admin_fallback, fallback_admin_id, is_active, created_at, updated_at`

func scanRoundConfig(row pgx.Row) (RoundConfig, error) {
	var rc RoundConfig
	err := row.Scan(
		&rc.ID, &rc.Language, &rc.RoundNumber, &rc.AgentIDs, &rc.ClaimWindowMinutes,
		&rc.IsAdminFallback, &rc.FallbackAdminID, &rc.IsActive, &rc.CreatedAt, &rc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoundConfig{}, ErrNotFound
	}
	return rc, err
}

// ListRoundConfigs returns all configs, optionally for one language.
func (r *Repository) ListRoundConfigs(ctx context.Context, language string) ([]RoundConfig, error) {
	query := `SELECT` + roundConfigColumns + ` FROM crm_round_robin_config`
	args := []any{}
	if language != "" {
		query += ` WHERE language = $1`
		args = append(args, language)
	}
	query += ` ORDER BY language, round_number`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list round configs failed: %v", err)).WithOp(opListRoundConfigs)
	}
	defer rows.Close()

	configs := []RoundConfig{}
	for rows.Next() {
		rc, scanErr := scanRoundConfig(rows)
		if scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan round config failed: %v", scanErr)).WithOp(opListRoundConfigs)
		}
		configs = append(configs, rc)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate round configs failed: %v", rowsErr)).WithOp(opListRoundConfigs)
	}
	return configs, nil
}

// UpsertRoundConfigParams replaces the config for (language, round).
type UpsertRoundConfigParams struct {
	Language           string
	RoundNumber        int
	AgentIDs           []uuid.UUID
	ClaimWindowMinutes int
	IsAdminFallback    bool
	FallbackAdminID    *uuid.UUID
	IsActive           bool
}

func (r *Repository) UpsertRoundConfig(ctx context.Context, p UpsertRoundConfigParams) (RoundConfig, error) {
	if p.AgentIDs == nil {
		p.AgentIDs = []uuid.UUID{}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO crm_round_robin_config
			(language, round_number, agent_ids, claim_window_minutes, is_admin_fallback, fallback_admin_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (language, round_number) DO UPDATE SET
			agent_ids = EXCLUDED.agent_ids,
			claim_window_minutes = EXCLUDED.claim_window_minutes,
			is_admin_fallback = EXCLUDED.is_admin_fallback,
			fallback_admin_id = EXCLUDED.fallback_admin_id,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING`+roundConfigColumns,
		p.Language, p.RoundNumber, p.AgentIDs, p.ClaimWindowMinutes, p.IsAdminFallback, p.FallbackAdminID, p.IsActive,
	)
	rc, err := scanRoundConfig(row)
	if err != nil {
		return RoundConfig{}, apperr.Internal(fmt.Sprintf("upsert round config failed: %v", err)).WithOp(opUpsertRoundConfig)
	}
	return rc, nil
}

const ruleColumns = `
	id, rule_name, priority, is_active,
	match_language, match_page_type, match_page_slug, match_lead_source,
	match_lead_segment, match_budget_range, match_property_type, match_timeframe,
	assign_to_agent_id, fallback_to_broadcast, total_matches, last_matched_at,
	created_at, updated_at`

func scanRule(row pgx.Row) (Rule, error) {
	var rule Rule
	err := row.Scan(
		&rule.ID, &rule.RuleName, &rule.Priority, &rule.IsActive,
		&rule.MatchLanguage, &rule.MatchPageType, &rule.MatchPageSlug, &rule.MatchLeadSource,
		&rule.MatchLeadSegment, &rule.MatchBudgetRange, &rule.MatchPropertyType, &rule.MatchTimeframe,
		&rule.AssignToAgentID, &rule.FallbackToBroadcast, &rule.TotalMatches, &rule.LastMatchedAt,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	return rule, err
}

// ListActiveRules returns active rules in evaluation order: highest priority
// first, oldest first on ties.
func (r *Repository) ListActiveRules(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+ruleColumns+`
		FROM crm_routing_rules
		WHERE is_active
		ORDER BY priority DESC, created_at ASC
	`)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list active rules failed: %v", err)).WithOp(opListRules)
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *Repository) ListRules(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+ruleColumns+`
		FROM crm_routing_rules
		ORDER BY priority DESC, created_at ASC
	`)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list rules failed: %v", err)).WithOp(opListRules)
	}
	defer rows.Close()
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]Rule, error) {
	rules := []Rule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan rule failed: %v", err)).WithOp(opListRules)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate rules failed: %v", err)).WithOp(opListRules)
	}
	return rules, nil
}

// CreateRuleParams carries a new routing rule.
type CreateRuleParams struct {
	RuleName            string
	Priority            int
	IsActive            bool
	MatchLanguage       []string
	MatchPageType       []string
	MatchPageSlug       []string
	MatchLeadSource     []string
	MatchLeadSegment    []string
	MatchBudgetRange    []string
	MatchPropertyType   []string
	MatchTimeframe      []string
	AssignToAgentID     uuid.UUID
	FallbackToBroadcast bool
}

func (r *Repository) CreateRule(ctx context.Context, p CreateRuleParams) (Rule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO crm_routing_rules (
			rule_name, priority, is_active,
			match_language, match_page_type, match_page_slug, match_lead_source,
			match_lead_segment, match_budget_range, match_property_type, match_timeframe,
			assign_to_agent_id, fallback_to_broadcast
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING`+ruleColumns,
		p.RuleName, p.Priority, p.IsActive,
		p.MatchLanguage, p.MatchPageType, p.MatchPageSlug, p.MatchLeadSource,
		p.MatchLeadSegment, p.MatchBudgetRange, p.MatchPropertyType, p.MatchTimeframe,
		p.AssignToAgentID, p.FallbackToBroadcast,
	)
	rule, err := scanRule(row)
	if err != nil {
		return Rule{}, apperr.Internal(fmt.Sprintf("create rule failed: %v", err)).WithOp(opCreateRule)
	}
	return rule, nil
}

// UpdateRuleParams applies a partial rule update. Nil fields are untouched.
type UpdateRuleParams struct {
	RuleName            *string
	Priority            *int
	IsActive            *bool
	MatchLanguage       []string
	MatchPageType       []string
	MatchPageSlug       []string
	MatchLeadSource     []string
	MatchLeadSegment    []string
	MatchBudgetRange    []string
	MatchPropertyType   []string
	MatchTimeframe      []string
	AssignToAgentID     *uuid.UUID
	FallbackToBroadcast *bool
}

func (r *Repository) UpdateRule(ctx context.Context, id uuid.UUID, p UpdateRuleParams) (Rule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE crm_routing_rules SET
			rule_name = COALESCE($2, rule_name),
			priority = COALESCE($3, priority),
			is_active = COALESCE($4, is_active),
			match_language = COALESCE($5, match_language),
			match_page_type = COALESCE($6, match_page_type),
			match_page_slug = COALESCE($7, match_page_slug),
			match_lead_source = COALESCE($8, match_lead_source),
			match_lead_segment = COALESCE($9, match_lead_segment),
			match_budget_range = COALESCE($10, match_budget_range),
			match_property_type = COALESCE($11, match_property_type),
			match_timeframe = COALESCE($12, match_timeframe),
			assign_to_agent_id = COALESCE($13, assign_to_agent_id),
			fallback_to_broadcast = COALESCE($14, fallback_to_broadcast),
			updated_at = now()
		WHERE id = $1
		RETURNING`+ruleColumns,
		id, p.RuleName, p.Priority, p.IsActive,
		p.MatchLanguage, p.MatchPageType, p.MatchPageSlug, p.MatchLeadSource,
		p.MatchLeadSegment, p.MatchBudgetRange, p.MatchPropertyType, p.MatchTimeframe,
		p.AssignToAgentID, p.FallbackToBroadcast,
	)
	rule, err := scanRule(row)
	if errors.Is(err, ErrNotFound) {
		return Rule{}, ErrNotFound
	}
	if err != nil {
		return Rule{}, apperr.Internal(fmt.Sprintf("update rule failed: %v", err)).WithOp(opUpdateRule)
	}
	return rule, nil
}

func (r *Repository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM crm_routing_rules WHERE id = $1`, id)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("delete rule failed: %v", err)).WithOp(opDeleteRule)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRuleMatch bumps the rule's match statistics.
func (r *Repository) RecordRuleMatch(ctx context.Context, ruleID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE crm_routing_rules
		SET total_matches = total_matches + 1, last_matched_at = now(), updated_at = now()
		WHERE id = $1
	`, ruleID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("record rule match failed: %v", err)).WithOp(opRecordRuleMatch)
	}
	return nil
}
