// Package service implements lead routing: rule-based assignment, broadcast
// rounds with claim windows, escalation, SLA checks and the overnight hold.
package service

import (
	"context"
	"fmt"

	"prime_crm_backend/internal/events"
	leadsrepo "prime_crm_backend/internal/leads/repository"
	"prime_crm_backend/internal/routing/repository"
	"prime_crm_backend/platform/apperr"
	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	opRouteNewLead = "routing.service.route_new_lead"
	opUpsertConfig = "routing.service.upsert_round_config"
	opCreateRule   = "routing.service.create_rule"
)

// LeadCountReconciler recomputes agent capacity counters from actual
// assignments.
type LeadCountReconciler interface {
	ReconcileLeadCounts(ctx context.Context) (int, error)
}

type Service struct {
	repo       repository.RoutingRepository
	bus        events.Bus
	cfg        config.RoutingConfig
	log        *logger.Logger
	reconciler LeadCountReconciler
}

func New(repo repository.RoutingRepository, bus events.Bus, cfg config.RoutingConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, cfg: cfg, log: log}
}

// SetReconciler wires the agents module's capacity reconciler.
func (s *Service) SetReconciler(rec LeadCountReconciler) {
	s.reconciler = rec
}

// RouteNewLead decides where a freshly registered lead goes. Tier 1: the
// first matching routing rule assigns it directly. Tier 2: round 1 broadcast
// with a claim window.
func (s *Service) RouteNewLead(ctx context.Context, lead leadsrepo.Lead) error {
	rules, err := s.repo.ListActiveRules(ctx)
	if err != nil {
		return err
	}

	if rule := FindMatchingRule(rules, lead); rule != nil {
		if statsErr := s.repo.RecordRuleMatch(ctx, rule.ID); statsErr != nil {
			s.log.Error("record rule match failed", "ruleId", rule.ID, "error", statsErr)
		}

		result, assignErr := s.repo.AssignByRule(ctx, lead.ID, rule.AssignToAgentID, rule.ID, rule.RuleName)
		switch {
		case assignErr != nil:
			if !rule.FallbackToBroadcast {
				return assignErr
			}
			s.log.Error("rule assignment failed, falling back to broadcast",
				"leadId", lead.ID, "ruleId", rule.ID, "error", assignErr)
		case result == repository.RuleAssigned:
			s.log.Info("lead assigned by rule",
				"leadId", lead.ID, "ruleId", rule.ID, "ruleName", rule.RuleName, "agentId", rule.AssignToAgentID)
			s.bus.Publish(ctx, events.LeadAssignedByRule{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    lead.ID,
				AgentID:   rule.AssignToAgentID,
				RuleName:  rule.RuleName,
			})
			return nil
		case result == repository.RuleLeadGone:
			// Claimed in the meantime; nothing left to route.
			return nil
		case result == repository.RuleAgentUnavailable:
			s.log.Warn("rule target agent unavailable, falling back to broadcast",
				"leadId", lead.ID, "ruleId", rule.ID, "agentId", rule.AssignToAgentID,
				"fallbackConfigured", rule.FallbackToBroadcast)
		}
	}

	outcome, err := s.repo.StartRoundOne(ctx, lead.ID, s.defaultWindowMinutes())
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "start round one failed", err).WithOp(opRouteNewLead)
	}

	if len(outcome.AgentIDs) == 0 {
		s.log.Warn("no eligible agents for round 1 broadcast, window opened anyway",
			"leadId", lead.ID, "language", outcome.Language)
	}

	s.bus.Publish(ctx, events.LeadEscalated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    outcome.LeadID,
		NewRound:  outcome.Round,
		AgentIDs:  outcome.AgentIDs,
		WindowMin: outcome.WindowMinutes,
		Priority:  outcome.Priority,
	})
	return nil
}

func (s *Service) defaultWindowMinutes() int {
	minutes := int(s.cfg.GetDefaultClaimWindow().Minutes())
	if minutes <= 0 {
		minutes = 15
	}
	return minutes
}

// Round robin config management

func (s *Service) ListRoundConfigs(ctx context.Context, language string) ([]repository.RoundConfig, error) {
	return s.repo.ListRoundConfigs(ctx, language)
}

func (s *Service) UpsertRoundConfig(ctx context.Context, p repository.UpsertRoundConfigParams) (repository.RoundConfig, error) {
	if p.Language == "" {
		return repository.RoundConfig{}, apperr.Validation("language is required").WithOp(opUpsertConfig)
	}
	if p.RoundNumber < 1 {
		return repository.RoundConfig{}, apperr.Validation("roundNumber must be at least 1").WithOp(opUpsertConfig)
	}
	if p.ClaimWindowMinutes <= 0 {
		p.ClaimWindowMinutes = s.defaultWindowMinutes()
	}
	if p.IsAdminFallback && p.FallbackAdminID == nil {
		return repository.RoundConfig{}, apperr.Validation("fallbackAdminId is required for an admin fallback round").WithOp(opUpsertConfig)
	}
	return s.repo.UpsertRoundConfig(ctx, p)
}

// Routing rule management

func (s *Service) ListRules(ctx context.Context) ([]repository.Rule, error) {
	return s.repo.ListRules(ctx)
}

func (s *Service) CreateRule(ctx context.Context, p repository.CreateRuleParams) (repository.Rule, error) {
	if p.RuleName == "" {
		return repository.Rule{}, apperr.Validation("ruleName is required").WithOp(opCreateRule)
	}
	if p.AssignToAgentID == uuid.Nil {
		return repository.Rule{}, apperr.Validation("assignToAgentId is required").WithOp(opCreateRule)
	}
	return s.repo.CreateRule(ctx, p)
}

func (s *Service) UpdateRule(ctx context.Context, id uuid.UUID, p repository.UpdateRuleParams) (repository.Rule, error) {
	return s.repo.UpdateRule(ctx, id, p)
}

func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteRule(ctx, id)
}

// ReconcileCapacity recomputes every agent's active lead counter. Returns
// the number of corrected agents.
func (s *Service) ReconcileCapacity(ctx context.Context) (int, error) {
	if s.reconciler == nil {
		return 0, fmt.Errorf("capacity reconciler not wired")
	}
	corrected, err := s.reconciler.ReconcileLeadCounts(ctx)
	if err != nil {
		return 0, err
	}
	if corrected > 0 {
		s.log.Warn("agent lead counters drifted and were corrected", "agents", corrected)
	}
	return corrected, nil
}
