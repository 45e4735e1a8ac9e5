package service

import (
	"context"
	"fmt"
	"time"

	"prime_crm_backend/internal/events"
	"prime_crm_backend/internal/routing/repository"

	"github.com/google/uuid"
)

// MonitorSummary reports one claim window monitor pass.
type MonitorSummary struct {
	Processed       int `json:"processed"`
	Escalated       int `json:"escalated"`
	AssignedToAdmin int `json:"assignedToAdmin"`
	CapacityStalled int `json:"capacityStalled"`
	Skipped         int `json:"skipped"`
	Errors          int `json:"errors"`
}

// CheckUnclaimed scans for leads whose claim window expired and resolves
// each one: next round, or admin fallback when the rounds are spent. Each
// lead is escalated independently so one failure never blocks the batch.
func (s *Service) CheckUnclaimed(ctx context.Context) (MonitorSummary, error) {
	batch := s.cfg.GetExpiredLeadBatchSize()
	if batch <= 0 {
		batch = 50
	}

	ids, err := s.repo.ListExpired(ctx, batch)
	if err != nil {
		return MonitorSummary{}, err
	}

	var summary MonitorSummary
	maxRounds := s.cfg.GetMaxEscalationRounds()
	window := s.defaultWindowMinutes()

	for _, id := range ids {
		summary.Processed++

		outcome, escErr := s.repo.EscalateLead(ctx, id, maxRounds, window)
		if escErr != nil {
			summary.Errors++
			s.log.Error("escalate lead failed", "leadId", id, "error", escErr)
			continue
		}

		switch outcome.Status {
		case repository.StatusSkipped:
			summary.Skipped++
		case repository.StatusEscalated:
			summary.Escalated++
			s.bus.Publish(ctx, events.LeadEscalated{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    outcome.LeadID,
				NewRound:  outcome.NewRound,
				AgentIDs:  outcome.AgentIDs,
				WindowMin: outcome.WindowMinutes,
				Priority:  outcome.Priority,
			})
		case repository.StatusStalled:
			summary.Escalated++
			summary.CapacityStalled++
			s.log.Warn("round escalated with no eligible agents",
				"leadId", outcome.LeadID, "round", outcome.NewRound, "language", outcome.Language)
		case repository.StatusAdminFallback:
			summary.AssignedToAdmin++
			s.bus.Publish(ctx, events.LeadAssignedToAdmin{
				BaseEvent:    events.NewBaseEvent(),
				LeadID:       outcome.LeadID,
				AdminAgentID: outcome.AdminID,
				RoundsUsed:   outcome.RoundsUsed,
			})
		}
	}

	if summary.Processed > 0 {
		s.log.Info("claim window monitor pass complete",
			"processed", summary.Processed,
			"escalated", summary.Escalated,
			"assignedToAdmin", summary.AssignedToAdmin,
			"stalled", summary.CapacityStalled,
			"errors", summary.Errors,
		)
	}
	return summary, nil
}

// CheckClaimSLA flags leads that sat unclaimed past their window and reports
// them to the admins. Returns the number of newly flagged leads.
func (s *Service) CheckClaimSLA(ctx context.Context) (int, error) {
	batch := s.cfg.GetExpiredLeadBatchSize()
	if batch <= 0 {
		batch = 50
	}

	breaches, err := s.repo.MarkClaimSLABreaches(ctx, batch)
	if err != nil {
		return 0, err
	}

	for _, b := range breaches {
		elapsed := int(time.Since(b.CreatedAt).Minutes())
		s.log.Warn("claim window SLA breached", "leadId", b.LeadID, "elapsedMinutes", elapsed)
		s.bus.Publish(ctx, events.ClaimWindowBreached{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         b.LeadID,
			Language:       b.Language,
			ElapsedMinutes: elapsed,
		})
	}
	return len(breaches), nil
}

// CheckFirstActionSLA flags claimed leads whose agent never logged a first
// contact inside the window. Returns the number of newly flagged leads.
func (s *Service) CheckFirstActionSLA(ctx context.Context) (int, error) {
	batch := s.cfg.GetExpiredLeadBatchSize()
	if batch <= 0 {
		batch = 50
	}

	window := s.cfg.GetSLAFirstActionWindow()
	breaches, err := s.repo.MarkFirstActionSLABreaches(ctx, window, batch)
	if err != nil {
		return 0, err
	}

	windowMinutes := int(window.Minutes())
	for _, b := range breaches {
		s.log.Warn("first action SLA breached", "leadId", b.LeadID, "agentId", b.AgentID)
		if actErr := s.repo.AddSystemActivity(ctx, b.LeadID,
			fmt.Sprintf("No first action logged within the %d minute window. Admins notified, lead stays with its agent.", windowMinutes)); actErr != nil {
			s.log.Error("record sla breach activity failed", "leadId", b.LeadID, "error", actErr)
		}
		s.bus.Publish(ctx, events.SLABreached{
			BaseEvent:       events.NewBaseEvent(),
			LeadID:          b.LeadID,
			AssignedAgentID: b.AgentID,
			AssignedAt:      b.AssignedAt,
		})
	}
	return len(breaches), nil
}

// ReleaseNightLeads puts due overnight-held leads onto the round 1 board.
// Returns the number of released leads.
func (s *Service) ReleaseNightLeads(ctx context.Context) (int, error) {
	batch := s.cfg.GetExpiredLeadBatchSize()
	if batch <= 0 {
		batch = 50
	}

	ids, err := s.repo.ListDueNightHeld(ctx, batch)
	if err != nil {
		return 0, err
	}

	released := 0
	window := s.defaultWindowMinutes()
	for _, id := range ids {
		outcome, relErr := s.repo.ReleaseNightHeld(ctx, id, window)
		if relErr != nil {
			s.log.Error("release night lead failed", "leadId", id, "error", relErr)
			continue
		}
		released++

		s.bus.Publish(ctx, events.NightLeadReleased{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    outcome.LeadID,
			Language:  outcome.Language,
		})
		s.bus.Publish(ctx, events.LeadEscalated{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    outcome.LeadID,
			NewRound:  outcome.Round,
			AgentIDs:  outcome.AgentIDs,
			WindowMin: outcome.WindowMinutes,
			Priority:  outcome.Priority,
		})
	}

	if released > 0 {
		s.log.Info("night held leads released", "released", released)
	}
	return released, nil
}

// SendAlarms raises escalating reminders for leads sitting unclaimed inside
// their window. Level n fires n minutes after the claim timer started, up to
// the configured max level. Returns the number of alarms raised.
func (s *Service) SendAlarms(ctx context.Context) (int, error) {
	maxLevel := s.cfg.GetMaxAlarmLevel()
	if maxLevel <= 0 {
		maxLevel = 4
	}

	total := 0
	for level := 1; level <= maxLevel; level++ {
		hits, err := s.repo.RaiseAlarms(ctx, level)
		if err != nil {
			return total, err
		}

		for _, hit := range hits {
			total++

			minutesLeft := 0
			if hit.WindowExpiresAt != nil {
				if until := time.Until(*hit.WindowExpiresAt); until > 0 {
					minutesLeft = int(until.Minutes())
				}
			}

			agentIDs, agentsErr := s.alarmRecipients(ctx, hit.Language)
			if agentsErr != nil {
				s.log.Error("resolve alarm recipients failed", "leadId", hit.LeadID, "error", agentsErr)
				continue
			}
			if len(agentIDs) == 0 {
				s.log.Warn("no recipients for claim alarm", "leadId", hit.LeadID, "level", hit.Level)
				continue
			}

			if actErr := s.repo.AddSystemActivity(ctx, hit.LeadID,
				fmt.Sprintf("Claim alarm level %d sent to %d agent(s)", hit.Level, len(agentIDs))); actErr != nil {
				s.log.Error("record alarm activity failed", "leadId", hit.LeadID, "error", actErr)
			}

			s.bus.Publish(ctx, events.ClaimReminder{
				BaseEvent:   events.NewBaseEvent(),
				LeadID:      hit.LeadID,
				AgentIDs:    agentIDs,
				AlarmLevel:  hit.Level,
				MinutesLeft: minutesLeft,
			})
		}
	}
	return total, nil
}

// alarmRecipients collects the agents configured for any active round of the
// lead's language, deduplicated.
func (s *Service) alarmRecipients(ctx context.Context, language string) ([]uuid.UUID, error) {
	configs, err := s.repo.ListRoundConfigs(ctx, language)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{}
	recipients := []uuid.UUID{}
	for _, cfg := range configs {
		if !cfg.IsActive || cfg.IsAdminFallback {
			continue
		}
		for _, id := range cfg.AgentIDs {
			if !seen[id] {
				seen[id] = true
				recipients = append(recipients, id)
			}
		}
	}
	return recipients, nil
}
