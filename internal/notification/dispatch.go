package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"prime_crm_backend/internal/email"
	"prime_crm_backend/internal/notification/outbox"
	"prime_crm_backend/platform/logger"
)

// Email kinds double as notification types on the in-app side and as the
// outbox discriminator for retries.
const (
	TypeNewLeadAvailable = "new_lead_available"
	TypeRuleAssigned     = "rule_assigned"
	TypeEscalationRound  = "escalation_round"
	TypeAdminFallback    = "admin_fallback"
	TypeClaimReminder    = "claim_reminder"
	TypeClaimSLABreach   = "claim_sla_breach"
	TypeSLABreach        = "sla_breach"
	TypeLeadReassigned   = "lead_reassigned"
)

// emailPayload carries everything any of the typed emails needs. Unused
// fields stay at their zero value; the kind decides which are read.
type emailPayload struct {
	To            string `json:"to"`
	Name          string `json:"name"`
	LeadName      string `json:"leadName"`
	LeadURL       string `json:"leadUrl"`
	Priority      string `json:"priority,omitempty"`
	RuleName      string `json:"ruleName,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Round         int    `json:"round,omitempty"`
	WindowMinutes int    `json:"windowMinutes,omitempty"`
	AlarmLevel    int    `json:"alarmLevel,omitempty"`
	Minutes       int    `json:"minutes,omitempty"`
}

const retryDelay = time.Minute

// Dispatcher sends typed emails and falls back to the outbox when delivery
// fails, so a flaky SMTP relay never drops a lead alert on the floor.
type Dispatcher struct {
	sender email.Sender
	outbox *outbox.Repository
	log    *logger.Logger
}

func NewDispatcher(sender email.Sender, ob *outbox.Repository, log *logger.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, outbox: ob, log: log}
}

// Send attempts immediate delivery and enqueues a retry on failure.
func (d *Dispatcher) Send(ctx context.Context, kind string, p emailPayload) {
	if err := d.deliver(ctx, kind, p); err != nil {
		d.log.Error("email delivery failed, queueing for retry", "kind", kind, "to", p.To, "error", err)
		if d.outbox != nil {
			if _, obErr := d.outbox.Insert(ctx, kind, p, time.Now().Add(retryDelay)); obErr != nil {
				d.log.Error("failed to queue email for retry", "kind", kind, "error", obErr)
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, kind string, p emailPayload) error {
	switch kind {
	case TypeNewLeadAvailable:
		return d.sender.SendNewLeadAvailableEmail(ctx, p.To, p.Name, p.LeadName, p.LeadURL, p.Priority, p.WindowMinutes)
	case TypeRuleAssigned:
		return d.sender.SendRuleAssignedEmail(ctx, p.To, p.Name, p.LeadName, p.LeadURL, p.RuleName)
	case TypeEscalationRound:
		return d.sender.SendEscalationRoundEmail(ctx, p.To, p.Name, p.LeadName, p.LeadURL, p.Round, p.WindowMinutes)
	case TypeAdminFallback:
		return d.sender.SendAdminFallbackEmail(ctx, p.To, p.Name, p.LeadName, p.LeadURL, p.Round)
	case TypeClaimReminder:
		return d.sender.SendClaimReminderEmail(ctx, p.To, p.Name, p.LeadName, p.LeadURL, p.AlarmLevel, p.Minutes)
	case TypeClaimSLABreach:
		return d.sender.SendClaimSLABreachEmail(ctx, p.To, p.Name, p.LeadName, p.LeadURL, p.Minutes)
	case TypeSLABreach:
		return d.sender.SendSLABreachEmail(ctx, p.To, p.Name, p.LeadName, p.LeadURL, p.Minutes)
	case TypeLeadReassigned:
		return d.sender.SendLeadReassignedEmail(ctx, p.To, p.Name, p.LeadName, p.LeadURL, p.Reason)
	default:
		return fmt.Errorf("unknown email kind %q", kind)
	}
}

// RetryDue replays queued emails whose run time has passed. Called by the
// scheduler's outbox task.
func (d *Dispatcher) RetryDue(ctx context.Context, limit int) (succeeded, failed int, err error) {
	if d.outbox == nil {
		return 0, 0, nil
	}

	records, err := d.outbox.ClaimDue(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	for _, rec := range records {
		var p emailPayload
		if unmarshalErr := json.Unmarshal(rec.Payload, &p); unmarshalErr != nil {
			d.log.Error("invalid outbox payload, dropping", "id", rec.ID, "error", unmarshalErr)
			_ = d.outbox.MarkFailed(ctx, rec.ID, unmarshalErr)
			failed++
			continue
		}

		if sendErr := d.deliver(ctx, rec.Kind, p); sendErr != nil {
			d.log.Warn("outbox retry failed", "id", rec.ID, "kind", rec.Kind, "attempts", rec.Attempts+1, "error", sendErr)
			_ = d.outbox.MarkFailed(ctx, rec.ID, sendErr)
			failed++
			continue
		}

		_ = d.outbox.MarkSucceeded(ctx, rec.ID)
		succeeded++
	}

	return succeeded, failed, nil
}
