package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"prime_crm_backend/platform/config"
)

// BrevoSender delivers email through Brevo's transactional HTTP API.
type BrevoSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	client    *http.Client
}

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
}

func NewBrevoSender(cfg config.EmailConfig) *BrevoSender {
	return &BrevoSender{
		apiKey:    cfg.GetBrevoAPIKey(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *BrevoSender) SendNewLeadAvailableEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, priority string, windowMinutes int) error {
	subject := fmt.Sprintf(subjectNewLeadFmt, priority, leadName)
	content, err := renderEmailTemplate("new_lead.html", newLeadEmailData{
		baseEmailData: baseEmailData{
			Title:    "New lead available",
			Heading:  "New lead available",
			CTALabel: "Claim lead",
			CTAURL:   leadURL,
		},
		AgentName:     agentName,
		LeadName:      leadName,
		Priority:      priority,
		WindowMinutes: windowMinutes,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendRuleAssignedEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, ruleName string) error {
	subject := fmt.Sprintf(subjectRuleAssignedFmt, leadName)
	content, err := renderEmailTemplate("rule_assigned.html", ruleAssignedEmailData{
		baseEmailData: baseEmailData{
			Title:    "Lead assigned",
			Heading:  "A lead was assigned to you",
			CTALabel: "Open lead",
			CTAURL:   leadURL,
		},
		AgentName: agentName,
		LeadName:  leadName,
		RuleName:  ruleName,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendEscalationRoundEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, round, windowMinutes int) error {
	subject := fmt.Sprintf(subjectEscalationFmt, round, leadName)
	content, err := renderEmailTemplate("escalation_round.html", escalationRoundEmailData{
		baseEmailData: baseEmailData{
			Title:    "Lead escalated",
			Heading:  "An unclaimed lead reached your round",
			CTALabel: "Claim lead",
			CTAURL:   leadURL,
		},
		AgentName:     agentName,
		LeadName:      leadName,
		Round:         round,
		WindowMinutes: windowMinutes,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendAdminFallbackEmail(ctx context.Context, toEmail, adminName, leadName, leadURL string, roundsExhausted int) error {
	subject := fmt.Sprintf(subjectAdminFallbackFmt, leadName)
	content, err := renderEmailTemplate("admin_fallback.html", adminFallbackEmailData{
		baseEmailData: baseEmailData{
			Title:    "Unclaimed lead",
			Heading:  "All escalation rounds exhausted",
			CTALabel: "Review lead",
			CTAURL:   leadURL,
		},
		AdminName:       adminName,
		LeadName:        leadName,
		RoundsExhausted: roundsExhausted,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendClaimReminderEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, alarmLevel, minutesLeft int) error {
	subject := fmt.Sprintf(subjectClaimReminderFmt, alarmLevel, leadName)
	content, err := renderEmailTemplate("claim_reminder.html", claimReminderEmailData{
		baseEmailData: baseEmailData{
			Title:    "Claim window closing",
			Heading:  "This lead is still unclaimed",
			CTALabel: "Claim lead",
			CTAURL:   leadURL,
		},
		AgentName:   agentName,
		LeadName:    leadName,
		AlarmLevel:  alarmLevel,
		MinutesLeft: minutesLeft,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendClaimSLABreachEmail(ctx context.Context, toEmail, adminName, leadName, leadURL string, minutesUnclaimed int) error {
	subject := fmt.Sprintf(subjectClaimSLABreachFmt, minutesUnclaimed, leadName)
	content, err := renderEmailTemplate("claim_sla_breach.html", claimSLABreachEmailData{
		baseEmailData: baseEmailData{
			Title:    "Claim SLA breached",
			Heading:  "A lead has gone unclaimed too long",
			CTALabel: "Review lead",
			CTAURL:   leadURL,
		},
		AdminName:        adminName,
		LeadName:         leadName,
		MinutesUnclaimed: minutesUnclaimed,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendSLABreachEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, minutesSinceClaim int) error {
	subject := fmt.Sprintf(subjectSLABreachFmt, leadName)
	content, err := renderEmailTemplate("sla_breach.html", slaBreachEmailData{
		baseEmailData: baseEmailData{
			Title:    "First action overdue",
			Heading:  "No first action recorded yet",
			CTALabel: "Open lead",
			CTAURL:   leadURL,
		},
		AgentName:         agentName,
		LeadName:          leadName,
		MinutesSinceClaim: minutesSinceClaim,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendLeadReassignedEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, reason string) error {
	subject := fmt.Sprintf(subjectLeadReassignedFmt, leadName)
	content, err := renderEmailTemplate("lead_reassigned.html", leadReassignedEmailData{
		baseEmailData: baseEmailData{
			Title:    "Lead reassigned",
			Heading:  "A lead was transferred to you",
			CTALabel: "Open lead",
			CTAURL:   leadURL,
		},
		AgentName: agentName,
		LeadName:  leadName,
		Reason:    reason,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return b.send(ctx, toEmail, subject, htmlContent)
}

func (b *BrevoSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	payload := brevoEmailRequest{
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	payload.To = []struct {
		Email string `json:"email"`
	}{{Email: toEmail}}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	return nil
}
