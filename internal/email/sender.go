// Package email delivers transactional CRM emails via Brevo or direct SMTP.
package email

import (
	"context"

	"prime_crm_backend/platform/config"
)

// Sender sends the outbound emails the lead workflow produces.
type Sender interface {
	SendNewLeadAvailableEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, priority string, windowMinutes int) error
	SendRuleAssignedEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, ruleName string) error
	SendEscalationRoundEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, round, windowMinutes int) error
	SendAdminFallbackEmail(ctx context.Context, toEmail, adminName, leadName, leadURL string, roundsExhausted int) error
	SendClaimReminderEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, alarmLevel, minutesLeft int) error
	SendClaimSLABreachEmail(ctx context.Context, toEmail, adminName, leadName, leadURL string, minutesUnclaimed int) error
	SendSLABreachEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, minutesSinceClaim int) error
	SendLeadReassignedEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, reason string) error
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender is used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendNewLeadAvailableEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, priority string, windowMinutes int) error {
	return nil
}

func (NoopSender) SendRuleAssignedEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, ruleName string) error {
	return nil
}

func (NoopSender) SendEscalationRoundEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, round, windowMinutes int) error {
	return nil
}

func (NoopSender) SendAdminFallbackEmail(ctx context.Context, toEmail, adminName, leadName, leadURL string, roundsExhausted int) error {
	return nil
}

func (NoopSender) SendClaimReminderEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, alarmLevel, minutesLeft int) error {
	return nil
}

func (NoopSender) SendClaimSLABreachEmail(ctx context.Context, toEmail, adminName, leadName, leadURL string, minutesUnclaimed int) error {
	return nil
}

func (NoopSender) SendSLABreachEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, minutesSinceClaim int) error {
	return nil
}

func (NoopSender) SendLeadReassignedEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, reason string) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}

// NewSender picks the delivery backend from configuration. SMTP wins when a
// host is configured; otherwise Brevo's HTTP API is used; disabled email
// yields a NoopSender.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		), nil
	}

	return NewBrevoSender(cfg), nil
}
