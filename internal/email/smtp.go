package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers the same HTML emails as BrevoSender over a direct SMTP
// connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendNewLeadAvailableEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, priority string, windowMinutes int) error {
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
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendRuleAssignedEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, ruleName string) error {
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
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendEscalationRoundEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, round, windowMinutes int) error {
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
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendAdminFallbackEmail(ctx context.Context, toEmail, adminName, leadName, leadURL string, roundsExhausted int) error {
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
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendClaimReminderEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, alarmLevel, minutesLeft int) error {
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
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendClaimSLABreachEmail(ctx context.Context, toEmail, adminName, leadName, leadURL string, minutesUnclaimed int) error {
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
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendSLABreachEmail(ctx context.Context, toEmail, agentName, leadName, leadURL string, minutesSinceClaim int) error {
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
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendLeadReassignedEmail(ctx context.Context, toEmail, agentName, leadName, leadURL, reason string) error {
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
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return s.send(ctx, toEmail, subject, htmlContent)
}
