package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type newLeadEmailData struct {
	baseEmailData
	AgentName     string
	LeadName      string
	Priority      string
	WindowMinutes int
}

type ruleAssignedEmailData struct {
	baseEmailData
	AgentName string
	LeadName  string
	RuleName  string
}

type escalationRoundEmailData struct {
	baseEmailData
	AgentName     string
	LeadName      string
	Round         int
	WindowMinutes int
}

type adminFallbackEmailData struct {
	baseEmailData
	AdminName       string
	LeadName        string
	RoundsExhausted int
}

type claimReminderEmailData struct {
	baseEmailData
	AgentName   string
	LeadName    string
	AlarmLevel  int
	MinutesLeft int
}

type claimSLABreachEmailData struct {
	baseEmailData
	AdminName        string
	LeadName         string
	MinutesUnclaimed int
}

type slaBreachEmailData struct {
	baseEmailData
	AgentName         string
	LeadName          string
	MinutesSinceClaim int
}

type leadReassignedEmailData struct {
	baseEmailData
	AgentName string
	LeadName  string
	Reason    string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
