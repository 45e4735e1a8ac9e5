package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"prime_crm_backend/internal/events"
	"prime_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type testNotificationConfig struct{}

func (testNotificationConfig) GetAppBaseURL() string { return "https://crm.example.com" }

type testSender struct {
	mu                  sync.Mutex
	newLeadCalls        int
	ruleAssignedCalls   int
	escalationCalls     int
	adminFallbackCalls  int
	claimReminderCalls  int
	claimSLABreachCalls int
	slaBreachCalls      int
	reassignedCalls     int
	lastTo              string
	failAll             bool
}

func (s *testSender) record(counter *int, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("smtp down")
	}
	*counter++
	s.lastTo = to
	return nil
}

func (s *testSender) SendNewLeadAvailableEmail(_ context.Context, to, _, _, _, _ string, _ int) error {
	return s.record(&s.newLeadCalls, to)
}

func (s *testSender) SendRuleAssignedEmail(_ context.Context, to, _, _, _, _ string) error {
	return s.record(&s.ruleAssignedCalls, to)
}

func (s *testSender) SendEscalationRoundEmail(_ context.Context, to, _, _, _ string, _, _ int) error {
	return s.record(&s.escalationCalls, to)
}

func (s *testSender) SendAdminFallbackEmail(_ context.Context, to, _, _, _ string, _ int) error {
	return s.record(&s.adminFallbackCalls, to)
}

func (s *testSender) SendClaimReminderEmail(_ context.Context, to, _, _, _ string, _, _ int) error {
	return s.record(&s.claimReminderCalls, to)
}

func (s *testSender) SendClaimSLABreachEmail(_ context.Context, to, _, _, _ string, _ int) error {
	return s.record(&s.claimSLABreachCalls, to)
}

func (s *testSender) SendSLABreachEmail(_ context.Context, to, _, _, _ string, _ int) error {
	return s.record(&s.slaBreachCalls, to)
}

func (s *testSender) SendLeadReassignedEmail(_ context.Context, to, _, _, _, _ string) error {
	return s.record(&s.reassignedCalls, to)
}

func (s *testSender) SendCustomEmail(context.Context, string, string, string) error { return nil }

type testDirectory struct {
	agents []AgentContact
	admins []AgentContact
}

func (d testDirectory) Contacts(_ context.Context, ids []uuid.UUID) ([]AgentContact, error) {
	var out []AgentContact
	for _, id := range ids {
		for _, a := range d.agents {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (d testDirectory) AdminContacts(context.Context) ([]AgentContact, error) {
	return d.admins, nil
}

type testLeadReader struct {
	summary LeadSummary
}

func (r testLeadReader) Summary(context.Context, uuid.UUID) (LeadSummary, error) {
	return r.summary, nil
}

func newTestModule(sender *testSender, dir testDirectory, lead LeadSummary) *Module {
	m := New(nil, sender, testNotificationConfig{}, logger.New("development"))
	m.SetDirectory(dir)
	m.SetLeadReader(testLeadReader{summary: lead})
	return m
}

func TestOnLeadEscalated_RoundOneEmailsEveryRecipient(t *testing.T) {
	agentA := AgentContact{ID: uuid.New(), Name: "Ana", Email: "ana@example.com"}
	agentB := AgentContact{ID: uuid.New(), Name: "Bram", Email: "bram@example.com"}
	sender := &testSender{}
	leadID := uuid.New()

	m := newTestModule(sender, testDirectory{agents: []AgentContact{agentA, agentB}}, LeadSummary{ID: leadID, FullName: "John Buyer", Priority: "urgent"})

	err := m.onLeadEscalated(context.Background(), events.LeadEscalated{
		LeadID:    leadID,
		NewRound:  1,
		AgentIDs:  []uuid.UUID{agentA.ID, agentB.ID},
		WindowMin: 15,
		Priority:  "urgent",
	})
	if err != nil {
		t.Fatalf("onLeadEscalated returned error: %v", err)
	}

	if sender.newLeadCalls != 2 {
		t.Fatalf("expected 2 new-lead emails for round 1, got %d", sender.newLeadCalls)
	}
	if sender.escalationCalls != 0 {
		t.Fatalf("round 1 must not use the escalation template, got %d calls", sender.escalationCalls)
	}
}

func TestOnLeadEscalated_LaterRoundsUseEscalationTemplate(t *testing.T) {
	agent := AgentContact{ID: uuid.New(), Name: "Ana", Email: "ana@example.com"}
	sender := &testSender{}
	leadID := uuid.New()

	m := newTestModule(sender, testDirectory{agents: []AgentContact{agent}}, LeadSummary{ID: leadID, FullName: "John Buyer"})

	err := m.onLeadEscalated(context.Background(), events.LeadEscalated{
		LeadID:    leadID,
		NewRound:  2,
		AgentIDs:  []uuid.UUID{agent.ID},
		WindowMin: 30,
	})
	if err != nil {
		t.Fatalf("onLeadEscalated returned error: %v", err)
	}

	if sender.escalationCalls != 1 {
		t.Fatalf("expected 1 escalation email, got %d", sender.escalationCalls)
	}
	if sender.newLeadCalls != 0 {
		t.Fatalf("round 2 must not use the new-lead template, got %d calls", sender.newLeadCalls)
	}
}

func TestOnLeadAssignedToAdmin_EmailsFallbackAdmin(t *testing.T) {
	admin := AgentContact{ID: uuid.New(), Name: "Admin", Email: "admin@example.com"}
	sender := &testSender{}
	leadID := uuid.New()

	m := newTestModule(sender, testDirectory{agents: []AgentContact{admin}}, LeadSummary{ID: leadID, FullName: "John Buyer"})

	err := m.onLeadAssignedToAdmin(context.Background(), events.LeadAssignedToAdmin{
		LeadID:       leadID,
		AdminAgentID: admin.ID,
		RoundsUsed:   4,
	})
	if err != nil {
		t.Fatalf("onLeadAssignedToAdmin returned error: %v", err)
	}

	if sender.adminFallbackCalls != 1 {
		t.Fatalf("expected 1 admin fallback email, got %d", sender.adminFallbackCalls)
	}
	if sender.lastTo != admin.Email {
		t.Fatalf("expected email to %s, got %s", admin.Email, sender.lastTo)
	}
}

func TestOnClaimWindowBreached_NotifiesAllAdmins(t *testing.T) {
	adminA := AgentContact{ID: uuid.New(), Name: "Admin A", Email: "a@example.com"}
	adminB := AgentContact{ID: uuid.New(), Name: "Admin B", Email: "b@example.com"}
	sender := &testSender{}
	leadID := uuid.New()

	m := newTestModule(sender, testDirectory{admins: []AgentContact{adminA, adminB}}, LeadSummary{ID: leadID, FullName: "John Buyer"})

	err := m.onClaimWindowBreached(context.Background(), events.ClaimWindowBreached{
		LeadID:         leadID,
		ElapsedMinutes: 90,
	})
	if err != nil {
		t.Fatalf("onClaimWindowBreached returned error: %v", err)
	}

	if sender.claimSLABreachCalls != 2 {
		t.Fatalf("expected both admins to be emailed, got %d calls", sender.claimSLABreachCalls)
	}
}

func TestOnLeadClaimed_IgnoresMismatchedEvent(t *testing.T) {
	sender := &testSender{}
	m := newTestModule(sender, testDirectory{}, LeadSummary{})

	if err := m.onLeadClaimed(context.Background(), events.LeadRegistered{}); err != nil {
		t.Fatalf("mismatched event type should be ignored, got error: %v", err)
	}
}

func TestDispatcherSend_FailureWithoutOutboxOnlyLogs(t *testing.T) {
	sender := &testSender{failAll: true}
	d := NewDispatcher(sender, nil, logger.New("development"))

	d.Send(context.Background(), TypeNewLeadAvailable, emailPayload{To: "x@example.com"})

	if sender.newLeadCalls != 0 {
		t.Fatalf("failed delivery should not count as sent, got %d", sender.newLeadCalls)
	}
}
