package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"prime_crm_backend/internal/events"
	"prime_crm_backend/internal/routing/repository"
	"prime_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	rules []repository.Rule

	assignResult  repository.RuleAssignment
	assignErr     error
	assignedRules []uuid.UUID
	matchedRules  []uuid.UUID

	broadcast       repository.BroadcastOutcome
	startRoundCalls int

	expired      []uuid.UUID
	escalations  map[uuid.UUID]repository.EscalationOutcome
	escalateErrs map[uuid.UUID]error

	claimBreaches  []repository.ClaimBreach
	actionBreaches []repository.ActionBreach
	activities     []string
}

func (f *fakeRepo) ListRoundConfigs(context.Context, string) ([]repository.RoundConfig, error) {
	return nil, nil
}

func (f *fakeRepo) UpsertRoundConfig(_ context.Context, p repository.UpsertRoundConfigParams) (repository.RoundConfig, error) {
	return repository.RoundConfig{Language: p.Language, RoundNumber: p.RoundNumber}, nil
}

func (f *fakeRepo) ListActiveRules(context.Context) ([]repository.Rule, error) {
	return f.rules, nil
}

func (f *fakeRepo) ListRules(context.Context) ([]repository.Rule, error) {
	return f.rules, nil
}

func (f *fakeRepo) CreateRule(_ context.Context, p repository.CreateRuleParams) (repository.Rule, error) {
	return repository.Rule{RuleName: p.RuleName}, nil
}

func (f *fakeRepo) UpdateRule(_ context.Context, id uuid.UUID, _ repository.UpdateRuleParams) (repository.Rule, error) {
	return repository.Rule{ID: id}, nil
}

func (f *fakeRepo) DeleteRule(context.Context, uuid.UUID) error { return nil }

func (f *fakeRepo) RecordRuleMatch(_ context.Context, ruleID uuid.UUID) error {
	f.matchedRules = append(f.matchedRules, ruleID)
	return nil
}

func (f *fakeRepo) AssignByRule(_ context.Context, _, _, ruleID uuid.UUID, _ string) (repository.RuleAssignment, error) {
	f.assignedRules = append(f.assignedRules, ruleID)
	return f.assignResult, f.assignErr
}

func (f *fakeRepo) StartRoundOne(_ context.Context, leadID uuid.UUID, _ int) (repository.BroadcastOutcome, error) {
	f.startRoundCalls++
	outcome := f.broadcast
	outcome.LeadID = leadID
	return outcome, nil
}

func (f *fakeRepo) ListExpired(context.Context, int) ([]uuid.UUID, error) {
	return f.expired, nil
}

func (f *fakeRepo) EscalateLead(_ context.Context, leadID uuid.UUID, _, _ int) (repository.EscalationOutcome, error) {
	if err := f.escalateErrs[leadID]; err != nil {
		return repository.EscalationOutcome{}, err
	}
	return f.escalations[leadID], nil
}

func (f *fakeRepo) MarkClaimSLABreaches(context.Context, int) ([]repository.ClaimBreach, error) {
	return f.claimBreaches, nil
}

func (f *fakeRepo) MarkFirstActionSLABreaches(context.Context, time.Duration, int) ([]repository.ActionBreach, error) {
	return f.actionBreaches, nil
}

func (f *fakeRepo) ListDueNightHeld(context.Context, int) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeRepo) ReleaseNightHeld(_ context.Context, leadID uuid.UUID, _ int) (repository.BroadcastOutcome, error) {
	return repository.BroadcastOutcome{LeadID: leadID, Round: 1}, nil
}

func (f *fakeRepo) RaiseAlarms(context.Context, int) ([]repository.AlarmHit, error) {
	return nil, nil
}

func (f *fakeRepo) AddSystemActivity(_ context.Context, _ uuid.UUID, note string) error {
	f.activities = append(f.activities, note)
	return nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *fakeBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *fakeBus) Subscribe(string, events.Handler) {}

func (b *fakeBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.published))
	for i, e := range b.published {
		names[i] = e.EventName()
	}
	return names
}

type fakeCfg struct{}

func (fakeCfg) GetMaxEscalationRounds() int            { return 3 }
func (fakeCfg) GetDefaultClaimWindow() time.Duration   { return 15 * time.Minute }
func (fakeCfg) GetSLAFirstActionWindow() time.Duration { return 30 * time.Minute }
func (fakeCfg) GetExpiredLeadBatchSize() int           { return 50 }
func (fakeCfg) GetMaxAlarmLevel() int                  { return 4 }
func (fakeCfg) GetNightHoldStartHour() int             { return 22 }
func (fakeCfg) GetNightHoldEndHour() int               { return 8 }

func newTestService(repo *fakeRepo) (*Service, *fakeBus) {
	bus := &fakeBus{}
	return New(repo, bus, fakeCfg{}, logger.New("test")), bus
}

func hasEvent(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func directRule(agentID uuid.UUID) repository.Rule {
	return repository.Rule{
		ID:              uuid.New(),
		RuleName:        "english direct",
		MatchLanguage:   []string{"en"},
		AssignToAgentID: agentID,
	}
}

func TestRouteNewLead_RuleAssignmentPublishesAndSkipsBroadcast(t *testing.T) {
	rule := directRule(uuid.New())
	repo := &fakeRepo{rules: []repository.Rule{rule}, assignResult: repository.RuleAssigned}
	svc, bus := newTestService(repo)

	lead := testLead()
	lead.ID = uuid.New()
	if err := svc.RouteNewLead(context.Background(), lead); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	if repo.startRoundCalls != 0 {
		t.Fatalf("expected no broadcast after direct assignment, got %d", repo.startRoundCalls)
	}
	if !hasEvent(bus.names(), events.LeadAssignedByRule{}.EventName()) {
		t.Fatal("expected a rule assignment event")
	}
	if len(repo.matchedRules) != 1 || repo.matchedRules[0] != rule.ID {
		t.Fatalf("expected match statistics for rule %s, got %v", rule.ID, repo.matchedRules)
	}
}

func TestRouteNewLead_UnavailableAgentFallsBackToBroadcast(t *testing.T) {
	rule := directRule(uuid.New())
	repo := &fakeRepo{
		rules:        []repository.Rule{rule},
		assignResult: repository.RuleAgentUnavailable,
		broadcast:    repository.BroadcastOutcome{Round: 1, AgentIDs: []uuid.UUID{uuid.New()}, WindowMinutes: 15},
	}
	svc, bus := newTestService(repo)

	lead := testLead()
	lead.ID = uuid.New()
	if err := svc.RouteNewLead(context.Background(), lead); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	if repo.startRoundCalls != 1 {
		t.Fatalf("expected a round 1 broadcast, got %d calls", repo.startRoundCalls)
	}
	if !hasEvent(bus.names(), events.LeadEscalated{}.EventName()) {
		t.Fatal("expected a broadcast event")
	}
	if len(repo.matchedRules) != 1 {
		t.Fatal("match statistics should record the rule even when its agent is unavailable")
	}
}

func TestRouteNewLead_ClaimedLeadStopsRouting(t *testing.T) {
	repo := &fakeRepo{rules: []repository.Rule{directRule(uuid.New())}, assignResult: repository.RuleLeadGone}
	svc, bus := newTestService(repo)

	lead := testLead()
	lead.ID = uuid.New()
	if err := svc.RouteNewLead(context.Background(), lead); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	if repo.startRoundCalls != 0 {
		t.Fatal("a lead claimed during assignment must not be broadcast")
	}
	if len(bus.names()) != 0 {
		t.Fatalf("expected no events, got %v", bus.names())
	}
}

func TestRouteNewLead_AssignErrorWithoutFallbackPropagates(t *testing.T) {
	rule := directRule(uuid.New())
	rule.FallbackToBroadcast = false
	repo := &fakeRepo{rules: []repository.Rule{rule}, assignErr: errors.New("boom")}
	svc, _ := newTestService(repo)

	lead := testLead()
	lead.ID = uuid.New()
	if err := svc.RouteNewLead(context.Background(), lead); err == nil {
		t.Fatal("expected the assignment error to surface")
	}
	if repo.startRoundCalls != 0 {
		t.Fatal("expected no broadcast when fallback is disabled")
	}
}

func TestRouteNewLead_NoRuleMatchBroadcastsRoundOne(t *testing.T) {
	repo := &fakeRepo{broadcast: repository.BroadcastOutcome{Round: 1, WindowMinutes: 15}}
	svc, bus := newTestService(repo)

	lead := testLead()
	lead.ID = uuid.New()
	if err := svc.RouteNewLead(context.Background(), lead); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	if repo.startRoundCalls != 1 {
		t.Fatalf("expected a round 1 broadcast, got %d calls", repo.startRoundCalls)
	}
	if len(repo.matchedRules) != 0 {
		t.Fatal("no rule matched, so no match statistics should be recorded")
	}
	if !hasEvent(bus.names(), events.LeadEscalated{}.EventName()) {
		t.Fatal("expected a broadcast event")
	}
}

func TestCheckUnclaimed_CountsEveryOutcome(t *testing.T) {
	escalated := uuid.New()
	stalled := uuid.New()
	fallback := uuid.New()
	claimed := uuid.New()

	repo := &fakeRepo{
		expired: []uuid.UUID{escalated, stalled, fallback, claimed},
		escalations: map[uuid.UUID]repository.EscalationOutcome{
			escalated: {Status: repository.StatusEscalated, LeadID: escalated, NewRound: 2, AgentIDs: []uuid.UUID{uuid.New()}},
			stalled:   {Status: repository.StatusStalled, LeadID: stalled, NewRound: 2},
			fallback:  {Status: repository.StatusAdminFallback, LeadID: fallback, AdminID: uuid.New(), RoundsUsed: 3},
			claimed:   {Status: repository.StatusSkipped, LeadID: claimed},
		},
	}
	svc, bus := newTestService(repo)

	summary, err := svc.CheckUnclaimed(context.Background())
	if err != nil {
		t.Fatalf("monitor pass failed: %v", err)
	}

	want := MonitorSummary{Processed: 4, Escalated: 2, AssignedToAdmin: 1, CapacityStalled: 1, Skipped: 1}
	if summary != want {
		t.Fatalf("summary mismatch: got %+v want %+v", summary, want)
	}

	names := bus.names()
	if !hasEvent(names, events.LeadEscalated{}.EventName()) {
		t.Fatal("expected an escalation event for the advanced lead")
	}
	if !hasEvent(names, events.LeadAssignedToAdmin{}.EventName()) {
		t.Fatal("expected an admin fallback event")
	}
	if len(names) != 2 {
		t.Fatalf("skipped and stalled leads must not publish, got %v", names)
	}
}

func TestCheckUnclaimed_OneFailureDoesNotStopTheBatch(t *testing.T) {
	broken := uuid.New()
	healthy := uuid.New()

	repo := &fakeRepo{
		expired:      []uuid.UUID{broken, healthy},
		escalateErrs: map[uuid.UUID]error{broken: errors.New("deadlock")},
		escalations: map[uuid.UUID]repository.EscalationOutcome{
			healthy: {Status: repository.StatusEscalated, LeadID: healthy, NewRound: 2},
		},
	}
	svc, _ := newTestService(repo)

	summary, err := svc.CheckUnclaimed(context.Background())
	if err != nil {
		t.Fatalf("monitor pass failed: %v", err)
	}
	if summary.Errors != 1 || summary.Escalated != 1 || summary.Processed != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestCheckFirstActionSLA_RecordsActivityPerBreach(t *testing.T) {
	agentID := uuid.New()
	repo := &fakeRepo{
		actionBreaches: []repository.ActionBreach{
			{LeadID: uuid.New(), AgentID: &agentID, AssignedAt: time.Now().Add(-time.Hour)},
			{LeadID: uuid.New(), AgentID: &agentID, AssignedAt: time.Now().Add(-2 * time.Hour)},
		},
	}
	svc, bus := newTestService(repo)

	flagged, err := svc.CheckFirstActionSLA(context.Background())
	if err != nil {
		t.Fatalf("sla check failed: %v", err)
	}
	if flagged != 2 {
		t.Fatalf("expected 2 flagged leads, got %d", flagged)
	}
	if len(repo.activities) != 2 {
		t.Fatalf("expected an audit entry per breach, got %d", len(repo.activities))
	}
	for _, note := range repo.activities {
		if !strings.Contains(note, "30 minute") {
			t.Fatalf("audit entry should name the window, got %q", note)
		}
	}
	if len(bus.names()) != 2 {
		t.Fatalf("expected an event per breach, got %v", bus.names())
	}
}

func TestCheckClaimSLA_PublishesEachBreach(t *testing.T) {
	repo := &fakeRepo{
		claimBreaches: []repository.ClaimBreach{
			{LeadID: uuid.New(), Language: "en", CreatedAt: time.Now().Add(-45 * time.Minute)},
		},
	}
	svc, bus := newTestService(repo)

	flagged, err := svc.CheckClaimSLA(context.Background())
	if err != nil {
		t.Fatalf("sla check failed: %v", err)
	}
	if flagged != 1 {
		t.Fatalf("expected 1 flagged lead, got %d", flagged)
	}
	if !hasEvent(bus.names(), events.ClaimWindowBreached{}.EventName()) {
		t.Fatal("expected a claim window breach event")
	}
}
