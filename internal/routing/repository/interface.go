package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RoutingRepository defines the interface for routing data operations.
// This allows services to depend on an abstraction rather than concrete implementation,
// improving testability and modularity.
type RoutingRepository interface {
	// Round robin configuration
	ListRoundConfigs(ctx context.Context, language string) ([]RoundConfig, error)
	UpsertRoundConfig(ctx context.Context, p UpsertRoundConfigParams) (RoundConfig, error)

	// Routing rules
	ListActiveRules(ctx context.Context) ([]Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
	CreateRule(ctx context.Context, p CreateRuleParams) (Rule, error)
	UpdateRule(ctx context.Context, id uuid.UUID, p UpdateRuleParams) (Rule, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error
	RecordRuleMatch(ctx context.Context, ruleID uuid.UUID) error

	// Assignment and escalation
	AssignByRule(ctx context.Context, leadID, agentID, ruleID uuid.UUID, ruleName string) (RuleAssignment, error)
	StartRoundOne(ctx context.Context, leadID uuid.UUID, defaultWindowMinutes int) (BroadcastOutcome, error)
	ListExpired(ctx context.Context, limit int) ([]uuid.UUID, error)
	EscalateLead(ctx context.Context, leadID uuid.UUID, maxRounds, defaultWindowMinutes int) (EscalationOutcome, error)

	// Periodic jobs
	MarkClaimSLABreaches(ctx context.Context, limit int) ([]ClaimBreach, error)
	MarkFirstActionSLABreaches(ctx context.Context, window time.Duration, limit int) ([]ActionBreach, error)
	ListDueNightHeld(ctx context.Context, limit int) ([]uuid.UUID, error)
	ReleaseNightHeld(ctx context.Context, leadID uuid.UUID, defaultWindowMinutes int) (BroadcastOutcome, error)
	RaiseAlarms(ctx context.Context, level int) ([]AlarmHit, error)
	AddSystemActivity(ctx context.Context, leadID uuid.UUID, note string) error
}

// Ensure Repository implements RoutingRepository
var _ RoutingRepository = (*Repository)(nil)
