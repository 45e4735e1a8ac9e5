// Package service implements lead intake, claiming and lifecycle management.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prime_crm_backend/internal/events"
	"prime_crm_backend/internal/leads/repository"
	"prime_crm_backend/internal/leads/scoring"
	"prime_crm_backend/platform/apperr"
	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/logger"
	"prime_crm_backend/platform/phone"
	"prime_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = repository.ErrNotFound
	ErrAlreadyClaimed = repository.ErrAlreadyClaimed
	// ErrAgentUnavailable is returned when the claiming or target agent is
	// inactive or over capacity.
	ErrAgentUnavailable = errors.New("agent unavailable")
)

const (
	opIntake      = "leads.service.intake"
	opClaim       = "leads.service.claim"
	opReassign    = "leads.service.reassign"
	opArchive     = "leads.service.archive"
	opAddActivity = "leads.service.add_activity"
)

// AgentInfo is the slice of an agent the lead workflows need.
type AgentInfo struct {
	ID          uuid.UUID
	Name        string
	Role        string
	IsActive    bool
	HasCapacity bool
}

// AgentLookup resolves agents without coupling to the agents module.
type AgentLookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (AgentInfo, error)
}

// Router decides what happens to a freshly registered lead: rule assignment,
// round 1 broadcast, or nothing when the lead is night-held.
type Router interface {
	RouteNewLead(ctx context.Context, lead repository.Lead) error
}

type Service struct {
	repo   *repository.Repository
	agents AgentLookup
	router Router
	bus    events.Bus
	cfg    config.RoutingConfig
	log    *logger.Logger
	now    func() time.Time

	store     ObjectStore
	maxUpload int64
}

func New(repo *repository.Repository, agents AgentLookup, bus events.Bus, cfg config.RoutingConfig, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		agents: agents,
		bus:    bus,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// SetRouter wires the routing service after construction. Leads and routing
// reference each other, so one side is injected late.
func (s *Service) SetRouter(router Router) {
	s.router = router
}

// IntakeParams carries a public lead submission.
type IntakeParams struct {
	FirstName string
	LastName  string
	Phone     string
	Email     *string
	Language  string

	LeadSource       string
	LeadSourceDetail *string
	PageURL          *string
	PageType         *string
	PageSlug         *string
	Referrer         *string
	Message          *string

	BudgetRange        *string
	Timeframe          *string
	PropertyType       []string
	PropertyPurpose    *string
	BedroomsDesired    *string
	LocationPreference []string
	SeaViewImportance  *string
	IntakeComplete     bool
	QuestionsAnswered  int
}

// Intake registers, scores and routes a new lead. Leads arriving during the
// configured night window are held and released by the scheduler in the
// morning instead of being broadcast immediately.
func (s *Service) Intake(ctx context.Context, p IntakeParams) (repository.Lead, error) {
	p.FirstName = sanitize.Text(p.FirstName)
	p.LastName = sanitize.Text(p.LastName)
	p.Message = sanitize.TextPtr(p.Message)

	if p.FirstName == "" {
		return repository.Lead{}, apperr.Validation("firstName is required").WithOp(opIntake)
	}
	normalized := phone.NormalizeE164(p.Phone)
	if normalized == "" {
		return repository.Lead{}, apperr.Validation("phoneNumber is not a valid phone number").WithOp(opIntake)
	}
	if p.Language == "" {
		p.Language = "en"
	}
	if p.LeadSource == "" {
		p.LeadSource = "Website"
	}

	result := scoring.Score(scoring.Input{
		BudgetRange:        deref(p.BudgetRange),
		Timeframe:          deref(p.Timeframe),
		IntakeComplete:     p.IntakeComplete,
		QuestionsAnswered:  p.QuestionsAnswered,
		LocationPreference: p.LocationPreference,
		PropertyType:       p.PropertyType,
		PropertyPurpose:    deref(p.PropertyPurpose),
		BedroomsDesired:    deref(p.BedroomsDesired),
		SeaViewImportance:  deref(p.SeaViewImportance),
	})

	now := s.now()
	nightHeld := s.isNight(now)
	var releaseAt *time.Time
	if nightHeld {
		t := s.nextReleaseTime(now)
		releaseAt = &t
	}

	lead, err := s.repo.Create(ctx, repository.CreateParams{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     normalized,
		Email:     p.Email,
		Language:  p.Language,

		LeadSource:       p.LeadSource,
		LeadSourceDetail: p.LeadSourceDetail,
		PageURL:          p.PageURL,
		PageType:         p.PageType,
		PageSlug:         p.PageSlug,
		Referrer:         p.Referrer,
		Message:          p.Message,

		BudgetRange:        p.BudgetRange,
		Timeframe:          p.Timeframe,
		PropertyType:       p.PropertyType,
		PropertyPurpose:    p.PropertyPurpose,
		BedroomsDesired:    p.BedroomsDesired,
		LocationPreference: p.LocationPreference,
		SeaViewImportance:  p.SeaViewImportance,
		IntakeComplete:     p.IntakeComplete,
		QuestionsAnswered:  p.QuestionsAnswered,

		Score:    result.Score,
		Segment:  result.Segment,
		Priority: result.Priority,

		IsNightHeld:        nightHeld,
		ScheduledReleaseAt: releaseAt,
	})
	if err != nil {
		return repository.Lead{}, err
	}

	s.log.Info("lead registered",
		"leadId", lead.ID,
		"score", lead.Score,
		"segment", lead.Segment,
		"priority", lead.Priority,
		"nightHeld", nightHeld,
	)

	s.bus.Publish(ctx, events.LeadRegistered{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Language:  lead.Language,
		Segment:   lead.Segment,
		Score:     lead.Score,
		Source:    lead.LeadSource,
		NightHeld: nightHeld,
	})

	if nightHeld {
		return lead, nil
	}

	if s.router == nil {
		s.log.Error("lead router not wired, lead left unrouted", "leadId", lead.ID)
		return lead, nil
	}
	if err := s.router.RouteNewLead(ctx, lead); err != nil {
		// The lead is persisted; routing failures are retried by the
		// claim window monitor rather than failing the intake.
		s.log.Error("routing new lead failed", "leadId", lead.ID, "error", err)
	}

	return s.repo.GetByID(ctx, lead.ID)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f repository.ListFilter) ([]repository.Lead, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 25
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// Claim lets an agent take an unclaimed lead. The repository resolves the
// race; the service only checks the agent and records the outcome.
func (s *Service) Claim(ctx context.Context, leadID, agentID uuid.UUID) (repository.Lead, error) {
	agent, err := s.agents.Lookup(ctx, agentID)
	if err != nil {
		return repository.Lead{}, err
	}
	if !agent.IsActive || !agent.HasCapacity {
		return repository.Lead{}, ErrAgentUnavailable
	}

	lead, err := s.repo.Claim(ctx, leadID, agentID, agent.Name)
	if err != nil {
		return repository.Lead{}, err
	}

	if _, actErr := s.repo.AddActivity(ctx, repository.AddActivityParams{
		LeadID:  lead.ID,
		AgentID: &agentID,
		Type:    repository.ActivitySystem,
		Notes:   fmt.Sprintf("Lead claimed by %s in round %d", agent.Name, lead.CurrentRound),
	}); actErr != nil {
		s.log.Error("record claim activity failed", "leadId", lead.ID, "error", actErr)
	}

	s.bus.Publish(ctx, events.LeadClaimed{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		AgentID:   agentID,
		Round:     lead.CurrentRound,
	})

	s.log.Info("lead claimed", "leadId", lead.ID, "agentId", agentID, "round", lead.CurrentRound)
	return lead, nil
}

// Reassign force-transfers a lead to another agent. Admin only, enforced at
// the route level.
func (s *Service) Reassign(ctx context.Context, leadID, toAgentID, reassignedBy uuid.UUID, reason string) (repository.Lead, error) {
	target, err := s.agents.Lookup(ctx, toAgentID)
	if err != nil {
		return repository.Lead{}, err
	}
	if !target.IsActive {
		return repository.Lead{}, ErrAgentUnavailable
	}
	if reason == "" {
		reason = "Reassigned by admin"
	}

	before, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return repository.Lead{}, err
	}

	lead, err := s.repo.Reassign(ctx, leadID, toAgentID, target.Name, reason)
	if err != nil {
		return repository.Lead{}, err
	}

	if _, actErr := s.repo.AddActivity(ctx, repository.AddActivityParams{
		LeadID:  lead.ID,
		AgentID: &reassignedBy,
		Type:    repository.ActivitySystem,
		Notes:   fmt.Sprintf("Lead reassigned to %s: %s", target.Name, reason),
	}); actErr != nil {
		s.log.Error("record reassign activity failed", "leadId", lead.ID, "error", actErr)
	}

	s.bus.Publish(ctx, events.LeadReassigned{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		FromAgentID:  before.AssignedAgentID,
		ToAgentID:    toAgentID,
		Reason:       reason,
		ReassignedBy: reassignedBy,
	})

	s.log.Info("lead reassigned", "leadId", lead.ID, "toAgentId", toAgentID, "reason", reason)
	return lead, nil
}

func (s *Service) Archive(ctx context.Context, leadID uuid.UUID) error {
	if err := s.repo.Archive(ctx, leadID); err != nil {
		return err
	}
	s.log.Info("lead archived", "leadId", leadID)
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, leadID uuid.UUID, status string) (repository.Lead, error) {
	return s.repo.UpdateStatus(ctx, leadID, status)
}

// AddActivity records an agent action on the lead timeline. Contact-type
// activities complete the first-action SLA.
func (s *Service) AddActivity(ctx context.Context, leadID, agentID uuid.UUID, activityType, notes string) (repository.Activity, error) {
	if activityType == repository.ActivitySystem {
		return repository.Activity{}, apperr.Validation("system activities cannot be logged manually").WithOp(opAddActivity)
	}
	return s.repo.AddActivity(ctx, repository.AddActivityParams{
		LeadID:  leadID,
		AgentID: &agentID,
		Type:    activityType,
		Notes:   sanitize.Text(notes),
	})
}

func (s *Service) ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListActivities(ctx, leadID, limit)
}

// isNight reports whether t falls inside the configured overnight hold
// window. The window wraps midnight (e.g. 22:00 to 08:00).
func (s *Service) isNight(t time.Time) bool {
	start := s.cfg.GetNightHoldStartHour()
	end := s.cfg.GetNightHoldEndHour()
	if start == end {
		return false
	}
	h := t.Hour()
	if start > end {
		return h >= start || h < end
	}
	return h >= start && h < end
}

// nextReleaseTime returns the next occurrence of the night hold end hour.
func (s *Service) nextReleaseTime(t time.Time) time.Time {
	end := s.cfg.GetNightHoldEndHour()
	release := time.Date(t.Year(), t.Month(), t.Day(), end, 0, 0, 0, t.Location())
	if !release.After(t) {
		release = release.Add(24 * time.Hour)
	}
	return release
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
