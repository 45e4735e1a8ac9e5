// Package notification turns domain events into agent-facing alerts: in-app
// notifications, SSE pushes, and emails with outbox-backed retries.
package notification

import (
	"context"
	"fmt"
	"time"

	"prime_crm_backend/internal/email"
	"prime_crm_backend/internal/events"
	apphttp "prime_crm_backend/internal/http"
	"prime_crm_backend/internal/notification/handler"
	"prime_crm_backend/internal/notification/inapp"
	"prime_crm_backend/internal/notification/outbox"
	"prime_crm_backend/internal/notification/sse"
	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/httpkit"
	"prime_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// fanOutLimit caps concurrent email sends per event so a big broadcast
// round does not exhaust SMTP connections.
const fanOutLimit = 5

// AgentContact is the slice of agent data the notifier needs.
type AgentContact struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// AgentDirectory resolves agent IDs to contact details. Implemented by an
// adapter over the agents repository.
type AgentDirectory interface {
	Contacts(ctx context.Context, ids []uuid.UUID) ([]AgentContact, error)
	AdminContacts(ctx context.Context) ([]AgentContact, error)
}

// LeadSummary is the minimal lead view used to compose notifications.
type LeadSummary struct {
	ID       uuid.UUID
	FullName string
	Priority string
}

// LeadReader resolves lead IDs to summaries. Implemented by an adapter over
// the leads repository.
type LeadReader interface {
	Summary(ctx context.Context, id uuid.UUID) (LeadSummary, error)
}

// Module is the notification bounded context. It subscribes to lead
// lifecycle events and exposes the in-app notification API plus the SSE
// stream.
type Module struct {
	emails  *Dispatcher
	inapp   *inapp.Service
	sse     *sse.Service
	handler *handler.HTTPHandler
	agents  AgentDirectory
	leads   LeadReader
	cfg     config.NotificationConfig
	log     *logger.Logger
}

func New(pool *pgxpool.Pool, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	inappSvc := inapp.NewService(inapp.NewRepository(pool), log)
	sseSvc := sse.New()
	inappSvc.SetSSE(sseSvc)

	return &Module{
		emails: NewDispatcher(sender, outbox.New(pool), log),
		inapp:  inappSvc,
		sse:    sseSvc,
		log:    log,
		cfg:    cfg,
	}
}

// SetDirectory injects the agent contact resolver.
func (m *Module) SetDirectory(dir AgentDirectory) {
	m.agents = dir
}

// SetLeadReader injects the lead summary resolver.
func (m *Module) SetLeadReader(reader LeadReader) {
	m.leads = reader
}

// Emails exposes the dispatcher so the scheduler can drive outbox retries.
func (m *Module) Emails() *Dispatcher {
	return m.emails
}

// SSE exposes the stream service for modules that push their own events.
func (m *Module) SSE() *sse.Service {
	return m.sse
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes mounts the in-app notification API and the SSE stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	m.handler = handler.NewHTTPHandler(m.inapp)
	m.handler.RegisterRoutes(group)

	// Token via query param is allowed here for EventSource clients.
	ctx.V1.GET("/notifications/stream", ctx.AuthMiddleware, m.sse.Handler(func(c *gin.Context) (uuid.UUID, bool) {
		identity := httpkit.GetIdentity(c)
		if !identity.IsAuthenticated() {
			return uuid.Nil, false
		}
		return identity.UserID(), true
	}))
}

// RegisterHandlers subscribes the module to the lead lifecycle events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadEscalated{}.EventName(), events.HandlerFunc(m.onLeadEscalated))
	bus.Subscribe(events.LeadAssignedByRule{}.EventName(), events.HandlerFunc(m.onLeadAssignedByRule))
	bus.Subscribe(events.LeadAssignedToAdmin{}.EventName(), events.HandlerFunc(m.onLeadAssignedToAdmin))
	bus.Subscribe(events.LeadReassigned{}.EventName(), events.HandlerFunc(m.onLeadReassigned))
	bus.Subscribe(events.LeadClaimed{}.EventName(), events.HandlerFunc(m.onLeadClaimed))
	bus.Subscribe(events.ClaimReminder{}.EventName(), events.HandlerFunc(m.onClaimReminder))
	bus.Subscribe(events.ClaimWindowBreached{}.EventName(), events.HandlerFunc(m.onClaimWindowBreached))
	bus.Subscribe(events.SLABreached{}.EventName(), events.HandlerFunc(m.onSLABreached))
}

func (m *Module) leadURL(leadID uuid.UUID) string {
	return m.cfg.GetAppBaseURL() + "/leads/" + leadID.String()
}

func (m *Module) onLeadEscalated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadEscalated)
	if !ok {
		return nil
	}

	lead, err := m.leads.Summary(ctx, e.LeadID)
	if err != nil {
		return fmt.Errorf("lead summary for escalation: %w", err)
	}

	contacts, err := m.agents.Contacts(ctx, e.AgentIDs)
	if err != nil {
		return fmt.Errorf("resolve escalation contacts: %w", err)
	}

	notifType := TypeEscalationRound
	title := fmt.Sprintf("Lead escalated to round %d", e.NewRound)
	message := fmt.Sprintf("%s went unclaimed and reached round %d. You have %d minutes to claim it.", lead.FullName, e.NewRound, e.WindowMin)
	sseType := sse.EventLeadEscalated
	if e.NewRound <= 1 {
		notifType = TypeNewLeadAvailable
		title = "New lead available"
		message = fmt.Sprintf("A new %s priority lead from %s is available. First to claim wins.", lead.Priority, lead.FullName)
		sseType = sse.EventNewLeadAvailable
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for _, contact := range contacts {
		g.Go(func() error {
			leadID := e.LeadID
			if err := m.inapp.Send(gctx, inapp.SendParams{
				AgentID:   contact.ID,
				LeadID:    &leadID,
				Type:      notifType,
				Title:     title,
				Message:   message,
				ActionURL: m.leadURL(e.LeadID),
			}); err != nil {
				m.log.Error("in-app send failed", "type", notifType, "agentId", contact.ID, "error", err)
			}

			m.emails.Send(gctx, notifType, emailPayload{
				To:            contact.Email,
				Name:          contact.Name,
				LeadName:      lead.FullName,
				LeadURL:       m.leadURL(e.LeadID),
				Priority:      lead.Priority,
				Round:         e.NewRound,
				WindowMinutes: e.WindowMin,
			})
			return nil
		})
	}
	_ = g.Wait()

	m.sse.Broadcast(sse.Event{Type: sseType, LeadID: e.LeadID, Message: title})
	return nil
}

func (m *Module) onLeadAssignedByRule(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadAssignedByRule)
	if !ok {
		return nil
	}

	lead, err := m.leads.Summary(ctx, e.LeadID)
	if err != nil {
		return fmt.Errorf("lead summary for rule assignment: %w", err)
	}

	contacts, err := m.agents.Contacts(ctx, []uuid.UUID{e.AgentID})
	if err != nil || len(contacts) == 0 {
		return fmt.Errorf("resolve rule assignment contact: %w", err)
	}
	contact := contacts[0]

	leadID := e.LeadID
	if err := m.inapp.Send(ctx, inapp.SendParams{
		AgentID:   contact.ID,
		LeadID:    &leadID,
		Type:      TypeRuleAssigned,
		Title:     "Lead assigned to you",
		Message:   fmt.Sprintf("The lead from %s was routed directly to you by rule %q.", lead.FullName, e.RuleName),
		ActionURL: m.leadURL(e.LeadID),
	}); err != nil {
		m.log.Error("in-app send failed", "type", TypeRuleAssigned, "agentId", contact.ID, "error", err)
	}

	m.emails.Send(ctx, TypeRuleAssigned, emailPayload{
		To:       contact.Email,
		Name:     contact.Name,
		LeadName: lead.FullName,
		LeadURL:  m.leadURL(e.LeadID),
		RuleName: e.RuleName,
	})
	return nil
}

func (m *Module) onLeadAssignedToAdmin(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadAssignedToAdmin)
	if !ok {
		return nil
	}

	lead, err := m.leads.Summary(ctx, e.LeadID)
	if err != nil {
		return fmt.Errorf("lead summary for admin fallback: %w", err)
	}

	contacts, err := m.agents.Contacts(ctx, []uuid.UUID{e.AdminAgentID})
	if err != nil || len(contacts) == 0 {
		return fmt.Errorf("resolve fallback admin contact: %w", err)
	}
	contact := contacts[0]

	leadID := e.LeadID
	if err := m.inapp.Send(ctx, inapp.SendParams{
		AgentID:   contact.ID,
		LeadID:    &leadID,
		Type:      TypeAdminFallback,
		Title:     "URGENT: unclaimed lead assigned to you",
		Message:   fmt.Sprintf("The lead from %s went through %d rounds unclaimed and needs immediate attention.", lead.FullName, e.RoundsUsed),
		ActionURL: m.leadURL(e.LeadID),
	}); err != nil {
		m.log.Error("in-app send failed", "type", TypeAdminFallback, "agentId", contact.ID, "error", err)
	}

	m.emails.Send(ctx, TypeAdminFallback, emailPayload{
		To:       contact.Email,
		Name:     contact.Name,
		LeadName: lead.FullName,
		LeadURL:  m.leadURL(e.LeadID),
		Round:    e.RoundsUsed,
	})
	return nil
}

func (m *Module) onLeadReassigned(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadReassigned)
	if !ok {
		return nil
	}

	lead, err := m.leads.Summary(ctx, e.LeadID)
	if err != nil {
		return fmt.Errorf("lead summary for reassignment: %w", err)
	}

	contacts, err := m.agents.Contacts(ctx, []uuid.UUID{e.ToAgentID})
	if err != nil || len(contacts) == 0 {
		return fmt.Errorf("resolve reassignment contact: %w", err)
	}
	contact := contacts[0]

	leadID := e.LeadID
	if err := m.inapp.Send(ctx, inapp.SendParams{
		AgentID:   contact.ID,
		LeadID:    &leadID,
		Type:      TypeLeadReassigned,
		Title:     "Lead transferred to you",
		Message:   fmt.Sprintf("The lead from %s was transferred to you.", lead.FullName),
		ActionURL: m.leadURL(e.LeadID),
	}); err != nil {
		m.log.Error("in-app send failed", "type", TypeLeadReassigned, "agentId", contact.ID, "error", err)
	}

	m.emails.Send(ctx, TypeLeadReassigned, emailPayload{
		To:       contact.Email,
		Name:     contact.Name,
		LeadName: lead.FullName,
		LeadURL:  m.leadURL(e.LeadID),
		Reason:   e.Reason,
	})

	m.sse.Publish(e.ToAgentID, sse.Event{Type: sse.EventLeadReassigned, LeadID: e.LeadID})
	return nil
}

// onLeadClaimed only broadcasts over SSE so other agents' open-lead lists
// drop the claimed lead. No in-app notification is written.
func (m *Module) onLeadClaimed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadClaimed)
	if !ok {
		return nil
	}

	m.sse.Broadcast(sse.Event{
		Type:   sse.EventLeadClaimed,
		LeadID: e.LeadID,
		Data:   map[string]any{"agentId": e.AgentID, "round": e.Round},
	})
	return nil
}

func (m *Module) onClaimReminder(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ClaimReminder)
	if !ok {
		return nil
	}

	lead, err := m.leads.Summary(ctx, e.LeadID)
	if err != nil {
		return fmt.Errorf("lead summary for claim reminder: %w", err)
	}

	contacts, err := m.agents.Contacts(ctx, e.AgentIDs)
	if err != nil {
		return fmt.Errorf("resolve reminder contacts: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for _, contact := range contacts {
		g.Go(func() error {
			leadID := e.LeadID
			if err := m.inapp.Send(gctx, inapp.SendParams{
				AgentID:   contact.ID,
				LeadID:    &leadID,
				Type:      TypeClaimReminder,
				Title:     fmt.Sprintf("Reminder %d: lead still unclaimed", e.AlarmLevel),
				Message:   fmt.Sprintf("%s is still waiting. About %d minutes left in the claim window.", lead.FullName, e.MinutesLeft),
				ActionURL: m.leadURL(e.LeadID),
			}); err != nil {
				m.log.Error("in-app send failed", "type", TypeClaimReminder, "agentId", contact.ID, "error", err)
			}

			m.emails.Send(gctx, TypeClaimReminder, emailPayload{
				To:         contact.Email,
				Name:       contact.Name,
				LeadName:   lead.FullName,
				LeadURL:    m.leadURL(e.LeadID),
				AlarmLevel: e.AlarmLevel,
				Minutes:    e.MinutesLeft,
			})
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

func (m *Module) onClaimWindowBreached(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ClaimWindowBreached)
	if !ok {
		return nil
	}

	lead, err := m.leads.Summary(ctx, e.LeadID)
	if err != nil {
		return fmt.Errorf("lead summary for claim SLA breach: %w", err)
	}

	admins, err := m.agents.AdminContacts(ctx)
	if err != nil {
		return fmt.Errorf("resolve admin contacts: %w", err)
	}

	for _, admin := range admins {
		leadID := e.LeadID
		if err := m.inapp.Send(ctx, inapp.SendParams{
			AgentID:   admin.ID,
			LeadID:    &leadID,
			Type:      TypeClaimSLABreach,
			Title:     "Claim SLA breached",
			Message:   fmt.Sprintf("%s has been unclaimed for %d minutes.", lead.FullName, e.ElapsedMinutes),
			ActionURL: m.leadURL(e.LeadID),
		}); err != nil {
			m.log.Error("in-app send failed", "type", TypeClaimSLABreach, "agentId", admin.ID, "error", err)
		}

		m.emails.Send(ctx, TypeClaimSLABreach, emailPayload{
			To:       admin.Email,
			Name:     admin.Name,
			LeadName: lead.FullName,
			LeadURL:  m.leadURL(e.LeadID),
			Minutes:  e.ElapsedMinutes,
		})
	}
	return nil
}

func (m *Module) onSLABreached(ctx context.Context, event events.Event) error {
	e, ok := event.(events.SLABreached)
	if !ok {
		return nil
	}

	lead, err := m.leads.Summary(ctx, e.LeadID)
	if err != nil {
		return fmt.Errorf("lead summary for SLA breach: %w", err)
	}

	minutes := int(time.Since(e.AssignedAt).Minutes())

	recipients := make([]AgentContact, 0, 4)
	if e.AssignedAgentID != nil {
		contacts, err := m.agents.Contacts(ctx, []uuid.UUID{*e.AssignedAgentID})
		if err != nil {
			m.log.Error("resolve breached agent contact failed", "agentId", *e.AssignedAgentID, "error", err)
		} else {
			recipients = append(recipients, contacts...)
		}
	}

	admins, err := m.agents.AdminContacts(ctx)
	if err != nil {
		return fmt.Errorf("resolve admin contacts: %w", err)
	}
	for _, admin := range admins {
		if e.AssignedAgentID != nil && admin.ID == *e.AssignedAgentID {
			continue
		}
		recipients = append(recipients, admin)
	}

	for _, contact := range recipients {
		leadID := e.LeadID
		if err := m.inapp.Send(ctx, inapp.SendParams{
			AgentID:   contact.ID,
			LeadID:    &leadID,
			Type:      TypeSLABreach,
			Title:     "First action overdue",
			Message:   fmt.Sprintf("%s was claimed %d minutes ago with no recorded action.", lead.FullName, minutes),
			ActionURL: m.leadURL(e.LeadID),
		}); err != nil {
			m.log.Error("in-app send failed", "type", TypeSLABreach, "agentId", contact.ID, "error", err)
		}

		m.emails.Send(ctx, TypeSLABreach, emailPayload{
			To:       contact.Email,
			Name:     contact.Name,
			LeadName: lead.FullName,
			LeadURL:  m.leadURL(e.LeadID),
			Minutes:  minutes,
		})
	}
	return nil
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
