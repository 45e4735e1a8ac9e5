// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"prime_crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Lifecycle Events
// =============================================================================

// LeadRegistered is published when a new lead is created through intake.
type LeadRegistered struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	Language  string    `json:"language"`
	Segment   string    `json:"segment"`
	Score     int       `json:"score"`
	Source    string    `json:"source"`
	NightHeld bool      `json:"nightHeld"`
}

func (e LeadRegistered) EventName() string { return "crm.lead.registered" }

// LeadClaimed is published when an agent successfully claims a lead.
type LeadClaimed struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	AgentID uuid.UUID `json:"agentId"`
	Round   int       `json:"round"`
}

func (e LeadClaimed) EventName() string { return "crm.lead.claimed" }

// LeadEscalated is published when a lead is broadcast to a claim round.
// NewRound 1 is the initial broadcast; higher rounds mean the previous
// window expired unclaimed.
type LeadEscalated struct {
	BaseEvent
	LeadID    uuid.UUID   `json:"leadId"`
	NewRound  int         `json:"newRound"`
	AgentIDs  []uuid.UUID `json:"agentIds"`
	WindowMin int         `json:"windowMinutes"`
	Priority  string      `json:"priority"`
}

func (e LeadEscalated) EventName() string { return "crm.lead.escalated" }

// LeadAssignedByRule is published when a routing rule assigns a lead
// directly to an agent, skipping the broadcast rounds.
type LeadAssignedByRule struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	AgentID  uuid.UUID `json:"agentId"`
	RuleName string    `json:"ruleName"`
}

func (e LeadAssignedByRule) EventName() string { return "crm.lead.assigned_by_rule" }

// ClaimReminder is published by the alarm job while a broadcast lead
// remains unclaimed inside its window.
type ClaimReminder struct {
	BaseEvent
	LeadID      uuid.UUID   `json:"leadId"`
	AgentIDs    []uuid.UUID `json:"agentIds"`
	AlarmLevel  int         `json:"alarmLevel"`
	MinutesLeft int         `json:"minutesLeft"`
}

func (e ClaimReminder) EventName() string { return "crm.lead.claim_reminder" }

// LeadAssignedToAdmin is published when escalation rounds are exhausted and
// the lead falls back to an administrator.
type LeadAssignedToAdmin struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	AdminAgentID uuid.UUID `json:"adminAgentId"`
	RoundsUsed   int       `json:"roundsUsed"`
}

func (e LeadAssignedToAdmin) EventName() string { return "crm.lead.assigned_to_admin" }

// LeadReassigned is published on an admin force-transfer.
type LeadReassigned struct {
	BaseEvent
	LeadID       uuid.UUID  `json:"leadId"`
	FromAgentID  *uuid.UUID `json:"fromAgentId,omitempty"`
	ToAgentID    uuid.UUID  `json:"toAgentId"`
	Reason       string     `json:"reason"`
	ReassignedBy uuid.UUID  `json:"reassignedBy"`
}

func (e LeadReassigned) EventName() string { return "crm.lead.reassigned" }

// SLABreached is published when a claimed lead passes the first-action SLA
// window with no recorded agent action.
type SLABreached struct {
	BaseEvent
	LeadID          uuid.UUID  `json:"leadId"`
	AssignedAgentID *uuid.UUID `json:"assignedAgentId,omitempty"`
	AssignedAt      time.Time  `json:"assignedAt"`
}

func (e SLABreached) EventName() string { return "crm.lead.sla_breached" }

// ClaimWindowBreached is published when a lead's claim window expires with
// no agent having claimed it.
type ClaimWindowBreached struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	Language       string    `json:"language"`
	ElapsedMinutes int       `json:"elapsedMinutes"`
}

func (e ClaimWindowBreached) EventName() string { return "crm.lead.claim_window_breached" }

// NightLeadReleased is published when an overnight-held lead is released
// into round 1 broadcast.
type NightLeadReleased struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	Language string    `json:"language"`
}

func (e NightLeadReleased) EventName() string { return "crm.lead.night_released" }
