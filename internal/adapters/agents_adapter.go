// Package adapters bridges modules that must not import each other
// directly. Each adapter implements a narrow interface one module declares,
// backed by another module's repository.
package adapters

import (
	"context"

	agentsrepo "prime_crm_backend/internal/agents/repository"
	leadssvc "prime_crm_backend/internal/leads/service"
	"prime_crm_backend/internal/notification"

	"github.com/google/uuid"
)

// AgentsAdapter exposes agent data to the leads and notification modules.
type AgentsAdapter struct {
	repo *agentsrepo.Repository
}

func NewAgentsAdapter(repo *agentsrepo.Repository) *AgentsAdapter {
	return &AgentsAdapter{repo: repo}
}

// Lookup implements the leads module's AgentLookup.
func (a *AgentsAdapter) Lookup(ctx context.Context, id uuid.UUID) (leadssvc.AgentInfo, error) {
	agent, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return leadssvc.AgentInfo{}, err
	}
	return leadssvc.AgentInfo{
		ID:          agent.ID,
		Name:        agent.FullName(),
		Role:        agent.Role,
		IsActive:    agent.IsActive,
		HasCapacity: agent.HasCapacity(),
	}, nil
}

// Contacts implements the notification module's AgentDirectory.
func (a *AgentsAdapter) Contacts(ctx context.Context, ids []uuid.UUID) ([]notification.AgentContact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	agents, err := a.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return toContacts(agents), nil
}

// AdminContacts returns every active admin.
func (a *AgentsAdapter) AdminContacts(ctx context.Context) ([]notification.AgentContact, error) {
	agents, err := a.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	admins := make([]agentsrepo.Agent, 0, 2)
	for _, agent := range agents {
		if agent.Role == agentsrepo.RoleAdmin && agent.IsActive {
			admins = append(admins, agent)
		}
	}
	return toContacts(admins), nil
}

func toContacts(agents []agentsrepo.Agent) []notification.AgentContact {
	contacts := make([]notification.AgentContact, 0, len(agents))
	for _, agent := range agents {
		if !agent.IsActive {
			continue
		}
		contacts = append(contacts, notification.AgentContact{
			ID:    agent.ID,
			Name:  agent.FullName(),
			Email: agent.Email,
		})
	}
	return contacts
}
