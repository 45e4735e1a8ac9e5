package adapters

import (
	"context"

	leadsrepo "prime_crm_backend/internal/leads/repository"
	"prime_crm_backend/internal/notification"

	"github.com/google/uuid"
)

// LeadsAdapter exposes lead summaries to the notification module.
type LeadsAdapter struct {
	repo *leadsrepo.Repository
}

func NewLeadsAdapter(repo *leadsrepo.Repository) *LeadsAdapter {
	return &LeadsAdapter{repo: repo}
}

// Summary implements the notification module's LeadReader.
func (a *LeadsAdapter) Summary(ctx context.Context, id uuid.UUID) (notification.LeadSummary, error) {
	lead, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return notification.LeadSummary{}, err
	}
	return notification.LeadSummary{
		ID:       lead.ID,
		FullName: lead.FullName(),
		Priority: lead.Priority,
	}, nil
}
