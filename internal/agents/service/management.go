package service

import (
	"context"
	"strings"

	"prime_crm_backend/internal/agents/password"
	"prime_crm_backend/internal/agents/repository"
	"prime_crm_backend/internal/agents/transport"
	"prime_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

const defaultMaxActiveLeads = 25

// CreateAgent provisions a new agent or admin account (admin-only operation).
func (s *Service) CreateAgent(ctx context.Context, req transport.CreateAgentRequest) (repository.Agent, error) {
	hash, err := password.Hash(req.Password)
	if err != nil {
		return repository.Agent{}, apperr.Wrap(apperr.KindInternal, "failed to hash password", err)
	}

	maxLeads := req.MaxActiveLeads
	if maxLeads <= 0 {
		maxLeads = defaultMaxActiveLeads
	}

	languages := normalizeLanguages(req.Languages)
	if len(languages) == 0 {
		return repository.Agent{}, apperr.Validation("at least one language is required")
	}

	agent, err := s.repo.Create(ctx, repository.CreateAgentParams{
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:    hash,
		Role:            req.Role,
		Languages:       languages,
		AcceptsNewLeads: req.AcceptsNewLeads,
		MaxActiveLeads:  maxLeads,
	})
	if err != nil {
		if err == repository.ErrEmailTaken {
			return repository.Agent{}, apperr.Conflict("email already in use")
		}
		return repository.Agent{}, err
	}
	return agent, nil
}

func (s *Service) UpdateAgent(ctx context.Context, id uuid.UUID, req transport.UpdateAgentRequest) (repository.Agent, error) {
	var languages []string
	if req.Languages != nil {
		languages = normalizeLanguages(req.Languages)
		if len(languages) == 0 {
			return repository.Agent{}, apperr.Validation("languages cannot be empty")
		}
	}

	return s.repo.Update(ctx, id, repository.UpdateAgentParams{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Role:            req.Role,
		Languages:       languages,
		IsActive:        req.IsActive,
		AcceptsNewLeads: req.AcceptsNewLeads,
		MaxActiveLeads:  req.MaxActiveLeads,
	})
}

func (s *Service) ListAgents(ctx context.Context) ([]repository.Agent, error) {
	return s.repo.List(ctx)
}

func normalizeLanguages(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, lang := range raw {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}
