package inapp

import (
	"context"

	"prime_crm_backend/internal/notification/sse"
	"prime_crm_backend/platform/apperr"
	"prime_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type Service struct {
	repo *Repository
	sse  *sse.Service
	log  *logger.Logger
}

func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// SetSSE injects the SSE service (circular dependency avoidance).
func (s *Service) SetSSE(sseSvc *sse.Service) {
	s.sse = sseSvc
}

type SendParams struct {
	AgentID   uuid.UUID
	LeadID    *uuid.UUID
	Type      string
	Title     string
	Message   string
	ActionURL string
}

// Send persists the notification and pushes it via SSE if the agent is online.
func (s *Service) Send(ctx context.Context, p SendParams) error {
	if s == nil || s.repo == nil {
		return apperr.Internal("in-app notification service not configured")
	}

	notif, err := s.repo.Create(ctx, CreateParams{
		AgentID:   p.AgentID,
		LeadID:    p.LeadID,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		ActionURL: p.ActionURL,
	})
	if err != nil {
		if s.log != nil {
			s.log.Error("failed to persist in-app notification", "error", err, "agentId", p.AgentID)
		}
		return err
	}

	if s.sse != nil {
		s.sse.Publish(p.AgentID, sse.Event{
			Type:    sse.EventInAppNotification,
			Message: notif.Title,
			Data:    notif,
		})
	}

	return nil
}

func (s *Service) List(ctx context.Context, agentID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, agentID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, agentID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, agentID)
}

func (s *Service) MarkRead(ctx context.Context, agentID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, agentID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, agentID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, agentID)
}

func (s *Service) Delete(ctx context.Context, agentID, id uuid.UUID) error {
	return s.repo.Delete(ctx, agentID, id)
}
