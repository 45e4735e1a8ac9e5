// Package leads wires the lead intake, claiming and lifecycle endpoints.
package leads

import (
	"prime_crm_backend/internal/events"
	"prime_crm_backend/internal/leads/handler"
	"prime_crm_backend/internal/leads/repository"
	"prime_crm_backend/internal/leads/service"
	apphttp "prime_crm_backend/internal/http"
	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/logger"
	"prime_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

func NewModule(pool *pgxpool.Pool, agents service.AgentLookup, bus events.Bus, cfg config.RoutingConfig, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, agents, bus, cfg, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

func (m *Module) Name() string { return "leads" }

func (m *Module) Service() *service.Service { return m.service }

func (m *Module) Repository() *repository.Repository { return m.repo }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Website forms post here without authentication.
	public := ctx.V1.Group("/public")
	public.POST("/leads", m.handler.Intake)

	leads := ctx.Protected.Group("/leads")
	leads.GET("", m.handler.List)
	leads.GET("/:id", m.handler.Get)
	leads.POST("/:id/claim", m.handler.Claim)
	leads.PATCH("/:id/status", m.handler.UpdateStatus)
	leads.GET("/:id/activities", m.handler.ListActivities)
	leads.POST("/:id/activities", m.handler.AddActivity)
	leads.GET("/:id/attachments", m.handler.ListAttachments)
	leads.POST("/:id/attachments", m.handler.UploadAttachment)
	leads.GET("/:id/attachments/:attachmentId/url", m.handler.AttachmentURL)
	leads.DELETE("/:id/attachments/:attachmentId", m.handler.DeleteAttachment)

	admin := ctx.Admin.Group("/leads")
	admin.POST("/:id/reassign", m.handler.Reassign)
	admin.POST("/:id/archive", m.handler.Archive)
}

var _ apphttp.Module = (*Module)(nil)
