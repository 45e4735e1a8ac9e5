// Package routing wires the lead routing configuration and job trigger
// endpoints.
package routing

import (
	"prime_crm_backend/internal/events"
	apphttp "prime_crm_backend/internal/http"
	"prime_crm_backend/internal/routing/handler"
	"prime_crm_backend/internal/routing/repository"
	"prime_crm_backend/internal/routing/service"
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

func NewModule(pool *pgxpool.Pool, bus events.Bus, cfg config.RoutingConfig, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, cfg, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

func (m *Module) Name() string { return "routing" }

func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	admin := ctx.Admin.Group("/routing")

	admin.GET("/round-robin", m.handler.ListRoundConfigs)
	admin.PUT("/round-robin", m.handler.UpsertRoundConfig)

	admin.GET("/rules", m.handler.ListRules)
	admin.POST("/rules", m.handler.CreateRule)
	admin.PATCH("/rules/:id", m.handler.UpdateRule)
	admin.DELETE("/rules/:id", m.handler.DeleteRule)

	admin.POST("/check-claims", m.handler.CheckClaims)
	admin.POST("/check-claim-sla", m.handler.CheckClaimSLA)
	admin.POST("/check-sla", m.handler.CheckSLA)
	admin.POST("/release-night-leads", m.handler.ReleaseNightLeads)
	admin.POST("/send-alarms", m.handler.SendAlarms)
	admin.POST("/reconcile-capacity", m.handler.ReconcileCapacity)
}

var _ apphttp.Module = (*Module)(nil)
