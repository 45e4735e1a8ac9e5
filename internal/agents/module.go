// Package agents provides the agent account bounded context module.
// It covers sign-in, token refresh, and admin management of the agent roster.
package agents

import (
	"prime_crm_backend/internal/agents/handler"
	"prime_crm_backend/internal/agents/repository"
	"prime_crm_backend/internal/agents/service"
	apphttp "prime_crm_backend/internal/http"
	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/logger"
	"prime_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the agents bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the agents module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "agents"
}

// Service returns the agents service for cross-module wiring.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes agent lookups for modules that route leads to agents.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts agent routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public auth routes with stricter rate limiting
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterAuthRoutes(authGroup)

	ctx.Protected.POST("/auth/sign-out", m.handler.SignOut)
	ctx.Protected.GET("/agents/me", m.handler.GetMe)
	ctx.Protected.GET("/agents", m.handler.ListAgents)

	ctx.Admin.POST("/agents", m.handler.CreateAgent)
	ctx.Admin.PATCH("/agents/:id", m.handler.UpdateAgent)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
