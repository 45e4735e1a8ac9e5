package handler

import (
	"errors"
	"net/http"

	"prime_crm_backend/internal/agents/repository"
	"prime_crm_backend/internal/agents/service"
	"prime_crm_backend/internal/agents/transport"
	"prime_crm_backend/platform/httpkit"
	"prime_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterAuthRoutes(rg *gin.RouterGroup) {
	rg.POST("/sign-in", h.SignIn)
	rg.POST("/refresh", h.Refresh)
}

func (h *Handler) SignIn(c *gin.Context) {
	var req transport.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	agent, pair, err := h.svc.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpkit.Error(c, http.StatusUnauthorized, err.Error(), nil)
		case errors.Is(err, service.ErrAgentInactive):
			httpkit.Error(c, http.StatusForbidden, err.Error(), nil)
		default:
			httpkit.Error(c, http.StatusInternalServerError, "sign in failed", nil)
		}
		return
	}

	httpkit.OK(c, tokenResponse(agent, pair))
}

func (h *Handler) Refresh(c *gin.Context) {
	var req transport.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	agent, pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalid) || errors.Is(err, service.ErrAgentInactive) {
			httpkit.Error(c, http.StatusUnauthorized, "invalid refresh token", nil)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "refresh failed", nil)
		return
	}

	httpkit.OK(c, tokenResponse(agent, pair))
}

func (h *Handler) SignOut(c *gin.Context) {
	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	if err := h.svc.SignOut(c.Request.Context(), identity.UserID()); err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "sign out failed", nil)
		return
	}
	httpkit.OK(c, gin.H{"success": true})
}

func (h *Handler) GetMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	agent, err := h.svc.GetMe(c.Request.Context(), identity.UserID())
	if err != nil {
		httpkit.Error(c, http.StatusNotFound, "agent not found", nil)
		return
	}
	httpkit.OK(c, agentResponse(agent))
}

func (h *Handler) ListAgents(c *gin.Context) {
	agents, err := h.svc.ListAgents(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to list agents", nil)
		return
	}

	out := make([]transport.AgentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentResponse(a))
	}
	httpkit.OK(c, out)
}

func (h *Handler) CreateAgent(c *gin.Context) {
	var req transport.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	agent, err := h.svc.CreateAgent(c.Request.Context(), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, agentResponse(agent))
}

func (h *Handler) UpdateAgent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	agent, err := h.svc.UpdateAgent(c.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "agent not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, agentResponse(agent))
}

func tokenResponse(agent repository.Agent, pair service.TokenPair) transport.TokenResponse {
	return transport.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Agent:        agentResponse(agent),
	}
}

func agentResponse(a repository.Agent) transport.AgentResponse {
	return transport.AgentResponse{
		ID:               a.ID,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		Email:            a.Email,
		Role:             a.Role,
		Languages:        a.Languages,
		IsActive:         a.IsActive,
		AcceptsNewLeads:  a.AcceptsNewLeads,
		CurrentLeadCount: a.CurrentLeadCount,
		MaxActiveLeads:   a.MaxActiveLeads,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}
