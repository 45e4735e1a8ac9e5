package handler

import (
	"errors"
	"net/http"

	"prime_crm_backend/internal/routing/repository"
	"prime_crm_backend/internal/routing/service"
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

// Round robin config

type upsertRoundConfigRequest struct {
	Language           string      `json:"language" validate:"required,min=2,max=5"`
	RoundNumber        int         `json:"roundNumber" validate:"required,min=1,max=10"`
	AgentIDs           []uuid.UUID `json:"agentIds"`
	ClaimWindowMinutes int         `json:"claimWindowMinutes" validate:"omitempty,min=1,max=1440"`
	IsAdminFallback    bool        `json:"isAdminFallback"`
	FallbackAdminID    *uuid.UUID  `json:"fallbackAdminId,omitempty"`
	IsActive           *bool       `json:"isActive,omitempty"`
}

func (h *Handler) ListRoundConfigs(c *gin.Context) {
	configs, err := h.svc.ListRoundConfigs(c.Request.Context(), c.Query("language"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, configs)
}

func (h *Handler) UpsertRoundConfig(c *gin.Context) {
	var req upsertRoundConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	cfg, err := h.svc.UpsertRoundConfig(c.Request.Context(), repository.UpsertRoundConfigParams{
		Language:           req.Language,
		RoundNumber:        req.RoundNumber,
		AgentIDs:           req.AgentIDs,
		ClaimWindowMinutes: req.ClaimWindowMinutes,
		IsAdminFallback:    req.IsAdminFallback,
		FallbackAdminID:    req.FallbackAdminID,
		IsActive:           active,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, cfg)
}

// Routing rules

type createRuleRequest struct {
	RuleName            string      `json:"ruleName" validate:"required,min=1,max=255"`
	Priority            int         `json:"priority" validate:"omitempty,min=0,max=1000"`
	IsActive            *bool       `json:"isActive,omitempty"`
	MatchLanguage       []string    `json:"matchLanguage,omitempty"`
	MatchPageType       []string    `json:"matchPageType,omitempty"`
	MatchPageSlug       []string    `json:"matchPageSlug,omitempty"`
	MatchLeadSource     []string    `json:"matchLeadSource,omitempty"`
	MatchLeadSegment    []string    `json:"matchLeadSegment,omitempty"`
	MatchBudgetRange    []string    `json:"matchBudgetRange,omitempty"`
	MatchPropertyType   []string    `json:"matchPropertyType,omitempty"`
	MatchTimeframe      []string    `json:"matchTimeframe,omitempty"`
	AssignToAgentID     uuid.UUID   `json:"assignToAgentId" validate:"required"`
	FallbackToBroadcast *bool       `json:"fallbackToBroadcast,omitempty"`
}

type updateRuleRequest struct {
	RuleName            *string     `json:"ruleName,omitempty" validate:"omitempty,min=1,max=255"`
	Priority            *int        `json:"priority,omitempty" validate:"omitempty,min=0,max=1000"`
	IsActive            *bool       `json:"isActive,omitempty"`
	MatchLanguage       []string    `json:"matchLanguage,omitempty"`
	MatchPageType       []string    `json:"matchPageType,omitempty"`
	MatchPageSlug       []string    `json:"matchPageSlug,omitempty"`
	MatchLeadSource     []string    `json:"matchLeadSource,omitempty"`
	MatchLeadSegment    []string    `json:"matchLeadSegment,omitempty"`
	MatchBudgetRange    []string    `json:"matchBudgetRange,omitempty"`
	MatchPropertyType   []string    `json:"matchPropertyType,omitempty"`
	MatchTimeframe      []string    `json:"matchTimeframe,omitempty"`
	AssignToAgentID     *uuid.UUID  `json:"assignToAgentId,omitempty"`
	FallbackToBroadcast *bool       `json:"fallbackToBroadcast,omitempty"`
}

func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.svc.ListRules(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rules)
}

func (h *Handler) CreateRule(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	fallback := true
	if req.FallbackToBroadcast != nil {
		fallback = *req.FallbackToBroadcast
	}

	rule, err := h.svc.CreateRule(c.Request.Context(), repository.CreateRuleParams{
		RuleName:            req.RuleName,
		Priority:            req.Priority,
		IsActive:            active,
		MatchLanguage:       req.MatchLanguage,
		MatchPageType:       req.MatchPageType,
		MatchPageSlug:       req.MatchPageSlug,
		MatchLeadSource:     req.MatchLeadSource,
		MatchLeadSegment:    req.MatchLeadSegment,
		MatchBudgetRange:    req.MatchBudgetRange,
		MatchPropertyType:   req.MatchPropertyType,
		MatchTimeframe:      req.MatchTimeframe,
		AssignToAgentID:     req.AssignToAgentID,
		FallbackToBroadcast: fallback,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid rule id", nil)
		return
	}

	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	rule, err := h.svc.UpdateRule(c.Request.Context(), ruleID, repository.UpdateRuleParams{
		RuleName:            req.RuleName,
		Priority:            req.Priority,
		IsActive:            req.IsActive,
		MatchLanguage:       req.MatchLanguage,
		MatchPageType:       req.MatchPageType,
		MatchPageSlug:       req.MatchPageSlug,
		MatchLeadSource:     req.MatchLeadSource,
		MatchLeadSegment:    req.MatchLeadSegment,
		MatchBudgetRange:    req.MatchBudgetRange,
		MatchPropertyType:   req.MatchPropertyType,
		MatchTimeframe:      req.MatchTimeframe,
		AssignToAgentID:     req.AssignToAgentID,
		FallbackToBroadcast: req.FallbackToBroadcast,
	})
	if errors.Is(err, repository.ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, "rule not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rule)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid rule id", nil)
		return
	}

	err = h.svc.DeleteRule(c.Request.Context(), ruleID)
	if errors.Is(err, repository.ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, "rule not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Manual job triggers. The scheduler runs these periodically; admins can
// also fire them on demand.

func (h *Handler) CheckClaims(c *gin.Context) {
	summary, err := h.svc.CheckUnclaimed(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"triggeredBy": "manual", "summary": summary})
}

func (h *Handler) CheckClaimSLA(c *gin.Context) {
	flagged, err := h.svc.CheckClaimSLA(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"triggeredBy": "manual", "flagged": flagged})
}

func (h *Handler) CheckSLA(c *gin.Context) {
	flagged, err := h.svc.CheckFirstActionSLA(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"triggeredBy": "manual", "flagged": flagged})
}

func (h *Handler) ReleaseNightLeads(c *gin.Context) {
	released, err := h.svc.ReleaseNightLeads(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"triggeredBy": "manual", "released": released})
}

func (h *Handler) SendAlarms(c *gin.Context) {
	sent, err := h.svc.SendAlarms(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"triggeredBy": "manual", "alarms": sent})
}

func (h *Handler) ReconcileCapacity(c *gin.Context) {
	corrected, err := h.svc.ReconcileCapacity(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"triggeredBy": "manual", "corrected": corrected})
}
