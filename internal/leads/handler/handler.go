package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"prime_crm_backend/internal/leads/repository"
	"prime_crm_backend/internal/leads/service"
	"prime_crm_backend/internal/leads/transport"
	"prime_crm_backend/platform/httpkit"
	"prime_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Intake accepts a public lead submission from the website forms.
func (h *Handler) Intake(c *gin.Context) {
	var req transport.IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Intake(c.Request.Context(), service.IntakeParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
		Language:  req.Language,

		LeadSource:       req.LeadSource,
		LeadSourceDetail: req.LeadSourceDetail,
		PageURL:          req.PageURL,
		PageType:         req.PageType,
		PageSlug:         req.PageSlug,
		Referrer:         req.Referrer,
		Message:          req.Message,

		BudgetRange:        req.BudgetRange,
		Timeframe:          req.Timeframe,
		PropertyType:       req.PropertyType,
		PropertyPurpose:    req.PropertyPurpose,
		BedroomsDesired:    req.BedroomsDesired,
		LocationPreference: req.LocationPreference,
		SeaViewImportance:  req.SeaViewImportance,
		IntakeComplete:     req.IntakeComplete,
		QuestionsAnswered:  req.QuestionsAnswered,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.IntakeResponse{
		ID:        lead.ID,
		Score:     lead.Score,
		Segment:   lead.Segment,
		Priority:  lead.Priority,
		NightHeld: lead.IsNightHeld,
	})
}

func (h *Handler) List(c *gin.Context) {
	filter := repository.ListFilter{
		Status:   c.Query("status"),
		Segment:  c.Query("segment"),
		Priority: c.Query("priority"),
		Language: c.Query("language"),
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "25"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	if agentParam := c.Query("assignedAgentId"); agentParam != "" {
		agentID, err := uuid.Parse(agentParam)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid assignedAgentId", nil)
			return
		}
		filter.AssignedAgentID = &agentID
	}
	if claimedParam := c.Query("claimed"); claimedParam != "" {
		claimed := claimedParam == "true"
		filter.Claimed = &claimed
	}
	filter.Unclaimed = c.Query("board") == "unclaimed"

	leads, total, err := h.svc.List(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ListResponse{
		Leads:  leads,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (h *Handler) Get(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), leadID)
	if errors.Is(err, service.ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Claim(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	lead, err := h.svc.Claim(c.Request.Context(), leadID, id.UserID())
	switch {
	case errors.Is(err, service.ErrNotFound):
		httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
		return
	case errors.Is(err, service.ErrAlreadyClaimed):
		httpkit.Error(c, http.StatusConflict, "lead is no longer claimable", nil)
		return
	case errors.Is(err, service.ErrAgentUnavailable):
		httpkit.Error(c, http.StatusConflict, "agent is inactive or at capacity", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Reassign(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Reassign(c.Request.Context(), leadID, req.AgentID, id.UserID(), req.Reason)
	switch {
	case errors.Is(err, service.ErrNotFound):
		httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
		return
	case errors.Is(err, service.ErrAgentUnavailable):
		httpkit.Error(c, http.StatusConflict, "target agent is inactive", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.UpdateStatus(c.Request.Context(), leadID, req.Status)
	if errors.Is(err, service.ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Archive(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	err := h.svc.Archive(c.Request.Context(), leadID)
	if errors.Is(err, service.ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddActivity(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.AddActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	activity, err := h.svc.AddActivity(c.Request.Context(), leadID, id.UserID(), req.Type, req.Notes)
	if errors.Is(err, service.ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, activity)
}

func (h *Handler) ListActivities(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	activities, err := h.svc.ListActivities(c.Request.Context(), leadID, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, activities)
}

func (h *Handler) UploadAttachment(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "multipart field 'file' is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "could not read uploaded file", nil)
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	attachment, err := h.svc.UploadAttachment(c.Request.Context(), leadID, id.UserID(), fileHeader.Filename, contentType, fileHeader.Size, file)
	if errors.Is(err, service.ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, attachment)
}

func (h *Handler) ListAttachments(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	attachments, err := h.svc.ListAttachments(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, attachments)
}

func (h *Handler) AttachmentURL(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}
	attachmentID, err := uuid.Parse(c.Param("attachmentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid attachment id", nil)
		return
	}

	url, err := h.svc.AttachmentDownloadURL(c.Request.Context(), leadID, attachmentID)
	if errors.Is(err, repository.ErrAttachmentNotFound) {
		httpkit.Error(c, http.StatusNotFound, "attachment not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.AttachmentURLResponse{URL: url, ExpiresAt: time.Now().Add(15 * time.Minute)})
}

func (h *Handler) DeleteAttachment(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}
	attachmentID, err := uuid.Parse(c.Param("attachmentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid attachment id", nil)
		return
	}

	err = h.svc.DeleteAttachment(c.Request.Context(), leadID, attachmentID)
	if errors.Is(err, repository.ErrAttachmentNotFound) {
		httpkit.Error(c, http.StatusNotFound, "attachment not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.Nil, false
	}
	return id, true
}
