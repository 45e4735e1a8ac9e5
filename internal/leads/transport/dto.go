package transport

import (
	"time"

	"prime_crm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Request DTOs

type IntakeRequest struct {
	FirstName string  `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string  `json:"lastName" validate:"omitempty,max=100"`
	Phone     string  `json:"phoneNumber" validate:"required,min=6,max=32"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Language  string  `json:"language" validate:"omitempty,min=2,max=5"`

	LeadSource       string  `json:"leadSource" validate:"omitempty,max=100"`
	LeadSourceDetail *string `json:"leadSourceDetail,omitempty" validate:"omitempty,max=255"`
	PageURL          *string `json:"pageUrl,omitempty" validate:"omitempty,max=2048"`
	PageType         *string `json:"pageType,omitempty" validate:"omitempty,max=100"`
	PageSlug         *string `json:"pageSlug,omitempty" validate:"omitempty,max=255"`
	Referrer         *string `json:"referrer,omitempty" validate:"omitempty,max=2048"`
	Message          *string `json:"message,omitempty" validate:"omitempty,max=5000"`

	BudgetRange        *string  `json:"budgetRange,omitempty" validate:"omitempty,max=100"`
	Timeframe          *string  `json:"timeframe,omitempty" validate:"omitempty,max=50"`
	PropertyType       []string `json:"propertyType,omitempty" validate:"omitempty,dive,max=100"`
	PropertyPurpose    *string  `json:"propertyPurpose,omitempty" validate:"omitempty,max=100"`
	BedroomsDesired    *string  `json:"bedroomsDesired,omitempty" validate:"omitempty,max=50"`
	LocationPreference []string `json:"locationPreference,omitempty" validate:"omitempty,dive,max=255"`
	SeaViewImportance  *string  `json:"seaViewImportance,omitempty" validate:"omitempty,max=50"`
	IntakeComplete     bool     `json:"intakeComplete"`
	QuestionsAnswered  int      `json:"questionsAnswered" validate:"omitempty,min=0,max=50"`
}

type ReassignRequest struct {
	AgentID uuid.UUID `json:"agentId" validate:"required"`
	Reason  string    `json:"reason" validate:"omitempty,max=500"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new claimed contacted qualified viewing offer won lost"`
}

type AddActivityRequest struct {
	Type  string `json:"activityType" validate:"required,oneof=call email whatsapp meeting note"`
	Notes string `json:"notes" validate:"omitempty,max=5000"`
}

// Response DTOs

type IntakeResponse struct {
	ID        uuid.UUID `json:"id"`
	Score     int       `json:"leadScore"`
	Segment   string    `json:"leadSegment"`
	Priority  string    `json:"leadPriority"`
	NightHeld bool      `json:"nightHeld"`
}

type ListResponse struct {
	Leads  []repository.Lead `json:"leads"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type AttachmentURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
