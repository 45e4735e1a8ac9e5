package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type CreateAgentRequest struct {
	FirstName       string   `json:"firstName" validate:"required,min=1,max=100"`
	LastName        string   `json:"lastName" validate:"required,min=1,max=100"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required,min=8,max=72"`
	Role            string   `json:"role" validate:"required,oneof=agent admin"`
	Languages       []string `json:"languages" validate:"required,min=1,dive,min=2,max=5"`
	AcceptsNewLeads bool     `json:"acceptsNewLeads"`
	MaxActiveLeads  int      `json:"maxActiveLeads" validate:"omitempty,min=1,max=500"`
}

type UpdateAgentRequest struct {
	FirstName       *string  `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName        *string  `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	Role            *string  `json:"role,omitempty" validate:"omitempty,oneof=agent admin"`
	Languages       []string `json:"languages,omitempty" validate:"omitempty,min=1,dive,min=2,max=5"`
	IsActive        *bool    `json:"isActive,omitempty"`
	AcceptsNewLeads *bool    `json:"acceptsNewLeads,omitempty"`
	MaxActiveLeads  *int     `json:"maxActiveLeads,omitempty" validate:"omitempty,min=1,max=500"`
}

// Response DTOs

type TokenResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	Agent        AgentResponse `json:"agent"`
}

type AgentResponse struct {
	ID               uuid.UUID `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	Languages        []string  `json:"languages"`
	IsActive         bool      `json:"isActive"`
	AcceptsNewLeads  bool      `json:"acceptsNewLeads"`
	CurrentLeadCount int       `json:"currentLeadCount"`
	MaxActiveLeads   int       `json:"maxActiveLeads"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
