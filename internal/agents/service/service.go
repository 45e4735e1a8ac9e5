package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"prime_crm_backend/internal/agents/password"
	"prime_crm_backend/internal/agents/repository"
	"prime_crm_backend/internal/agents/token"
	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrTokenInvalid = errors.New("token invalid")
var ErrAgentInactive = errors.New("agent account is deactivated")

const (
	accessTokenType  = "access"
	refreshTokenType = "refresh"

	refreshTokenBytes = 32
)

type Service struct {
	repo *repository.Repository
	cfg  config.AuthServiceConfig
	log  *logger.Logger
}

func New(repo *repository.Repository, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log}
}

// TokenPair holds a signed access token and an opaque refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func (s *Service) SignIn(ctx context.Context, email, plainPassword string) (repository.Agent, TokenPair, error) {
	agent, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Agent{}, TokenPair{}, ErrInvalidCredentials
		}
		return repository.Agent{}, TokenPair{}, err
	}

	if err := password.Compare(agent.PasswordHash, plainPassword); err != nil {
		s.log.AuthEvent("sign_in", agent.Email, false, "bad password")
		return repository.Agent{}, TokenPair{}, ErrInvalidCredentials
	}

	if !agent.IsActive {
		return repository.Agent{}, TokenPair{}, ErrAgentInactive
	}

	pair, err := s.issueTokens(ctx, agent)
	if err != nil {
		return repository.Agent{}, TokenPair{}, err
	}

	s.log.AuthEvent("sign_in", agent.Email, true, "")
	return agent, pair, nil
}

// Refresh rotates the refresh token: the presented token is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (repository.Agent, TokenPair, error) {
	agentID, err := s.repo.ConsumeRefreshToken(ctx, token.HashSHA256(rawRefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return repository.Agent{}, TokenPair{}, ErrTokenInvalid
		}
		return repository.Agent{}, TokenPair{}, err
	}

	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return repository.Agent{}, TokenPair{}, err
	}
	if !agent.IsActive {
		return repository.Agent{}, TokenPair{}, ErrAgentInactive
	}

	pair, err := s.issueTokens(ctx, agent)
	if err != nil {
		return repository.Agent{}, TokenPair{}, err
	}
	return agent, pair, nil
}

func (s *Service) SignOut(ctx context.Context, agentID uuid.UUID) error {
	return s.repo.RevokeAgentTokens(ctx, agentID)
}

func (s *Service) GetMe(ctx context.Context, agentID uuid.UUID) (repository.Agent, error) {
	return s.repo.GetByID(ctx, agentID)
}

func (s *Service) issueTokens(ctx context.Context, agent repository.Agent) (TokenPair, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   agent.ID.String(),
		"roles": []string{agent.Role},
		"type":  accessTokenType,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.GetAccessTokenTTL()).Unix(),
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.GetJWTAccessSecret()))
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := token.GenerateRandomToken(refreshTokenBytes)
	if err != nil {
		return TokenPair{}, err
	}

	expiresAt := now.Add(s.cfg.GetRefreshTokenTTL())
	if err := s.repo.CreateRefreshToken(ctx, agent.ID, token.HashSHA256(refresh), expiresAt); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
