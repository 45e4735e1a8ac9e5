package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("agent not found")
var ErrEmailTaken = errors.New("email already in use")

const (
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Agent struct {
	ID               uuid.UUID
	FirstName        string
	LastName         string
	Email            string
	PasswordHash     string
	Role             string
	Languages        []string
	IsActive         bool
	AcceptsNewLeads  bool
	CurrentLeadCount int
	MaxActiveLeads   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullName returns the agent's display name.
func (a Agent) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// HasCapacity reports whether the agent can take on another lead.
func (a Agent) HasCapacity() bool {
	return a.CurrentLeadCount < a.MaxActiveLeads
}

// Available reports whether the agent is eligible for new lead broadcasts.
func (a Agent) Available() bool {
	return a.IsActive && a.AcceptsNewLeads && a.HasCapacity()
}

const agentColumns = `id, first_name, last_name, email, password_hash, role, languages,
	is_active, accepts_new_leads, current_lead_count, max_active_leads, created_at, updated_at`

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	err := row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash, &a.Role, &a.Languages,
		&a.IsActive, &a.AcceptsNewLeads, &a.CurrentLeadCount, &a.MaxActiveLeads, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return a, err
}

type CreateAgentParams struct {
	FirstName       string
	LastName        string
	Email           string
	PasswordHash    string
	Role            string
	Languages       []string
	AcceptsNewLeads bool
	MaxActiveLeads  int
}

func (r *Repository) Create(ctx context.Context, params CreateAgentParams) (Agent, error) {
	agent, err := scanAgent(r.pool.QueryRow(ctx, `
		INSERT INTO crm_agents (first_name, last_name, email, password_hash, role, languages, accepts_new_leads, max_active_leads)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+agentColumns,
		params.FirstName, params.LastName, params.Email, params.PasswordHash,
		params.Role, params.Languages, params.AcceptsNewLeads, params.MaxActiveLeads,
	))
	if err != nil && isUniqueViolation(err) {
		return Agent{}, ErrEmailTaken
	}
	return agent, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM crm_agents WHERE id = $1`, id))
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM crm_agents WHERE lower(email) = lower($1)`, email))
}

func (r *Repository) List(ctx context.Context) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+` FROM crm_agents ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAgents(rows)
}

// ListEligibleForLanguage returns active agents that accept new leads and
// speak the given language. Capacity filtering is up to the caller so that
// the broadcast layer can distinguish "no agents" from "no capacity".
func (r *Repository) ListEligibleForLanguage(ctx context.Context, language string) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+`
		FROM crm_agents
		WHERE $1 = ANY(languages) AND is_active AND accepts_new_leads
		ORDER BY current_lead_count ASC
	`, language)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAgents(rows)
}

// ListByIDs returns the subset of the given agents that are active and
// accepting new leads, preserving no particular order.
func (r *Repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Agent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+`
		FROM crm_agents
		WHERE id = ANY($1) AND is_active AND accepts_new_leads
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAgents(rows)
}

// FindAnyActiveAdmin returns an arbitrary active admin agent.
func (r *Repository) FindAnyActiveAdmin(ctx context.Context) (Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `
		SELECT `+agentColumns+`
		FROM crm_agents
		WHERE role = 'admin' AND is_active
		ORDER BY current_lead_count ASC
		LIMIT 1
	`))
}

type UpdateAgentParams struct {
	FirstName       *string
	LastName        *string
	Role            *string
	Languages       []string
	IsActive        *bool
	AcceptsNewLeads *bool
	MaxActiveLeads  *int
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateAgentParams) (Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `
		UPDATE crm_agents SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			role = COALESCE($4, role),
			languages = COALESCE($5, languages),
			is_active = COALESCE($6, is_active),
			accepts_new_leads = COALESCE($7, accepts_new_leads),
			max_active_leads = COALESCE($8, max_active_leads),
			updated_at = now()
		WHERE id = $1
		RETURNING `+agentColumns,
		id, params.FirstName, params.LastName, params.Role, params.Languages,
		params.IsActive, params.AcceptsNewLeads, params.MaxActiveLeads,
	))
}

// ReconcileLeadCounts recomputes current_lead_count for every agent from the
// actual number of active assigned leads, returning the number of agents
// whose counter had drifted.
func (r *Repository) ReconcileLeadCounts(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE crm_agents a
		SET current_lead_count = counted.n, updated_at = now()
		FROM (
			SELECT a2.id, COUNT(l.id) AS n
			FROM crm_agents a2
			LEFT JOIN crm_leads l
				ON l.assigned_agent_id = a2.id AND NOT l.archived
			GROUP BY a2.id
		) counted
		WHERE counted.id = a.id AND a.current_lead_count <> counted.n
	`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func collectAgents(rows pgx.Rows) ([]Agent, error) {
	agents := make([]Agent, 0)
	for rows.Next() {
		var a Agent
		if err := rows.Scan(
			&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash, &a.Role, &a.Languages,
			&a.IsActive, &a.AcceptsNewLeads, &a.CurrentLeadCount, &a.MaxActiveLeads, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}
