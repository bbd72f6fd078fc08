package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/service-desk/internal/domain"
)

// AgentRepository handles persistence for support agents.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	Update(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id int64) (*domain.Agent, error)
	GetByEmail(ctx context.Context, email string) (*domain.Agent, error)
	GetByUsername(ctx context.Context, username string) (*domain.Agent, error)
	List(ctx context.Context) ([]domain.Agent, error)
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

const agentColumns = `id, first_name, last_name, username, email, password_hash, created_at, updated_at`

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (first_name, last_name, username, email, password_hash)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		agent.FirstName,
		agent.LastName,
		agent.Username,
		agent.Email,
		agent.PasswordHash,
	).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)
	return mapError(err)
}

func (r *agentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	const query = `
        UPDATE agents
        SET first_name=$1, last_name=$2, username=$3, email=$4, password_hash=$5, updated_at=NOW()
        WHERE id=$6`

	cmd, err := r.pool.Exec(ctx, query,
		agent.FirstName,
		agent.LastName,
		agent.Username,
		agent.Email,
		agent.PasswordHash,
		agent.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id int64) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id=$1`
	return scanAgent(r.pool.QueryRow(ctx, query, id))
}

func (r *agentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE email=$1`
	return scanAgent(r.pool.QueryRow(ctx, query, email))
}

func (r *agentRepository) GetByUsername(ctx context.Context, username string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE username=$1`
	return scanAgent(r.pool.QueryRow(ctx, query, username))
}

func (r *agentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, rows.Err()
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	if err := row.Scan(
		&agent.ID,
		&agent.FirstName,
		&agent.LastName,
		&agent.Username,
		&agent.Email,
		&agent.PasswordHash,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &agent, nil
}
