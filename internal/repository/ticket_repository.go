package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/service-desk/internal/domain"
)

// TicketFilter narrows ticket listings. Nil fields are ignored.
type TicketFilter struct {
	CustomerID *int64
	AgentID    *int64
	Statuses   []domain.TicketStatus
}

// Matches reports whether ticket satisfies the filter.
func (f TicketFilter) Matches(ticket *domain.Ticket) bool {
	if f.CustomerID != nil && ticket.CustomerID != *f.CustomerID {
		return false
	}
	if f.AgentID != nil && !ticket.IsAssignedTo(*f.AgentID) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, status := range f.Statuses {
		if ticket.Status == status {
			return true
		}
	}
	return false
}

// TicketRepository encapsulates ticket persistence. List returns tickets in
// id order. Update applies only when ticket.Version matches the stored
// version and bumps it on success.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountOpenByAgent(ctx context.Context) (map[int64]int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, customer_id, agent_id, topic, content, priority, status, version, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (customer_id, agent_id, topic, content, priority, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.CustomerID,
		ticket.AgentID,
		ticket.Topic,
		ticket.Content,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.Version, &ticket.UpdatedAt)
	return mapError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET agent_id=$1, priority=$2, status=$3, closed_at=$4,
            version=version+1, updated_at=NOW()
        WHERE id=$5 AND version=$6
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.AgentID,
		ticket.Priority,
		ticket.Status,
		ticket.ClosedAt,
		ticket.ID,
		ticket.Version,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AgentID != nil {
		args = append(args, *filter.AgentID)
		clauses = append(clauses, fmt.Sprintf("agent_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY id ASC`,
		ticketColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountOpenByAgent(ctx context.Context) (map[int64]int, error) {
	const query = `
        SELECT agent_id, COUNT(*) FROM tickets
        WHERE status='OPEN' AND agent_id IS NOT NULL
        GROUP BY agent_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[int64]int{}
	for rows.Next() {
		var (
			agentID int64
			count   int
		)
		if err := rows.Scan(&agentID, &count); err != nil {
			return nil, err
		}
		counts[agentID] = count
	}
	return counts, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.CustomerID,
		&ticket.AgentID,
		&ticket.Topic,
		&ticket.Content,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &ticket, nil
}
