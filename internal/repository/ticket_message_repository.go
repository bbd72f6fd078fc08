package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/service-desk/internal/domain"
)

// TicketMessageRepository manages ticket thread messages. Threads are
// append-only and listed in insertion order.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_type, sender_name, content, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderType,
		msg.SenderName,
		msg.Content,
		msg.CreatedAt,
	).Scan(&msg.ID)
	return mapError(err)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, sender_type, sender_name, content, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Message])
}
