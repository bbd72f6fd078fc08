package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/service-desk/internal/domain"
)

// TicketHistoryRepository is the append-only audit log of ticket changes.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

// Create stores entry; old and new values land in jsonb columns.
func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	const insert = `
        INSERT INTO ticket_history (ticket_id, changed_by_role, changed_by_id, change_type, old_value, new_value)
        VALUES (@ticket_id, @role, @actor, @change, @old, @new)
        RETURNING id, created_at`
	args := pgx.NamedArgs{
		"ticket_id": entry.TicketID,
		"role":      entry.ChangedByRole,
		"actor":     entry.ChangedByID,
		"change":    entry.ChangeType,
		"old":       jsonValue(entry.OldValue),
		"new":       jsonValue(entry.NewValue),
	}
	return mapError(r.pool.QueryRow(ctx, insert, args).Scan(&entry.ID, &entry.CreatedAt))
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	const selectEntries = `
        SELECT id, ticket_id, changed_by_role, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, selectEntries, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[domain.TicketHistory])
}

// jsonValue keeps absent values as SQL NULL rather than the JSON literal null.
func jsonValue(value map[string]any) any {
	if len(value) == 0 {
		return nil
	}
	return value
}
