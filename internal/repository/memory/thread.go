package memory

import (
	"context"

	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/repository"
)

type messageRepository struct {
	s *Store
}

func (r *messageRepository) Create(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[msg.TicketID]; !ok {
		return repository.ErrNotFound
	}
	msg.ID = r.s.ids.Next()
	r.s.messages[msg.TicketID] = append(r.s.messages[msg.TicketID], *msg)
	return nil
}

func (r *messageRepository) ListByTicket(_ context.Context, ticketID int64) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.Message{}, r.s.messages[ticketID]...), nil
}

type historyRepository struct {
	s *Store
}

func (r *historyRepository) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = r.s.ids.Next()
	entry.CreatedAt = r.s.now()
	r.s.history[entry.TicketID] = append(r.s.history[entry.TicketID], *entry)
	return nil
}

func (r *historyRepository) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.TicketHistory{}, r.s.history[ticketID]...), nil
}
