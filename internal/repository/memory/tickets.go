package memory

import (
	"context"
	"sort"

	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/repository"
)

type ticketRepository struct {
	s *Store
}

func (r *ticketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket.ID = r.s.ids.Next()
	ticket.Version = 1
	ticket.UpdatedAt = r.s.now()
	r.s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *ticketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != ticket.Version {
		return repository.ErrVersionConflict
	}
	// customer, topic, content and created-at are fixed at creation.
	stored.AgentID = copyID(ticket.AgentID)
	stored.Priority = ticket.Priority
	stored.Status = ticket.Status
	stored.ClosedAt = ticket.ClosedAt
	stored.Version++
	stored.UpdatedAt = r.s.now()
	r.s.tickets[ticket.ID] = stored

	ticket.Version = stored.Version
	ticket.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *ticketRepository) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := cloneTicket(ticket)
	return &found, nil
}

func (r *ticketRepository) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := []domain.Ticket{}
	for _, ticket := range r.s.tickets {
		if filter.Matches(&ticket) {
			result = append(result, cloneTicket(ticket))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *ticketRepository) CountOpenByAgent(_ context.Context) (map[int64]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := map[int64]int{}
	for _, ticket := range r.s.tickets {
		if ticket.Status == domain.TicketStatusOpen && ticket.AgentID != nil {
			counts[*ticket.AgentID]++
		}
	}
	return counts, nil
}

func cloneTicket(ticket domain.Ticket) domain.Ticket {
	ticket.AgentID = copyID(ticket.AgentID)
	if ticket.ClosedAt != nil {
		closedAt := *ticket.ClosedAt
		ticket.ClosedAt = &closedAt
	}
	ticket.Messages = nil
	return ticket
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
