// Package memory keeps every repository in process memory. It backs
// STORE_DRIVER=memory and the service tests.
package memory

import (
	"sync"
	"time"

	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/idgen"
	"github.com/deskflow/service-desk/internal/repository"
)

// Store owns the shared tables. All repositories returned from it share one
// lock.
type Store struct {
	mu        sync.RWMutex
	ids       idgen.Generator
	now       func() time.Time
	customers map[int64]domain.Customer
	agents    map[int64]domain.Agent
	tickets   map[int64]domain.Ticket
	messages  map[int64][]domain.Message
	history   map[int64][]domain.TicketHistory
}

// NewStore creates an empty store. A nil generator falls back to a sequence.
func NewStore(ids idgen.Generator) *Store {
	if ids == nil {
		ids = idgen.NewSequence(0)
	}
	return &Store{
		ids:       ids,
		now:       time.Now,
		customers: make(map[int64]domain.Customer),
		agents:    make(map[int64]domain.Agent),
		tickets:   make(map[int64]domain.Ticket),
		messages:  make(map[int64][]domain.Message),
		history:   make(map[int64][]domain.TicketHistory),
	}
}

func (s *Store) Customers() repository.CustomerRepository { return &customerRepository{s} }

func (s *Store) Agents() repository.AgentRepository { return &agentRepository{s} }

func (s *Store) Tickets() repository.TicketRepository { return &ticketRepository{s} }

func (s *Store) Messages() repository.TicketMessageRepository { return &messageRepository{s} }

func (s *Store) History() repository.TicketHistoryRepository { return &historyRepository{s} }
