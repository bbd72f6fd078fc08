package memory

import (
	"context"
	"sort"

	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/repository"
)

type customerRepository struct {
	s *Store
}

func (r *customerRepository) Create(_ context.Context, customer *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.customers {
		if existing.Email == customer.Email {
			return repository.ErrDuplicate
		}
	}
	now := r.s.now()
	customer.ID = r.s.ids.Next()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	r.s.customers[customer.ID] = *customer
	return nil
}

func (r *customerRepository) Update(_ context.Context, customer *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[customer.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, existing := range r.s.customers {
		if id != customer.ID && existing.Email == customer.Email {
			return repository.ErrDuplicate
		}
	}
	customer.UpdatedAt = r.s.now()
	r.s.customers[customer.ID] = *customer
	return nil
}

func (r *customerRepository) GetByID(_ context.Context, id int64) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	customer, ok := r.s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &customer, nil
}

func (r *customerRepository) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, customer := range r.s.customers {
		if customer.Email == email {
			found := customer
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *customerRepository) List(_ context.Context) ([]domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Customer, 0, len(r.s.customers))
	for _, customer := range r.s.customers {
		result = append(result, customer)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type agentRepository struct {
	s *Store
}

func (r *agentRepository) Create(_ context.Context, agent *domain.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.conflicts(0, agent) {
		return repository.ErrDuplicate
	}
	now := r.s.now()
	agent.ID = r.s.ids.Next()
	agent.CreatedAt = now
	agent.UpdatedAt = now
	r.s.agents[agent.ID] = *agent
	return nil
}

func (r *agentRepository) Update(_ context.Context, agent *domain.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.agents[agent.ID]; !ok {
		return repository.ErrNotFound
	}
	if r.conflicts(agent.ID, agent) {
		return repository.ErrDuplicate
	}
	agent.UpdatedAt = r.s.now()
	r.s.agents[agent.ID] = *agent
	return nil
}

// conflicts must be called with the lock held.
func (r *agentRepository) conflicts(selfID int64, agent *domain.Agent) bool {
	for id, existing := range r.s.agents {
		if id == selfID {
			continue
		}
		if existing.Email == agent.Email || existing.Username == agent.Username {
			return true
		}
	}
	return false
}

func (r *agentRepository) GetByID(_ context.Context, id int64) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	agent, ok := r.s.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &agent, nil
}

func (r *agentRepository) GetByEmail(_ context.Context, email string) (*domain.Agent, error) {
	return r.find(func(a domain.Agent) bool { return a.Email == email })
}

func (r *agentRepository) GetByUsername(_ context.Context, username string) (*domain.Agent, error) {
	return r.find(func(a domain.Agent) bool { return a.Username == username })
}

func (r *agentRepository) find(match func(domain.Agent) bool) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, agent := range r.s.agents {
		if match(agent) {
			found := agent
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *agentRepository) List(_ context.Context) ([]domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Agent, 0, len(r.s.agents))
	for _, agent := range r.s.agents {
		result = append(result, agent)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
