package service

import (
	"context"
	"errors"
	"strings"

	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/repository"
	apperrors "github.com/deskflow/service-desk/pkg/util/errorutil"
)

// Directory looks up registered customers and agents. Each variant lives in
// its own repository with its own id space.
type Directory struct {
	customers repository.CustomerRepository
	agents    repository.AgentRepository
}

// DirectoryDependencies bundles repositories.
type DirectoryDependencies struct {
	CustomerRepo repository.CustomerRepository
	AgentRepo    repository.AgentRepository
}

// NewDirectory creates the directory.
func NewDirectory(deps DirectoryDependencies) *Directory {
	return &Directory{customers: deps.CustomerRepo, agents: deps.AgentRepo}
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail searches the customer pool, then the agent pool.
func (d *Directory) FindByEmail(ctx context.Context, email string) (domain.Person, error) {
	email = NormalizeEmail(email)
	customer, err := d.customers.GetByEmail(ctx, email)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewStoreError(err)
	}
	agent, err := d.agents.GetByEmail(ctx, email)
	if err == nil {
		return agent, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewStoreError(err)
	}
	return nil, apperrors.NewNotFound("person", map[string]any{"email": email})
}

// FindCustomerByEmail searches the customer pool only.
func (d *Directory) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	email = NormalizeEmail(email)
	customer, err := d.customers.GetByEmail(ctx, email)
	if err != nil {
		return nil, lookupError(err, "customer", map[string]any{"email": email})
	}
	return customer, nil
}

// FindAgentByEmail searches the agent pool only.
func (d *Directory) FindAgentByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	email = NormalizeEmail(email)
	agent, err := d.agents.GetByEmail(ctx, email)
	if err != nil {
		return nil, lookupError(err, "agent", map[string]any{"email": email})
	}
	return agent, nil
}

// FindByUsername looks up an agent. Customers have no username.
func (d *Directory) FindByUsername(ctx context.Context, username string) (*domain.Agent, error) {
	username = strings.TrimSpace(username)
	agent, err := d.agents.GetByUsername(ctx, username)
	if err != nil {
		return nil, lookupError(err, "agent", map[string]any{"username": username})
	}
	return agent, nil
}

// FindByID resolves a person of the given role.
func (d *Directory) FindByID(ctx context.Context, role domain.Role, id int64) (domain.Person, error) {
	switch role {
	case domain.RoleCustomer:
		return d.FindCustomer(ctx, id)
	case domain.RoleAgent:
		return d.FindAgent(ctx, id)
	default:
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
}

// FindCustomer resolves a customer by id.
func (d *Directory) FindCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	customer, err := d.customers.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "customer", map[string]any{"customer_id": id})
	}
	return customer, nil
}

// FindAgent resolves an agent by id.
func (d *Directory) FindAgent(ctx context.Context, id int64) (*domain.Agent, error) {
	agent, err := d.agents.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "agent", map[string]any{"agent_id": id})
	}
	return agent, nil
}

// ResolveIdentity returns the identity of a still-registered person.
func (d *Directory) ResolveIdentity(ctx context.Context, role domain.Role, id int64) (domain.Identity, error) {
	person, err := d.FindByID(ctx, role, id)
	if err != nil {
		return domain.Identity{}, err
	}
	return person.Identity(), nil
}

// ListAgents returns the whole agent pool.
func (d *Directory) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	agents, err := d.agents.List(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return agents, nil
}

// Add stores a new person and returns the id assigned by the store. Emails
// are unique within a pool; agent usernames are unique too.
func (d *Directory) Add(ctx context.Context, person domain.Person) (int64, error) {
	if err := d.checkUnique(ctx, person); err != nil {
		return 0, err
	}
	var err error
	switch p := person.(type) {
	case *domain.Customer:
		err = d.customers.Create(ctx, p)
	case *domain.Agent:
		err = d.agents.Create(ctx, p)
	}
	if err != nil {
		return 0, createError(err, "email or username already registered")
	}
	return person.PersonID(), nil
}

// Update stores changed names, email or password of a registered person.
// A new email must still be free within the pool.
func (d *Directory) Update(ctx context.Context, person domain.Person) error {
	if err := d.checkUnique(ctx, person); err != nil {
		return err
	}
	var err error
	switch p := person.(type) {
	case *domain.Customer:
		err = d.customers.Update(ctx, p)
	case *domain.Agent:
		err = d.agents.Update(ctx, p)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return lookupError(err, strings.ToLower(string(person.PersonRole())), map[string]any{"id": person.PersonID()})
	}
	if err != nil {
		return createError(err, "email or username already registered")
	}
	return nil
}

// checkUnique normalizes the login fields of person and fails with Conflict
// when another person of the same pool already holds them. Person ids of
// zero belong to people not stored yet.
func (d *Directory) checkUnique(ctx context.Context, person domain.Person) error {
	switch p := person.(type) {
	case *domain.Customer:
		p.Email = NormalizeEmail(p.Email)
		other, err := d.customers.GetByEmail(ctx, p.Email)
		return ensureFree(p.ID, idOfCustomer(other), err, "email already registered", map[string]any{"email": p.Email})
	case *domain.Agent:
		p.Email = NormalizeEmail(p.Email)
		p.Username = strings.TrimSpace(p.Username)
		other, err := d.agents.GetByEmail(ctx, p.Email)
		if err := ensureFree(p.ID, idOfAgent(other), err, "email already registered", map[string]any{"email": p.Email}); err != nil {
			return err
		}
		other, err = d.agents.GetByUsername(ctx, p.Username)
		return ensureFree(p.ID, idOfAgent(other), err, "username already taken", map[string]any{"username": p.Username})
	default:
		return apperrors.NewValidationError("unsupported person", nil)
	}
}

// ensureFree accepts a lookup that found nothing or found selfID itself.
func ensureFree(selfID, holderID int64, lookupErr error, message string, details map[string]any) error {
	switch {
	case lookupErr == nil:
		if selfID != 0 && holderID == selfID {
			return nil
		}
		return apperrors.NewConflict(message, details)
	case errors.Is(lookupErr, repository.ErrNotFound):
		return nil
	default:
		return apperrors.NewStoreError(lookupErr)
	}
}

func idOfCustomer(c *domain.Customer) int64 {
	if c == nil {
		return 0
	}
	return c.ID
}

func idOfAgent(a *domain.Agent) int64 {
	if a == nil {
		return 0
	}
	return a.ID
}

func lookupError(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.NewStoreError(err)
}

func createError(err error, duplicateMessage string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflict(duplicateMessage, nil)
	}
	return apperrors.NewStoreError(err)
}
