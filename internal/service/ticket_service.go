package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/service-desk/internal/config"
	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/events"
	"github.com/deskflow/service-desk/internal/repository"
	apperrors "github.com/deskflow/service-desk/pkg/util/errorutil"
)

// ResolveOutcome tells a caller whether ResolveTicket changed anything.
type ResolveOutcome string

const (
	ResolveOutcomeResolved        ResolveOutcome = "resolved"
	ResolveOutcomeAlreadyResolved ResolveOutcome = "already resolved"
)

// TicketService is the ticket lifecycle engine. Every read-modify-write of a
// ticket runs under that ticket's lock and is persisted with a version check.
type TicketService struct {
	tickets          repository.TicketRepository
	messages         repository.TicketMessageRepository
	history          repository.TicketHistoryRepository
	directory        *Directory
	policy           AssignmentPolicy
	dispatcher       events.Dispatcher
	logger           *zap.Logger
	unassignedPolicy string
	locks            *ticketLocks
	now              func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	MessageRepo      repository.TicketMessageRepository
	HistoryRepo      repository.TicketHistoryRepository
	Directory        *Directory
	Policy           AssignmentPolicy
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	UnassignedPolicy string
	Clock            func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:          deps.TicketRepo,
		messages:         deps.MessageRepo,
		history:          deps.HistoryRepo,
		directory:        deps.Directory,
		policy:           deps.Policy,
		dispatcher:       deps.Dispatcher,
		logger:           deps.Logger,
		unassignedPolicy: deps.UnassignedPolicy,
		locks:            newTicketLocks(),
		now:              deps.Clock,
	}
	if svc.policy == nil {
		svc.policy = NewLeastLoadedPolicy(nil)
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.unassignedPolicy == "" {
		svc.unassignedPolicy = config.UnassignedPolicyAllow
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// CreateTicket files a ticket for customer and routes it to the least loaded
// agent. With an empty agent pool the ticket is stored unassigned, unless
// the service runs with the reject policy.
func (s *TicketService) CreateTicket(ctx context.Context, customer *domain.Customer, topic, content string) (*domain.Ticket, error) {
	if customer == nil || customer.ID < 0 {
		return nil, apperrors.NewValidationError("customer is required", nil)
	}
	topic = strings.TrimSpace(topic)
	content = strings.TrimSpace(content)
	if fields := emptyFields(map[string]string{"topic": topic, "content": content}); len(fields) > 0 {
		return nil, apperrors.NewValidationError("topic and content are required", map[string]any{"fields": fields})
	}
	if _, err := s.directory.FindCustomer(ctx, customer.ID); err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.NewValidationError("customer is not registered", map[string]any{"customer_id": customer.ID})
		}
		return nil, err
	}

	agents, err := s.directory.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	openCounts, err := s.tickets.CountOpenByAgent(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	agent := s.policy.SelectAgent(agents, openCounts)
	if agent == nil && s.unassignedPolicy == config.UnassignedPolicyReject {
		return nil, apperrors.NewNoAgentsAvailable()
	}

	now := s.now()
	ticket := &domain.Ticket{
		CustomerID: customer.ID,
		Topic:      topic,
		Content:    content,
		Priority:   domain.TicketPriorityLow,
		Status:     domain.TicketStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if agent != nil {
		ticket.AgentID = &agent.ID
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if agent == nil {
		s.logger.Warn("ticket created without an agent",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int64("customer_id", customer.ID))
	}

	actor := customer.Identity()
	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeCreated, nil, map[string]any{
		"status":   ticket.Status,
		"priority": ticket.Priority,
		"agent_id": ticket.AgentID,
	})
	s.publishEvent(ctx, actor, ticket.ID, events.EventTicketCreated, events.TicketCreatedPayload{
		CustomerID: ticket.CustomerID,
		AgentID:    ticket.AgentID,
		Priority:   ticket.Priority,
		Topic:      ticket.Topic,
	})
	return ticket, nil
}

// SetPriority changes the priority of an open ticket. Only the assigned agent
// may do so.
func (s *TicketService) SetPriority(ctx context.Context, ticketID int64, agent domain.Identity, priority domain.TicketPriority) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.mutate(ctx, ticketID, func() (*pendingEvent, error) {
		var err error
		if ticket, err = s.loadTicket(ctx, ticketID); err != nil {
			return nil, err
		}
		if err := requireAssignee(ticket, agent); err != nil {
			return nil, err
		}
		if !priority.Valid() {
			return nil, apperrors.NewValidationError("priority must be 1, 2 or 3", map[string]any{"priority": int(priority)})
		}
		if ticket.IsClosed() {
			return nil, apperrors.NewConflict("ticket already resolved", map[string]any{"ticket_id": ticketID})
		}
		if ticket.Priority == priority {
			return nil, nil
		}

		oldPriority := ticket.Priority
		ticket.Priority = priority
		if err := s.saveTicket(ctx, ticket); err != nil {
			return nil, err
		}
		s.recordHistory(ctx, agent, ticket.ID, domain.ChangeTypePriority,
			map[string]any{"priority": oldPriority},
			map[string]any{"priority": priority})
		return &pendingEvent{actor: agent, eventType: events.EventTicketPriorityChanged, payload: events.TicketPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: priority,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ResolveTicket closes the ticket. Resolving an already closed ticket is a
// no-op reported through the outcome.
func (s *TicketService) ResolveTicket(ctx context.Context, ticketID int64, agent domain.Identity) (*domain.Ticket, ResolveOutcome, error) {
	var (
		ticket  *domain.Ticket
		outcome ResolveOutcome
	)
	err := s.mutate(ctx, ticketID, func() (*pendingEvent, error) {
		var err error
		if ticket, err = s.loadTicket(ctx, ticketID); err != nil {
			return nil, err
		}
		if err := requireAssignee(ticket, agent); err != nil {
			return nil, err
		}
		if ticket.IsClosed() {
			outcome = ResolveOutcomeAlreadyResolved
			return nil, nil
		}

		closedAt := s.now()
		ticket.Status = domain.TicketStatusClosed
		ticket.ClosedAt = &closedAt
		if err := s.saveTicket(ctx, ticket); err != nil {
			return nil, err
		}
		outcome = ResolveOutcomeResolved
		s.recordHistory(ctx, agent, ticket.ID, domain.ChangeTypeStatus,
			map[string]any{"status": domain.TicketStatusOpen},
			map[string]any{"status": domain.TicketStatusClosed})
		return &pendingEvent{actor: agent, eventType: events.EventTicketResolved, payload: events.TicketResolvedPayload{
			OldStatus: domain.TicketStatusOpen,
			NewStatus: domain.TicketStatusClosed,
		}}, nil
	})
	if err != nil {
		return nil, "", err
	}
	return ticket, outcome, nil
}

// ClaimTicket lets an agent take an open ticket nobody is assigned to.
func (s *TicketService) ClaimTicket(ctx context.Context, ticketID int64, agent domain.Identity) (*domain.Ticket, error) {
	if !agent.IsAgent() {
		return nil, apperrors.NewForbidden("only agents can claim tickets")
	}
	var ticket *domain.Ticket
	err := s.mutate(ctx, ticketID, func() (*pendingEvent, error) {
		var err error
		if ticket, err = s.loadTicket(ctx, ticketID); err != nil {
			return nil, err
		}
		if ticket.IsAssignedTo(agent.ID) {
			return nil, nil
		}
		if ticket.IsClosed() {
			return nil, apperrors.NewConflict("ticket already resolved", map[string]any{"ticket_id": ticketID})
		}
		if ticket.AgentID != nil {
			return nil, apperrors.NewConflict("ticket already assigned", map[string]any{"ticket_id": ticketID})
		}
		return s.assign(ctx, ticket, agent, agent.ID)
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ReassignTicket hands an open ticket from its assignee to another agent.
func (s *TicketService) ReassignTicket(ctx context.Context, ticketID int64, agent domain.Identity, targetAgentID int64) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.mutate(ctx, ticketID, func() (*pendingEvent, error) {
		var err error
		if ticket, err = s.loadTicket(ctx, ticketID); err != nil {
			return nil, err
		}
		if err := requireAssignee(ticket, agent); err != nil {
			return nil, err
		}
		if ticket.IsClosed() {
			return nil, apperrors.NewConflict("ticket already resolved", map[string]any{"ticket_id": ticketID})
		}
		if _, err := s.directory.FindAgent(ctx, targetAgentID); err != nil {
			return nil, err
		}
		if ticket.IsAssignedTo(targetAgentID) {
			return nil, nil
		}
		return s.assign(ctx, ticket, agent, targetAgentID)
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) assign(ctx context.Context, ticket *domain.Ticket, actor domain.Identity, agentID int64) (*pendingEvent, error) {
	oldAgent := ticket.AgentID
	newAgent := agentID
	ticket.AgentID = &newAgent
	if err := s.saveTicket(ctx, ticket); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeAssignee,
		map[string]any{"agent_id": oldAgent},
		map[string]any{"agent_id": ticket.AgentID})
	return &pendingEvent{actor: actor, eventType: events.EventTicketAssigned, payload: events.TicketAssignedPayload{
		OldAgentID: oldAgent,
		NewAgentID: ticket.AgentID,
	}}, nil
}

// GetTicket returns a ticket with its thread. Customers only see their own
// tickets; agents see all of them.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64, caller domain.Identity) (*domain.Ticket, error) {
	ticket, err := s.visibleTicket(ctx, ticketID, caller)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	ticket.Messages = msgs
	return ticket, nil
}

// ListTicketsForCustomer returns the customer's tickets in store order.
func (s *TicketService) ListTicketsForCustomer(ctx context.Context, customerID int64) ([]domain.Ticket, error) {
	return s.listTickets(ctx, repository.TicketFilter{CustomerID: &customerID})
}

// ListTicketsForAgent returns the tickets assigned to the agent in store order.
func (s *TicketService) ListTicketsForAgent(ctx context.Context, agentID int64) ([]domain.Ticket, error) {
	return s.listTickets(ctx, repository.TicketFilter{AgentID: &agentID})
}

// ListAllTickets returns every ticket, or only those in one of statuses when
// any are given. With sortByPriorityDesc the result is ordered High to Low,
// keeping store order among equal priorities.
func (s *TicketService) ListAllTickets(ctx context.Context, sortByPriorityDesc bool, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	for _, status := range statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("status must be OPEN or CLOSED", map[string]any{"status": status})
		}
	}
	tickets, err := s.listTickets(ctx, repository.TicketFilter{Statuses: statuses})
	if err != nil {
		return nil, err
	}
	if sortByPriorityDesc {
		sort.SliceStable(tickets, func(i, j int) bool {
			return tickets[i].Priority > tickets[j].Priority
		})
	}
	return tickets, nil
}

// ListOpenTickets returns the OPEN tickets, highest priority first.
func (s *TicketService) ListOpenTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.ListAllTickets(ctx, true, domain.TicketStatusOpen)
}

// ListHistory returns the audit trail of a ticket visible to caller.
func (s *TicketService) ListHistory(ctx context.Context, ticketID int64, caller domain.Identity) ([]domain.TicketHistory, error) {
	if _, err := s.visibleTicket(ctx, ticketID, caller); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return entries, nil
}

func (s *TicketService) listTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewStoreError(err)
	}
	return ticket, nil
}

func (s *TicketService) visibleTicket(ctx context.Context, ticketID int64, caller domain.Identity) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	switch {
	case caller.IsAgent():
		return ticket, nil
	case caller.IsCustomer() && ticket.CustomerID == caller.ID:
		return ticket, nil
	default:
		return nil, apperrors.NewForbidden("access denied")
	}
}

func (s *TicketService) saveTicket(ctx context.Context, ticket *domain.Ticket) error {
	err := s.tickets.Update(ctx, ticket)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("ticket was modified concurrently, reload and retry", map[string]any{"ticket_id": ticket.ID})
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
	default:
		return apperrors.NewStoreError(err)
	}
}

func requireAssignee(ticket *domain.Ticket, caller domain.Identity) error {
	if !caller.IsAgent() || !ticket.IsAssignedTo(caller.ID) {
		return apperrors.NewForbidden("only the assigned agent can change this ticket")
	}
	return nil
}

func emptyFields(values map[string]string) []string {
	var fields []string
	for name, value := range values {
		if value == "" {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}
