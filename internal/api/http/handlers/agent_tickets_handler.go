package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/service-desk/internal/api/dto"
	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/service"
	apperrors "github.com/deskflow/service-desk/pkg/util/errorutil"
)

// AgentTicketsHandler handles the agent workspace endpoints.
type AgentTicketsHandler struct {
	tickets *service.TicketService
}

// NewAgentTicketsHandler constructs handler.
func NewAgentTicketsHandler(ticketService *service.TicketService) *AgentTicketsHandler {
	return &AgentTicketsHandler{tickets: ticketService}
}

// ListAssigned GET /agent/tickets.
func (h *AgentTicketsHandler) ListAssigned(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTicketsForAgent(c.UserContext(), identity.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// ListAll GET /agent/tickets/all?sort=priority|none&status=OPEN|CLOSED.
// Priority order is the default; without status every ticket is listed.
func (h *AgentTicketsHandler) ListAll(c *fiber.Ctx) error {
	var statuses []domain.TicketStatus
	if status := c.Query("status"); status != "" {
		statuses = append(statuses, domain.TicketStatus(strings.ToUpper(status)))
	}
	var byPriority bool
	switch c.Query("sort", "priority") {
	case "priority":
		byPriority = true
	case "none":
	default:
		return apperrors.NewValidationError("sort must be priority or none", map[string]any{"sort": c.Query("sort")})
	}
	tickets, err := h.tickets.ListAllTickets(c.UserContext(), byPriority, statuses...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// SetPriority PATCH /agent/tickets/:id/priority.
func (h *AgentTicketsHandler) SetPriority(c *fiber.Ctx) error {
	identity, ticketID, err := agentTicket(c)
	if err != nil {
		return err
	}
	var req dto.SetPriorityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.SetPriority(c.UserContext(), ticketID, identity, domain.TicketPriority(req.Priority))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Resolve POST /agent/tickets/:id/resolve.
func (h *AgentTicketsHandler) Resolve(c *fiber.Ctx) error {
	identity, ticketID, err := agentTicket(c)
	if err != nil {
		return err
	}
	ticket, outcome, err := h.tickets.ResolveTicket(c.UserContext(), ticketID, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ResolveTicketResponse{
		Outcome: string(outcome),
		Ticket:  ticketSummary(ticket),
	}})
}

// Claim POST /agent/tickets/:id/claim.
func (h *AgentTicketsHandler) Claim(c *fiber.Ctx) error {
	identity, ticketID, err := agentTicket(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.ClaimTicket(c.UserContext(), ticketID, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Assign POST /agent/tickets/:id/assign.
func (h *AgentTicketsHandler) Assign(c *fiber.Ctx) error {
	identity, ticketID, err := agentTicket(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.ReassignTicket(c.UserContext(), ticketID, identity, req.AgentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// History GET /agent/tickets/:id/history.
func (h *AgentTicketsHandler) History(c *fiber.Ctx) error {
	identity, ticketID, err := agentTicket(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.ListHistory(c.UserContext(), ticketID, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

func agentTicket(c *fiber.Ctx) (domain.Identity, int64, error) {
	identity, err := callerIdentity(c)
	if err != nil {
		return domain.Identity{}, 0, err
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return domain.Identity{}, 0, err
	}
	return identity, ticketID, nil
}
