package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/service-desk/internal/api/dto"
	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/service"
	apperrors "github.com/deskflow/service-desk/pkg/util/errorutil"
)

const noAgentsWarning = "no agents available, the ticket is waiting to be claimed"

// TicketsHandler manages customer ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	customer := &domain.Customer{ID: identity.ID, Email: identity.Email}
	ticket, err := h.service.CreateTicket(c.UserContext(), customer, req.Topic, req.Content)
	if err != nil {
		return err
	}
	resp := fiber.Map{"data": ticketSummary(ticket)}
	if ticket.AgentID == nil {
		resp["warnings"] = []dto.Warning{{Code: apperrors.CodeNoAgents, Message: noAgentsWarning}}
	}
	return c.Status(http.StatusCreated).JSON(resp)
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTicketsForCustomer(c.UserContext(), identity.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// GetTicket GET /tickets/:id and GET /agent/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), ticketID, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ListMessages GET /tickets/:id/messages and GET /agent/tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	msgs, err := h.service.ListMessages(c.UserContext(), ticketID, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageResponses(msgs)})
}

// AddMessage POST /tickets/:id/messages and POST /agent/tickets/:id/messages.
// The sender is derived from the caller.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	msg, err := h.service.PostMessage(c.UserContext(), ticketID, identity, req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketMessageResponse(msg)})
}
