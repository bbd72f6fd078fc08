package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/service-desk/internal/api/dto"
	"github.com/deskflow/service-desk/internal/auth"
	"github.com/deskflow/service-desk/internal/domain"
	apperrors "github.com/deskflow/service-desk/pkg/util/errorutil"
)

func callerIdentity(c *fiber.Ctx) (domain.Identity, error) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return domain.Identity{}, apperrors.NewUnauthorized("authentication required")
	}
	return identity, nil
}

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 0 {
		return 0, apperrors.NewValidationError("ticket id must be a non-negative integer", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func personResponse(person domain.Person) dto.PersonResponse {
	resp := dto.PersonResponse{
		ID:    person.PersonID(),
		Role:  string(person.PersonRole()),
		Email: person.EmailAddress(),
	}
	switch p := person.(type) {
	case *domain.Customer:
		resp.FirstName = p.FirstName
		resp.LastName = p.LastName
	case *domain.Agent:
		resp.FirstName = p.FirstName
		resp.LastName = p.LastName
		resp.Username = p.Username
	}
	return resp
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:            ticket.ID,
		CustomerID:    ticket.CustomerID,
		AgentID:       ticket.AgentID,
		Topic:         ticket.Topic,
		Status:        ticket.Status,
		Priority:      int(ticket.Priority),
		PriorityLabel: ticket.Priority.String(),
		Version:       ticket.Version,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
		ClosedAt:      ticket.ClosedAt,
	}
}

func ticketSummaries(tickets []domain.Ticket) []dto.TicketSummary {
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return items
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		Content:       ticket.Content,
		Messages:      messageResponses(ticket.Messages),
	}
}

func ticketMessageResponse(msg *domain.Message) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:         msg.ID,
		TicketID:   msg.TicketID,
		SenderType: msg.SenderType,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
}

func messageResponses(messages []domain.Message) []dto.TicketMessageResponse {
	resp := make([]dto.TicketMessageResponse, 0, len(messages))
	for i := range messages {
		resp = append(resp, ticketMessageResponse(&messages[i]))
	}
	return resp
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByRole: entry.ChangedByRole,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}
