package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/events"
	apperrors "github.com/deskflow/service-desk/pkg/util/errorutil"
)

const messagePreviewLength = 120

// AddMessage appends a message to the ticket thread. Messages are accepted on
// closed tickets too. The timestamp never precedes the last message.
func (s *TicketService) AddMessage(ctx context.Context, ticketID int64, senderType domain.SenderType, senderName, content string) (*domain.Message, error) {
	var msg *domain.Message
	err := s.mutate(ctx, ticketID, func() (*pendingEvent, error) {
		if _, err := s.loadTicket(ctx, ticketID); err != nil {
			return nil, err
		}
		senderName = strings.TrimSpace(senderName)
		content = strings.TrimSpace(content)
		if !senderType.Valid() {
			return nil, apperrors.NewValidationError("unknown sender type", map[string]any{"sender_type": senderType})
		}
		if fields := emptyFields(map[string]string{"sender_name": senderName, "content": content}); len(fields) > 0 {
			return nil, apperrors.NewValidationError("sender name and content are required", map[string]any{"fields": fields})
		}

		thread, err := s.messages.ListByTicket(ctx, ticketID)
		if err != nil {
			return nil, apperrors.NewStoreError(err)
		}
		sentAt := s.now()
		if n := len(thread); n > 0 && sentAt.Before(thread[n-1].CreatedAt) {
			sentAt = thread[n-1].CreatedAt
		}

		msg = &domain.Message{
			TicketID:   ticketID,
			SenderType: senderType,
			SenderName: senderName,
			Content:    content,
			CreatedAt:  sentAt,
		}
		if err := s.messages.Create(ctx, msg); err != nil {
			return nil, apperrors.NewStoreError(err)
		}

		actor := domain.Identity{Role: domain.RoleCustomer}
		if senderType == domain.SenderAgent {
			actor.Role = domain.RoleAgent
		}
		return &pendingEvent{actor: actor, eventType: events.EventTicketMessageAdded, payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			SenderType:  msg.SenderType,
			SenderName:  msg.SenderName,
			BodyPreview: stringPreview(msg.Content, messagePreviewLength),
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// PostMessage appends a message on behalf of caller. Customers may only write
// to their own tickets; any agent may write to any ticket.
func (s *TicketService) PostMessage(ctx context.Context, ticketID int64, caller domain.Identity, content string) (*domain.Message, error) {
	if _, err := s.visibleTicket(ctx, ticketID, caller); err != nil {
		return nil, err
	}
	name := caller.Name
	if strings.TrimSpace(name) == "" {
		name = caller.Username
	}
	return s.AddMessage(ctx, ticketID, caller.SenderType(), name, content)
}

// ListMessages returns the thread in chronological order.
func (s *TicketService) ListMessages(ctx context.Context, ticketID int64, caller domain.Identity) ([]domain.Message, error) {
	if _, err := s.visibleTicket(ctx, ticketID, caller); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// recordHistory writes an audit entry. The ticket change is already stored,
// so a failure here is logged rather than returned.
func (s *TicketService) recordHistory(ctx context.Context, actor domain.Identity, ticketID int64, change domain.ChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByRole: actor.Role,
		ChangeType:    change,
		OldValue:      oldValue,
		NewValue:      newValue,
		CreatedAt:     s.now(),
	}
	if actor.ID > 0 {
		id := actor.ID
		entry.ChangedByID = &id
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("record ticket history",
			zap.Int64("ticket_id", ticketID),
			zap.String("change_type", string(change)),
			zap.Error(err))
	}
}

// pendingEvent is an event of a stored change, published once the ticket
// lock is released.
type pendingEvent struct {
	actor     domain.Identity
	eventType events.EventType
	payload   any
}

// mutate runs apply while holding the lock of ticketID, then publishes the
// event apply returned. A nil event means nothing changed.
func (s *TicketService) mutate(ctx context.Context, ticketID int64, apply func() (*pendingEvent, error)) error {
	pending, err := s.underLock(ticketID, apply)
	if err != nil {
		return err
	}
	if pending != nil {
		s.publishEvent(ctx, pending.actor, ticketID, pending.eventType, pending.payload)
	}
	return nil
}

func (s *TicketService) underLock(ticketID int64, apply func() (*pendingEvent, error)) (*pendingEvent, error) {
	unlock := s.locks.lock(ticketID)
	defer unlock()
	return apply()
}

func (s *TicketService) publishEvent(ctx context.Context, actor domain.Identity, ticketID int64, eventType events.EventType, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.Actor{Role: actor.Role, ID: actor.ID},
		Timestamp: s.now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish ticket event",
			zap.String("event_type", string(eventType)),
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
	}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
