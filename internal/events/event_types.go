package events

import (
	"time"

	"github.com/deskflow/service-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketResolved        EventType = "ticket_resolved"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketMessageAdded    EventType = "ticket_message_added"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketResolved,
	EventTicketPriorityChanged,
	EventTicketAssigned,
	EventTicketMessageAdded,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Role domain.Role `json:"role"`
	ID   int64       `json:"id"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CustomerID int64                 `json:"customer_id"`
	AgentID    *int64                `json:"agent_id,omitempty"`
	Priority   domain.TicketPriority `json:"priority"`
	Topic      string                `json:"topic"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldAgentID *int64 `json:"old_agent_id,omitempty"`
	NewAgentID *int64 `json:"new_agent_id,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   int64             `json:"message_id"`
	SenderType  domain.SenderType `json:"sender_type"`
	SenderName  string            `json:"sender_name"`
	BodyPreview string            `json:"body_preview"`
}
