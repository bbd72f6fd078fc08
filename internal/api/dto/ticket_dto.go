package dto

import (
	"time"

	"github.com/deskflow/service-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

// SetPriorityRequest payload. Priority is 1 (Low) to 3 (High).
type SetPriorityRequest struct {
	Priority int `json:"priority"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AgentID int64 `json:"agent_id"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// Warning is a non-fatal condition reported next to data.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TicketSummary response.
type TicketSummary struct {
	ID            int64               `json:"id"`
	CustomerID    int64               `json:"customer_id"`
	AgentID       *int64              `json:"agent_id"`
	Topic         string              `json:"topic"`
	Status        domain.TicketStatus `json:"status"`
	Priority      int                 `json:"priority"`
	PriorityLabel string              `json:"priority_label"`
	Version       int64               `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	ClosedAt      *time.Time          `json:"closed_at,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Content  string                  `json:"content"`
	Messages []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID         int64             `json:"id"`
	TicketID   int64             `json:"ticket_id"`
	SenderType domain.SenderType `json:"sender_type"`
	SenderName string            `json:"sender_name"`
	Content    string            `json:"content"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ResolveTicketResponse reports whether the call closed the ticket.
type ResolveTicketResponse struct {
	Outcome string        `json:"outcome"`
	Ticket  TicketSummary `json:"ticket"`
}

// TicketHistoryResponse represents audit entries.
type TicketHistoryResponse struct {
	ID            int64             `json:"id"`
	ChangeType    domain.ChangeType `json:"change_type"`
	ChangedByRole domain.Role       `json:"changed_by_role"`
	ChangedByID   *int64            `json:"changed_by_id"`
	OldValue      map[string]any    `json:"old_value"`
	NewValue      map[string]any    `json:"new_value"`
	CreatedAt     time.Time         `json:"created_at"`
}
