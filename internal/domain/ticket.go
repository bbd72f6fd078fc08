package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. OPEN -> CLOSED is the
// only transition.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "OPEN"
	TicketStatusClosed TicketStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	return s == TicketStatusOpen || s == TicketStatusClosed
}

// TicketPriority is 1 (low) to 3 (high).
type TicketPriority int

const (
	TicketPriorityLow    TicketPriority = 1
	TicketPriorityMedium TicketPriority = 2
	TicketPriorityHigh   TicketPriority = 3
)

// Valid reports whether p is within 1..3.
func (p TicketPriority) Valid() bool {
	return p >= TicketPriorityLow && p <= TicketPriorityHigh
}

func (p TicketPriority) String() string {
	switch p {
	case TicketPriorityLow:
		return "Low"
	case TicketPriorityMedium:
		return "Medium"
	case TicketPriorityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID         int64
	CustomerID int64
	AgentID    *int64
	Topic      string
	Content    string
	Priority   TicketPriority
	Status     TicketStatus
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   *time.Time
	Messages   []Message
}

// IsAssignedTo reports whether agentID is the current assignee.
func (t *Ticket) IsAssignedTo(agentID int64) bool {
	return t.AgentID != nil && *t.AgentID == agentID
}

func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}
