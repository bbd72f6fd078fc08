package domain

import "time"

// SenderType tags who authored a thread message.
type SenderType string

const (
	SenderCustomer SenderType = "Customer"
	SenderAgent    SenderType = "Agent"
)

// Valid reports whether s is a known sender tag.
func (s SenderType) Valid() bool {
	return s == SenderCustomer || s == SenderAgent
}

// Message is one comment in a ticket thread.
type Message struct {
	ID         int64
	TicketID   int64
	SenderType SenderType
	SenderName string
	Content    string
	CreatedAt  time.Time
}
