package domain

import "time"

// ChangeType names the kind of mutation an audit entry records.
type ChangeType string

const (
	ChangeTypeCreated  ChangeType = "CREATED"
	ChangeTypeStatus   ChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee ChangeType = "ASSIGNEE_CHANGE"
	ChangeTypePriority ChangeType = "PRIORITY_CHANGE"
)

// TicketHistory is one immutable audit entry. ChangedByID is nil for
// changes made by the system itself.
type TicketHistory struct {
	ID            int64          `db:"id"`
	TicketID      int64          `db:"ticket_id"`
	ChangedByRole Role           `db:"changed_by_role"`
	ChangedByID   *int64         `db:"changed_by_id"`
	ChangeType    ChangeType     `db:"change_type"`
	OldValue      map[string]any `db:"old_value"`
	NewValue      map[string]any `db:"new_value"`
	CreatedAt     time.Time      `db:"created_at"`
}
