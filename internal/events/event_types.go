package events

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventRemarkAdded           EventType = "remark_added"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services after a write commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	TicketRef string      `json:"ticket_ref"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	AuthorID   string                `json:"author_id"`
	CategoryID string                `json:"category_id"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	AuthorID  string              `json:"author_id"`
	Title     string              `json:"title"`
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
	Title              string  `json:"title"`
	AssigneeID         *string `json:"assignee_id,omitempty"`
	PreviousAssigneeID *string `json:"previous_assignee_id,omitempty"`
}

// RemarkAddedPayload payload.
type RemarkAddedPayload struct {
	RemarkID       string  `json:"remark_id"`
	Title          string  `json:"title"`
	TicketAuthorID string  `json:"ticket_author_id"`
	AssigneeID     *string `json:"assignee_id,omitempty"`
	IsInternal     bool    `json:"is_internal"`
	Preview        string  `json:"preview"`
}
