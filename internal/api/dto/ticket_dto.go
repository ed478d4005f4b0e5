package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	CategoryID  string  `json:"categoryId"`
	Location    *string `json:"location"`
	Priority    string  `json:"priority"`
}

// UpdateTicketRequest payload. Every field is optional; an explicit null
// assignedToId unassigns the ticket.
type UpdateTicketRequest struct {
	Status       *string        `json:"status"`
	Priority     *string        `json:"priority"`
	AssignedToID OptionalString `json:"assignedToId"`
}

// OptionalString distinguishes an absent JSON field from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records that the field was present.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// TicketListQuery captures query filters.
type TicketListQuery struct {
	Status     string `query:"status"`
	Priority   string `query:"priority"`
	CategoryID string `query:"categoryId"`
}

// CategoryRef is the compact category reference embedded in tickets.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TicketCounts reports related row counts.
type TicketCounts struct {
	Remarks     int `json:"remarks"`
	Attachments int `json:"attachments"`
}

// TicketResponse is the list representation of a ticket.
type TicketResponse struct {
	ID          string                `json:"id"`
	TicketID    string                `json:"ticketId"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Location    *string               `json:"location"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	CategoryID  string                `json:"categoryId"`
	Category    *CategoryRef          `json:"category"`
	AuthorID    string                `json:"authorId"`
	Author      UserSummary           `json:"author"`
	AssignedTo  *UserSummary          `json:"assignedTo"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
	ResolvedAt  *time.Time            `json:"resolvedAt"`
	Count       TicketCounts          `json:"_count"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Remarks     []RemarkResponse     `json:"remarks"`
	Attachments []AttachmentResponse `json:"attachments"`
}

// CreateRemarkRequest payload.
type CreateRemarkRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"isInternal"`
}

// RemarkResponse represents a remark.
type RemarkResponse struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	IsInternal bool        `json:"isInternal"`
	Author     UserSummary `json:"author"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	Checksum   string    `json:"checksum"`
	URL        string    `json:"url"`
	UploadedBy string    `json:"uploadedById"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TicketHistoryResponse describes one audit entry.
type TicketHistoryResponse struct {
	ID         string                  `json:"id"`
	ChangeType domain.TicketChangeType `json:"changeType"`
	ChangedBy  UserSummary             `json:"changedBy"`
	OldValue   map[string]any          `json:"oldValue"`
	NewValue   map[string]any          `json:"newValue"`
	CreatedAt  time.Time               `json:"createdAt"`
}
