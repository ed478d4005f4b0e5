package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the complaint aggregate.
type Ticket struct {
	ID           string
	TicketID     string
	Title        string
	Description  string
	Location     *string
	Status       TicketStatus
	Priority     TicketPriority
	CategoryID   string
	AuthorID     string
	AssignedToID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ResolvedAt   *time.Time

	// Display fields populated by read queries.
	AuthorName      string
	AuthorEmail     string
	AssigneeName    *string
	CategoryName    *string
	RemarkCount     int
	AttachmentCount int
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssignedToID != nil && *t.AssignedToID == userID
}

// Remark is a threaded comment on a ticket.
type Remark struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorName string
	AuthorRole Role
	Content    string
	IsInternal bool
	CreatedAt  time.Time
}

// Attachment is stored file metadata owned by a ticket.
type Attachment struct {
	ID           string
	TicketID     string
	Filename     string
	StoragePath  string
	MimeType     string
	Size         int64
	Checksum     string
	UploadedByID string
	CreatedAt    time.Time
}

// TicketDetail bundles a ticket with its visible remarks and attachments.
type TicketDetail struct {
	Ticket      Ticket
	Remarks     []Remark
	Attachments []Attachment
}
