package domain

import "time"

// Category classifies tickets and names the department that owns them.
type Category struct {
	ID          string
	Name        string
	Description *string
	Department  string
	TicketCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
