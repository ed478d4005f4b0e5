package dto

import "time"

// CategoryRequest payload for create and update. Omitted fields are left unchanged on update.
type CategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Department  *string `json:"department"`
}

// CategoryResponse represents a category with its ticket count.
type CategoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Department  string    `json:"department"`
	TicketCount int       `json:"ticketCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
