package dto

import "time"

// NotificationResponse represents an in-app notification.
type NotificationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Link      *string   `json:"link"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnreadCountResponse wraps the unread counter.
type UnreadCountResponse struct {
	Count int `json:"count"`
}
