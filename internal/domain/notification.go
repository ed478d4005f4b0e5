package domain

import "time"

// NotificationType tags what triggered a notification.
type NotificationType string

const (
	NotificationStatusChanged NotificationType = "STATUS_CHANGED"
	NotificationAssigned      NotificationType = "TICKET_ASSIGNED"
	NotificationNewRemark     NotificationType = "NEW_REMARK"
)

// Notification is a user-scoped message polled by the client.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Type      NotificationType
	Link      *string
	IsRead    bool
	CreatedAt time.Time
}
