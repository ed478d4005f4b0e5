package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// NotificationService turns ticket events into user notifications and serves
// them back to their owners.
type NotificationService struct {
	dispatcher    events.Dispatcher
	notifications repository.NotificationRepository
	logger        *zap.Logger
	listLimit     int
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Dispatcher       events.Dispatcher
	NotificationRepo repository.NotificationRepository
	Logger           *zap.Logger
	ListLimit        int
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	n := &NotificationService{
		dispatcher:    deps.Dispatcher,
		notifications: deps.NotificationRepo,
		logger:        deps.Logger,
		listLimit:     deps.ListLimit,
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	if n.listLimit <= 0 {
		n.listLimit = 20
	}
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventRemarkAdded, n.handleRemarkAdded)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.AuthorID == event.Actor.UserID {
		return nil
	}
	return n.notify(ctx, payload.AuthorID, domain.NotificationStatusChanged, event,
		"Ticket Status Updated",
		fmt.Sprintf("Your ticket %s is now %s", event.TicketRef, payload.NewStatus))
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.AssigneeID == nil || *payload.AssigneeID == event.Actor.UserID {
		return nil
	}
	return n.notify(ctx, *payload.AssigneeID, domain.NotificationAssigned, event,
		"Ticket Assigned",
		fmt.Sprintf("You have been assigned ticket %s: %s", event.TicketRef, payload.Title))
}

func (n *NotificationService) handleRemarkAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RemarkAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	var recipient string
	switch {
	case payload.IsInternal:
		if payload.AssigneeID != nil && *payload.AssigneeID != event.Actor.UserID {
			recipient = *payload.AssigneeID
		}
	case event.Actor.UserID != payload.TicketAuthorID:
		recipient = payload.TicketAuthorID
	case payload.AssigneeID != nil && *payload.AssigneeID != event.Actor.UserID:
		recipient = *payload.AssigneeID
	}
	if recipient == "" {
		return nil
	}
	return n.notify(ctx, recipient, domain.NotificationNewRemark, event,
		"New Remark",
		fmt.Sprintf("New remark on ticket %s: %s", event.TicketRef, payload.Preview))
}

func (n *NotificationService) notify(ctx context.Context, userID string, kind domain.NotificationType, event events.Event, title, message string) error {
	link := "/tickets/" + event.TicketID
	notification := &domain.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    kind,
		Link:    &link,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("create %s notification for %s: %w", kind, userID, err)
	}
	n.logger.Debug("notification created",
		zap.String("user_id", userID),
		zap.String("type", string(kind)),
		zap.String("ticket_id", event.TicketID))
	return nil
}

// List returns the caller's most recent notifications.
func (n *NotificationService) List(ctx context.Context, p *auth.Principal) ([]domain.Notification, error) {
	if p == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	items, err := n.notifications.ListByUser(ctx, p.UserID, n.listLimit)
	if err != nil {
		return nil, apperrors.FromStore(err, "notification")
	}
	return items, nil
}

// UnreadCount returns the number of unread notifications for the caller.
func (n *NotificationService) UnreadCount(ctx context.Context, p *auth.Principal) (int, error) {
	if p == nil {
		return 0, apperrors.NewUnauthorized("authentication required")
	}
	count, err := n.notifications.CountUnread(ctx, p.UserID)
	if err != nil {
		return 0, apperrors.FromStore(err, "notification")
	}
	return count, nil
}

// MarkRead marks one of the caller's notifications as read.
func (n *NotificationService) MarkRead(ctx context.Context, p *auth.Principal, id string) error {
	if p == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := requireID(id, "notification"); err != nil {
		return err
	}
	notification, err := n.notifications.GetByID(ctx, id)
	if err != nil {
		return apperrors.FromStore(err, "notification")
	}
	if notification.UserID != p.UserID {
		return apperrors.NewForbidden("You can only update your own notifications")
	}
	if notification.IsRead {
		return nil
	}
	return apperrors.FromStore(n.notifications.MarkRead(ctx, id), "notification")
}

// MarkAllRead marks every notification of the caller as read.
func (n *NotificationService) MarkAllRead(ctx context.Context, p *auth.Principal) (int64, error) {
	if p == nil {
		return 0, apperrors.NewUnauthorized("authentication required")
	}
	updated, err := n.notifications.MarkAllRead(ctx, p.UserID)
	if err != nil {
		return 0, apperrors.FromStore(err, "notification")
	}
	return updated, nil
}
