package auth

import (
	"github.com/spec-kit/complaint-service/internal/domain"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionListTickets        Action = "tickets:list"
	ActionCreateTicket       Action = "tickets:create"
	ActionReadTicket         Action = "tickets:read"
	ActionUpdateTicket       Action = "tickets:update"
	ActionAddRemark          Action = "remarks:create"
	ActionAddInternalRemark  Action = "remarks:create_internal"
	ActionViewInternalRemark Action = "remarks:read_internal"
	ActionUploadAttachment   Action = "attachments:upload"
	ActionReadAttachment     Action = "attachments:read"
	ActionManageCategories   Action = "categories:manage"
	ActionManageUsers        Action = "users:manage"
	ActionViewDashboard      Action = "dashboard:read"
)

// Authorize is the single access decision for every ticket-facing operation.
// ticket is required for actions scoped to one ticket and ignored otherwise.
func Authorize(p *Principal, action Action, ticket *domain.Ticket) error {
	if p == nil || p.UserID == "" || !p.Role.Valid() {
		return apperrors.NewUnauthorized("authentication required")
	}

	switch action {
	case ActionListTickets, ActionCreateTicket:
		return nil

	case ActionReadTicket, ActionAddRemark, ActionReadAttachment:
		return canRead(p, ticket)

	case ActionUploadAttachment:
		if err := canRead(p, ticket); err != nil {
			return err
		}
		if p.Role == domain.RoleStudent && ticket.AuthorID != p.UserID {
			return apperrors.NewForbidden("You can only upload files to your own tickets")
		}
		return nil

	case ActionAddInternalRemark:
		if !p.Role.CanBeAssigned() {
			return apperrors.NewForbidden("Only staff can add internal remarks")
		}
		return canRead(p, ticket)

	case ActionViewInternalRemark:
		if !p.Role.CanBeAssigned() {
			return apperrors.NewForbidden("internal remarks are restricted to staff")
		}
		return nil

	case ActionUpdateTicket:
		// Staff may update any ticket even though they can only read assigned ones.
		if !p.Role.CanBeAssigned() {
			return apperrors.NewForbidden("Only staff and admins can update tickets")
		}
		return nil

	case ActionManageCategories, ActionManageUsers, ActionViewDashboard:
		if p.Role != domain.RoleAdmin {
			return apperrors.NewForbidden("admin role required")
		}
		return nil
	}

	return apperrors.NewForbidden("operation not permitted")
}

func canRead(p *Principal, ticket *domain.Ticket) error {
	if ticket == nil {
		return apperrors.NewNotFound("ticket", nil)
	}
	switch p.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleStaff:
		if ticket.IsAssignedTo(p.UserID) {
			return nil
		}
		return apperrors.NewForbidden("You can only view tickets assigned to you")
	default:
		if ticket.AuthorID == p.UserID {
			return nil
		}
		return apperrors.NewForbidden("You can only view your own tickets")
	}
}

// TicketScope returns the implicit list filter for the principal's role.
// At most one of the returned pointers is set; both are nil for admins.
func TicketScope(p *Principal) (authorID, assignedToID *string) {
	if p == nil {
		return nil, nil
	}
	id := p.UserID
	switch p.Role {
	case domain.RoleAdmin:
		return nil, nil
	case domain.RoleStaff:
		return nil, &id
	default:
		return &id, nil
	}
}
