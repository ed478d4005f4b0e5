package service

import (
	"context"
	"strings"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// UserService exposes admin user management.
type UserService struct {
	users repository.UserRepository
}

// RoleUpdateInput changes a user's role and optionally department.
type RoleUpdateInput struct {
	Role       string
	Department *string
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// ListUsers returns every user with ticket counts, newest first.
func (s *UserService) ListUsers(ctx context.Context, p *auth.Principal) ([]domain.UserWithCounts, error) {
	if err := auth.Authorize(p, auth.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	users, err := s.users.ListWithCounts(ctx)
	if err != nil {
		return nil, apperrors.FromStore(err, "user")
	}
	return users, nil
}

// ListAssignable returns the users tickets can be assigned to.
func (s *UserService) ListAssignable(ctx context.Context, p *auth.Principal) ([]domain.User, error) {
	if err := auth.Authorize(p, auth.ActionUpdateTicket, nil); err != nil {
		return nil, err
	}
	users, err := s.users.ListAssignable(ctx)
	if err != nil {
		return nil, apperrors.FromStore(err, "user")
	}
	return users, nil
}

// UpdateUserRole sets a user's role. A nil department keeps the current value;
// a blank one clears it.
func (s *UserService) UpdateUserRole(ctx context.Context, p *auth.Principal, userID string, in RoleUpdateInput) (*domain.User, error) {
	if err := auth.Authorize(p, auth.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	role := domain.Role(strings.ToUpper(strings.TrimSpace(in.Role)))
	if !role.Valid() {
		return nil, apperrors.NewFieldError("role", "role must be one of STUDENT, STAFF, ADMIN")
	}

	if err := requireID(userID, "user"); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore(err, "user")
	}
	user.Role = role
	if in.Department != nil {
		user.Department = optionalText(in.Department)
	}
	if err := s.users.UpdateRole(ctx, user); err != nil {
		return nil, apperrors.FromStore(err, "user")
	}
	return user, nil
}
