package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// AdminHandler exposes the dashboard and user management.
type AdminHandler struct {
	dashboard *service.DashboardService
	users     *service.UserService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(dashboard *service.DashboardService, users *service.UserService) *AdminHandler {
	return &AdminHandler{dashboard: dashboard, users: users}
}

// Dashboard GET /admin/dashboard.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	stats, err := h.dashboard.GetDashboardStats(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dashboardResponse(stats)})
}

// ListUsers GET /admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	users, err := h.users.ListUsers(c.UserContext(), principal)
	if err != nil {
		return err
	}
	resp := make([]dto.AdminUserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, dto.AdminUserResponse{
			UserResponse: userResponse(&users[i].User),
			Count: dto.UserCounts{
				CreatedTickets:  users[i].AuthoredTickets,
				AssignedTickets: users[i].AssignedTickets,
			},
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// ListStaff GET /admin/staff.
func (h *AdminHandler) ListStaff(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	users, err := h.users.ListAssignable(c.UserContext(), principal)
	if err != nil {
		return err
	}
	resp := make([]dto.StaffResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, dto.StaffResponse{
			ID:         u.ID,
			Name:       u.Name,
			Email:      u.Email,
			Role:       string(u.Role),
			Department: u.Department,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// UpdateUserRole PUT /admin/users/:id/role.
func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.UpdateUserRole(c.UserContext(), principal, c.Params("id"), service.RoleUpdateInput{
		Role:       req.Role,
		Department: req.Department,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}
