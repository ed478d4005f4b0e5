package dto

import "time"

// UpdateRoleRequest payload for PUT /admin/users/:id/role.
type UpdateRoleRequest struct {
	Role       string  `json:"role"`
	Department *string `json:"department"`
}

// UserCounts reports how many tickets a user authored and holds.
type UserCounts struct {
	CreatedTickets  int `json:"createdTickets"`
	AssignedTickets int `json:"assignedTickets"`
}

// AdminUserResponse is a user row in the admin listing.
type AdminUserResponse struct {
	UserResponse
	Count UserCounts `json:"_count"`
}

// StaffResponse is an assignable user.
type StaffResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	Department *string `json:"department"`
}

// DashboardOverview holds headline numbers.
type DashboardOverview struct {
	TotalTickets           int `json:"totalTickets"`
	TotalUsers             int `json:"totalUsers"`
	TotalCategories        int `json:"totalCategories"`
	UnassignedTickets      int `json:"unassignedTickets"`
	ResolutionRate         int `json:"resolutionRate"`
	AvgResolutionTimeHours int `json:"avgResolutionTimeHours"`
	RecentTicketsCount     int `json:"recentTicketsCount"`
}

// GroupCount is one bucket of a grouped count.
type GroupCount struct {
	Key   string `json:"key,omitempty"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// StaffWorkload is one row of the workload table.
type StaffWorkload struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Department      string `json:"department"`
	AssignedTickets int    `json:"assignedTickets"`
}

// DashboardResponse is the admin statistics payload.
type DashboardResponse struct {
	Overview          DashboardOverview `json:"overview"`
	TicketsByStatus   []GroupCount      `json:"ticketsByStatus"`
	TicketsByPriority []GroupCount      `json:"ticketsByPriority"`
	TicketsByCategory []GroupCount      `json:"ticketsByCategory"`
	StaffWorkload     []StaffWorkload   `json:"staffWorkload"`
	RecentTickets     []TicketResponse  `json:"recentTickets"`
	GeneratedAt       time.Time         `json:"generatedAt"`
}
