package domain

import "time"

// DashboardOverview holds the headline numbers of the admin dashboard.
type DashboardOverview struct {
	TotalTickets           int
	TotalUsers             int
	TotalCategories        int
	UnassignedTickets      int
	ResolutionRate         int
	AvgResolutionTimeHours int
	RecentTicketsCount     int
}

// GroupCount is one bucket of a grouped ticket count.
type GroupCount struct {
	Key   string
	Label string
	Count int
}

// StaffWorkload reports how many tickets a staff member holds.
type StaffWorkload struct {
	UserID          string
	Name            string
	Department      string
	AssignedTickets int
}

// DashboardStats is a point-in-time aggregate snapshot.
type DashboardStats struct {
	Overview          DashboardOverview
	TicketsByStatus   []GroupCount
	TicketsByPriority []GroupCount
	TicketsByCategory []GroupCount
	StaffWorkload     []StaffWorkload
	RecentTickets     []Ticket
	GeneratedAt       time.Time
}
