package service

import (
	"context"
	"math"
	"time"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

const (
	recentWindow       = 7 * 24 * time.Hour
	topStaffLimit      = 5
	recentTicketsLimit = 10
	unknownCategory    = "Unknown"
	noDepartment       = "N/A"
)

var (
	statusOrder   = []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusResolved}
	priorityOrder = []domain.TicketPriority{domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh}
)

// DashboardService builds the admin statistics snapshot.
type DashboardService struct {
	stats repository.StatsRepository
	now   func() time.Time
}

// NewDashboardService constructs the service. clock may be nil.
func NewDashboardService(stats repository.StatsRepository, clock func() time.Time) *DashboardService {
	if clock == nil {
		clock = time.Now
	}
	return &DashboardService{stats: stats, now: clock}
}

// GetDashboardStats recomputes the snapshot from the store on every call.
func (s *DashboardService) GetDashboardStats(ctx context.Context, p *auth.Principal) (*domain.DashboardStats, error) {
	if err := auth.Authorize(p, auth.ActionViewDashboard, nil); err != nil {
		return nil, err
	}
	now := s.now()
	snap, err := s.stats.Snapshot(ctx, repository.StatsQuery{
		CreatedSince: now.Add(-recentWindow),
		StaffLimit:   topStaffLimit,
		LatestLimit:  recentTicketsLimit,
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "statistics")
	}
	return BuildDashboard(snap, now), nil
}

// BuildDashboard derives the presented statistics from raw aggregates.
func BuildDashboard(snap *repository.StatsSnapshot, now time.Time) *domain.DashboardStats {
	stats := &domain.DashboardStats{
		Overview: domain.DashboardOverview{
			TotalTickets:           snap.TotalTickets,
			TotalUsers:             snap.TotalUsers,
			TotalCategories:        snap.TotalCategories,
			UnassignedTickets:      snap.UnassignedTickets,
			RecentTicketsCount:     snap.RecentTickets,
			ResolutionRate:         resolutionRate(snap.ResolvedTickets, snap.TotalTickets),
			AvgResolutionTimeHours: averageHours(snap.AvgResolutionSeconds),
		},
		TicketsByStatus:   make([]domain.GroupCount, 0, len(statusOrder)),
		TicketsByPriority: make([]domain.GroupCount, 0, len(priorityOrder)),
		TicketsByCategory: make([]domain.GroupCount, 0, len(snap.ByCategory)),
		StaffWorkload:     make([]domain.StaffWorkload, 0, len(snap.Staff)),
		RecentTickets:     snap.Latest,
		GeneratedAt:       now,
	}
	if stats.RecentTickets == nil {
		stats.RecentTickets = []domain.Ticket{}
	}

	for _, status := range statusOrder {
		stats.TicketsByStatus = append(stats.TicketsByStatus, domain.GroupCount{
			Key: string(status), Label: string(status), Count: snap.ByStatus[status],
		})
	}
	for _, priority := range priorityOrder {
		stats.TicketsByPriority = append(stats.TicketsByPriority, domain.GroupCount{
			Key: string(priority), Label: string(priority), Count: snap.ByPriority[priority],
		})
	}
	for _, cc := range snap.ByCategory {
		group := domain.GroupCount{Label: unknownCategory, Count: cc.Count}
		if cc.CategoryID != nil {
			group.Key = *cc.CategoryID
		}
		if cc.Name != nil && *cc.Name != "" {
			group.Label = *cc.Name
		}
		stats.TicketsByCategory = append(stats.TicketsByCategory, group)
	}
	for _, load := range snap.Staff {
		department := noDepartment
		if load.Department != nil && *load.Department != "" {
			department = *load.Department
		}
		stats.StaffWorkload = append(stats.StaffWorkload, domain.StaffWorkload{
			UserID:          load.UserID,
			Name:            load.Name,
			Department:      department,
			AssignedTickets: load.Assigned,
		})
	}
	return stats
}

func resolutionRate(resolved, total int) int {
	if total <= 0 {
		return 0
	}
	rate := int(math.Round(float64(resolved) / float64(total) * 100))
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

func averageHours(seconds *float64) int {
	if seconds == nil || *seconds <= 0 {
		return 0
	}
	return int(math.Round(*seconds / 3600))
}
