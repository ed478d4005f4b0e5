package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

func principalFrom(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           string(u.Role),
		Department:     u.Department,
		Identification: u.Identification,
		CreatedAt:      u.CreatedAt,
	}
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:          t.ID,
		TicketID:    t.TicketID,
		Title:       t.Title,
		Description: t.Description,
		Location:    t.Location,
		Status:      t.Status,
		Priority:    t.Priority,
		CategoryID:  t.CategoryID,
		AuthorID:    t.AuthorID,
		Author:      dto.UserSummary{ID: t.AuthorID, Name: t.AuthorName, Email: t.AuthorEmail},
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ResolvedAt:  t.ResolvedAt,
		Count:       dto.TicketCounts{Remarks: t.RemarkCount, Attachments: t.AttachmentCount},
	}
	if t.CategoryName != nil {
		resp.Category = &dto.CategoryRef{ID: t.CategoryID, Name: *t.CategoryName}
	}
	if t.AssignedToID != nil {
		assignee := dto.UserSummary{ID: *t.AssignedToID}
		if t.AssigneeName != nil {
			assignee.Name = *t.AssigneeName
		}
		resp.AssignedTo = &assignee
	}
	return resp
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func remarkResponse(r *domain.Remark) dto.RemarkResponse {
	return dto.RemarkResponse{
		ID:         r.ID,
		Content:    r.Content,
		IsInternal: r.IsInternal,
		Author:     dto.UserSummary{ID: r.AuthorID, Name: r.AuthorName, Role: string(r.AuthorRole)},
		CreatedAt:  r.CreatedAt,
	}
}

func attachmentResponse(a *domain.Attachment) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:         a.ID,
		Filename:   a.Filename,
		MimeType:   a.MimeType,
		Size:       a.Size,
		Checksum:   a.Checksum,
		URL:        "/api/uploads/" + a.ID,
		UploadedBy: a.UploadedByID,
		CreatedAt:  a.CreatedAt,
	}
}

func ticketDetail(detail *domain.TicketDetail) dto.TicketDetailResponse {
	remarks := make([]dto.RemarkResponse, 0, len(detail.Remarks))
	for i := range detail.Remarks {
		remarks = append(remarks, remarkResponse(&detail.Remarks[i]))
	}
	attachments := make([]dto.AttachmentResponse, 0, len(detail.Attachments))
	for i := range detail.Attachments {
		attachments = append(attachments, attachmentResponse(&detail.Attachments[i]))
	}
	return dto.TicketDetailResponse{
		TicketResponse: ticketResponse(&detail.Ticket),
		Remarks:        remarks,
		Attachments:    attachments,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:         entry.ID,
			ChangeType: entry.ChangeType,
			ChangedBy:  dto.UserSummary{ID: entry.ChangedByID, Name: entry.ChangedByName, Role: string(entry.ChangedByRole)},
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return resp
}

func categoryResponse(c *domain.Category) dto.CategoryResponse {
	return dto.CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Department:  c.Department,
		TicketCount: c.TicketCount,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func dashboardResponse(stats *domain.DashboardStats) dto.DashboardResponse {
	groups := func(in []domain.GroupCount) []dto.GroupCount {
		out := make([]dto.GroupCount, 0, len(in))
		for _, g := range in {
			out = append(out, dto.GroupCount{Key: g.Key, Label: g.Label, Count: g.Count})
		}
		return out
	}
	workload := make([]dto.StaffWorkload, 0, len(stats.StaffWorkload))
	for _, w := range stats.StaffWorkload {
		workload = append(workload, dto.StaffWorkload{
			ID:              w.UserID,
			Name:            w.Name,
			Department:      w.Department,
			AssignedTickets: w.AssignedTickets,
		})
	}
	o := stats.Overview
	return dto.DashboardResponse{
		Overview: dto.DashboardOverview{
			TotalTickets:           o.TotalTickets,
			TotalUsers:             o.TotalUsers,
			TotalCategories:        o.TotalCategories,
			UnassignedTickets:      o.UnassignedTickets,
			ResolutionRate:         o.ResolutionRate,
			AvgResolutionTimeHours: o.AvgResolutionTimeHours,
			RecentTicketsCount:     o.RecentTicketsCount,
		},
		TicketsByStatus:   groups(stats.TicketsByStatus),
		TicketsByPriority: groups(stats.TicketsByPriority),
		TicketsByCategory: groups(stats.TicketsByCategory),
		StaffWorkload:     workload,
		RecentTickets:     ticketResponses(stats.RecentTickets),
		GeneratedAt:       stats.GeneratedAt,
	}
}
