package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

const (
	titleMinLen       = 5
	titleMaxLen       = 200
	descriptionMinLen = 10
	defaultRetries    = 3
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	remarks     repository.RemarkRepository
	attachments repository.AttachmentRepository
	categories  repository.CategoryRepository
	users       repository.UserRepository
	history     repository.TicketHistoryRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	idPrefix    string
	retries     int
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	RemarkRepo     repository.RemarkRepository
	AttachmentRepo repository.AttachmentRepository
	CategoryRepo   repository.CategoryRepository
	UserRepo       repository.UserRepository
	HistoryRepo    repository.TicketHistoryRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Clock          func() time.Time
	IDPrefix       string
	IDRetries      int
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	CategoryID  string
	Location    *string
	Priority    string
}

// TicketListFilter holds the caller supplied list filters.
type TicketListFilter struct {
	Status     string
	Priority   string
	CategoryID string
}

// TicketUpdateInput holds the optional fields of an update. An empty
// AssignedToID unassigns the ticket.
type TicketUpdateInput struct {
	Status       *string
	Priority     *string
	AssignedToID *string
}

// RemarkInput describes a new remark.
type RemarkInput struct {
	Content    string
	IsInternal bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:     deps.TicketRepo,
		remarks:     deps.RemarkRepo,
		attachments: deps.AttachmentRepo,
		categories:  deps.CategoryRepo,
		users:       deps.UserRepo,
		history:     deps.HistoryRepo,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         deps.Clock,
		idPrefix:    deps.IDPrefix,
		retries:     deps.IDRetries,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.idPrefix == "" {
		s.idPrefix = "ASTU"
	}
	if s.retries <= 0 {
		s.retries = defaultRetries
	}
	return s
}

// CreateTicket files a new ticket authored by the caller.
func (s *TicketService) CreateTicket(ctx context.Context, p *auth.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if err := auth.Authorize(p, auth.ActionCreateTicket, nil); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	categoryID := strings.TrimSpace(input.CategoryID)
	priority := domain.TicketPriority(strings.ToUpper(strings.TrimSpace(input.Priority)))
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	errs := fieldErrors{}
	errs.minLen("title", title, titleMinLen)
	errs.maxLen("title", title, titleMaxLen)
	errs.minLen("description", description, descriptionMinLen)
	if categoryID == "" {
		errs.add("categoryId", "categoryId is required")
	} else if !validID(categoryID) {
		errs.add("categoryId", "category does not exist")
	}
	if !priority.Valid() {
		errs.add("priority", "priority must be one of LOW, MEDIUM, HIGH")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		if apperrors.HasCode(apperrors.FromStore(err, "category"), apperrors.CodeNotFound) {
			return nil, apperrors.NewFieldError("categoryId", "category does not exist")
		}
		return nil, apperrors.FromStore(err, "category")
	}

	now := s.now()
	ticket := &domain.Ticket{
		Title:        title,
		Description:  description,
		Location:     optionalText(input.Location),
		Status:       domain.TicketStatusOpen,
		Priority:     priority,
		CategoryID:   category.ID,
		AuthorID:     p.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
		CategoryName: &category.Name,
	}
	if p.User != nil {
		ticket.AuthorName = p.User.Name
		ticket.AuthorEmail = p.User.Email
	}

	if err := s.insertWithTicketID(ctx, ticket, now.Year()); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		TicketRef: ticket.TicketID,
		Actor:     actorOf(p),
		Payload: events.TicketCreatedPayload{
			AuthorID:   ticket.AuthorID,
			CategoryID: ticket.CategoryID,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
		},
	})
	return ticket, nil
}

// insertWithTicketID retries allocation when the store reports the generated
// id was already taken.
func (s *TicketService) insertWithTicketID(ctx context.Context, ticket *domain.Ticket, year int) error {
	for attempt := 0; attempt <= s.retries; attempt++ {
		err := s.tickets.Create(ctx, ticket, s.idPrefix, year)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateTicketID) {
			return apperrors.FromStore(err, "ticket")
		}
		s.metrics.TicketIDRetry()
		s.logger.Warn("ticket id collision, retrying",
			zap.String("ticket_id", ticket.TicketID),
			zap.Int("attempt", attempt+1))
		ticket.ID = ""
		ticket.TicketID = ""
	}
	return apperrors.NewConflict("could not allocate a unique ticket id", map[string]any{"attempts": s.retries + 1})
}

// ListTickets returns the caller's visible tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, p *auth.Principal, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := auth.Authorize(p, auth.ActionListTickets, nil); err != nil {
		return nil, err
	}

	repoFilter := repository.TicketFilter{}
	repoFilter.AuthorID, repoFilter.AssignedToID = auth.TicketScope(p)

	errs := fieldErrors{}
	if v := strings.ToUpper(strings.TrimSpace(filter.Status)); v != "" {
		status := domain.TicketStatus(v)
		if !status.Valid() {
			errs.add("status", "status must be one of OPEN, IN_PROGRESS, RESOLVED")
		}
		repoFilter.Status = &status
	}
	if v := strings.ToUpper(strings.TrimSpace(filter.Priority)); v != "" {
		priority := domain.TicketPriority(v)
		if !priority.Valid() {
			errs.add("priority", "priority must be one of LOW, MEDIUM, HIGH")
		}
		repoFilter.Priority = &priority
	}
	if v := strings.TrimSpace(filter.CategoryID); v != "" {
		if !validID(v) {
			errs.add("categoryId", "categoryId must be a valid id")
		}
		repoFilter.CategoryID = &v
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}
	return tickets, nil
}

// GetTicket returns a ticket with the remarks and attachments the caller may see.
func (s *TicketService) GetTicket(ctx context.Context, p *auth.Principal, id string) (*domain.TicketDetail, error) {
	ticket, err := s.loadForAction(ctx, p, id, auth.ActionReadTicket)
	if err != nil {
		return nil, err
	}

	includeInternal := auth.Authorize(p, auth.ActionViewInternalRemark, ticket) == nil
	remarks, err := s.remarks.ListByTicket(ctx, ticket.ID, includeInternal)
	if err != nil {
		return nil, apperrors.FromStore(err, "remark")
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.FromStore(err, "attachment")
	}
	return &domain.TicketDetail{Ticket: *ticket, Remarks: remarks, Attachments: attachments}, nil
}

// UpdateTicket changes status, priority or assignment.
func (s *TicketService) UpdateTicket(ctx context.Context, p *auth.Principal, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	if err := auth.Authorize(p, auth.ActionUpdateTicket, nil); err != nil {
		return nil, err
	}
	if input.Status == nil && input.Priority == nil && input.AssignedToID == nil {
		return nil, apperrors.NewValidationError("no changes supplied", map[string]any{
			"fields": "one of status, priority, assignedToId is required",
		})
	}

	errs := fieldErrors{}
	var newStatus *domain.TicketStatus
	if input.Status != nil {
		status := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(*input.Status)))
		if !status.Valid() {
			errs.add("status", "status must be one of OPEN, IN_PROGRESS, RESOLVED")
		}
		newStatus = &status
	}
	var newPriority *domain.TicketPriority
	if input.Priority != nil {
		priority := domain.TicketPriority(strings.ToUpper(strings.TrimSpace(*input.Priority)))
		if !priority.Valid() {
			errs.add("priority", "priority must be one of LOW, MEDIUM, HIGH")
		}
		newPriority = &priority
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	if err := requireID(id, "ticket"); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}
	if err := auth.Authorize(p, auth.ActionUpdateTicket, ticket); err != nil {
		return nil, err
	}

	var newAssignee *string
	assignmentChanged := false
	if input.AssignedToID != nil {
		target := strings.TrimSpace(*input.AssignedToID)
		if target != "" {
			if err := s.ensureAssignable(ctx, target); err != nil {
				return nil, err
			}
			newAssignee = &target
		}
		assignmentChanged = !sameAssignee(ticket.AssignedToID, newAssignee)
	}

	before := *ticket
	now := s.now()

	if newStatus != nil {
		ticket.Status = *newStatus
		if *newStatus == domain.TicketStatusResolved && (before.Status != domain.TicketStatusResolved || ticket.ResolvedAt == nil) {
			resolvedAt := now
			ticket.ResolvedAt = &resolvedAt
		}
	}
	if newPriority != nil {
		ticket.Priority = *newPriority
	}
	if assignmentChanged {
		ticket.AssignedToID = newAssignee
	}
	ticket.UpdatedAt = nextUpdatedAt(before.UpdatedAt, now)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}

	s.recordChanges(ctx, p, &before, ticket)
	s.publishUpdateEvents(ctx, p, &before, ticket)

	updated, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		s.logger.Warn("reload updated ticket failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return ticket, nil
	}
	return updated, nil
}

// AddRemark appends a remark to a ticket the caller can read.
func (s *TicketService) AddRemark(ctx context.Context, p *auth.Principal, ticketID string, input RemarkInput) (*domain.Remark, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.NewFieldError("content", "content must not be empty")
	}

	action := auth.ActionAddRemark
	if input.IsInternal {
		action = auth.ActionAddInternalRemark
	}
	ticket, err := s.loadForAction(ctx, p, ticketID, action)
	if err != nil {
		return nil, err
	}

	remark := &domain.Remark{
		TicketID:   ticket.ID,
		AuthorID:   p.UserID,
		Content:    content,
		IsInternal: input.IsInternal,
		CreatedAt:  s.now(),
	}
	if err := s.remarks.Create(ctx, remark); err != nil {
		return nil, apperrors.FromStore(err, "remark")
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventRemarkAdded,
		TicketID:  ticket.ID,
		TicketRef: ticket.TicketID,
		Actor:     actorOf(p),
		Payload: events.RemarkAddedPayload{
			RemarkID:       remark.ID,
			Title:          ticket.Title,
			TicketAuthorID: ticket.AuthorID,
			AssigneeID:     ticket.AssignedToID,
			IsInternal:     remark.IsInternal,
			Preview:        stringPreview(remark.Content, 120),
		},
	})
	return remark, nil
}

// ListHistory returns the audit trail of a ticket the caller can read.
func (s *TicketService) ListHistory(ctx context.Context, p *auth.Principal, ticketID string) ([]domain.TicketHistory, error) {
	ticket, err := s.loadForAction(ctx, p, ticketID, auth.ActionReadTicket)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket history")
	}
	return entries, nil
}

func (s *TicketService) loadForAction(ctx context.Context, p *auth.Principal, id string, action auth.Action) (*domain.Ticket, error) {
	if p == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if err := requireID(id, "ticket"); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}
	if err := auth.Authorize(p, action, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) ensureAssignable(ctx context.Context, userID string) error {
	if !validID(userID) {
		return apperrors.NewFieldError("assignedToId", "assignee does not exist")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		mapped := apperrors.FromStore(err, "user")
		if apperrors.HasCode(mapped, apperrors.CodeNotFound) {
			return apperrors.NewFieldError("assignedToId", "assignee does not exist")
		}
		return mapped
	}
	if !user.Role.CanBeAssigned() {
		return apperrors.NewFieldError("assignedToId", "tickets can only be assigned to staff or admins")
	}
	return nil
}

func (s *TicketService) recordChanges(ctx context.Context, p *auth.Principal, before, after *domain.Ticket) {
	if s.history == nil {
		return
	}
	var entries []domain.TicketHistory
	if before.Status != after.Status {
		entries = append(entries, domain.TicketHistory{
			ChangeType: domain.ChangeTypeStatus,
			OldValue:   map[string]any{"status": before.Status},
			NewValue:   map[string]any{"status": after.Status},
		})
	}
	if before.Priority != after.Priority {
		entries = append(entries, domain.TicketHistory{
			ChangeType: domain.ChangeTypePriority,
			OldValue:   map[string]any{"priority": before.Priority},
			NewValue:   map[string]any{"priority": after.Priority},
		})
	}
	if !sameAssignee(before.AssignedToID, after.AssignedToID) {
		entries = append(entries, domain.TicketHistory{
			ChangeType: domain.ChangeTypeAssignee,
			OldValue:   map[string]any{"assignedToId": before.AssignedToID},
			NewValue:   map[string]any{"assignedToId": after.AssignedToID},
		})
	}
	for i := range entries {
		entries[i].TicketID = after.ID
		entries[i].ChangedByID = p.UserID
		if err := s.history.Create(ctx, &entries[i]); err != nil {
			s.logger.Warn("record ticket history failed",
				zap.String("ticket_id", after.ID),
				zap.String("change_type", string(entries[i].ChangeType)),
				zap.Error(err))
		}
	}
}

func (s *TicketService) publishUpdateEvents(ctx context.Context, p *auth.Principal, before, after *domain.Ticket) {
	actor := actorOf(p)
	if before.Status != after.Status {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketStatusChanged,
			TicketID:  after.ID,
			TicketRef: after.TicketID,
			Actor:     actor,
			Payload: events.TicketStatusChangedPayload{
				AuthorID:  after.AuthorID,
				Title:     after.Title,
				OldStatus: before.Status,
				NewStatus: after.Status,
			},
		})
	}
	if before.Priority != after.Priority {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketPriorityChanged,
			TicketID:  after.ID,
			TicketRef: after.TicketID,
			Actor:     actor,
			Payload: events.TicketPriorityChangedPayload{
				OldPriority: before.Priority,
				NewPriority: after.Priority,
			},
		})
	}
	if !sameAssignee(before.AssignedToID, after.AssignedToID) {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketAssigned,
			TicketID:  after.ID,
			TicketRef: after.TicketID,
			Actor:     actor,
			Payload: events.TicketAssignedPayload{
				Title:              after.Title,
				AssigneeID:         after.AssignedToID,
				PreviousAssigneeID: before.AssignedToID,
			},
		})
	}
}

// publishEvent fans an event out to subscribers. Subscriber failures are
// logged and counted, never returned.
func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.metrics.NotificationDropped()
		s.logger.Warn("event subscriber failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func actorOf(p *auth.Principal) events.Actor {
	return events.Actor{UserID: p.UserID, Role: p.Role}
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
