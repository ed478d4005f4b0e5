package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/ticketid"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// newID mints row ids in the same canonical UUID form Postgres returns.
func newID() string {
	return uuid.NewString()
}

// missingRow is what Postgres reports for an id with no row: a text cast
// failure when id is not a UUID, no rows otherwise.
func missingRow(id string) error {
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}
	}
	return pgx.ErrNoRows
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// fakeClock returns a fixed time until advanced.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- users ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) add(name string, role domain.Role) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &domain.User{
		ID:    newID(),
		Name:  name,
		Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@astu.edu.et",
		Role:  role,
	}
	r.users[u.ID] = u
	cp := *u
	return &cp
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return uniqueViolation("users_email_key")
		}
	}
	user.ID = newID()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Role = user.Role
	existing.Department = user.Department
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, missingRow(id)
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListWithCounts(context.Context) ([]domain.UserWithCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.UserWithCounts{}
	for _, u := range r.users {
		out = append(out, domain.UserWithCounts{User: *u})
	}
	return out, nil
}

func (r *fakeUserRepo) ListAssignable(context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.User{}
	for _, u := range r.users {
		if u.Role.CanBeAssigned() {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeUserRepo) UpsertByEmail(ctx context.Context, user *domain.User) error {
	return r.Create(ctx, user)
}

// --- categories ---

type fakeCategoryRepo struct {
	mu         sync.Mutex
	categories map[string]*domain.Category
	tickets    *fakeTicketRepo
}

func newFakeCategoryRepo(tickets *fakeTicketRepo) *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: map[string]*domain.Category{}, tickets: tickets}
}

func (r *fakeCategoryRepo) add(name, department string) *domain.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &domain.Category{ID: newID(), Name: name, Department: department}
	r.categories[c.ID] = c
	cp := *c
	return &cp
}

func (r *fakeCategoryRepo) count(id string) int {
	if r.tickets == nil {
		return 0
	}
	return r.tickets.countByCategory(id)
}

func (r *fakeCategoryRepo) List(context.Context) ([]domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Category{}
	for _, c := range r.categories {
		cp := *c
		cp.TicketCount = r.count(c.ID)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeCategoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, missingRow(id)
	}
	cp := *c
	cp.TicketCount = r.count(id)
	return &cp, nil
}

func (r *fakeCategoryRepo) Create(_ context.Context, category *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.categories {
		if c.Name == category.Name {
			return uniqueViolation("categories_name_key")
		}
	}
	category.ID = newID()
	cp := *category
	r.categories[category.ID] = &cp
	return nil
}

func (r *fakeCategoryRepo) Update(_ context.Context, category *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[category.ID]; !ok {
		return pgx.ErrNoRows
	}
	for id, c := range r.categories {
		if id != category.ID && c.Name == category.Name {
			return uniqueViolation("categories_name_key")
		}
	}
	cp := *category
	r.categories[category.ID] = &cp
	return nil
}

func (r *fakeCategoryRepo) DeleteIfUnused(_ context.Context, id string) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[id]; !ok {
		return false, 0, missingRow(id)
	}
	if n := r.count(id); n > 0 {
		return false, n, nil
	}
	delete(r.categories, id)
	return true, 0, nil
}

func (r *fakeCategoryRepo) UpsertByName(ctx context.Context, category *domain.Category) error {
	return r.Create(ctx, category)
}

// --- tickets ---

type fakeTicketRepo struct {
	mu         sync.Mutex
	tickets    map[string]*domain.Ticket
	sequences  map[string]int
	duplicates int
	updates    int
	users      *fakeUserRepo
}

func newFakeTicketRepo(users *fakeUserRepo) *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}, sequences: map[string]int{}, users: users}
}

func (r *fakeTicketRepo) countByCategory(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tickets {
		if t.CategoryID == id {
			n++
		}
	}
	return n
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket, prefix string, year int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// The bump survives a failed insert, like the committed sequence statement.
	key := ticketid.YearPrefix(prefix, year)
	r.sequences[key]++
	candidate := ticketid.Format(prefix, year, r.sequences[key])
	if r.duplicates > 0 {
		r.duplicates--
		return repository.ErrDuplicateTicketID
	}
	for _, t := range r.tickets {
		if t.TicketID == candidate {
			return repository.ErrDuplicateTicketID
		}
	}
	ticket.TicketID = candidate
	ticket.ID = newID()
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

// insertRaw stores a ticket without touching the sequences, as a row written
// by another process would be.
func (r *fakeTicketRepo) insertRaw(ticketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := newID()
	r.tickets[id] = &domain.Ticket{ID: id, TicketID: ticketID}
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Status = ticket.Status
	existing.Priority = ticket.Priority
	existing.AssignedToID = ticket.AssignedToID
	existing.ResolvedAt = ticket.ResolvedAt
	existing.UpdatedAt = ticket.UpdatedAt
	r.updates++
	return nil
}

func (r *fakeTicketRepo) decorate(t domain.Ticket) domain.Ticket {
	if r.users != nil && t.AssignedToID != nil {
		if u, err := r.users.GetByID(context.Background(), *t.AssignedToID); err == nil {
			name := u.Name
			t.AssigneeName = &name
		}
	}
	return t
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	t, ok := r.tickets[id]
	var cp domain.Ticket
	if ok {
		cp = *t
	}
	r.mu.Unlock()
	if !ok {
		return nil, missingRow(id)
	}
	cp = r.decorate(cp)
	return &cp, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	out := []domain.Ticket{}
	for _, t := range r.tickets {
		if f.AuthorID != nil && t.AuthorID != *f.AuthorID {
			continue
		}
		if f.AssignedToID != nil && !t.IsAssignedTo(*f.AssignedToID) {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Priority != nil && t.Priority != *f.Priority {
			continue
		}
		if f.CategoryID != nil && t.CategoryID != *f.CategoryID {
			continue
		}
		out = append(out, *t)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TicketID > out[j].TicketID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// --- remarks ---

type fakeRemarkRepo struct {
	mu      sync.Mutex
	remarks []domain.Remark
}

func (r *fakeRemarkRepo) Create(_ context.Context, remark *domain.Remark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	remark.ID = newID()
	r.remarks = append(r.remarks, *remark)
	return nil
}

func (r *fakeRemarkRepo) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.Remark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Remark{}
	for _, rm := range r.remarks {
		if rm.TicketID != ticketID || (rm.IsInternal && !includeInternal) {
			continue
		}
		out = append(out, rm)
	}
	return out, nil
}

// --- attachments ---

type fakeAttachmentRepo struct {
	mu        sync.Mutex
	items     map[string]domain.Attachment
	createErr error
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{items: map[string]domain.Attachment{}}
}

func (r *fakeAttachmentRepo) Create(_ context.Context, a *domain.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	a.ID = newID()
	r.items[a.ID] = *a
	return nil
}

func (r *fakeAttachmentRepo) GetByID(_ context.Context, id string) (*domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, missingRow(id)
	}
	return &a, nil
}

func (r *fakeAttachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Attachment{}
	for _, a := range r.items {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- history ---

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.ID = newID()
	r.entries = append(r.entries, *h)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.TicketHistory{}
	for _, h := range r.entries {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

// --- notifications ---

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Notification
	order []string
	fail  bool
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{items: map[string]*domain.Notification{}}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("notifications table unavailable")
	}
	n.ID = newID()
	cp := *n
	r.items[n.ID] = &cp
	r.order = append(r.order, n.ID)
	return nil
}

func (r *fakeNotificationRepo) forUser(userID string) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Notification{}
	for _, id := range r.order {
		if n := r.items[id]; n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return nil, missingRow(id)
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	all := r.forUser(userID)
	out := []domain.Notification{}
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	n := 0
	for _, item := range r.forUser(userID) {
		if !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return missingRow(id)
	}
	n.IsRead = true
	return nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for _, n := range r.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

// --- fixture ---

type fixture struct {
	clock         *fakeClock
	users         *fakeUserRepo
	categories    *fakeCategoryRepo
	tickets       *fakeTicketRepo
	remarks       *fakeRemarkRepo
	attachments   *fakeAttachmentRepo
	history       *fakeHistoryRepo
	notifications *fakeNotificationRepo
	dispatcher    events.Dispatcher
	svc           *TicketService

	studentA, studentB, staff, otherStaff, admin *domain.User
	category                                     *domain.Category
}

func newFixture() *fixture {
	f := &fixture{clock: newFakeClock()}
	f.users = newFakeUserRepo()
	f.tickets = newFakeTicketRepo(f.users)
	f.categories = newFakeCategoryRepo(f.tickets)
	f.remarks = &fakeRemarkRepo{}
	f.attachments = newFakeAttachmentRepo()
	f.history = &fakeHistoryRepo{}
	f.notifications = newFakeNotificationRepo()
	f.dispatcher = events.NewInMemoryDispatcher()

	NewNotificationService(NotificationDependencies{
		Dispatcher:       f.dispatcher,
		NotificationRepo: f.notifications,
	}).RegisterHandlers()

	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:     f.tickets,
		RemarkRepo:     f.remarks,
		AttachmentRepo: f.attachments,
		CategoryRepo:   f.categories,
		UserRepo:       f.users,
		HistoryRepo:    f.history,
		Dispatcher:     f.dispatcher,
		Clock:          f.clock.Now,
		IDPrefix:       "ASTU",
	})

	f.studentA = f.users.add("Student A", domain.RoleStudent)
	f.studentB = f.users.add("Student B", domain.RoleStudent)
	f.staff = f.users.add("Staff S", domain.RoleStaff)
	f.otherStaff = f.users.add("Staff X", domain.RoleStaff)
	f.admin = f.users.add("Admin", domain.RoleAdmin)
	f.category = f.categories.add("Internet", "IT Department")
	return f
}

func as(u *domain.User) *auth.Principal {
	return &auth.Principal{UserID: u.ID, Role: u.Role, User: u}
}

func (f *fixture) createTicket(t *testing.T, author *domain.User) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), as(author), TicketCreateInput{
		Title:       "Wi-Fi down in block 5",
		Description: "No connectivity since this morning in the dorm.",
		CategoryID:  f.category.ID,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func (f *fixture) assign(t *testing.T, ticket *domain.Ticket, assignee *domain.User) {
	t.Helper()
	if _, err := f.svc.UpdateTicket(context.Background(), as(f.admin), ticket.ID, TicketUpdateInput{AssignedToID: strp(assignee.ID)}); err != nil {
		t.Fatalf("assign ticket: %v", err)
	}
}

func errCode(err error) string {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func errDetails(err error) map[string]any {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}

func strp(s string) *string { return &s }
