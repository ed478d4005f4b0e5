package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/ticketid"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

func TestCreateTicketAssignsDefaultsAndID(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t, f.studentA)

	if ticket.TicketID != "ASTU-2025-001" {
		t.Fatalf("unexpected ticket id %q", ticket.TicketID)
	}
	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("expected OPEN, got %s", ticket.Status)
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Errorf("expected MEDIUM default priority, got %s", ticket.Priority)
	}
	if ticket.AuthorID != f.studentA.ID {
		t.Errorf("author not taken from caller")
	}
	if ticket.AssignedToID != nil || ticket.ResolvedAt != nil {
		t.Errorf("new ticket must be unassigned and unresolved")
	}
	if !ticket.UpdatedAt.Equal(ticket.CreatedAt) {
		t.Errorf("updatedAt %v should equal createdAt %v", ticket.UpdatedAt, ticket.CreatedAt)
	}

	second := f.createTicket(t, f.studentB)
	if second.TicketID != "ASTU-2025-002" {
		t.Fatalf("expected sequential ordinal, got %q", second.TicketID)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name  string
		input TicketCreateInput
		field string
	}{
		{
			name:  "short description",
			input: TicketCreateInput{Title: "Broken AC", Description: "short", CategoryID: f.category.ID},
			field: "description",
		},
		{
			name:  "short title",
			input: TicketCreateInput{Title: "AC", Description: "The air conditioner is broken.", CategoryID: f.category.ID},
			field: "title",
		},
		{
			name:  "missing category",
			input: TicketCreateInput{Title: "Broken AC", Description: "The air conditioner is broken."},
			field: "categoryId",
		},
		{
			name:  "unknown category",
			input: TicketCreateInput{Title: "Broken AC", Description: "The air conditioner is broken.", CategoryID: "nope"},
			field: "categoryId",
		},
		{
			name:  "bad priority",
			input: TicketCreateInput{Title: "Broken AC", Description: "The air conditioner is broken.", CategoryID: f.category.ID, Priority: "URGENT"},
			field: "priority",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTicket(context.Background(), as(f.studentA), tt.input)
			if errCode(err) != apperrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := errDetails(err)[tt.field]; !ok {
				t.Fatalf("expected detail for %s, got %v", tt.field, errDetails(err))
			}
		})
	}

	_, err := f.svc.CreateTicket(context.Background(), as(f.studentA), tests[0].input)
	if _, ok := errDetails(err)["title"]; ok {
		t.Fatalf("a 9 character title is valid")
	}
	if len(f.tickets.tickets) != 0 {
		t.Fatalf("invalid input must not create tickets")
	}
}

func TestCreateTicketConcurrentIDsAreUnique(t *testing.T) {
	f := newFixture()
	const n = 20

	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := f.svc.CreateTicket(context.Background(), as(f.studentA), TicketCreateInput{
				Title:       "Projector broken",
				Description: "The projector in room 101 does not turn on.",
				CategoryID:  f.category.ID,
			})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			results <- ticket.TicketID
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	var ordinals []int
	for id := range results {
		if seen[id] {
			t.Fatalf("duplicate ticket id %s", id)
		}
		seen[id] = true
		prefix, year, ordinal, err := ticketid.Parse(id)
		if err != nil || prefix != "ASTU" || year != 2025 {
			t.Fatalf("parse %s: %q %d %v", id, prefix, year, err)
		}
		ordinals = append(ordinals, ordinal)
	}
	sort.Ints(ordinals)
	for i, o := range ordinals {
		if o != i+1 {
			t.Fatalf("ordinals not contiguous: %v", ordinals)
		}
	}
}

func TestCreateTicketRetriesOnCollision(t *testing.T) {
	f := newFixture()
	f.tickets.duplicates = 2
	ticket := f.createTicket(t, f.studentA)
	// Each failed insert consumes its ordinal.
	if ticket.TicketID != "ASTU-2025-003" {
		t.Fatalf("ticket id after two collisions = %q, want ASTU-2025-003", ticket.TicketID)
	}

	f.tickets.duplicates = 100
	_, err := f.svc.CreateTicket(context.Background(), as(f.studentA), TicketCreateInput{
		Title:       "Projector broken",
		Description: "The projector in room 101 does not turn on.",
		CategoryID:  f.category.ID,
	})
	if errCode(err) != apperrors.CodeConflict {
		t.Fatalf("expected conflict after exhausting retries, got %v", err)
	}
}

func TestCreateTicketSkipsIDTakenOutOfBand(t *testing.T) {
	f := newFixture()
	f.tickets.insertRaw("ASTU-2025-001")

	ticket := f.createTicket(t, f.studentA)
	if ticket.TicketID != "ASTU-2025-002" {
		t.Fatalf("ticket id = %q, want ASTU-2025-002", ticket.TicketID)
	}
	next := f.createTicket(t, f.studentB)
	if next.TicketID != "ASTU-2025-003" {
		t.Fatalf("next ticket id = %q, want ASTU-2025-003", next.TicketID)
	}
}

func TestListTicketsScopedByRole(t *testing.T) {
	f := newFixture()
	a1 := f.createTicket(t, f.studentA)
	f.clock.Advance(time.Minute)
	a2 := f.createTicket(t, f.studentA)
	f.clock.Advance(time.Minute)
	b1 := f.createTicket(t, f.studentB)
	f.assign(t, a1, f.staff)

	ctx := context.Background()
	ids := func(ts []domain.Ticket) []string {
		out := make([]string, 0, len(ts))
		for _, tk := range ts {
			out = append(out, tk.ID)
		}
		return out
	}

	got, err := f.svc.ListTickets(ctx, as(f.studentA), TicketListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if want := []string{a2.ID, a1.ID}; !equalStrings(ids(got), want) {
		t.Fatalf("student A sees %v, want %v", ids(got), want)
	}

	got, _ = f.svc.ListTickets(ctx, as(f.staff), TicketListFilter{})
	if want := []string{a1.ID}; !equalStrings(ids(got), want) {
		t.Fatalf("staff sees %v, want %v", ids(got), want)
	}

	got, _ = f.svc.ListTickets(ctx, as(f.otherStaff), TicketListFilter{})
	if len(got) != 0 {
		t.Fatalf("unassigned staff should see nothing, got %v", ids(got))
	}

	got, _ = f.svc.ListTickets(ctx, as(f.admin), TicketListFilter{})
	if want := []string{b1.ID, a2.ID, a1.ID}; !equalStrings(ids(got), want) {
		t.Fatalf("admin sees %v, want %v", ids(got), want)
	}

	if _, err := f.svc.ListTickets(ctx, as(f.admin), TicketListFilter{Status: "CLOSED"}); errCode(err) != apperrors.CodeValidation {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestGetTicketAccess(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t, f.studentA)
	ctx := context.Background()

	if _, err := f.svc.GetTicket(ctx, as(f.studentB), ticket.ID); errCode(err) != apperrors.CodeForbidden {
		t.Fatalf("student B must be forbidden, got %v", err)
	}
	if _, err := f.svc.GetTicket(ctx, as(f.studentA), ticket.ID); err != nil {
		t.Fatalf("author read: %v", err)
	}
	if _, err := f.svc.GetTicket(ctx, as(f.admin), ticket.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if _, err := f.svc.GetTicket(ctx, as(f.admin), "missing"); errCode(err) != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUnassignedStaffCanUpdateButNotRead(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t, f.studentA)
	f.assign(t, ticket, f.staff)
	ctx := context.Background()

	if _, err := f.svc.GetTicket(ctx, as(f.otherStaff), ticket.ID); errCode(err) != apperrors.CodeForbidden {
		t.Fatalf("unassigned staff read should be forbidden, got %v", err)
	}
	updated, err := f.svc.UpdateTicket(ctx, as(f.otherStaff), ticket.ID, TicketUpdateInput{Priority: strp("HIGH")})
	if err != nil {
		t.Fatalf("unassigned staff update: %v", err)
	}
	if updated.Priority != domain.TicketPriorityHigh {
		t.Fatalf("priority not applied")
	}
}

func TestUpdateTicketStudentForbidden(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t, f.studentA)
	_, err := f.svc.UpdateTicket(context.Background(), as(f.studentA), ticket.ID, TicketUpdateInput{Status: strp("RESOLVED")})
	if errCode(err) != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if f.tickets.updates != 0 {
		t.Fatalf("forbidden update must not write")
	}
}

func TestUpdateTicketRejectsEmptyAndInvalid(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t, f.studentA)
	ctx := context.Background()

	if _, err := f.svc.UpdateTicket(ctx, as(f.admin), ticket.ID, TicketUpdateInput{}); errCode(err) != apperrors.CodeValidation {
		t.Fatalf("empty update should fail validation, got %v", err)
	}
	if _, err := f.svc.UpdateTicket(ctx, as(f.admin), ticket.ID, TicketUpdateInput{Status: strp("CLOSED")}); errCode(err) != apperrors.CodeValidation {
		t.Fatalf("unknown status should fail validation, got %v", err)
	}
	if _, err := f.svc.UpdateTicket(ctx, as(f.admin), "missing", TicketUpdateInput{Status: strp("OPEN")}); errCode(err) != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolvedAtAndUpdatedAt(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t, f.studentA)
	f.assign(t, ticket, f.staff)
	ctx := context.Background()

	f.clock.Advance(2 * time.Hour)
	resolveTime := f.clock.Now()
	resolved, err := f.svc.UpdateTicket(ctx, as(f.staff), ticket.ID, TicketUpdateInput{Status: strp("RESOLVED")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(resolveTime) {
		t.Fatalf("resolvedAt = %v, want %v", resolved.ResolvedAt, resolveTime)
	}

	// Clock frozen: updatedAt must still move forward.
	reopened, err := f.svc.UpdateTicket(ctx, as(f.staff), ticket.ID, TicketUpdateInput{Status: strp("IN_PROGRESS")})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.UpdatedAt.After(resolved.UpdatedAt) {
		t.Fatalf("updatedAt did not increase: %v -> %v", resolved.UpdatedAt, reopened.UpdatedAt)
	}
	if reopened.ResolvedAt == nil || !reopened.ResolvedAt.Equal(resolveTime) {
		t.Fatalf("resolvedAt must survive leaving RESOLVED, got %v", reopened.ResolvedAt)
	}
	if reopened.UpdatedAt.Before(reopened.CreatedAt) {
		t.Fatalf("updatedAt before createdAt")
	}

	f.clock.Advance(time.Hour)
	again, err := f.svc.UpdateTicket(ctx, as(f.staff), ticket.ID, TicketUpdateInput{Status: strp("RESOLVED")})
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if !again.ResolvedAt.Equal(f.clock.Now()) {
		t.Fatalf("re-resolving should stamp the new time, got %v", again.ResolvedAt)
	}
}

func TestUpdateTicketAssignment(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t, f.studentA)
	ctx := context.Background()

	_, err := f.svc.UpdateTicket(ctx, as(f.admin), ticket.ID, TicketUpdateInput{AssignedToID: strp(f.studentB.ID)})
	if _, ok := errDetails(err)["assignedToId"]; !ok || errCode(err) != apperrors.CodeValidation {
		t.Fatalf("assigning to a student should fail, got %v", err)
	}
	_, err = f.svc.UpdateTicket(ctx, as(f.admin), ticket.ID, TicketUpdateInput{AssignedToID: strp("ghost")})
	if errCode(err) != apperrors.CodeValidation {
		t.Fatalf("assigning to unknown user should fail, got %v", err)
	}

	updated, err := f.svc.UpdateTicket(ctx, as(f.admin), ticket.ID, TicketUpdateInput{AssignedToID: strp(f.staff.ID)})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !updated.IsAssignedTo(f.staff.ID) || updated.AssigneeName == nil || *updated.AssigneeName != f.staff.Name {
		t.Fatalf("assignment not reflected: %+v", updated)
	}
	notes := f.notifications.forUser(f.staff.ID)
	if len(notes) != 1 || notes[0].Type != domain.NotificationAssigned {
		t.Fatalf("expected one assignment notification, got %+v", notes)
	}

	cleared, err := f.svc.UpdateTicket(ctx, as(f.admin), ticket.ID, TicketUpdateInput{AssignedToID: strp("")})
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if cleared.AssignedToID != nil {
		t.Fatalf("expected ticket to be unassigned")
	}

	history, err := f.svc.ListHistory(ctx, as(f.admin), ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].ChangeType != domain.ChangeTypeAssignee {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestStatusChangeNotifiesAuthor(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t, f.studentA)
	f.assign(t, ticket, f.staff)

	if _, err := f.svc.UpdateTicket(context.Background(), as(f.staff), ticket.ID, TicketUpdateInput{Status: strp("IN_PROGRESS")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	notes := f.notifications.forUser(f.studentA.ID)
	if len(notes) != 1 || notes[0].Type != domain.NotificationStatusChanged {
		t.Fatalf("expected status notification for author, got %+v", notes)
	}
	if notes[0].Link == nil || *notes[0].Link != "/tickets/"+ticket.ID {
		t.Fatalf("unexpected link %v", notes[0].Link)
	}
}

func TestNotificationFailureDoesNotFailUpdate(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t, f.studentA)
	f.notifications.fail = true

	updated, err := f.svc.UpdateTicket(context.Background(), as(f.admin), ticket.ID, TicketUpdateInput{
		Status:       strp("IN_PROGRESS"),
		AssignedToID: strp(f.staff.ID),
	})
	if err != nil {
		t.Fatalf("update should succeed despite notification failure: %v", err)
	}
	if updated.Status != domain.TicketStatusInProgress {
		t.Fatalf("status not persisted")
	}
	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.Status != domain.TicketStatusInProgress || !stored.IsAssignedTo(f.staff.ID) {
		t.Fatalf("store not updated: %+v", stored)
	}
}

func TestRemarks(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t, f.studentA)
	f.assign(t, ticket, f.staff)
	ctx := context.Background()

	if _, err := f.svc.AddRemark(ctx, as(f.studentA), ticket.ID, RemarkInput{Content: "   "}); errCode(err) != apperrors.CodeValidation {
		t.Fatalf("blank remark should fail, got %v", err)
	}
	if _, err := f.svc.AddRemark(ctx, as(f.studentA), ticket.ID, RemarkInput{Content: "psst", IsInternal: true}); errCode(err) != apperrors.CodeForbidden {
		t.Fatalf("student internal remark should be forbidden, got %v", err)
	}
	if _, err := f.svc.AddRemark(ctx, as(f.studentB), ticket.ID, RemarkInput{Content: "me too"}); errCode(err) != apperrors.CodeForbidden {
		t.Fatalf("other student remark should be forbidden, got %v", err)
	}

	if _, err := f.svc.AddRemark(ctx, as(f.staff), ticket.ID, RemarkInput{Content: "Technician dispatched"}); err != nil {
		t.Fatalf("public remark: %v", err)
	}
	if _, err := f.svc.AddRemark(ctx, as(f.staff), ticket.ID, RemarkInput{Content: "Needs a new router", IsInternal: true}); err != nil {
		t.Fatalf("internal remark: %v", err)
	}

	studentView, err := f.svc.GetTicket(ctx, as(f.studentA), ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(studentView.Remarks) != 1 || studentView.Remarks[0].IsInternal {
		t.Fatalf("student should only see the public remark, got %+v", studentView.Remarks)
	}
	staffView, _ := f.svc.GetTicket(ctx, as(f.staff), ticket.ID)
	if len(staffView.Remarks) != 2 {
		t.Fatalf("staff should see both remarks, got %d", len(staffView.Remarks))
	}

	notes := f.notifications.forUser(f.studentA.ID)
	if len(notes) != 1 || notes[0].Type != domain.NotificationNewRemark {
		t.Fatalf("author should get exactly one remark notification, got %+v", notes)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
