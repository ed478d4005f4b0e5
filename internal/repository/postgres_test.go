package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/persistence"
)

// testPool connects to TEST_POSTGRES_DSN, applies the bundled migrations and
// empties every table. Tests using it share one database and must not run in parallel.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := persistence.RunMigrationsFrom(ctx, pool, filepath.Join("..", "..", "migrations"), zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `
        TRUNCATE ticket_history, notifications, attachments, remarks, tickets,
                 ticket_sequences, categories, users CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool, name string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Name:         name,
		Email:        name + "@example.edu",
		PasswordHash: "x",
		Role:         role,
	}
	if err := NewUserRepository(pool).Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func seedCategory(t *testing.T, pool *pgxpool.Pool, name string) *domain.Category {
	t.Helper()
	category := &domain.Category{Name: name, Department: "IT"}
	if err := NewCategoryRepository(pool).Create(context.Background(), category); err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return category
}

func newTicket(author *domain.User, category *domain.Category, created time.Time) *domain.Ticket {
	return &domain.Ticket{
		Title:       "Wifi down",
		Description: "No connection in the library since morning.",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityMedium,
		CategoryID:  category.ID,
		AuthorID:    author.ID,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}
