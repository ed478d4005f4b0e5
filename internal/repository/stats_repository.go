package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// CategoryCount is a per-category ticket count. Name is nil when the
// category row no longer resolves.
type CategoryCount struct {
	CategoryID *string
	Name       *string
	Count      int
}

// StaffLoad is a raw staff workload row.
type StaffLoad struct {
	UserID     string
	Name       string
	Department *string
	Assigned   int
}

// StatsSnapshot holds the raw aggregates behind the dashboard.
type StatsSnapshot struct {
	TotalTickets      int
	TotalUsers        int
	TotalCategories   int
	UnassignedTickets int
	RecentTickets     int
	ResolvedTickets   int
	// AvgResolutionSeconds is nil when no ticket has a resolution time.
	AvgResolutionSeconds *float64
	ByStatus             map[domain.TicketStatus]int
	ByPriority           map[domain.TicketPriority]int
	ByCategory           []CategoryCount
	Staff                []StaffLoad
	Latest               []domain.Ticket
}

// StatsQuery parameterises a snapshot.
type StatsQuery struct {
	CreatedSince time.Time
	StaffLimit   int
	LatestLimit  int
}

// StatsRepository computes read-only aggregates over tickets, users and categories.
type StatsRepository interface {
	Snapshot(ctx context.Context, q StatsQuery) (*StatsSnapshot, error)
}

type statsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository constructs repository.
func NewStatsRepository(pool *pgxpool.Pool) StatsRepository {
	return &statsRepository{pool: pool}
}

func (r *statsRepository) Snapshot(ctx context.Context, q StatsQuery) (*StatsSnapshot, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	snap := &StatsSnapshot{
		ByStatus:   map[domain.TicketStatus]int{},
		ByPriority: map[domain.TicketPriority]int{},
	}

	const totals = `
        SELECT (SELECT COUNT(*) FROM tickets),
               (SELECT COUNT(*) FROM users),
               (SELECT COUNT(*) FROM categories),
               (SELECT COUNT(*) FROM tickets WHERE assigned_to_id IS NULL),
               (SELECT COUNT(*) FROM tickets WHERE created_at >= $1),
               (SELECT COUNT(*) FROM tickets WHERE status = 'RESOLVED'),
               (SELECT AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)))::float8
                  FROM tickets WHERE status = 'RESOLVED' AND resolved_at IS NOT NULL)`
	if err := tx.QueryRow(ctx, totals, q.CreatedSince).Scan(
		&snap.TotalTickets,
		&snap.TotalUsers,
		&snap.TotalCategories,
		&snap.UnassignedTickets,
		&snap.RecentTickets,
		&snap.ResolvedTickets,
		&snap.AvgResolutionSeconds,
	); err != nil {
		return nil, err
	}

	if err := scanGrouped(ctx, tx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`, func(key string, n int) {
		snap.ByStatus[domain.TicketStatus(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := scanGrouped(ctx, tx, `SELECT priority, COUNT(*) FROM tickets GROUP BY priority`, func(key string, n int) {
		snap.ByPriority[domain.TicketPriority(key)] = n
	}); err != nil {
		return nil, err
	}

	if snap.ByCategory, err = categoryCounts(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Staff, err = staffLoads(ctx, tx, q.StaffLimit); err != nil {
		return nil, err
	}
	if snap.Latest, err = listTickets(ctx, tx, TicketFilter{Limit: q.LatestLimit}); err != nil {
		return nil, err
	}

	return snap, tx.Commit(ctx)
}

func scanGrouped(ctx context.Context, q querier, query string, fn func(string, int)) error {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		fn(key, n)
	}
	return rows.Err()
}

func categoryCounts(ctx context.Context, q querier) ([]CategoryCount, error) {
	const query = `
        SELECT t.category_id, c.name, COUNT(*) AS n
        FROM tickets t LEFT JOIN categories c ON c.id = t.category_id
        GROUP BY t.category_id, c.name
        ORDER BY n DESC, c.name ASC`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []CategoryCount{}
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.CategoryID, &cc.Name, &cc.Count); err != nil {
			return nil, err
		}
		result = append(result, cc)
	}
	return result, rows.Err()
}

func staffLoads(ctx context.Context, q querier, limit int) ([]StaffLoad, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `
        SELECT u.id, u.name, u.department, COUNT(t.id) AS n
        FROM users u LEFT JOIN tickets t ON t.assigned_to_id = u.id
        WHERE u.role IN ('STAFF','ADMIN')
        GROUP BY u.id, u.name, u.department
        ORDER BY n DESC, u.name ASC
        LIMIT $1`
	rows, err := q.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []StaffLoad{}
	for rows.Next() {
		var s StaffLoad
		if err := rows.Scan(&s.UserID, &s.Name, &s.Department, &s.Assigned); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
