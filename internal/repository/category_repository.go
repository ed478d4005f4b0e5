package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// CategoryRepository persists ticket categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, category *domain.Category) error
	// DeleteIfUnused removes the category only when no ticket references it.
	// It reports the number of referencing tickets when the delete was refused.
	DeleteIfUnused(ctx context.Context, id string) (deleted bool, ticketCount int, err error)
	UpsertByName(ctx context.Context, category *domain.Category) error
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a Postgres-backed implementation.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

const categorySelect = `
        SELECT c.id, c.name, c.description, c.department, c.created_at, c.updated_at,
               (SELECT COUNT(*) FROM tickets t WHERE t.category_id = c.id)
        FROM categories c`

func (r *categoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, categorySelect+` ORDER BY c.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *category)
	}
	return result, rows.Err()
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, categorySelect+` WHERE c.id=$1`, id))
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (name, description, department)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		category.Name,
		category.Description,
		category.Department,
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
}

func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	const query = `
        UPDATE categories SET name=$1, description=$2, department=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		category.Name,
		category.Description,
		category.Department,
		category.ID,
	).Scan(&category.UpdatedAt)
}

func (r *categoryRepository) DeleteIfUnused(ctx context.Context, id string) (bool, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Lock the category row so no ticket can be filed against it mid-check.
	var locked string
	if err := tx.QueryRow(ctx, `SELECT id FROM categories WHERE id=$1 FOR UPDATE`, id).Scan(&locked); err != nil {
		return false, 0, err
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE category_id=$1`, id).Scan(&count); err != nil {
		return false, 0, err
	}
	if count > 0 {
		return false, count, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id); err != nil {
		return false, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}

func (r *categoryRepository) UpsertByName(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (name, description, department)
        VALUES ($1,$2,$3)
        ON CONFLICT (name) DO UPDATE
            SET description=EXCLUDED.description, department=EXCLUDED.department, updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		category.Name,
		category.Description,
		category.Department,
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var category domain.Category
	if err := row.Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.Department,
		&category.CreatedAt,
		&category.UpdatedAt,
		&category.TicketCount,
	); err != nil {
		return nil, err
	}
	return &category, nil
}
