package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// RemarkRepository stores ticket remarks.
type RemarkRepository interface {
	Create(ctx context.Context, remark *domain.Remark) error
	ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Remark, error)
}

type remarkRepository struct {
	pool *pgxpool.Pool
}

// NewRemarkRepository constructs repository.
func NewRemarkRepository(pool *pgxpool.Pool) RemarkRepository {
	return &remarkRepository{pool: pool}
}

func (r *remarkRepository) Create(ctx context.Context, remark *domain.Remark) error {
	const query = `
        WITH inserted AS (
            INSERT INTO remarks (ticket_id, author_id, content, is_internal, created_at)
            VALUES ($1,$2,$3,$4,$5)
            RETURNING id, author_id
        )
        SELECT inserted.id, u.name, u.role
        FROM inserted JOIN users u ON u.id = inserted.author_id`
	return r.pool.QueryRow(ctx, query,
		remark.TicketID,
		remark.AuthorID,
		remark.Content,
		remark.IsInternal,
		remark.CreatedAt,
	).Scan(&remark.ID, &remark.AuthorName, &remark.AuthorRole)
}

func (r *remarkRepository) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Remark, error) {
	const query = `
        SELECT r.id, r.ticket_id, r.author_id, u.name, u.role, r.content, r.is_internal, r.created_at
        FROM remarks r JOIN users u ON u.id = r.author_id
        WHERE r.ticket_id=$1 AND ($2 OR NOT r.is_internal)
        ORDER BY r.created_at ASC, r.id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID, includeInternal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Remark{}
	for rows.Next() {
		var remark domain.Remark
		if err := rows.Scan(
			&remark.ID,
			&remark.TicketID,
			&remark.AuthorID,
			&remark.AuthorName,
			&remark.AuthorRole,
			&remark.Content,
			&remark.IsInternal,
			&remark.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, remark)
	}
	return result, rows.Err()
}
