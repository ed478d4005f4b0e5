package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// TicketHistoryRepository stores the audit trail of ticket updates.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	db querier
}

func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{db: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	return r.db.QueryRow(ctx, `
        INSERT INTO ticket_history (ticket_id, changed_by_id, change_type, old_value, new_value)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`,
		entry.TicketID, entry.ChangedByID, entry.ChangeType, entry.OldValue, entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ListByTicket returns entries oldest first with the actor's name and role.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	rows, err := r.db.Query(ctx, `
        SELECT h.id, h.ticket_id, h.changed_by_id, u.name, u.role,
               h.change_type, h.old_value, h.new_value, h.created_at
        FROM ticket_history h
        JOIN users u ON u.id = h.changed_by_id
        WHERE h.ticket_id = $1
        ORDER BY h.created_at ASC, h.id ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.TicketHistory{}
	for rows.Next() {
		var e domain.TicketHistory
		if err := rows.Scan(
			&e.ID, &e.TicketID, &e.ChangedByID, &e.ChangedByName, &e.ChangedByRole,
			&e.ChangeType, &e.OldValue, &e.NewValue, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
