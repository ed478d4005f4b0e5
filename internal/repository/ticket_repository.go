package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/ticketid"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// ErrDuplicateTicketID reports that the allocated human-readable id was already taken.
var ErrDuplicateTicketID = errors.New("ticket id already allocated")

const ticketIDConstraint = "tickets_ticket_id_key"

// TicketFilter captures list parameters. AuthorID and AssignedToID carry the
// role scope; the remaining fields are caller supplied.
type TicketFilter struct {
	AuthorID     *string
	AssignedToID *string
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	CategoryID   *string
	Limit        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create allocates the next PREFIX-YEAR ordinal and inserts the ticket,
	// filling ticket.ID and ticket.TicketID. It returns ErrDuplicateTicketID
	// when the allocated id is already taken.
	Create(ctx context.Context, ticket *domain.Ticket, prefix string, year int) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

// allocateOrdinalSQL bumps the per prefix/year counter. A missing row is
// seeded past the highest ordinal already stored under that prefix.
const allocateOrdinalSQL = `
        INSERT INTO ticket_sequences (prefix, year, last_value)
        VALUES ($1, $2, (
            SELECT COALESCE(MAX(substring(ticket_id FROM char_length($3::text) + 1)::int), 0) + 1
            FROM tickets WHERE starts_with(ticket_id, $3::text)))
        ON CONFLICT (prefix, year) DO UPDATE SET last_value = ticket_sequences.last_value + 1
        RETURNING last_value`

// Create runs the ordinal bump as its own committed statement, so an insert
// that collides still consumes the ordinal and the next attempt moves past it.
func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, prefix string, year int) error {
	var ordinal int
	if err := r.pool.QueryRow(ctx, allocateOrdinalSQL, prefix, year, ticketid.YearPrefix(prefix, year)).Scan(&ordinal); err != nil {
		return fmt.Errorf("allocate ticket ordinal: %w", err)
	}
	ticket.TicketID = ticketid.Format(prefix, year, ordinal)

	const query = `
        INSERT INTO tickets (ticket_id, title, description, location, status, priority, category_id,
                             author_id, assigned_to_id, created_at, updated_at, resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		ticket.TicketID,
		ticket.Title,
		ticket.Description,
		ticket.Location,
		ticket.Status,
		ticket.Priority,
		ticket.CategoryID,
		ticket.AuthorID,
		ticket.AssignedToID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
	).Scan(&ticket.ID)
	if apperrors.IsUniqueViolation(err, ticketIDConstraint) {
		return ErrDuplicateTicketID
	}
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, priority=$2, assigned_to_id=$3, resolved_at=$4, updated_at=$5
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedToID,
		ticket.ResolvedAt,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const ticketSelect = `
        SELECT t.id, t.ticket_id, t.title, t.description, t.location, t.status, t.priority,
               t.category_id, t.author_id, t.assigned_to_id, t.created_at, t.updated_at, t.resolved_at,
               a.name, a.email, s.name, c.name,
               (SELECT COUNT(*) FROM remarks r WHERE r.ticket_id = t.id AND NOT r.is_internal),
               (SELECT COUNT(*) FROM attachments f WHERE f.ticket_id = t.id)
        FROM tickets t
        JOIN users a ON a.id = t.author_id
        LEFT JOIN users s ON s.id = t.assigned_to_id
        LEFT JOIN categories c ON c.id = t.category_id`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx, ticketSelect+` WHERE t.id=$1`, id))
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	return listTickets(ctx, r.pool, filter)
}

func listTickets(ctx context.Context, q querier, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AuthorID != nil {
		args = append(args, *filter.AuthorID)
		clauses = append(clauses, fmt.Sprintf("t.author_id=$%d", len(args)))
	}
	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("t.category_id=$%d", len(args)))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at DESC, t.ticket_id DESC`, ticketSelect, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Location,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CategoryID,
		&ticket.AuthorID,
		&ticket.AssignedToID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.AuthorName,
		&ticket.AuthorEmail,
		&ticket.AssigneeName,
		&ticket.CategoryName,
		&ticket.RemarkCount,
		&ticket.AttachmentCount,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
