package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup by id resolves nothing.
	ErrNotFound = pgx.ErrNoRows
	// ErrDuplicateKey is returned when an insert collides with a unique key.
	ErrDuplicateKey = errors.New("duplicate key")
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// validID reports whether id can name a row. Every primary key is a UUID,
// so anything else resolves nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// lookupErr maps a key Postgres refused to parse to ErrNotFound.
func lookupErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return ErrNotFound
	}
	return err
}

// CandidateFilter selects tickets a rule may escalate.
type CandidateFilter struct {
	Statuses       []domain.TicketStatus
	Types          []domain.TicketType
	CategoryIDs    []string
	Priorities     []domain.TicketPriority
	MinUrgency     *int
	MinConfidence  *float64
	MaxSentiment   *float64
	DeadlineBefore *time.Time
	// SkipSucceededRule drops tickets this rule has already escalated.
	SkipSucceededRule string
	// After resumes the scan past a previous page.
	After *CandidateCursor
	Limit int
}

// CandidateCursor is the (created_at, id) position of the last ticket of a
// page. Candidates are ordered by that pair.
type CandidateCursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorAfter returns the cursor positioned after the last ticket of page.
func CursorAfter(page []domain.Ticket) *CandidateCursor {
	if len(page) == 0 {
		return nil
	}
	last := page[len(page)-1]
	return &CandidateCursor{CreatedAt: last.CreatedAt, ID: last.ID}
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// UpdateLifecycle persists status, lifecycle stamps, escalation flag and
	// assignment. sla_deadline is never written after creation.
	UpdateLifecycle(ctx context.Context, ticket *domain.Ticket) error
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, type, title, description, unit_id, category_id, status, priority,
               urgency_level, confidence_score, sentiment_score, source, assigned_to, sla_deadline,
               is_escalated, created_at, updated_at, first_response_at, resolved_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, type, title, description, unit_id, category_id, status, priority,
            urgency_level, confidence_score, sentiment_score, source, assigned_to, sla_deadline, is_escalated,
            created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)
        RETURNING id, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Type,
		ticket.Title,
		ticket.Description,
		ticket.UnitID,
		ticket.CategoryID,
		ticket.Status,
		ticket.Priority,
		ticket.UrgencyLevel,
		ticket.ConfidenceScore,
		ticket.SentimentScore,
		ticket.Source,
		ticket.AssignedTo,
		ticket.SLADeadline,
		ticket.IsEscalated,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("ticket number %s: %w", ticket.TicketNumber, ErrDuplicateKey)
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, lookupErr(err)
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) UpdateLifecycle(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, first_response_at=$2, resolved_at=$3, is_escalated=$4,
            assigned_to=$5, updated_at=$6
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.IsEscalated,
		ticket.AssignedTo,
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

func (r *ticketRepository) ListCandidates(ctx context.Context, filter CandidateFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		args = append(args, stringsOf(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Types) > 0 {
		args = append(args, stringsOf(filter.Types))
		clauses = append(clauses, fmt.Sprintf("type = ANY($%d)", len(args)))
	}
	if len(filter.CategoryIDs) > 0 {
		args = append(args, filter.CategoryIDs)
		clauses = append(clauses, fmt.Sprintf("category_id::text = ANY($%d)", len(args)))
	}
	if len(filter.Priorities) > 0 {
		args = append(args, stringsOf(filter.Priorities))
		clauses = append(clauses, fmt.Sprintf("priority = ANY($%d)", len(args)))
	}
	if filter.MinUrgency != nil {
		args = append(args, *filter.MinUrgency)
		clauses = append(clauses, fmt.Sprintf("urgency_level >= $%d", len(args)))
	}
	if filter.MinConfidence != nil {
		args = append(args, *filter.MinConfidence)
		clauses = append(clauses, fmt.Sprintf("confidence_score >= $%d", len(args)))
	}
	if filter.MaxSentiment != nil {
		args = append(args, *filter.MaxSentiment)
		clauses = append(clauses, fmt.Sprintf("sentiment_score <= $%d", len(args)))
	}
	if filter.DeadlineBefore != nil {
		args = append(args, *filter.DeadlineBefore)
		clauses = append(clauses, fmt.Sprintf("sla_deadline < $%d", len(args)))
	}
	if filter.SkipSucceededRule != "" {
		args = append(args, filter.SkipSucceededRule)
		clauses = append(clauses, fmt.Sprintf(`NOT EXISTS (SELECT 1 FROM rule_execution_logs l
            WHERE l.rule_id = $%d::uuid AND l.ticket_id = tickets.id AND l.outcome = 'success')`, len(args)))
	}
	if filter.After != nil {
		args = append(args, filter.After.CreatedAt, filter.After.ID)
		clauses = append(clauses, fmt.Sprintf("(created_at, id) > ($%d, $%d::uuid)", len(args)-1, len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at ASC, id ASC LIMIT %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TicketNumber,
			&ticket.Type,
			&ticket.Title,
			&ticket.Description,
			&ticket.UnitID,
			&ticket.CategoryID,
			&ticket.Status,
			&ticket.Priority,
			&ticket.UrgencyLevel,
			&ticket.ConfidenceScore,
			&ticket.SentimentScore,
			&ticket.Source,
			&ticket.AssignedTo,
			&ticket.SLADeadline,
			&ticket.IsEscalated,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.FirstResponseAt,
			&ticket.ResolvedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func typedStrings[T ~string](values []string) []T {
	out := make([]T, len(values))
	for i, v := range values {
		out[i] = T(v)
	}
	return out
}
