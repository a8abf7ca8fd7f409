package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

const (
	escalationUnitTarget = "target"
	escalationUnitCC     = "cc"
)

// EscalationRepository persists append-only escalation records together
// with their target and carbon-copy units.
type EscalationRepository interface {
	Create(ctx context.Context, record *domain.EscalationRecord) error
	GetByID(ctx context.Context, id string) (*domain.EscalationRecord, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.EscalationRecord, error)
}

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository builds the repository.
func NewEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &escalationRepository{pool: pool}
}

func (r *escalationRepository) Create(ctx context.Context, record *domain.EscalationRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `
        INSERT INTO escalations (ticket_id, from_unit_id, from_user_id, to_unit_id, to_user_id, to_role,
            reason, escalation_type, rule_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id`
	if err := tx.QueryRow(ctx, insert,
		record.TicketID,
		record.FromUnitID,
		record.FromUserID,
		record.ToUnitID,
		record.ToUserID,
		record.ToRole,
		record.Reason,
		record.EscalationType,
		record.RuleID,
		record.CreatedAt,
	).Scan(&record.ID); err != nil {
		return err
	}

	const link = `INSERT INTO escalation_units (escalation_id, unit_id, kind) VALUES ($1,$2,$3)`
	batch := &pgx.Batch{}
	for _, unitID := range record.TargetUnitIDs {
		batch.Queue(link, record.ID, unitID, escalationUnitTarget)
	}
	for _, unitID := range record.CCUnitIDs {
		batch.Queue(link, record.ID, unitID, escalationUnitCC)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *escalationRepository) GetByID(ctx context.Context, id string) (*domain.EscalationRecord, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	records, err := r.query(ctx, `WHERE e.id=$1`, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	if len(records) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &records[0], nil
}

func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.EscalationRecord, error) {
	return r.query(ctx, `WHERE e.ticket_id=$1`, ticketID)
}

func (r *escalationRepository) query(ctx context.Context, where string, args ...any) ([]domain.EscalationRecord, error) {
	query := `
        SELECT e.id, e.ticket_id, e.from_unit_id, e.from_user_id, e.to_unit_id, e.to_user_id, e.to_role,
               e.reason, e.escalation_type, e.rule_id, e.created_at,
               COALESCE(ARRAY(SELECT unit_id::text FROM escalation_units u
                              WHERE u.escalation_id = e.id AND u.kind = 'target'), '{}'),
               COALESCE(ARRAY(SELECT unit_id::text FROM escalation_units u
                              WHERE u.escalation_id = e.id AND u.kind = 'cc'), '{}')
        FROM escalations e ` + where + ` ORDER BY e.created_at ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EscalationRecord
	for rows.Next() {
		var record domain.EscalationRecord
		if err := rows.Scan(
			&record.ID,
			&record.TicketID,
			&record.FromUnitID,
			&record.FromUserID,
			&record.ToUnitID,
			&record.ToUserID,
			&record.ToRole,
			&record.Reason,
			&record.EscalationType,
			&record.RuleID,
			&record.CreatedAt,
			&record.TargetUnitIDs,
			&record.CCUnitIDs,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
