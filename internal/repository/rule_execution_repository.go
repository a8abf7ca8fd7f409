package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

// RuleExecutionRepository records automatic rule attempts.
type RuleExecutionRepository interface {
	// Claim inserts log as a pending attempt. It yields ErrDuplicateKey while
	// the rule and ticket already hold a pending or successful log. Pending
	// logs executed before staleBefore are failed first so an abandoned
	// claim does not block the pair forever.
	Claim(ctx context.Context, log *domain.RuleExecutionLog, staleBefore time.Time) error
	// Settle moves a claimed log to its final outcome. It yields ErrNotFound
	// when the claim is no longer pending.
	Settle(ctx context.Context, log *domain.RuleExecutionLog) error
	// Release drops a pending claim that turned out to have nothing to do.
	Release(ctx context.Context, log *domain.RuleExecutionLog) error
	ListByRule(ctx context.Context, ruleID string, limit int) ([]domain.RuleExecutionLog, error)
}

type ruleExecutionRepository struct {
	pool *pgxpool.Pool
}

// NewRuleExecutionRepository builds the repository.
func NewRuleExecutionRepository(pool *pgxpool.Pool) RuleExecutionRepository {
	return &ruleExecutionRepository{pool: pool}
}

const abandonedClaim = "claim abandoned by an earlier sweep"

func (r *ruleExecutionRepository) Claim(ctx context.Context, log *domain.RuleExecutionLog, staleBefore time.Time) error {
	const expire = `
        UPDATE rule_execution_logs SET outcome='failed', error_detail=$4
        WHERE rule_id=$1 AND ticket_id=$2 AND outcome='pending' AND executed_at < $3`
	if _, err := r.pool.Exec(ctx, expire, log.RuleID, log.TicketID, staleBefore, abandonedClaim); err != nil {
		return err
	}

	const query = `
        INSERT INTO rule_execution_logs (rule_id, ticket_id, outcome, executed_at)
        VALUES ($1,$2,'pending',$3)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query, log.RuleID, log.TicketID, log.ExecutedAt).Scan(&log.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	if err != nil {
		return err
	}
	log.Outcome = domain.ExecutionPending
	return nil
}

func (r *ruleExecutionRepository) Settle(ctx context.Context, log *domain.RuleExecutionLog) error {
	const query = `
        UPDATE rule_execution_logs SET outcome=$1, error_detail=$2, escalation_id=$3, executed_at=$4
        WHERE id=$5 AND outcome='pending'`
	cmd, err := r.pool.Exec(ctx, query,
		log.Outcome,
		log.ErrorDetail,
		log.EscalationID,
		log.ExecutedAt,
		log.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ruleExecutionRepository) Release(ctx context.Context, log *domain.RuleExecutionLog) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM rule_execution_logs WHERE id=$1 AND outcome='pending'`, log.ID)
	return err
}

func (r *ruleExecutionRepository) ListByRule(ctx context.Context, ruleID string, limit int) ([]domain.RuleExecutionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, rule_id, ticket_id, outcome, error_detail, escalation_id, executed_at
        FROM rule_execution_logs WHERE rule_id=$1 ORDER BY executed_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ruleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RuleExecutionLog
	for rows.Next() {
		var log domain.RuleExecutionLog
		if err := rows.Scan(
			&log.ID,
			&log.RuleID,
			&log.TicketID,
			&log.Outcome,
			&log.ErrorDetail,
			&log.EscalationID,
			&log.ExecutedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, log)
	}
	return result, rows.Err()
}
