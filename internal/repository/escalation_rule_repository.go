package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

// EscalationRuleRepository manages automatic escalation rules.
type EscalationRuleRepository interface {
	Create(ctx context.Context, rule *domain.EscalationRule) error
	Update(ctx context.Context, rule *domain.EscalationRule) error
	GetByID(ctx context.Context, id string) (*domain.EscalationRule, error)
	List(ctx context.Context, activeOnly bool) ([]domain.EscalationRule, error)
	// IncrementCounters bumps execution_count, and success_count when
	// success is set, atomically in the store.
	IncrementCounters(ctx context.Context, id string, success bool, at time.Time) error
}

type escalationRuleRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRuleRepository builds the repository.
func NewEscalationRuleRepository(pool *pgxpool.Pool) EscalationRuleRepository {
	return &escalationRuleRepository{pool: pool}
}

const ruleColumns = `id, name, description, service_types, category_ids, priority_levels, urgency_threshold,
               confidence_threshold, sentiment_threshold, sla_breach_escalation, from_role, to_role,
               skip_levels, is_active, execution_count, success_count, last_executed_at, created_at, updated_at`

func (r *escalationRuleRepository) Create(ctx context.Context, rule *domain.EscalationRule) error {
	const query = `
        INSERT INTO escalation_rules (name, description, service_types, category_ids, priority_levels,
            urgency_threshold, confidence_threshold, sentiment_threshold, sla_breach_escalation,
            from_role, to_role, skip_levels, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.Description,
		stringsOf(rule.ServiceTypes),
		nonNil(rule.CategoryIDs),
		stringsOf(rule.PriorityLevels),
		rule.UrgencyThreshold,
		rule.ConfidenceThreshold,
		rule.SentimentThreshold,
		rule.SLABreachEscalation,
		rule.FromRole,
		nullableRole(rule.ToRole),
		rule.SkipLevels,
		rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (r *escalationRuleRepository) Update(ctx context.Context, rule *domain.EscalationRule) error {
	const query = `
        UPDATE escalation_rules SET name=$1, description=$2, service_types=$3, category_ids=$4,
            priority_levels=$5, urgency_threshold=$6, confidence_threshold=$7, sentiment_threshold=$8,
            sla_breach_escalation=$9, from_role=$10, to_role=$11, skip_levels=$12, is_active=$13,
            updated_at=NOW()
        WHERE id=$14
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.Description,
		stringsOf(rule.ServiceTypes),
		nonNil(rule.CategoryIDs),
		stringsOf(rule.PriorityLevels),
		rule.UrgencyThreshold,
		rule.ConfidenceThreshold,
		rule.SentimentThreshold,
		rule.SLABreachEscalation,
		rule.FromRole,
		nullableRole(rule.ToRole),
		rule.SkipLevels,
		rule.IsActive,
		rule.ID,
	).Scan(&rule.UpdatedAt)
	return err
}

func (r *escalationRuleRepository) GetByID(ctx context.Context, id string) (*domain.EscalationRule, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM escalation_rules WHERE id=$1`, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	defer rows.Close()
	rules, err := scanRules(rows)
	if err != nil {
		return nil, lookupErr(err)
	}
	if len(rules) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &rules[0], nil
}

func (r *escalationRuleRepository) List(ctx context.Context, activeOnly bool) ([]domain.EscalationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM escalation_rules`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *escalationRuleRepository) IncrementCounters(ctx context.Context, id string, success bool, at time.Time) error {
	const query = `
        UPDATE escalation_rules SET execution_count = execution_count + 1,
            success_count = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
            last_executed_at = $3
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, success, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanRules(rows pgx.Rows) ([]domain.EscalationRule, error) {
	var result []domain.EscalationRule
	for rows.Next() {
		var (
			rule       domain.EscalationRule
			types      []string
			priorities []string
			toRole     *string
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Description,
			&types,
			&rule.CategoryIDs,
			&priorities,
			&rule.UrgencyThreshold,
			&rule.ConfidenceThreshold,
			&rule.SentimentThreshold,
			&rule.SLABreachEscalation,
			&rule.FromRole,
			&toRole,
			&rule.SkipLevels,
			&rule.IsActive,
			&rule.ExecutionCount,
			&rule.SuccessCount,
			&rule.LastExecutedAt,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rule.ServiceTypes = typedStrings[domain.TicketType](types)
		rule.PriorityLevels = typedStrings[domain.TicketPriority](priorities)
		if toRole != nil {
			rule.ToRole = domain.Role(*toRole)
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullableRole(role domain.Role) *string {
	if role == "" {
		return nil
	}
	s := string(role)
	return &s
}
