package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

// AuditLogRepository is write-only.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLogEntry) error
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository builds the repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	const query = `
        INSERT INTO audit_logs (actor_id, actor_role, action, resource_type, resource_id, unit_id,
            unauthorized, reason, request_id, ip_address, user_agent, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		entry.ActorID,
		entry.ActorRole,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.UnitID,
		entry.Unauthorized,
		entry.Reason,
		entry.RequestID,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	).Scan(&entry.ID)
}
