package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-escalation/internal/clock"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/repository"
)

// AuditTrail writes audit entries in the background. A failed write is
// logged and dropped; callers never wait on it.
type AuditTrail struct {
	repo   repository.AuditLogRepository
	clock  clock.Clock
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewAuditTrail constructs the trail.
func NewAuditTrail(repo repository.AuditLogRepository, clk clock.Clock, logger *zap.Logger) *AuditTrail {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditTrail{repo: repo, clock: clk, logger: logger}
}

// Record schedules entry for writing. Request metadata on ctx is copied
// into the entry; cancellation of ctx does not abort the write.
func (a *AuditTrail) Record(ctx context.Context, entry domain.AuditLogEntry) {
	if a == nil || a.repo == nil {
		return
	}
	meta := RequestMetaFrom(ctx)
	if entry.RequestID == "" {
		entry.RequestID = meta.RequestID
	}
	if entry.IPAddress == "" {
		entry.IPAddress = meta.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.clock.Now()
	}

	detached := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.repo.Create(detached, &entry); err != nil {
			a.logger.Warn("audit write failed",
				zap.String("action", entry.Action),
				zap.String("resource_type", entry.ResourceType),
				zap.String("resource_id", entry.ResourceID),
				zap.String("request_id", entry.RequestID),
				zap.Error(err))
		}
	}()
}

// Flush blocks until every scheduled write has finished.
func (a *AuditTrail) Flush() {
	if a == nil {
		return
	}
	a.wg.Wait()
}
