package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-escalation/internal/config"
	"github.com/spec-kit/ticket-escalation/internal/observability"
	"github.com/spec-kit/ticket-escalation/internal/persistence"
	"github.com/spec-kit/ticket-escalation/internal/service"
)

// ErrSweepInProgress is returned when another sweep holds the lock.
var ErrSweepInProgress = errors.New("escalation sweep already running")

// Sweeper runs one escalation sweep.
type Sweeper interface {
	RunEscalationSweep(ctx context.Context) (*service.SweepReport, error)
}

// Locker hands out a cluster-wide lock. persistence.Redis satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// EscalationWorker runs the sweep on a cron schedule. Overlapping runs are
// excluded in-process by a mutex and across replicas by the Redis lock;
// without Redis only the in-process guard applies.
type EscalationWorker struct {
	cron    *cron.Cron
	sweeper Sweeper
	locker  Locker
	lockKey string
	lockTTL time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc
	lastRun time.Time
	lastErr error
}

// NewEscalationWorker validates the schedule and registers the sweep job.
func NewEscalationWorker(cfg config.EscalationConfig, sweeper Sweeper, locker Locker, logger *zap.Logger) (*EscalationWorker, error) {
	logger = observability.OrNop(logger)
	ctx, cancel := context.WithCancel(context.Background())
	w := &EscalationWorker{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cronLogger{logger}))),
		sweeper: sweeper,
		locker:  locker,
		lockKey: cfg.LockKey,
		lockTTL: cfg.LockTTL(),
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
	if _, err := w.cron.AddFunc(cfg.Schedule, w.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid escalation schedule %q: %w", cfg.Schedule, err)
	}
	return w, nil
}

// Start begins scheduling.
func (w *EscalationWorker) Start() {
	w.cron.Start()
	w.logger.Info("escalation worker started", zap.Int("entries", len(w.cron.Entries())))
}

// Stop stops scheduling, cancels a sweep in flight and waits for it.
func (w *EscalationWorker) Stop(ctx context.Context) error {
	stopped := w.cron.Stop()
	w.cancel()
	select {
	case <-stopped.Done():
		w.logger.Info("escalation worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastRun reports when the last sweep finished and how it ended.
func (w *EscalationWorker) LastRun() (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun, w.lastErr
}

func (w *EscalationWorker) tick() {
	report, err := w.RunOnce(w.baseCtx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		w.logger.Debug("escalation sweep skipped", zap.Error(err))
	case err != nil:
		w.logger.Error("escalation sweep failed", zap.Error(err))
	default:
		w.logger.Debug("escalation sweep tick done", zap.Int("escalated", report.Escalated))
	}
}

// RunOnce runs a single sweep under the lock.
func (w *EscalationWorker) RunOnce(ctx context.Context) (*service.SweepReport, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil, ErrSweepInProgress
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	release, err := w.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if release == nil {
			return
		}
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			w.logger.Warn("sweep lock release failed", zap.String("key", w.lockKey), zap.Error(err))
		}
	}()

	// never outlive the lock
	sweepCtx := ctx
	if w.lockTTL > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithTimeout(ctx, w.lockTTL)
		defer cancel()
	}

	report, err := w.sweeper.RunEscalationSweep(sweepCtx)
	w.mu.Lock()
	w.lastRun = time.Now()
	w.lastErr = err
	w.mu.Unlock()
	return report, err
}

func (w *EscalationWorker) acquire(ctx context.Context) (func(context.Context) error, error) {
	if w.locker == nil {
		return nil, nil
	}
	release, ok, err := w.locker.TryLock(ctx, w.lockKey, w.lockTTL)
	if errors.Is(err, persistence.ErrRedisDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, ErrSweepInProgress
	}
	return release, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().With(zap.Error(err)).Errorw(msg, keysAndValues...)
}
