package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-escalation/internal/config"
	"github.com/spec-kit/ticket-escalation/internal/persistence"
	"github.com/spec-kit/ticket-escalation/internal/service"
)

type countingSweeper struct {
	calls atomic.Int32
	block chan struct{}
}

func (s *countingSweeper) RunEscalationSweep(ctx context.Context) (*service.SweepReport, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &service.SweepReport{Escalated: 1}, nil
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, true, nil
}

func testConfig() config.EscalationConfig {
	return config.EscalationConfig{
		Enabled:        true,
		Schedule:       "@every 1h",
		LockTTLSeconds: 30,
		LockKey:        "test:lock",
	}
}

func TestNewEscalationWorkerRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule = "every now and then"
	_, err := NewEscalationWorker(cfg, &countingSweeper{}, nil, nil)
	assert.Error(t, err)
}

func TestRunOnceTakesAndReleasesLock(t *testing.T) {
	sweeper := &countingSweeper{}
	locker := &fakeLocker{}
	w, err := NewEscalationWorker(testConfig(), sweeper, locker, nil)
	require.NoError(t, err)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)
	assert.Equal(t, 1, locker.released)
	assert.False(t, locker.held)

	last, lastErr := w.LastRun()
	assert.False(t, last.IsZero())
	assert.NoError(t, lastErr)
}

func TestRunOnceSkipsWhenLockHeldElsewhere(t *testing.T) {
	sweeper := &countingSweeper{}
	w, err := NewEscalationWorker(testConfig(), sweeper, &fakeLocker{held: true}, nil)
	require.NoError(t, err)

	_, err = w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)
	assert.Zero(t, sweeper.calls.Load())
}

func TestRunOnceWithoutRedis(t *testing.T) {
	sweeper := &countingSweeper{}
	w, err := NewEscalationWorker(testConfig(), sweeper, &fakeLocker{err: persistence.ErrRedisDisabled}, nil)
	require.NoError(t, err)

	_, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, sweeper.calls.Load())
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	w, err := NewEscalationWorker(testConfig(), &countingSweeper{}, &fakeLocker{err: errors.New("connection refused")}, nil)
	require.NoError(t, err)

	_, err = w.RunOnce(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestRunOnceExcludesOverlap(t *testing.T) {
	sweeper := &countingSweeper{block: make(chan struct{})}
	w, err := NewEscalationWorker(testConfig(), sweeper, nil, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := w.RunOnce(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err = w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(sweeper.block)
	assert.NoError(t, <-done)
}

func TestStopCancelsSweep(t *testing.T) {
	sweeper := &countingSweeper{block: make(chan struct{})}
	w, err := NewEscalationWorker(testConfig(), sweeper, nil, nil)
	require.NoError(t, err)
	w.Start()

	done := make(chan error, 1)
	go func() {
		_, err := w.RunOnce(w.baseCtx)
		done <- err
	}()
	require.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
	assert.ErrorIs(t, <-done, context.Canceled)
}
