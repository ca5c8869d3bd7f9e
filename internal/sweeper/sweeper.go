// Package sweeper runs the scheduled expiry pass over pending approval requests.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/better-wallet/multisig/internal/logger"
	"github.com/robfig/cron/v3"
)

// Expirer flips stale pending requests to expired
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Sweeper schedules Expirer runs. A run still in progress when the next tick
// fires causes that tick to be skipped.
type Sweeper struct {
	expirer Expirer
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// New builds a sweeper for a cron schedule such as "@every 1m" or "*/5 * * * *"
func New(expirer Expirer, schedule string, timeout time.Duration) (*Sweeper, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}

	log := cronLogger{l: slog.Default().With("component", "sweeper")}
	s := &Sweeper{
		expirer: expirer,
		timeout: timeout,
		cron: cron.New(
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid expiry sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins scheduling in the background
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce performs a single sweep synchronously
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.expirer.ExpireStale(ctx)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		logger.Error(ctx, "expiry sweep failed", "expired", n, "error", err)
		return n, err
	}
	if n > 0 {
		logger.Info(ctx, "expiry sweep completed", "expired", n)
	}
	return n, nil
}

// LastRun reports when the last sweep finished and its error
func (s *Sweeper) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *Sweeper) run() {
	_, _ = s.RunOnce(context.Background())
}

// cronLogger routes cron's scheduler messages to slog
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
