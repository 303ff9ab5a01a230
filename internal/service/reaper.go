package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/filecoin-project/go-clock"
)

// ErrSweepInProgress is returned by RunOnce when another sweep is running.
var ErrSweepInProgress = errors.New("session sweep already in progress")

// Sweeper deletes expired sessions.
type Sweeper interface {
	ReapExpired(ctx context.Context) (int64, error)
}

// Reaper periodically purges expired sessions. At most one sweep runs at a
// time; a tick that arrives while a sweep is in flight is dropped.
type Reaper struct {
	sweeper  Sweeper
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewReaper returns a Reaper that sweeps every interval. A non-positive
// interval uses DefaultReapInterval; a nil clock uses the wall clock.
func NewReaper(sweeper Sweeper, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{sweeper: sweeper, clock: clk, interval: interval, logger: logger}
}

// Start sweeps once immediately and then on every tick until ctx is done or
// Stop is called. Non-blocking.
func (r *Reaper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	ticker := r.clock.Ticker(r.interval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()

		r.trigger(ctx)
		for {
			select {
			case <-ticker.C:
				r.trigger(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// RunOnce performs a single sweep synchronously.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	if !r.running.CompareAndSwap(false, true) {
		return 0, ErrSweepInProgress
	}
	defer r.running.Store(false)
	return r.sweep(ctx)
}

// trigger starts a sweep in its own goroutine unless one is already running.
func (r *Reaper) trigger(ctx context.Context) bool {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug("session sweep skipped, previous sweep still running")
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)
		// A sweep that has started runs to completion even if the loop stops.
		r.sweep(context.WithoutCancel(ctx)) //nolint:errcheck
	}()
	return true
}

func (r *Reaper) sweep(ctx context.Context) (int64, error) {
	n, err := r.sweeper.ReapExpired(ctx)
	if err != nil {
		r.logger.Error("session sweep failed", "error", err)
		return 0, err
	}
	if n > 0 {
		r.logger.Info("expired sessions removed", "count", n)
	} else {
		r.logger.Debug("session sweep found nothing to remove")
	}
	return n, nil
}
