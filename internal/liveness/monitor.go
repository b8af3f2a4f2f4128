package liveness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs one sweep.
type Sweeper interface {
	Sweep(ctx context.Context) SweepSummary
}

// Monitor sweeps continuously on a fixed interval. Stop takes effect only
// between sweeps: a sweep in progress always runs to completion.
type Monitor struct {
	sweeper    Sweeper
	interval   time.Duration
	runOnStart bool
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor that calls sweeper every interval.
func NewMonitor(sweeper Sweeper, interval time.Duration, runOnStart bool, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		sweeper:    sweeper,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger,
	}
}

// Start launches the sweep loop and returns immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.logger.Info("continuous monitoring started", zap.Duration("interval", m.interval))

		if m.runOnStart {
			m.runOnce()
		}
		for {
			select {
			case <-m.ctx.Done():
				m.logger.Info("continuous monitoring stopped")
				return
			case <-ticker.C:
				m.runOnce()
			}
		}
	}()
}

// Stop signals the loop and waits for any in-flight sweep to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	return m.ctx != nil && m.ctx.Err() == nil
}

// runOnce sweeps on a context detached from the stop signal.
func (m *Monitor) runOnce() {
	if m.ctx.Err() != nil {
		return
	}
	s := m.sweeper.Sweep(context.WithoutCancel(m.ctx))
	if !s.Success {
		m.logger.Warn("scheduled sweep failed", zap.String("message", s.Message))
	}
}
