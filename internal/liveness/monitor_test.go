package liveness

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// gatedSweeper blocks each sweep until released and records whether the
// sweep context was cancelled.
type gatedSweeper struct {
	started   chan struct{}
	release   chan struct{}
	sweeps    atomic.Int32
	cancelled atomic.Bool
}

func (g *gatedSweeper) Sweep(ctx context.Context) SweepSummary {
	g.sweeps.Add(1)
	g.started <- struct{}{}
	<-g.release
	if ctx.Err() != nil {
		g.cancelled.Store(true)
	}
	return SweepSummary{Success: true}
}

func TestMonitor_StopWaitsForInFlightSweep(t *testing.T) {
	g := &gatedSweeper{started: make(chan struct{}, 1), release: make(chan struct{})}
	m := NewMonitor(g, time.Hour, true, nil)
	m.Start(context.Background())

	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first sweep did not run on start")
	}

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a sweep was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(g.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the sweep finished")
	}

	if g.cancelled.Load() {
		t.Error("in-flight sweep saw a cancelled context")
	}
	if n := g.sweeps.Load(); n != 1 {
		t.Errorf("sweeps = %d, want 1", n)
	}
	if m.Running() {
		t.Error("Running = true after Stop")
	}
}

func TestMonitor_Ticks(t *testing.T) {
	g := &gatedSweeper{started: make(chan struct{}, 8), release: make(chan struct{})}
	close(g.release)

	m := NewMonitor(g, 10*time.Millisecond, false, nil)
	m.Start(context.Background())
	if !m.Running() {
		t.Error("Running = false after Start")
	}

	for range 3 {
		select {
		case <-g.started:
		case <-time.After(2 * time.Second):
			t.Fatal("tick sweep did not run")
		}
	}
	m.Stop()
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	m := NewMonitor(&gatedSweeper{}, time.Second, false, nil)
	m.Stop()
}
