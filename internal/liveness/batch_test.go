package liveness

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func makeTargets(n int) []Target {
	targets := make([]Target, n)
	for i := range targets {
		targets[i] = Target{
			ID:      fmt.Sprintf("t-%04d", i),
			Address: fmt.Sprintf("10.0.%d.%d", i/250, i%250+1),
			Active:  true,
		}
	}
	return targets
}

// reachableProber answers every probe as reachable after delay.
func reachableProber(delay time.Duration) Prober {
	return ProberFunc(func(ctx context.Context, address string, _ time.Duration) Outcome {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return UnreachableOutcome(address, ctx.Err().Error(), delay, time.Now())
			}
		}
		return ReachableOutcome(address, 1.5, false, delay, time.Now())
	})
}

func TestRunBatch_Totality(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		conc   int
		prober Prober
	}{
		{"empty", 0, 10, reachableProber(0)},
		{"single group", 7, 10, reachableProber(0)},
		{"uneven groups", 53, 20, reachableProber(0)},
		{"pool path", 120, 100, reachableProber(0)},
		{"all panic", 12, 5, ProberFunc(func(context.Context, string, time.Duration) Outcome {
			panic("driver fault")
		})},
		{"mixed", 30, 8, ProberFunc(func(_ context.Context, address string, _ time.Duration) Outcome {
			if strings.HasSuffix(address, "3") {
				panic("bad target")
			}
			return UnreachableOutcome(address, "no reply", 0, time.Now())
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(tt.prober, SchedulerOptions{}, zap.NewNop())
			targets := makeTargets(tt.n)

			outcomes := s.RunBatch(context.Background(), targets, tt.conc, 100*time.Millisecond)
			if len(outcomes) != len(targets) {
				t.Fatalf("got %d outcomes, want %d", len(outcomes), len(targets))
			}
			for i, o := range outcomes {
				if o.TargetID != targets[i].ID {
					t.Errorf("outcome[%d].TargetID = %q, want %q", i, o.TargetID, targets[i].ID)
				}
				if o.Reachable && o.LatencyMs == nil {
					t.Errorf("outcome[%d] reachable without latency", i)
				}
			}
		})
	}
}

func TestRunBatch_PanicIsSynthesizedUnreachable(t *testing.T) {
	s := NewScheduler(ProberFunc(func(context.Context, string, time.Duration) Outcome {
		panic("boom")
	}), SchedulerOptions{}, zap.NewNop())

	outcomes := s.RunBatch(context.Background(), makeTargets(3), 2, 50*time.Millisecond)
	for i, o := range outcomes {
		if o.Reachable || !o.Synthesized {
			t.Errorf("outcome[%d] = %+v, want synthesized unreachable", i, o)
		}
		if !strings.Contains(o.Error, "panicked") {
			t.Errorf("outcome[%d].Error = %q, want panic detail", i, o.Error)
		}
	}
}

func TestRunBatch_HungProberIsBounded(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// Ignores its context entirely.
	hung := ProberFunc(func(context.Context, string, time.Duration) Outcome {
		<-release
		return Outcome{}
	})
	s := NewScheduler(hung, SchedulerOptions{Grace: 20 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	outcomes := s.RunBatch(context.Background(), makeTargets(4), 4, 30*time.Millisecond)
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("batch took %v with a hung prober, want it bounded by timeout plus grace", elapsed)
	}
	for i, o := range outcomes {
		if o.Reachable || !o.Synthesized {
			t.Errorf("outcome[%d] = %+v, want synthesized unreachable", i, o)
		}
	}
}

// lossyStrategy skips every third index, simulating a strategy that loses work.
type lossyStrategy struct{}

func (lossyStrategy) Name() string { return "lossy" }

func (lossyStrategy) Run(_ context.Context, n int, probe func(i int)) {
	for i := range n {
		if i%3 != 0 {
			probe(i)
		}
	}
}

func TestRunBatch_SynthesizesMissingOutcomes(t *testing.T) {
	s := NewScheduler(reachableProber(0), SchedulerOptions{}, zap.NewNop())
	s.group = lossyStrategy{}

	targets := makeTargets(9)
	outcomes := s.RunBatch(context.Background(), targets, 9, 50*time.Millisecond)

	for i, o := range outcomes {
		if o.TargetID != targets[i].ID {
			t.Fatalf("outcome[%d].TargetID = %q, want %q", i, o.TargetID, targets[i].ID)
		}
		lost := i%3 == 0
		if lost && (o.Reachable || o.Error != "no outcome recorded") {
			t.Errorf("outcome[%d] = %+v, want synthesized no outcome recorded", i, o)
		}
		if !lost && !o.Reachable {
			t.Errorf("outcome[%d] should be reachable", i)
		}
	}
}

func TestRunBatch_DuplicateTargetsGetOwnOutcomes(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(ProberFunc(func(_ context.Context, address string, _ time.Duration) Outcome {
		calls.Add(1)
		return ReachableOutcome(address, 1, false, 0, time.Now())
	}), SchedulerOptions{}, zap.NewNop())

	dup := Target{ID: "same", Address: "10.0.0.9"}
	outcomes := s.RunBatch(context.Background(), []Target{dup, dup, dup}, 2, 50*time.Millisecond)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	if calls.Load() != 3 {
		t.Errorf("prober called %d times, want 3", calls.Load())
	}
}

func TestRunBatch_StrategySelection(t *testing.T) {
	s := NewScheduler(reachableProber(0), SchedulerOptions{PoolThreshold: 50}, zap.NewNop())
	if got := s.StrategyFor(50).Name(); got != "group" {
		t.Errorf("StrategyFor(50) = %q, want group", got)
	}
	if got := s.StrategyFor(51).Name(); got != "pool" {
		t.Errorf("StrategyFor(51) = %q, want pool", got)
	}
}

func TestPoolStrategy_BoundsConcurrency(t *testing.T) {
	var inFlight, peak, calls atomic.Int32
	seen := make([]atomic.Bool, 40)

	PoolStrategy{Workers: 4}.Run(context.Background(), len(seen), func(i int) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		seen[i].Store(true)
		calls.Add(1)
		inFlight.Add(-1)
	})

	if calls.Load() != 40 {
		t.Errorf("probe called %d times, want 40", calls.Load())
	}
	for i := range seen {
		if !seen[i].Load() {
			t.Errorf("index %d never probed", i)
		}
	}
	if peak.Load() > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", peak.Load())
	}
}

func TestStrategies_AreEquivalent(t *testing.T) {
	prober := ProberFunc(func(_ context.Context, address string, _ time.Duration) Outcome {
		if strings.HasSuffix(address, "7") {
			return UnreachableOutcome(address, "no reply", 0, time.Now())
		}
		return ReachableOutcome(address, 2, false, 0, time.Now())
	})
	targets := makeTargets(80)

	run := func(threshold int) []Outcome {
		s := NewScheduler(prober, SchedulerOptions{PoolThreshold: threshold, PoolWorkers: 16}, zap.NewNop())
		return s.RunBatch(context.Background(), targets, 80, 50*time.Millisecond)
	}
	viaGroup := run(1000)
	viaPool := run(1)

	for i := range targets {
		if viaGroup[i].TargetID != viaPool[i].TargetID || viaGroup[i].Reachable != viaPool[i].Reachable {
			t.Errorf("outcome[%d] differs: group=%+v pool=%+v", i, viaGroup[i], viaPool[i])
		}
	}
}

func TestRunBatch_WallTimeBoundedByGroups(t *testing.T) {
	const delay = 40 * time.Millisecond
	s := NewScheduler(reachableProber(delay), SchedulerOptions{}, zap.NewNop())

	start := time.Now()
	outcomes := s.RunBatch(context.Background(), makeTargets(150), 20, time.Second)
	elapsed := time.Since(start)

	if len(outcomes) != 150 {
		t.Fatalf("got %d outcomes, want 150", len(outcomes))
	}
	groups := (150 + 19) / 20
	if floor := time.Duration(groups) * delay; elapsed < floor {
		t.Errorf("batch finished in %v, faster than %d sequential groups of %v", elapsed, groups, delay)
	}
	if limit := 150 * delay / 3; elapsed > limit {
		t.Errorf("batch took %v, want well under serial time (limit %v)", elapsed, limit)
	}
}
