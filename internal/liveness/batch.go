package liveness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// probeGrace is how long past its timeout a probe may run before the
// scheduler gives up on it.
const probeGrace = 250 * time.Millisecond

// BatchProbeStrategy runs probe once for every index in [0, n) and returns
// after all calls have returned. Strategies differ only in how goroutines
// are allocated; the outcomes they yield are the same.
type BatchProbeStrategy interface {
	Name() string
	Run(ctx context.Context, n int, probe func(i int))
}

// GroupStrategy starts one goroutine per target.
type GroupStrategy struct{}

func (GroupStrategy) Name() string { return "group" }

func (GroupStrategy) Run(_ context.Context, n int, probe func(i int)) {
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probe(i)
		}()
	}
	wg.Wait()
}

// PoolStrategy runs at most Workers probes at once. Workers <= 0 sizes the
// pool to the group.
type PoolStrategy struct {
	Workers int
}

func (PoolStrategy) Name() string { return "pool" }

func (p PoolStrategy) Run(_ context.Context, n int, probe func(i int)) {
	workers := p.Workers
	if workers <= 0 || workers > n {
		workers = n
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range n {
		g.Go(func() error {
			probe(i)
			return nil
		})
	}
	// Probe failures are outcomes, so the group only bounds and joins.
	g.Wait()
}

// SchedulerOptions tune the batch scheduler.
type SchedulerOptions struct {
	// PoolThreshold is the group size above which PoolStrategy is used.
	PoolThreshold int
	PoolWorkers   int
	Grace         time.Duration
}

// Scheduler fans targets out to a Prober in bounded concurrency groups.
type Scheduler struct {
	prober    Prober
	group     BatchProbeStrategy
	pool      BatchProbeStrategy
	threshold int
	grace     time.Duration
	logger    *zap.Logger
}

// NewScheduler creates a scheduler around prober.
func NewScheduler(prober Prober, opts SchedulerOptions, logger *zap.Logger) *Scheduler {
	if opts.Grace <= 0 {
		opts.Grace = probeGrace
	}
	if opts.PoolThreshold <= 0 {
		opts.PoolThreshold = 50
	}
	return &Scheduler{
		prober:    prober,
		group:     GroupStrategy{},
		pool:      PoolStrategy{Workers: opts.PoolWorkers},
		threshold: opts.PoolThreshold,
		grace:     opts.Grace,
		logger:    logger,
	}
}

// StrategyFor returns the strategy used for a group of size n.
func (s *Scheduler) StrategyFor(n int) BatchProbeStrategy {
	if n > s.threshold {
		return s.pool
	}
	return s.group
}

// RunBatch probes targets in groups of at most maxConcurrency, waiting for
// each group before starting the next. It returns exactly one outcome per
// input target, in input order. Duplicate targets are probed separately.
func (s *Scheduler) RunBatch(ctx context.Context, targets []Target, maxConcurrency int, timeout time.Duration) []Outcome {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	outcomes := make([]Outcome, len(targets))
	recorded := make([]bool, len(targets))

	for start := 0; start < len(targets); start += maxConcurrency {
		end := min(start+maxConcurrency, len(targets))
		group := targets[start:end]
		strategy := s.StrategyFor(len(group))

		strategy.Run(ctx, len(group), func(i int) {
			outcomes[start+i] = s.probeOne(ctx, group[i], timeout)
			recorded[start+i] = true
		})

		for i := start; i < end; i++ {
			if recorded[i] {
				continue
			}
			s.logger.Warn("no outcome recorded for target, synthesizing",
				zap.String("target_id", targets[i].ID),
				zap.String("strategy", strategy.Name()),
			)
			outcomes[i] = synthesized(targets[i], "no outcome recorded", 0)
		}
	}
	return outcomes
}

// probeOne runs a single probe with a hard deadline of timeout plus grace,
// converting panics and overruns into unreachable outcomes.
func (s *Scheduler) probeOne(ctx context.Context, t Target, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout+s.grace)
	defer cancel()

	start := time.Now()
	result := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("probe panicked",
					zap.String("target_id", t.ID),
					zap.Any("panic", r),
				)
				result <- synthesized(t, fmt.Sprintf("probe panicked: %v", r), time.Since(start))
			}
		}()
		result <- s.prober.Probe(ctx, t.Address, timeout)
	}()

	select {
	case o := <-result:
		return o.forTarget(t.ID)
	case <-ctx.Done():
		return synthesized(t, fmt.Sprintf("probe exceeded deadline of %s", timeout+s.grace), time.Since(start))
	}
}

func synthesized(t Target, detail string, elapsed time.Duration) Outcome {
	o := UnreachableOutcome(t.Address, detail, elapsed, time.Now().UTC()).forTarget(t.ID)
	o.Synthesized = true
	return o
}
