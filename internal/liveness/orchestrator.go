package liveness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/fleetpulse/internal/tier"
	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TargetSource supplies the active fleet. Implementations exclude inactive
// and acknowledged targets and return records ordered by target id.
type TargetSource interface {
	CountActiveTargets(ctx context.Context) (int, error)
	ListActiveTargets(ctx context.Context, afterID string, limit int) ([]TargetRecord, error)
}

// RecordReader looks up a single target with its state. Returns nil, nil
// when the target does not exist.
type RecordReader interface {
	GetRecord(ctx context.Context, id string) (*TargetRecord, error)
}

// StateSink persists reconciled device state. touch asks the sink to bump
// the row's last-modified time.
type StateSink interface {
	SaveState(ctx context.Context, st DeviceState, touch bool) error
}

// HistorySink appends probe results.
type HistorySink interface {
	AppendHistory(ctx context.Context, records []HistoryRecord) error
}

// UptimeRefresher recomputes stored uptime percentages from history.
type UptimeRefresher interface {
	RefreshUptime(ctx context.Context, targetIDs []string, now time.Time) error
}

// AlertSink receives alert-worthy events.
type AlertSink interface {
	EmitAlert(ctx context.Context, ev AlertEvent) error
}

// OrchestratorDeps wires the orchestrator to its collaborators. Source,
// States, and Prober are required; the rest may be nil.
type OrchestratorDeps struct {
	Source  TargetSource
	Records RecordReader
	States  StateSink
	History HistorySink
	Uptime  UptimeRefresher
	Alerts  AlertSink
	Bus     plugin.Publisher
	Cache   SummaryPublisher
	Metrics *Metrics
	Prober  Prober
	Logger  *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// CheckResult is the outcome of an on-demand single-target check.
type CheckResult struct {
	Outcome    Outcome     `json:"outcome"`
	State      DeviceState `json:"state"`
	Transition *Transition `json:"transition,omitempty"`
}

// Orchestrator runs sweeps over the fleet, choosing an execution tier by
// fleet size. Sweeps are serialized; a sweep requested while another runs
// fails fast.
type Orchestrator struct {
	cfg        Config
	deps       OrchestratorDeps
	scheduler  *Scheduler
	reconciler *Reconciler
	logger     *zap.Logger
	now        func() time.Time

	mu sync.Mutex
}

// NewOrchestrator creates an orchestrator from cfg and deps.
func NewOrchestrator(cfg Config, deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		scheduler: NewScheduler(deps.Prober, SchedulerOptions{
			PoolThreshold: cfg.PoolThreshold,
			PoolWorkers:   cfg.PoolWorkers,
		}, logger),
		reconciler: NewReconciler(cfg.OfflineAlertThreshold, now),
		logger:     logger,
		now:        now,
	}
}

// sweepRun carries the mutable bookkeeping of one sweep.
type sweepRun struct {
	id       string
	tier     tier.Tier
	expected int
	chunks   int
	agg      *Aggregator
	diag     Diagnostics
	settings tier.Settings
}

// Sweep runs one sweep and returns its summary. A sweep requested while
// another is running returns a failed summary.
func (o *Orchestrator) Sweep(ctx context.Context) SweepSummary {
	s, _ := o.TrySweep(ctx)
	return s
}

// TrySweep is Sweep but also reports ErrSweepInProgress when the sweep was
// refused. Other failures are reported only through the summary.
func (o *Orchestrator) TrySweep(ctx context.Context) (SweepSummary, error) {
	if !o.mu.TryLock() {
		now := o.now().UTC()
		return SweepSummary{
			Message:    ErrSweepInProgress.Error(),
			StartedAt:  now,
			FinishedAt: now,
			Outcomes:   []Outcome{},
		}, ErrSweepInProgress
	}
	defer o.mu.Unlock()
	return o.sweep(ctx), nil
}

func (o *Orchestrator) sweep(ctx context.Context) SweepSummary {
	start := o.now().UTC()
	run := &sweepRun{
		id:  uuid.NewString(),
		agg: NewAggregator(o.cfg.MaxSummaryOutcomes),
	}

	n, err := o.deps.Source.CountActiveTargets(ctx)
	if err != nil {
		return o.finish(ctx, run, start, fmt.Errorf("count active targets: %w", err))
	}
	run.expected = n
	run.tier = tier.Select(n, o.cfg.Thresholds())
	run.settings = o.cfg.TierSettings(run.tier)

	o.logger.Debug("sweep started",
		zap.String("sweep_id", run.id),
		zap.String("tier", string(run.tier)),
		zap.Int("targets", n),
	)

	if run.tier == tier.Large {
		err = o.sweepPaged(ctx, run)
	} else {
		err = o.sweepLoaded(ctx, run)
	}
	return o.finish(ctx, run, start, err)
}

// sweepLoaded loads the whole fleet and probes it in sub-batches. The
// small tier uses a single batch.
func (o *Orchestrator) sweepLoaded(ctx context.Context, run *sweepRun) error {
	recs, err := o.deps.Source.ListActiveTargets(ctx, "", 0)
	if err != nil {
		return fmt.Errorf("list active targets: %w", err)
	}
	size := run.settings.SubBatchSize
	if run.tier == tier.Small {
		size = 0
	}
	o.processInBatches(ctx, run, probeable(recs), size)
	return nil
}

// sweepPaged walks the fleet in id-ordered chunks, publishing progress
// after each chunk so that only one chunk is held at a time.
func (o *Orchestrator) sweepPaged(ctx context.Context, run *sweepRun) error {
	chunk := o.cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultConfig().ChunkSize
	}
	after := ""
	for {
		page, err := o.deps.Source.ListActiveTargets(ctx, after, chunk)
		if err != nil {
			return fmt.Errorf("list active targets after %q: %w", after, err)
		}
		if len(page) == 0 {
			return nil
		}
		after = page[len(page)-1].Target.ID

		o.processInBatches(ctx, run, probeable(page), run.settings.SubBatchSize)
		run.chunks++
		o.publishStats(run, false)

		if len(page) < chunk {
			return nil
		}
	}
}

func (o *Orchestrator) processInBatches(ctx context.Context, run *sweepRun, recs []TargetRecord, size int) {
	if size <= 0 {
		size = len(recs)
	}
	for start := 0; start < len(recs); start += size {
		o.processBatch(ctx, run, recs[start:min(start+size, len(recs))])
	}
}

// processBatch probes recs, reconciles and persists each result, then
// flushes history and refreshes uptime for the batch.
func (o *Orchestrator) processBatch(ctx context.Context, run *sweepRun, recs []TargetRecord) {
	if len(recs) == 0 {
		return
	}
	targets := make([]Target, len(recs))
	for i, r := range recs {
		targets[i] = r.Target
	}

	outcomes := o.scheduler.RunBatch(ctx, targets, run.settings.Concurrency, run.settings.ProbeTimeout)

	history := make([]HistoryRecord, 0, len(recs))
	for i, rec := range recs {
		if a, ok := o.apply(ctx, rec, outcomes[i], &run.diag); ok {
			history = append(history, a.history)
		}
	}
	run.agg.Add(outcomes...)
	o.flushHistory(ctx, history, &run.diag)
}

// applied is the persisted result of reconciling one outcome.
type applied struct {
	state   DeviceState
	tr      *Transition
	history HistoryRecord
}

// apply reconciles one outcome into rec's state and persists it. Events are
// emitted only once the new state is stored.
func (o *Orchestrator) apply(ctx context.Context, rec TargetRecord, out Outcome, diag *Diagnostics) (applied, bool) {
	o.deps.Metrics.observeProbe(out)

	next, tr, touch := o.reconciler.Reconcile(out, rec.State)
	if err := o.deps.States.SaveState(ctx, next, touch); err != nil {
		diag.PersistenceErrors++
		o.deps.Metrics.observePersistenceError()
		o.logger.Warn("failed to save device state",
			zap.String("target_id", rec.Target.ID),
			zap.Error(err),
		)
		return applied{}, false
	}
	next.Version++

	if tr != nil {
		diag.Transitions++
		o.deps.Metrics.observeTransition(*tr)
		o.publish(ctx, transitionTopic(tr.Kind), TransitionEvent{
			Transition: *tr,
			Address:    rec.Target.Address,
			Name:       rec.Target.Name,
		})
		if ev, ok := AlertFor(rec.Target, next, tr); ok {
			o.emitAlert(ctx, ev, diag)
		}
	}

	checked := out.CheckedAt
	if checked.IsZero() {
		checked = o.now()
	}
	return applied{
		state: next,
		tr:    tr,
		history: HistoryRecord{
			TargetID:  rec.Target.ID,
			Status:    next.Status,
			LatencyMs: out.LatencyMs,
			CheckedAt: checked.UTC(),
		},
	}, true
}

func (o *Orchestrator) emitAlert(ctx context.Context, ev AlertEvent, diag *Diagnostics) {
	if o.deps.Alerts == nil {
		return
	}
	if err := o.deps.Alerts.EmitAlert(ctx, ev); err != nil {
		diag.AlertErrors++
		o.logger.Warn("failed to emit alert",
			zap.String("target_id", ev.TargetID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		return
	}
	diag.AlertsEmitted++
	o.deps.Metrics.observeAlert(ev)
}

func (o *Orchestrator) flushHistory(ctx context.Context, history []HistoryRecord, diag *Diagnostics) {
	if len(history) == 0 || o.deps.History == nil {
		return
	}
	if err := o.deps.History.AppendHistory(ctx, history); err != nil {
		diag.PersistenceErrors += len(history)
		o.deps.Metrics.observePersistenceError()
		o.logger.Warn("failed to append history",
			zap.Int("records", len(history)),
			zap.Error(err),
		)
		return
	}

	if o.deps.Uptime == nil {
		return
	}
	ids := make([]string, len(history))
	for i, h := range history {
		ids[i] = h.TargetID
	}
	if err := o.deps.Uptime.RefreshUptime(ctx, ids, o.now()); err != nil {
		o.logger.Warn("failed to refresh uptime", zap.Int("targets", len(ids)), zap.Error(err))
	}
}

// finish builds the summary, publishes it, and records metrics. A non-nil
// err fails the sweep.
func (o *Orchestrator) finish(ctx context.Context, run *sweepRun, start time.Time, err error) SweepSummary {
	summary := run.agg.Summary()
	synthesized := summary.Diagnostics.SynthesizedOutcomes
	summary.Diagnostics = run.diag
	summary.Diagnostics.SynthesizedOutcomes = synthesized
	summary.ID = run.id
	summary.Tier = run.tier
	summary.StartedAt = start
	summary.FinishedAt = o.now().UTC()
	summary.Duration = summary.FinishedAt.Sub(start)

	if err != nil {
		summary.Success = false
		summary.Message = err.Error()
		o.logger.Error("sweep failed",
			zap.String("sweep_id", run.id),
			zap.String("tier", string(run.tier)),
			zap.Error(err),
		)
	} else {
		summary.Message = fmt.Sprintf("swept %d targets: %d online, %d offline", summary.Total, summary.Online, summary.Offline)
		o.publishStats(run, true)
		o.logger.Info("sweep completed",
			zap.String("sweep_id", run.id),
			zap.String("tier", string(run.tier)),
			zap.Int("total", summary.Total),
			zap.Int("online", summary.Online),
			zap.Int("offline", summary.Offline),
			zap.Int("persistence_errors", summary.Diagnostics.PersistenceErrors),
			zap.Duration("duration", summary.Duration),
		)
	}

	// A failed sweep replaces the previous summary so readers see the failure.
	if o.deps.Cache != nil {
		o.deps.Cache.Publish(summary, SummaryTTL(run.settings.CacheTTL, o.cfg.SweepInterval, summary.Duration))
	}
	o.deps.Metrics.observeSweep(summary)
	o.publish(ctx, TopicSweepCompleted, completedEvent(summary))
	return summary
}

func (o *Orchestrator) publishStats(run *sweepRun, done bool) {
	if o.deps.Cache == nil {
		return
	}
	stats := run.agg.Stats()
	stats.SweepID = run.id
	stats.Tier = run.tier
	stats.Expected = run.expected
	stats.Chunks = run.chunks
	stats.Done = done
	o.deps.Cache.PublishStats(stats, SummaryTTL(run.settings.CacheTTL, o.cfg.SweepInterval, 0))
}

func (o *Orchestrator) publish(ctx context.Context, topic string, payload any) {
	if o.deps.Bus == nil {
		return
	}
	err := o.deps.Bus.Publish(ctx, plugin.Event{
		Topic:     topic,
		Source:    eventSource,
		Timestamp: o.now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		o.logger.Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}

// CheckTarget probes one target immediately and reconciles the result.
// Acknowledged targets are probed but their state is left unchanged.
func (o *Orchestrator) CheckTarget(ctx context.Context, id string) (*CheckResult, error) {
	rec, err := o.record(ctx, id)
	if err != nil {
		return nil, err
	}

	out := o.scheduler.RunBatch(ctx, []Target{rec.Target}, 1, o.cfg.SingleProbeTimeout)[0]
	if rec.State.Status == StatusOfflineAck {
		o.deps.Metrics.observeProbe(out)
		return &CheckResult{Outcome: out, State: rec.State}, nil
	}

	var diag Diagnostics
	a, ok := o.apply(ctx, *rec, out, &diag)
	if !ok {
		return nil, fmt.Errorf("check target %s: save state failed", id)
	}
	o.flushHistory(ctx, []HistoryRecord{a.history}, &diag)
	return &CheckResult{Outcome: out, State: a.state, Transition: a.tr}, nil
}

// Acknowledge marks an offline target as acknowledged, removing it from
// sweeps until it is unacknowledged.
func (o *Orchestrator) Acknowledge(ctx context.Context, id string) (*DeviceState, error) {
	rec, err := o.record(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.State.Status != StatusOffline {
		return nil, ErrNotOffline
	}

	next := rec.State
	next.Status = StatusOfflineAck
	next.PreviousStatus = rec.State.Status
	next.OfflineSince = nil
	next.OfflineAlertSent = false
	return o.saveOperatorChange(ctx, next, TopicDeviceAcknowledged, true)
}

// Unacknowledge returns an acknowledged target to offline with a fresh
// outage episode, so it is swept and may alert again.
func (o *Orchestrator) Unacknowledge(ctx context.Context, id string) (*DeviceState, error) {
	rec, err := o.record(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.State.Status != StatusOfflineAck {
		return nil, ErrNotAcknowledged
	}

	now := o.now().UTC()
	next := rec.State
	next.Status = StatusOffline
	next.PreviousStatus = StatusOfflineAck
	next.OfflineSince = &now
	next.OfflineDurationMinutes = 0
	next.OfflineAlertSent = false
	return o.saveOperatorChange(ctx, next, TopicDeviceUnacknowledged, false)
}

func (o *Orchestrator) saveOperatorChange(ctx context.Context, next DeviceState, topic string, acked bool) (*DeviceState, error) {
	if err := o.deps.States.SaveState(ctx, next, true); err != nil {
		return nil, err
	}
	now := o.now().UTC()
	o.publish(ctx, topic, AckEvent{TargetID: next.TargetID, Acknowledged: acked, At: now})
	o.logger.Info("device acknowledgement changed",
		zap.String("target_id", next.TargetID),
		zap.Bool("acknowledged", acked),
	)

	next.Version++
	return &next, nil
}

func (o *Orchestrator) record(ctx context.Context, id string) (*TargetRecord, error) {
	if o.deps.Records == nil {
		return nil, ErrTargetNotFound
	}
	rec, err := o.deps.Records.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrTargetNotFound
	}
	return rec, nil
}

// probeable drops acknowledged targets so they never reach the prober.
func probeable(recs []TargetRecord) []TargetRecord {
	out := make([]TargetRecord, 0, len(recs))
	for _, r := range recs {
		if r.State.Status == StatusOfflineAck {
			continue
		}
		out = append(out, r)
	}
	return out
}
