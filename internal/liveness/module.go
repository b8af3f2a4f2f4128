package liveness

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module is the liveness plugin. It owns the store, orchestrator,
// continuous monitor, alert dispatcher, and summary cache.
type Module struct {
	logger     *zap.Logger
	cfg        Config
	store      *Store
	bus        plugin.EventBus
	orch       *Orchestrator
	cache      *SummaryCache
	monitor    *Monitor
	dispatcher *AlertDispatcher
	metrics    *Metrics
	limiter    *rate.Limiter

	registerer prometheus.Registerer
	prober     Prober

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
}

// Option customizes a Module.
type Option func(*Module)

// WithRegisterer registers metrics with reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Module) { m.registerer = reg }
}

// WithProber replaces the configured probe method.
func WithProber(p Prober) Option {
	return func(m *Module) { m.prober = p }
}

// New creates a new liveness plugin instance.
func New(opts ...Option) *Module {
	m := &Module{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "liveness",
		Version:     "0.1.0",
		Description: "Device liveness sweeps and offline alerting",
		Required:    true,
		Roles:       []string{"monitoring"},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("decode liveness config: %w", err)
		}
	}
	if deps.Store == nil {
		return fmt.Errorf("liveness requires a store")
	}

	if err := deps.Store.Migrate(ctx, "liveness", migrations()); err != nil {
		return err
	}
	m.store = NewStore(deps.Store.DB())
	m.metrics = NewMetrics(m.registerer)
	m.cache = NewSummaryCache()

	prober := m.prober
	if prober == nil {
		prober = newProber(m.cfg, m.logger.Named("probe"))
	}

	od := OrchestratorDeps{
		Source:  m.store,
		Records: m.store,
		States:  m.store,
		History: m.store,
		Uptime:  m.store,
		Cache:   m.cache,
		Metrics: m.metrics,
		Prober:  prober,
		Logger:  m.logger.Named("sweep"),
	}
	if m.bus != nil {
		od.Bus = m.bus
		od.Alerts = NewBusAlertSink(m.bus)
		m.dispatcher = NewAlertDispatcher(m.store, BuildNotifiers(m.cfg.Notifications), m.bus, m.logger.Named("alerts"))
	}
	m.orch = NewOrchestrator(m.cfg, od)
	m.monitor = NewMonitor(m.orch, m.cfg.SweepInterval, m.cfg.RunOnStart, m.logger.Named("monitor"))

	limit := rate.Inf
	if m.cfg.SweepRate > 0 {
		limit = rate.Limit(m.cfg.SweepRate)
	}
	m.limiter = rate.NewLimiter(limit, 1)

	m.logger.Info("liveness module initialized",
		zap.String("method", m.cfg.Method),
		zap.Duration("sweep_interval", m.cfg.SweepInterval),
		zap.Bool("continuous", m.cfg.Continuous),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.Validate()
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.cache.Start()
	if m.dispatcher != nil {
		m.unsubscribe = m.dispatcher.Subscribe(m.bus)
	}
	if m.cfg.Continuous {
		m.monitor.Start(m.ctx)
	}
	if m.cfg.MaintenanceInterval > 0 {
		m.startMaintenance()
	}

	m.logger.Info("liveness module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.monitor != nil {
		m.monitor.Stop()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if m.dispatcher != nil {
		m.dispatcher.Wait()
	}
	if m.cache != nil {
		m.cache.Stop()
	}
	if m.logger != nil {
		m.logger.Info("liveness module stopped")
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	if m.store == nil || m.orch == nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: "liveness engine not initialized"}
	}
	n, err := m.store.CountActiveTargets(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: "store unavailable: " + err.Error()}
	}

	details := map[string]string{
		"active_targets": strconv.Itoa(n),
		"monitoring":     strconv.FormatBool(m.monitor.Running()),
	}
	summary, ok := m.cache.Latest()
	if !ok {
		if m.monitor.Running() {
			return plugin.HealthStatus{Status: "degraded", Message: "no recent sweep", Details: details}
		}
		return plugin.HealthStatus{Status: "healthy", Details: details}
	}
	details["last_sweep"] = summary.FinishedAt.Format(time.RFC3339)
	details["online"] = strconv.Itoa(summary.Online)
	details["offline"] = strconv.Itoa(summary.Offline)
	if !summary.Success {
		return plugin.HealthStatus{Status: "degraded", Message: summary.Message, Details: details}
	}
	return plugin.HealthStatus{Status: "healthy", Message: summary.Message, Details: details}
}

// Orchestrator returns the sweep engine. Nil before Init.
func (m *Module) Orchestrator() *Orchestrator { return m.orch }

// Store returns the liveness store. Nil before Init.
func (m *Module) Store() *Store { return m.store }

// Cache returns the summary cache. Nil before Init.
func (m *Module) Cache() *SummaryCache { return m.cache }

func newProber(cfg Config, logger *zap.Logger) Prober {
	if cfg.Method == MethodCommand {
		return NewCommandProber(nil)
	}
	return NewICMPProber(cfg.Privileged, logger)
}
