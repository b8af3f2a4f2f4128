package liveness

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors of the liveness engine. A nil
// *Metrics records nothing.
type Metrics struct {
	probes            *prometheus.CounterVec
	probeLatency      prometheus.Histogram
	sweeps            *prometheus.CounterVec
	sweepDuration     *prometheus.HistogramVec
	transitions       *prometheus.CounterVec
	alerts            *prometheus.CounterVec
	persistenceErrors prometheus.Counter
	devices           *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier instance are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		probes: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetpulse_probes_total",
				Help: "Total number of reachability probes by result.",
			},
			[]string{"result"},
		)),
		probeLatency: register(reg, prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fleetpulse_probe_latency_seconds",
				Help:    "Round-trip latency of successful probes.",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2},
			},
		)),
		sweeps: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetpulse_sweeps_total",
				Help: "Total number of sweeps by tier and result.",
			},
			[]string{"tier", "result"},
		)),
		sweepDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fleetpulse_sweep_duration_seconds",
				Help:    "Sweep wall time by tier.",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"tier"},
		)),
		transitions: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetpulse_transitions_total",
				Help: "Total number of device state transitions by kind.",
			},
			[]string{"kind"},
		)),
		alerts: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetpulse_alerts_total",
				Help: "Total number of alert events by kind.",
			},
			[]string{"kind"},
		)),
		persistenceErrors: register(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fleetpulse_persistence_errors_total",
				Help: "Total number of failed device state or history writes.",
			},
		)),
		devices: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleetpulse_devices",
				Help: "Devices by status as of the last completed sweep.",
			},
			[]string{"status"},
		)),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observeProbe(o Outcome) {
	if m == nil {
		return
	}
	switch {
	case o.Synthesized:
		m.probes.WithLabelValues("synthesized").Inc()
	case o.Reachable:
		m.probes.WithLabelValues("reachable").Inc()
		if o.LatencyMs != nil {
			m.probeLatency.Observe(*o.LatencyMs / 1000)
		}
	default:
		m.probes.WithLabelValues("unreachable").Inc()
	}
}

func (m *Metrics) observeSweep(s SweepSummary) {
	if m == nil {
		return
	}
	result := "success"
	if !s.Success {
		result = "failed"
	}
	t := string(s.Tier)
	if t == "" {
		t = "none"
	}
	m.sweeps.WithLabelValues(t, result).Inc()
	if !s.Success {
		return
	}
	m.sweepDuration.WithLabelValues(t).Observe(s.Duration.Seconds())
	m.devices.WithLabelValues(string(StatusOnline)).Set(float64(s.Online))
	m.devices.WithLabelValues(string(StatusOffline)).Set(float64(s.Offline))
}

func (m *Metrics) observeTransition(tr Transition) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(tr.Kind)).Inc()
}

func (m *Metrics) observeAlert(ev AlertEvent) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(string(ev.Kind)).Inc()
}

func (m *Metrics) observePersistenceError() {
	if m == nil {
		return
	}
	m.persistenceErrors.Inc()
}
