// Package liveness implements the FleetPulse device liveness engine:
// concurrent reachability probing, status reconciliation against persisted
// device state, fleet-size tiered sweeps, and the cached sweep summary.
package liveness

import (
	"context"
	"time"
)

// Target is a monitorable endpoint.
type Target struct {
	ID      string `json:"id" yaml:"id"`
	Address string `json:"address" yaml:"address"`
	Name    string `json:"name" yaml:"name"`
	Active  bool   `json:"active" yaml:"active"`
}

// Outcome is the result of one reachability probe. Build it with
// ReachableOutcome or UnreachableOutcome.
type Outcome struct {
	TargetID  string   `json:"target_id"`
	Address   string   `json:"address"`
	Reachable bool     `json:"reachable"`
	LatencyMs *float64 `json:"latency_ms"`
	// LatencyEstimated is set when LatencyMs is the wall-clock probe
	// duration rather than a measured round trip.
	LatencyEstimated bool          `json:"latency_estimated,omitempty"`
	Duration         time.Duration `json:"duration_ns"`
	CheckedAt        time.Time     `json:"checked_at"`
	Error            string        `json:"error,omitempty"`
	// Synthesized marks outcomes produced by the scheduler for a probe that
	// panicked, overran its deadline, or never reported.
	Synthesized bool `json:"synthesized,omitempty"`
}

// ReachableOutcome builds a successful probe outcome.
func ReachableOutcome(address string, latencyMs float64, estimated bool, duration time.Duration, at time.Time) Outcome {
	return Outcome{
		Address:          address,
		Reachable:        true,
		LatencyMs:        &latencyMs,
		LatencyEstimated: estimated,
		Duration:         duration,
		CheckedAt:        at,
	}
}

// UnreachableOutcome builds a failed probe outcome carrying the error detail.
func UnreachableOutcome(address, detail string, duration time.Duration, at time.Time) Outcome {
	return Outcome{
		Address:   address,
		Duration:  duration,
		CheckedAt: at,
		Error:     detail,
	}
}

// forTarget returns a copy of o attributed to targetID.
func (o Outcome) forTarget(targetID string) Outcome {
	o.TargetID = targetID
	return o
}

// Prober issues one reachability probe. Implementations are total: they
// never panic into the caller and report every failure as an unreachable
// Outcome.
type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) Outcome
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, address string, timeout time.Duration) Outcome

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, address string, timeout time.Duration) Outcome {
	return f(ctx, address, timeout)
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
