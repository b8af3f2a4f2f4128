package liveness

import (
	"time"

	"github.com/HerbHall/fleetpulse/internal/tier"
)

// Diagnostics counts per-target problems that did not fail the sweep.
type Diagnostics struct {
	PersistenceErrors   int `json:"persistence_errors"`
	AlertErrors         int `json:"alert_errors"`
	SynthesizedOutcomes int `json:"synthesized_outcomes"`
	Transitions         int `json:"transitions"`
	AlertsEmitted       int `json:"alerts_emitted"`
}

// SweepSummary is the result of one sweep. Every tier produces the same
// shape; counts always cover the whole fleet even when Outcomes is capped.
type SweepSummary struct {
	ID                string        `json:"id"`
	Success           bool          `json:"success"`
	Message           string        `json:"message,omitempty"`
	Tier              tier.Tier     `json:"tier,omitempty"`
	Total             int           `json:"total"`
	Online            int           `json:"online"`
	Offline           int           `json:"offline"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        time.Time     `json:"finished_at"`
	Duration          time.Duration `json:"duration_ns"`
	Outcomes          []Outcome     `json:"outcomes"`
	OutcomesTruncated bool          `json:"outcomes_truncated"`
	Diagnostics       Diagnostics   `json:"diagnostics"`
}

// SweepStats is the progress snapshot published while a sweep runs.
type SweepStats struct {
	SweepID   string    `json:"sweep_id"`
	Tier      tier.Tier `json:"tier"`
	Expected  int       `json:"expected"`
	Processed int       `json:"processed"`
	Online    int       `json:"online"`
	Offline   int       `json:"offline"`
	Chunks    int       `json:"chunks"`
	Done      bool      `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Aggregator folds outcomes into a summary in a single pass. It keeps at
// most maxOutcomes outcomes; a non-positive cap keeps them all.
type Aggregator struct {
	maxOutcomes int
	total       int
	online      int
	offline     int
	synthesized int
	outcomes    []Outcome
	truncated   bool
}

// NewAggregator creates an empty aggregator.
func NewAggregator(maxOutcomes int) *Aggregator {
	return &Aggregator{maxOutcomes: maxOutcomes, outcomes: []Outcome{}}
}

// Add folds outcomes into the running totals.
func (a *Aggregator) Add(outcomes ...Outcome) {
	for _, o := range outcomes {
		a.total++
		if o.Reachable {
			a.online++
		} else {
			a.offline++
		}
		if o.Synthesized {
			a.synthesized++
		}
		if a.maxOutcomes > 0 && len(a.outcomes) >= a.maxOutcomes {
			a.truncated = true
			continue
		}
		a.outcomes = append(a.outcomes, o)
	}
}

// Summary returns a successful summary of everything added so far. The
// caller fills identity and timing fields.
func (a *Aggregator) Summary() SweepSummary {
	return SweepSummary{
		Success:           true,
		Total:             a.total,
		Online:            a.online,
		Offline:           a.offline,
		Outcomes:          a.outcomes,
		OutcomesTruncated: a.truncated,
		Diagnostics:       Diagnostics{SynthesizedOutcomes: a.synthesized},
	}
}

// Stats returns a progress snapshot of the running totals.
func (a *Aggregator) Stats() SweepStats {
	return SweepStats{
		Processed: a.total,
		Online:    a.online,
		Offline:   a.offline,
		UpdatedAt: time.Now().UTC(),
	}
}

// Aggregate summarizes a complete set of outcomes without a cap.
func Aggregate(outcomes []Outcome) SweepSummary {
	a := NewAggregator(0)
	a.Add(outcomes...)
	return a.Summary()
}
