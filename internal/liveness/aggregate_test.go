package liveness

import (
	"testing"
	"time"
)

func TestAggregate_Counts(t *testing.T) {
	now := time.Now()
	outcomes := []Outcome{
		ReachableOutcome("10.0.0.1", 1, false, time.Millisecond, now),
		UnreachableOutcome("10.0.0.2", "timeout", time.Second, now),
		ReachableOutcome("10.0.0.3", 2, true, time.Millisecond, now),
	}
	synth := synthesized(Target{ID: "x", Address: "10.0.0.4"}, "no outcome recorded", 0)
	outcomes = append(outcomes, synth)

	s := Aggregate(outcomes)
	if !s.Success || s.Total != 4 || s.Online != 2 || s.Offline != 2 {
		t.Errorf("summary = %+v, want success 4/2/2", s)
	}
	if s.Diagnostics.SynthesizedOutcomes != 1 {
		t.Errorf("SynthesizedOutcomes = %d, want 1", s.Diagnostics.SynthesizedOutcomes)
	}
	if len(s.Outcomes) != 4 || s.OutcomesTruncated {
		t.Errorf("outcomes = %d truncated %v, want 4 false", len(s.Outcomes), s.OutcomesTruncated)
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil)
	if s.Total != 0 || s.Outcomes == nil {
		t.Errorf("empty summary = %+v, want zero counts and non-nil outcomes", s)
	}
}

func TestAggregator_CapsOutcomes(t *testing.T) {
	a := NewAggregator(3)
	now := time.Now()
	for i := range 5 {
		o := ReachableOutcome("10.0.0.1", float64(i), false, 0, now)
		if i%2 == 1 {
			o = UnreachableOutcome("10.0.0.1", "down", 0, now)
		}
		a.Add(o)
	}

	s := a.Summary()
	if s.Total != 5 || s.Online != 3 || s.Offline != 2 {
		t.Errorf("counts = %d/%d/%d, want 5/3/2", s.Total, s.Online, s.Offline)
	}
	if len(s.Outcomes) != 3 || !s.OutcomesTruncated {
		t.Errorf("outcomes = %d truncated %v, want 3 true", len(s.Outcomes), s.OutcomesTruncated)
	}

	st := a.Stats()
	if st.Processed != 5 || st.Online != 3 {
		t.Errorf("stats = %+v", st)
	}
}
