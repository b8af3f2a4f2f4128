package liveness

import (
	"testing"
	"time"
)

// fakeClock is a settable clock for reconciliation tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func up() Outcome   { return ReachableOutcome("10.0.0.1", 3.2, false, time.Millisecond, time.Now()) }
func down() Outcome { return UnreachableOutcome("10.0.0.1", "no reply", time.Second, time.Now()) }

func timePtr(t time.Time) *time.Time { return &t }

func TestReconcile_ScenarioAOnlineGoesOffline(t *testing.T) {
	clock := newFakeClock()
	r := NewReconciler(2*time.Minute, clock.Now)
	prev := DeviceState{TargetID: "t1", Status: StatusOnline}

	next, tr, touch := r.Reconcile(down(), prev)

	if next.Status != StatusOffline {
		t.Errorf("Status = %q, want offline", next.Status)
	}
	if next.OfflineSince == nil || !next.OfflineSince.Equal(clock.Now()) {
		t.Errorf("OfflineSince = %v, want %v", next.OfflineSince, clock.Now())
	}
	if next.OfflineDurationMinutes != 0 || next.OfflineAlertSent {
		t.Errorf("new episode bookkeeping = (%d, %v), want (0, false)", next.OfflineDurationMinutes, next.OfflineAlertSent)
	}
	if tr == nil || tr.Kind != TransitionWentOffline {
		t.Fatalf("transition = %+v, want went_offline", tr)
	}
	if tr.AlertWorthy {
		t.Error("went_offline below threshold must not be alert-worthy")
	}
	if !touch {
		t.Error("category change must touch")
	}
	if next.PreviousStatus != StatusOnline {
		t.Errorf("PreviousStatus = %q, want online", next.PreviousStatus)
	}
}

func TestReconcile_ScenarioBThresholdCrossedAlertsOnce(t *testing.T) {
	clock := newFakeClock()
	r := NewReconciler(2*time.Minute, clock.Now)
	prev := DeviceState{
		TargetID:     "t1",
		Status:       StatusOffline,
		OfflineSince: timePtr(clock.Now().Add(-3 * time.Minute)),
	}

	next, tr, touch := r.Reconcile(down(), prev)

	if next.OfflineDurationMinutes != 3 {
		t.Errorf("OfflineDurationMinutes = %d, want 3", next.OfflineDurationMinutes)
	}
	if !next.OfflineAlertSent {
		t.Error("OfflineAlertSent = false, want true")
	}
	if tr == nil || tr.Kind != TransitionStillOffline || !tr.AlertWorthy {
		t.Fatalf("transition = %+v, want alert-worthy still_offline", tr)
	}
	if touch {
		t.Error("offline to offline must not touch")
	}

	ev, ok := AlertFor(Target{ID: "t1", Address: "10.0.0.1"}, next, tr)
	if !ok || ev.Kind != AlertOfflineThreshold || ev.OfflineMinutes != 3 {
		t.Errorf("AlertFor = %+v, %v; want offline_threshold with 3 minutes", ev, ok)
	}
}

func TestReconcile_ScenarioCNoSecondAlert(t *testing.T) {
	clock := newFakeClock()
	r := NewReconciler(2*time.Minute, clock.Now)
	prev := DeviceState{
		TargetID:               "t1",
		Status:                 StatusOffline,
		OfflineSince:           timePtr(clock.Now().Add(-3 * time.Minute)),
		OfflineDurationMinutes: 3,
		OfflineAlertSent:       true,
	}
	clock.Advance(time.Minute)

	next, tr, _ := r.Reconcile(down(), prev)

	if tr != nil {
		t.Errorf("transition = %+v, want none", tr)
	}
	if next.OfflineDurationMinutes != 4 {
		t.Errorf("OfflineDurationMinutes = %d, want 4", next.OfflineDurationMinutes)
	}
	if !next.OfflineAlertSent {
		t.Error("OfflineAlertSent must stay true within the episode")
	}
}

func TestReconcile_ScenarioDRecovery(t *testing.T) {
	clock := newFakeClock()
	r := NewReconciler(2*time.Minute, clock.Now)
	prev := DeviceState{
		TargetID:               "t1",
		Status:                 StatusOffline,
		OfflineSince:           timePtr(clock.Now().Add(-10 * time.Minute)),
		OfflineDurationMinutes: 10,
		OfflineAlertSent:       true,
	}

	next, tr, touch := r.Reconcile(up(), prev)

	if next.Status != StatusOnline || next.OfflineSince != nil || next.OfflineDurationMinutes != 0 || next.OfflineAlertSent {
		t.Errorf("recovered state = %+v, want cleared offline bookkeeping", next)
	}
	if tr == nil || tr.Kind != TransitionRecovered {
		t.Fatalf("transition = %+v, want recovered", tr)
	}
	if tr.OfflineMinutes != 10 {
		t.Errorf("recovered OfflineMinutes = %d, want 10", tr.OfflineMinutes)
	}
	if !touch || next.PreviousStatus != StatusOffline {
		t.Errorf("touch = %v, PreviousStatus = %q; want true, offline", touch, next.PreviousStatus)
	}
	if next.ResponseTimeMs == nil || *next.ResponseTimeMs != 3.2 {
		t.Errorf("ResponseTimeMs = %v, want 3.2", next.ResponseTimeMs)
	}
}

func TestReconcile_IdempotentRecovery(t *testing.T) {
	clock := newFakeClock()
	r := NewReconciler(2*time.Minute, clock.Now)
	changed := clock.Now().Add(-time.Hour)
	prev := DeviceState{TargetID: "t1", Status: StatusOnline, PreviousStatus: StatusOffline, LastStatusChange: &changed}

	for range 5 {
		clock.Advance(30 * time.Second)
		next, tr, touch := r.Reconcile(up(), prev)
		if tr != nil || touch {
			t.Fatalf("online to online produced transition %+v touch %v", tr, touch)
		}
		if next.OfflineSince != nil || next.OfflineDurationMinutes != 0 {
			t.Fatalf("online state has offline bookkeeping: %+v", next)
		}
		if !next.LastStatusChange.Equal(changed) || next.PreviousStatus != StatusOffline {
			t.Fatal("steady state must not rewrite LastStatusChange or PreviousStatus")
		}
		if next.LastPing == nil || !next.LastPing.Equal(clock.Now()) {
			t.Error("LastPing must always update")
		}
		prev = next
	}
}

func TestReconcile_OneAlertPerEpisode(t *testing.T) {
	clock := newFakeClock()
	r := NewReconciler(2*time.Minute, clock.Now)
	st := DeviceState{TargetID: "t1", Status: StatusOnline}

	alerts := 0
	run := func(o Outcome, sweeps int) {
		for range sweeps {
			var tr *Transition
			st, tr, _ = r.Reconcile(o, st)
			if tr != nil && tr.AlertWorthy {
				alerts++
			}
			clock.Advance(30 * time.Second)
		}
	}

	run(down(), 40)
	if alerts != 1 {
		t.Fatalf("alerts in first episode = %d, want 1", alerts)
	}
	run(up(), 2)
	run(down(), 40)
	if alerts != 2 {
		t.Errorf("alerts after second episode = %d, want 2", alerts)
	}
}

func TestReconcile_OfflineDurationMonotonic(t *testing.T) {
	clock := newFakeClock()
	r := NewReconciler(time.Hour, clock.Now)
	st := DeviceState{TargetID: "t1", Status: StatusOnline}

	st, _, _ = r.Reconcile(down(), st)
	if st.OfflineDurationMinutes != 0 {
		t.Fatalf("new episode duration = %d, want 0", st.OfflineDurationMinutes)
	}

	steps := []time.Duration{time.Minute, 2 * time.Minute, -90 * time.Second, 30 * time.Second, 5 * time.Minute}
	last := 0
	for i, step := range steps {
		clock.Advance(step)
		st, _, _ = r.Reconcile(down(), st)
		if st.OfflineDurationMinutes < last {
			t.Fatalf("step %d: duration went from %d to %d", i, last, st.OfflineDurationMinutes)
		}
		last = st.OfflineDurationMinutes
	}

	st, _, _ = r.Reconcile(up(), st)
	if st.OfflineDurationMinutes != 0 {
		t.Errorf("duration after recovery = %d, want 0", st.OfflineDurationMinutes)
	}
}

func TestReconcile_ClockSkewUsesAbsoluteDuration(t *testing.T) {
	clock := newFakeClock()
	r := NewReconciler(2*time.Minute, clock.Now)
	prev := DeviceState{
		TargetID:     "t1",
		Status:       StatusOffline,
		OfflineSince: timePtr(clock.Now().Add(5 * time.Minute)),
	}

	next, tr, _ := r.Reconcile(down(), prev)
	if next.OfflineDurationMinutes != 5 {
		t.Errorf("OfflineDurationMinutes = %d, want 5", next.OfflineDurationMinutes)
	}
	if tr == nil || !tr.AlertWorthy {
		t.Errorf("transition = %+v, want alert-worthy", tr)
	}
}

func TestReconcile_AcknowledgedIsPassThrough(t *testing.T) {
	r := NewReconciler(2*time.Minute, newFakeClock().Now)
	prev := DeviceState{TargetID: "t1", Status: StatusOfflineAck, OfflineDurationMinutes: 12}

	for _, o := range []Outcome{up(), down()} {
		next, tr, touch := r.Reconcile(o, prev)
		if tr != nil || touch {
			t.Errorf("acknowledged target produced transition %+v touch %v", tr, touch)
		}
		if next != prev {
			t.Errorf("acknowledged state changed: %+v", next)
		}
	}
}

func TestReconcile_ZeroThresholdAlertsImmediately(t *testing.T) {
	r := NewReconciler(0, newFakeClock().Now)
	next, tr, _ := r.Reconcile(down(), DeviceState{TargetID: "t1", Status: StatusOnline})

	if tr == nil || !tr.AlertWorthy || !next.OfflineAlertSent {
		t.Fatalf("transition = %+v, alert sent = %v; want immediate alert", tr, next.OfflineAlertSent)
	}
	ev, ok := AlertFor(Target{ID: "t1"}, next, tr)
	if !ok || ev.Kind != AlertNewlyOffline {
		t.Errorf("AlertFor = %+v, want newly_offline", ev)
	}
}

func TestReconcile_RepairsMissingOfflineSince(t *testing.T) {
	clock := newFakeClock()
	r := NewReconciler(2*time.Minute, clock.Now)
	next, _, _ := r.Reconcile(down(), DeviceState{TargetID: "t1", Status: StatusOffline, OfflineDurationMinutes: 4})

	if next.OfflineSince == nil || !next.OfflineSince.Equal(clock.Now()) {
		t.Errorf("OfflineSince = %v, want repaired to now", next.OfflineSince)
	}
	if next.OfflineDurationMinutes != 4 {
		t.Errorf("OfflineDurationMinutes = %d, want stored 4 kept", next.OfflineDurationMinutes)
	}
}

func TestReconcile_UnknownStatus(t *testing.T) {
	r := NewReconciler(2*time.Minute, newFakeClock().Now)

	next, tr, touch := r.Reconcile(up(), DeviceState{TargetID: "t1"})
	if next.Status != StatusOnline || tr != nil || !touch {
		t.Errorf("unknown to online: status %q transition %+v touch %v", next.Status, tr, touch)
	}

	next, tr, touch = r.Reconcile(down(), DeviceState{TargetID: "t1"})
	if next.Status != StatusOffline || tr == nil || tr.Kind != TransitionWentOffline || !touch {
		t.Errorf("unknown to offline: status %q transition %+v touch %v", next.Status, tr, touch)
	}
}
