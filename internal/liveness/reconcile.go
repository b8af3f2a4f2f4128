package liveness

import (
	"time"
)

// Reconciler merges a probe outcome into a device's persisted state.
// It holds no per-target state, so targets reconcile independently.
type Reconciler struct {
	threshold time.Duration
	now       func() time.Time
}

// NewReconciler creates a reconciler that raises an offline alert once an
// outage lasts threshold. A nil clock uses time.Now.
func NewReconciler(threshold time.Duration, clock func() time.Time) *Reconciler {
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{threshold: threshold, now: clock}
}

// Reconcile computes the new state for prev given outcome. It returns the
// transition to publish, if any, and whether the status category changed
// (the caller's cue to bump the row's last-modified time).
func (r *Reconciler) Reconcile(o Outcome, prev DeviceState) (next DeviceState, tr *Transition, touch bool) {
	if prev.Status == StatusOfflineAck {
		return prev, nil, false
	}

	now := r.now().UTC()
	next = prev
	next.LastPing = &now
	next.ResponseTimeMs = o.LatencyMs

	if o.Reachable {
		next.Status = StatusOnline
		next.OfflineSince = nil
		next.OfflineDurationMinutes = 0
		next.OfflineAlertSent = false
		if prev.Status == StatusOffline {
			tr = &Transition{
				Kind:           TransitionRecovered,
				OfflineMinutes: prev.OfflineDurationMinutes,
			}
		}
	} else {
		next.Status = StatusOffline
		next.ResponseTimeMs = nil
		if prev.Status == StatusOffline {
			tr = r.continueEpisode(&next, prev, now)
		} else {
			tr = r.startEpisode(&next, now)
		}
	}

	touch = prev.Status.category() != next.Status.category()
	if touch {
		next.PreviousStatus = prev.Status
		next.LastStatusChange = &now
	}

	if tr != nil {
		tr.TargetID = prev.TargetID
		tr.From = prev.Status
		tr.To = next.Status
		tr.At = now
	}
	return next, tr, touch
}

func (r *Reconciler) startEpisode(next *DeviceState, now time.Time) *Transition {
	since := now
	next.OfflineSince = &since
	next.OfflineDurationMinutes = 0
	next.OfflineAlertSent = false

	tr := &Transition{Kind: TransitionWentOffline}
	if r.threshold <= 0 {
		tr.AlertWorthy = true
		next.OfflineAlertSent = true
	}
	return tr
}

func (r *Reconciler) continueEpisode(next *DeviceState, prev DeviceState, now time.Time) *Transition {
	if prev.OfflineSince == nil {
		since := now
		next.OfflineSince = &since
	}

	elapsed := now.Sub(*next.OfflineSince)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	next.OfflineDurationMinutes = max(int(elapsed/time.Minute), prev.OfflineDurationMinutes)

	if next.OfflineAlertSent {
		return nil
	}
	if time.Duration(next.OfflineDurationMinutes)*time.Minute < r.threshold {
		return nil
	}
	next.OfflineAlertSent = true
	return &Transition{
		Kind:           TransitionStillOffline,
		OfflineMinutes: next.OfflineDurationMinutes,
		AlertWorthy:    true,
	}
}

// AlertFor builds the alert event for an alert-worthy transition.
func AlertFor(t Target, st DeviceState, tr *Transition) (AlertEvent, bool) {
	if tr == nil || !tr.AlertWorthy {
		return AlertEvent{}, false
	}
	kind := AlertOfflineThreshold
	if tr.Kind == TransitionWentOffline {
		kind = AlertNewlyOffline
	}
	return AlertEvent{
		TargetID:       t.ID,
		Address:        t.Address,
		Name:           t.Name,
		Kind:           kind,
		OfflineMinutes: st.OfflineDurationMinutes,
		OfflineSince:   st.OfflineSince,
		At:             tr.At,
	}, true
}
