package liveness

import (
	"time"

	"github.com/HerbHall/fleetpulse/internal/tier"
)

// Event topics published by the liveness module.
const (
	TopicDeviceOffline        = "liveness.device.offline"
	TopicDeviceRecovered      = "liveness.device.recovered"
	TopicDeviceStillOffline   = "liveness.device.still_offline"
	TopicDeviceAcknowledged   = "liveness.device.acknowledged"
	TopicDeviceUnacknowledged = "liveness.device.unacknowledged"
	TopicAlertTriggered       = "liveness.alert.triggered"
	TopicAlertResolved        = "liveness.alert.resolved"
	TopicSweepCompleted       = "liveness.sweep.completed"

	// TopicDevicePattern matches every per-device topic.
	TopicDevicePattern = "liveness.device.*"
)

const eventSource = "liveness"

// transitionTopic maps a transition kind to its bus topic.
func transitionTopic(kind TransitionKind) string {
	switch kind {
	case TransitionWentOffline:
		return TopicDeviceOffline
	case TransitionRecovered:
		return TopicDeviceRecovered
	default:
		return TopicDeviceStillOffline
	}
}

// TransitionEvent is the payload of the liveness.device.* transition topics.
type TransitionEvent struct {
	Transition
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// AckEvent is the payload of the acknowledge topics.
type AckEvent struct {
	TargetID     string    `json:"target_id"`
	Acknowledged bool      `json:"acknowledged"`
	At           time.Time `json:"at"`
}

// SweepCompletedEvent is the payload of liveness.sweep.completed. It omits
// per-target outcomes.
type SweepCompletedEvent struct {
	ID          string        `json:"id"`
	Success     bool          `json:"success"`
	Message     string        `json:"message,omitempty"`
	Tier        tier.Tier     `json:"tier,omitempty"`
	Total       int           `json:"total"`
	Online      int           `json:"online"`
	Offline     int           `json:"offline"`
	Duration    time.Duration `json:"duration_ns"`
	Diagnostics Diagnostics   `json:"diagnostics"`
}

func completedEvent(s SweepSummary) SweepCompletedEvent {
	return SweepCompletedEvent{
		ID:          s.ID,
		Success:     s.Success,
		Message:     s.Message,
		Tier:        s.Tier,
		Total:       s.Total,
		Online:      s.Online,
		Offline:     s.Offline,
		Duration:    s.Duration,
		Diagnostics: s.Diagnostics,
	}
}
