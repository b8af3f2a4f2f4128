package ws

import (
	"time"

	"github.com/HerbHall/fleetpulse/internal/liveness"
)

// MessageType discriminates WebSocket messages. Values mirror the liveness
// event topics they are built from.
type MessageType string

const (
	MessageDeviceOffline        MessageType = liveness.TopicDeviceOffline
	MessageDeviceRecovered      MessageType = liveness.TopicDeviceRecovered
	MessageDeviceStillOffline   MessageType = liveness.TopicDeviceStillOffline
	MessageDeviceAcknowledged   MessageType = liveness.TopicDeviceAcknowledged
	MessageDeviceUnacknowledged MessageType = liveness.TopicDeviceUnacknowledged
	MessageAlertTriggered       MessageType = liveness.TopicAlertTriggered
	MessageAlertResolved        MessageType = liveness.TopicAlertResolved
	MessageSweepCompleted       MessageType = liveness.TopicSweepCompleted
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	TargetID  string      `json:"target_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// messageFor converts a liveness event payload into a stream message.
// Unknown payloads report ok=false.
func messageFor(topic string, ts time.Time, payload any) (Message, bool) {
	msg := Message{Type: MessageType(topic), Timestamp: ts, Data: payload}
	switch p := payload.(type) {
	case liveness.TransitionEvent:
		msg.TargetID = p.TargetID
	case liveness.AckEvent:
		msg.TargetID = p.TargetID
	case liveness.AlertEvent:
		msg.TargetID = p.TargetID
	case *liveness.Alert:
		if p == nil {
			return Message{}, false
		}
		msg.TargetID = p.TargetID
	case liveness.SweepCompletedEvent:
	default:
		return Message{}, false
	}
	return msg, true
}
