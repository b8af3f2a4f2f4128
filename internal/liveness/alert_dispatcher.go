package liveness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BusAlertSink is the default AlertSink: it publishes alert events on the
// bus for the dispatcher and any other subscriber.
type BusAlertSink struct {
	bus plugin.Publisher
}

var _ AlertSink = (*BusAlertSink)(nil)

// NewBusAlertSink creates a sink publishing on bus.
func NewBusAlertSink(bus plugin.Publisher) *BusAlertSink {
	return &BusAlertSink{bus: bus}
}

// EmitAlert publishes ev on liveness.alert.triggered.
func (s *BusAlertSink) EmitAlert(ctx context.Context, ev AlertEvent) error {
	err := s.bus.Publish(ctx, plugin.Event{
		Topic:     TopicAlertTriggered,
		Source:    eventSource,
		Timestamp: ev.At,
		Payload:   ev,
	})
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// alertStore is the persistence the dispatcher needs.
type alertStore interface {
	GetActiveAlert(ctx context.Context, targetID string) (*Alert, error)
	InsertAlert(ctx context.Context, a *Alert) error
	ResolveAlert(ctx context.Context, id string, at time.Time) error
}

// AlertDispatcher keeps at most one open alert row per target, resolves it
// when the device recovers or is acknowledged, and fans notifications out
// to the configured notifiers in the background.
type AlertDispatcher struct {
	store     alertStore
	notifiers []Notifier
	bus       plugin.Publisher
	logger    *zap.Logger

	mu       sync.Mutex
	inflight sync.WaitGroup
}

// NewAlertDispatcher creates a dispatcher. bus may be nil.
func NewAlertDispatcher(store alertStore, notifiers []Notifier, bus plugin.Publisher, logger *zap.Logger) *AlertDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertDispatcher{
		store:     store,
		notifiers: notifiers,
		bus:       bus,
		logger:    logger,
	}
}

// Subscribe registers the dispatcher's handlers and returns a function
// removing them.
func (d *AlertDispatcher) Subscribe(sub plugin.Subscriber) (unsubscribe func()) {
	unsubs := []func(){
		sub.Subscribe(TopicAlertTriggered, d.HandleAlertTriggered),
		sub.Subscribe(TopicDeviceRecovered, d.HandleResolution),
		sub.Subscribe(TopicDeviceAcknowledged, d.HandleResolution),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// HandleAlertTriggered stores an alert row unless the target already has
// an open one, then notifies.
func (d *AlertDispatcher) HandleAlertTriggered(ctx context.Context, event plugin.Event) {
	ev, ok := event.Payload.(AlertEvent)
	if !ok {
		d.logger.Warn("unexpected payload type for alert event", zap.String("topic", event.Topic))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	existing, err := d.store.GetActiveAlert(ctx, ev.TargetID)
	if err != nil {
		d.logger.Warn("failed to get active alert", zap.String("target_id", ev.TargetID), zap.Error(err))
		return
	}
	if existing != nil {
		d.logger.Debug("alert already open for target",
			zap.String("target_id", ev.TargetID),
			zap.String("alert_id", existing.ID),
		)
		return
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	alert := &Alert{
		ID:          uuid.NewString(),
		TargetID:    ev.TargetID,
		Kind:        ev.Kind,
		Message:     alertMessage(ev),
		TriggeredAt: at.UTC(),
	}
	if err := d.store.InsertAlert(ctx, alert); err != nil {
		d.logger.Warn("failed to insert alert", zap.String("target_id", ev.TargetID), zap.Error(err))
		return
	}

	d.logger.Info("alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("target_id", alert.TargetID),
		zap.String("kind", string(alert.Kind)),
	)
	d.notify(ctx, alert, EventTriggered)
}

// HandleResolution resolves the open alert of a recovered or acknowledged target.
func (d *AlertDispatcher) HandleResolution(ctx context.Context, event plugin.Event) {
	var targetID string
	switch p := event.Payload.(type) {
	case TransitionEvent:
		targetID = p.TargetID
	case AckEvent:
		if !p.Acknowledged {
			return
		}
		targetID = p.TargetID
	default:
		d.logger.Warn("unexpected payload type for resolution event", zap.String("topic", event.Topic))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	alert, err := d.store.GetActiveAlert(ctx, targetID)
	if err != nil {
		d.logger.Warn("failed to get active alert", zap.String("target_id", targetID), zap.Error(err))
		return
	}
	if alert == nil {
		return
	}

	now := time.Now().UTC()
	if err := d.store.ResolveAlert(ctx, alert.ID, now); err != nil {
		d.logger.Warn("failed to resolve alert", zap.String("alert_id", alert.ID), zap.Error(err))
		return
	}
	alert.ResolvedAt = &now

	d.logger.Info("alert resolved",
		zap.String("alert_id", alert.ID),
		zap.String("target_id", targetID),
		zap.String("cause", event.Topic),
	)
	if d.bus != nil {
		_ = d.bus.Publish(ctx, plugin.Event{
			Topic:     TopicAlertResolved,
			Source:    eventSource,
			Timestamp: now,
			Payload:   alert,
		})
	}
	d.notify(ctx, alert, EventResolved)
}

// notify delivers alert to every notifier in the background. Delivery
// outlives the caller's context but is bounded by the notifier timeout.
func (d *AlertDispatcher) notify(ctx context.Context, alert *Alert, eventType string) {
	if len(d.notifiers) == 0 {
		return
	}
	snapshot := *alert
	ctx = context.WithoutCancel(ctx)

	for _, n := range d.notifiers {
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
			defer cancel()

			if err := n.Notify(nctx, &snapshot, eventType); err != nil {
				d.logger.Warn("notification delivery failed",
					zap.String("type", n.Type()),
					zap.String("alert_id", snapshot.ID),
					zap.Error(err),
				)
				return
			}
			d.logger.Debug("notification delivered",
				zap.String("type", n.Type()),
				zap.String("alert_id", snapshot.ID),
				zap.String("event_type", eventType),
			)
		}()
	}
}

// Wait blocks until in-flight notifications finish.
func (d *AlertDispatcher) Wait() {
	d.inflight.Wait()
}

func alertMessage(ev AlertEvent) string {
	name := ev.Name
	if name == "" {
		name = ev.TargetID
	}
	if ev.Kind == AlertNewlyOffline {
		return fmt.Sprintf("%s (%s) went offline", name, ev.Address)
	}
	return fmt.Sprintf("%s (%s) offline for %d minutes", name, ev.Address, ev.OfflineMinutes)
}
