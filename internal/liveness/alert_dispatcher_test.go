package liveness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/fleetpulse/internal/event"
	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"go.uber.org/zap"
)

// fakeNotifier records deliveries.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) Notify(_ context.Context, alert *Alert, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, eventType+":"+alert.TargetID)
	return nil
}

func (f *fakeNotifier) Type() string { return "fake" }

func (f *fakeNotifier) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newDispatcherFixture(t *testing.T) (*Store, *event.Bus, *AlertDispatcher, *fakeNotifier) {
	t.Helper()
	s := testStore(t)
	seedTargets(t, s, 2)

	bus := event.NewBus(zap.NewNop())
	n := &fakeNotifier{}
	d := NewAlertDispatcher(s, []Notifier{n}, bus, zap.NewNop())
	t.Cleanup(d.Subscribe(bus))
	return s, bus, d, n
}

func TestAlertDispatcher_DedupesOpenAlerts(t *testing.T) {
	s, bus, d, n := newDispatcherFixture(t)
	ctx := context.Background()
	sink := NewBusAlertSink(bus)

	ev := AlertEvent{TargetID: "t-0000", Address: "10.0.0.1", Kind: AlertOfflineThreshold, OfflineMinutes: 3, At: time.Now()}
	for range 3 {
		if err := sink.EmitAlert(ctx, ev); err != nil {
			t.Fatalf("EmitAlert: %v", err)
		}
	}
	d.Wait()

	alerts, err := s.ListAlerts(ctx, true, 0)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Message != "t-0000 (10.0.0.1) offline for 3 minutes" {
		t.Errorf("Message = %q", alerts[0].Message)
	}
	if got := n.snapshot(); len(got) != 1 || got[0] != "triggered:t-0000" {
		t.Errorf("notifications = %v, want one trigger", got)
	}
}

func TestAlertDispatcher_ResolvesOnRecoveryAndAck(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		pay   any
	}{
		{
			name:  "recovered",
			topic: TopicDeviceRecovered,
			pay:   TransitionEvent{Transition: Transition{TargetID: "t-0001", Kind: TransitionRecovered}},
		},
		{
			name:  "acknowledged",
			topic: TopicDeviceAcknowledged,
			pay:   AckEvent{TargetID: "t-0001", Acknowledged: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, bus, d, n := newDispatcherFixture(t)
			ctx := context.Background()

			var resolvedEvents int
			bus.Subscribe(TopicAlertResolved, func(context.Context, plugin.Event) { resolvedEvents++ })

			_ = NewBusAlertSink(bus).EmitAlert(ctx, AlertEvent{TargetID: "t-0001", Kind: AlertNewlyOffline, At: time.Now()})
			d.Wait()
			_ = bus.Publish(ctx, plugin.Event{Topic: tt.topic, Payload: tt.pay})
			d.Wait()

			active, err := s.GetActiveAlert(ctx, "t-0001")
			if err != nil {
				t.Fatalf("GetActiveAlert: %v", err)
			}
			if active != nil {
				t.Errorf("alert still open: %+v", active)
			}
			if resolvedEvents != 1 {
				t.Errorf("resolved events = %d, want 1", resolvedEvents)
			}
			got := n.snapshot()
			if len(got) != 2 || got[1] != "resolved:t-0001" {
				t.Errorf("notifications = %v", got)
			}
		})
	}
}

func TestAlertDispatcher_IgnoresUnrelatedPayloads(t *testing.T) {
	s, bus, d, _ := newDispatcherFixture(t)
	ctx := context.Background()

	_ = bus.Publish(ctx, plugin.Event{Topic: TopicAlertTriggered, Payload: "not an alert"})
	_ = bus.Publish(ctx, plugin.Event{Topic: TopicDeviceAcknowledged, Payload: AckEvent{TargetID: "t-0000", Acknowledged: false}})
	d.Wait()

	alerts, err := s.ListAlerts(ctx, false, 0)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts = %+v, want none", alerts)
	}
}

func TestSweep_AlertsFlowThroughDispatcher(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	n := &fakeNotifier{}

	h := newHarness(t, 1, func(cfg *Config, deps *OrchestratorDeps) {
		cfg.OfflineAlertThreshold = time.Minute
		deps.Bus = bus
		deps.Alerts = NewBusAlertSink(bus)
	})
	d := NewAlertDispatcher(h.store, []Notifier{n}, bus, zap.NewNop())
	t.Cleanup(d.Subscribe(bus))
	ctx := context.Background()

	h.prober.setDown("10.0.0.1", true)
	for range 6 {
		h.orch.Sweep(ctx)
		h.clock.Advance(30 * time.Second)
	}
	h.prober.setDown("10.0.0.1", false)
	h.orch.Sweep(ctx)
	d.Wait()

	alerts, err := h.store.ListAlerts(ctx, false, 0)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ResolvedAt == nil {
		t.Errorf("alerts = %+v, want one resolved alert", alerts)
	}
	if got := n.snapshot(); len(got) != 2 {
		t.Errorf("notifications = %v, want trigger and resolve", got)
	}
}
