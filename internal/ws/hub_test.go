package ws

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestClient(id string, topics ...string) *Client {
	return &Client{
		id:     id,
		topics: topics,
		send:   make(chan Message, 256),
		logger: testLogger(),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("c1")

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("client.send channel is not closed")
	}
}

func TestUnregisterNotRegistered(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("c1")

	hub.Unregister(client)

	select {
	case _, ok := <-client.send:
		if !ok {
			t.Error("channel closed for unregistered client")
		}
	default:
	}
}

func TestBroadcast_TopicFilter(t *testing.T) {
	hub := NewHub(testLogger())
	all := newTestClient("all")
	devices := newTestClient("devices", "liveness.device.")
	alerts := newTestClient("alerts", "liveness.alert.", "liveness.sweep.")
	for _, c := range []*Client{all, devices, alerts} {
		hub.Register(c)
	}

	tests := []struct {
		name  string
		typ   MessageType
		wants map[*Client]bool
	}{
		{"device offline", MessageDeviceOffline, map[*Client]bool{all: true, devices: true, alerts: false}},
		{"alert triggered", MessageAlertTriggered, map[*Client]bool{all: true, devices: false, alerts: true}},
		{"sweep completed", MessageSweepCompleted, map[*Client]bool{all: true, devices: false, alerts: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub.Broadcast(Message{Type: tt.typ, Timestamp: time.Now()})
			for c, want := range tt.wants {
				select {
				case got := <-c.send:
					if !want {
						t.Errorf("client %s received %s, want nothing", c.id, got.Type)
					} else if got.Type != tt.typ {
						t.Errorf("client %s received %s, want %s", c.id, got.Type, tt.typ)
					}
				default:
					if want {
						t.Errorf("client %s did not receive %s", c.id, tt.typ)
					}
				}
			}
		})
	}
}

func TestBroadcastDropsMessagesWhenBufferFull(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("c1")
	hub.Register(client)

	for range cap(client.send) {
		client.send <- Message{Type: MessageDeviceStillOffline, TargetID: "fill"}
	}

	hub.Broadcast(Message{Type: MessageDeviceOffline, TargetID: "dropped"})

	if len(client.send) != cap(client.send) {
		t.Errorf("buffer length = %d, want %d", len(client.send), cap(client.send))
	}
	for range cap(client.send) {
		if m := <-client.send; m.TargetID == "dropped" {
			t.Fatal("dropped message was delivered")
		}
	}
}

func TestConcurrentRegisterUnregisterBroadcast(t *testing.T) {
	hub := NewHub(testLogger())

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			client := newTestClient(string(rune('a' + id)))
			hub.Register(client)
			go func() {
				for range client.send {
				}
			}()
			time.Sleep(10 * time.Millisecond)
			hub.Unregister(client)
		}(i)
	}
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast(Message{Type: MessageSweepCompleted, Timestamp: time.Now()})
		}()
	}
	wg.Wait()

	if n := hub.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d, want 0", n)
	}
}

func TestConcurrentClientCount(t *testing.T) {
	hub := NewHub(testLogger())
	for i := range 10 {
		hub.Register(newTestClient(string(rune('a' + i))))
	}

	var wg sync.WaitGroup
	var sum int64
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			atomic.AddInt64(&sum, int64(hub.ClientCount()))
		}()
	}
	wg.Wait()

	if sum != 10*100 {
		t.Errorf("sum of ClientCount() = %d, want %d", sum, 10*100)
	}
}
