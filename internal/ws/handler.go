// Package ws streams liveness events to browser and CLI clients over
// WebSocket.
package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler provides the WebSocket endpoint for live device events.
type Handler struct {
	hub            *Hub
	bus            plugin.Subscriber
	logger         *zap.Logger
	originPatterns []string
	unsubscribe    func()
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to liveness events.
// originPatterns lists extra allowed Origin hosts; same-origin requests are
// always accepted.
func NewHandler(bus plugin.Subscriber, logger *zap.Logger, originPatterns ...string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		hub:            NewHub(logger),
		bus:            bus,
		logger:         logger,
		originPatterns: originPatterns,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/events", h.handleEventStream)
}

// Close detaches the handler from the event bus.
func (h *Handler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}

// handleEventStream upgrades the connection and streams liveness events.
// The optional topics query parameter is a comma-separated list of topic
// prefixes, e.g. topics=liveness.device.,liveness.alert.
//
//	@Summary		Live event stream
//	@Description	Upgrades to a WebSocket that streams device transitions, alerts and sweep completions as JSON messages.
//	@Tags			liveness
//	@Param			topics	query	string	false	"Comma-separated topic prefixes"
//	@Success		101
//	@Router			/ws/events [get]
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		id:     uuid.NewString(),
		topics: parseTopics(r.URL.Query().Get("topics")),
		send:   make(chan Message, 256),
		logger: h.logger,
	}
	h.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx)

	h.hub.Unregister(client)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents forwards every liveness topic to connected clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}
	h.unsubscribe = h.bus.Subscribe("liveness.*", h.forward)
	h.logger.Info("subscribed to liveness events for WebSocket broadcasting")
}

func (h *Handler) forward(_ context.Context, event plugin.Event) {
	msg, ok := messageFor(event.Topic, event.Timestamp, event.Payload)
	if !ok {
		h.logger.Debug("dropping event with unexpected payload", zap.String("topic", event.Topic))
		return
	}
	h.hub.Broadcast(msg)
}

func parseTopics(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
