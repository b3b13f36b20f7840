package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/HerbHall/linkpulse/internal/linkmon"
	"github.com/HerbHall/linkpulse/pkg/models"
	"github.com/HerbHall/linkpulse/pkg/plugin"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler streams scan snapshots and link transitions to browsers.
type Handler struct {
	hub            *Hub
	originPatterns []string
	logger         *zap.Logger
	unsubscribe    []func()
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler fed from bus. originPatterns
// lists extra origins allowed to connect; same-origin is always allowed.
func NewHandler(bus plugin.Subscriber, originPatterns []string, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:            NewHub(logger),
		originPatterns: originPatterns,
		logger:         logger,
	}
	if bus != nil {
		h.subscribe(bus)
	}
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ws/status", h.handleStatusStream)
}

// Close detaches the handler from the event bus.
func (h *Handler) Close() {
	for _, unsub := range h.unsubscribe {
		unsub()
	}
	h.unsubscribe = nil
}

// handleStatusStream upgrades the connection and streams status messages
// until the client disconnects.
func (h *Handler) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	// Streams outlive the server's request timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := newClient(conn, uuid.NewString(), h.logger)
	h.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribe forwards linkmon events to the hub.
func (h *Handler) subscribe(bus plugin.Subscriber) {
	h.unsubscribe = append(h.unsubscribe,
		bus.Subscribe(linkmon.TopicSnapshotPublished, func(_ context.Context, event plugin.Event) {
			snap, ok := event.Payload.(*models.StatusSnapshot)
			if !ok {
				return
			}
			h.hub.Broadcast(Message{Type: MessageSnapshot, Timestamp: event.Timestamp, Data: snap})
		}),
		bus.Subscribe(linkmon.TopicLinkDown, h.forwardLink(MessageLinkDown)),
		bus.Subscribe(linkmon.TopicLinkConfirmed, h.forwardLink(MessageLinkConfirmed)),
		bus.Subscribe(linkmon.TopicLinkRecovered, h.forwardLink(MessageLinkRecovered)),
	)
	h.logger.Info("subscribed to link events for WebSocket broadcasting")
}

func (h *Handler) forwardLink(typ MessageType) plugin.EventHandler {
	return func(_ context.Context, event plugin.Event) {
		ev, ok := event.Payload.(models.LinkEvent)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{Type: typ, Timestamp: event.Timestamp, Data: ev})
	}
}
