package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dkaratzas/intrinsic/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// wsWriteTimeout bounds each outbound frame write.
const wsWriteTimeout = 5 * time.Second

// WebSocketHub pushes system events to connected dashboard clients.
// Each client gets a buffered channel; slow clients drop events rather
// than stalling the bus.
type WebSocketHub struct {
	log     zerolog.Logger
	mu      sync.RWMutex
	clients map[string]chan *events.Event
	closed  bool
}

// pushedEventTypes are the events forwarded to dashboard clients.
var pushedEventTypes = []events.EventType{
	events.ValuationUpdated,
	events.ValuationFailed,
	events.HistoryRefreshed,
	events.QuoteRefreshed,
	events.RecommendationsReady,
	events.SystemStatusChanged,
}

// NewWebSocketHub creates a hub subscribed to the event bus.
func NewWebSocketHub(bus *events.Bus, log zerolog.Logger) *WebSocketHub {
	h := &WebSocketHub{
		log:     log.With().Str("component", "websocket_hub").Logger(),
		clients: make(map[string]chan *events.Event),
	}

	if bus != nil {
		for _, eventType := range pushedEventTypes {
			bus.Subscribe(eventType, h.broadcast)
		}
	}

	return h
}

// HandleConnection handles GET /api/ws
func (h *WebSocketHub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The dashboard may be served from a different origin in dev
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}

	clientID := uuid.New().String()
	eventChan := make(chan *events.Event, 100)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.clients[clientID] = eventChan
	h.mu.Unlock()

	h.log.Info().Str("client_id", clientID).Msg("WebSocket client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		h.log.Info().Str("client_id", clientID).Msg("WebSocket client disconnected")
	}()

	ctx := r.Context()

	// Reader goroutine: we never expect client frames, but reading is
	// required to notice close frames and pings.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case event := <-eventChan:
			if event == nil {
				// Channel closed by shutdown
				return
			}
			if err := h.writeEvent(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Str("client_id", clientID).Msg("WebSocket write failed")
				return
			}
		}
	}
}

// Close disconnects all clients. Used during shutdown.
func (h *WebSocketHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

// broadcast fans an event out to all connected clients.
func (h *WebSocketHub) broadcast(event *events.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for clientID, ch := range h.clients {
		select {
		case ch <- event:
		default:
			h.log.Warn().
				Str("client_id", clientID).
				Str("event_type", string(event.Type)).
				Msg("Client channel full, dropping event")
		}
	}
}

func (h *WebSocketHub) writeEvent(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	return conn.Write(writeCtx, websocket.MessageText, data)
}
