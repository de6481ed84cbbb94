// SPDX-License-Identifier: BSL-1.1

// Package push implements the §4.5 WebSocket fan-out: every connection
// subscribes to every event bus topic and receives the events addressed
// to its caller plus every event that names no user, as JSON {type,
// timestamp, data} frames, until the access token it authenticated with
// expires. Connections keep no per-resource watch list: an event that
// names no user reaches every open connection.
package push

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/slotforge/pkg/eventbus"
	"github.com/slotforge/pkg/jwt"
)

const (
	keepaliveInterval = 30 * time.Second
	writeWait         = 10 * time.Second
)

// frame is the wire shape for every server-to-client message.
type frame struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// controlFrame is the only shape a client is expected to send.
type controlFrame struct {
	Op string `json:"op"`
}

// Handler upgrades authenticated requests to WebSocket connections and
// relays bus events to them.
type Handler struct {
	bus        *eventbus.Bus
	jwtManager *jwt.Manager
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a new push handler.
func NewHandler(bus *eventbus.Bus, jwtManager *jwt.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		bus:        bus,
		jwtManager: jwtManager,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws?token=<access_token>.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token query parameter required", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtManager.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	subID := "ws:" + uuid.New().String()
	sub := h.bus.Subscribe(subID, "*")
	defer h.bus.Unsubscribe(subID)

	userID := claims.UserID
	expiresAt := claims.ExpiresAt.Time

	done := make(chan struct{})
	go h.readLoop(conn, done)

	h.writeLoop(conn, sub, userID, expiresAt, done)
}

// readLoop drains client frames, replying to {op:"ping"} and otherwise
// ignoring everything, per §4.5. It exits (closing done) when the
// connection errors or the client disconnects.
func (h *Handler) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ctrl controlFrame
		if err := json.Unmarshal(data, &ctrl); err != nil {
			continue
		}
		if ctrl.Op == "ping" {
			_ = conn.WriteJSON(map[string]string{"op": "pong"})
		}
	}
}

// writeLoop relays matching bus events and periodic keepalives until
// the token expires, the client disconnects, or the subscription is
// torn down.
func (h *Handler) writeLoop(conn *websocket.Conn, sub *eventbus.Subscription, userID string, expiresAt time.Time, done <-chan struct{}) {
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	expiry := time.NewTimer(time.Until(expiresAt))
	defer expiry.Stop()

	for {
		select {
		case <-done:
			return
		case <-expiry.C:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "token expired"),
				time.Now().Add(writeWait))
			return
		case <-keepalive.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if !relevantTo(event, userID) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame{Type: event.Type, Timestamp: event.Timestamp, Data: event.Data}); err != nil {
				return
			}
		}
	}
}

// relevantTo reports whether event should be delivered to userID: an
// event whose payload is a map[string]interface{} with a string
// "user_id" field is delivered only to that user; every other event
// (no "user_id" field, a non-string "user_id", or a payload of any
// other type, e.g. a resource status change) is delivered to everyone.
func relevantTo(event eventbus.Event, userID string) bool {
	payload, ok := event.Data.(map[string]interface{})
	if !ok {
		return true
	}
	owner, ok := payload["user_id"]
	if !ok {
		return true
	}
	ownerStr, ok := owner.(string)
	if !ok {
		return true
	}
	return ownerStr == userID
}
