package wsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/example/redis-chat-relay/domain/chat"
	"github.com/example/redis-chat-relay/modules/history"
	"github.com/example/redis-chat-relay/modules/ratelimit"
	"github.com/example/redis-chat-relay/modules/relay"
)

// Client-facing notice texts. These are the only error surfaces a client
// ever sees; errors are never broadcast to other room members.
const (
	noticeRateLimited  = "rate limit exceeded"
	noticeInvalidJSON  = "invalid JSON"
	noticeInvalidShape = "invalid message shape"
	noticeNotDelivered = "message could not be delivered"
)

// Handlers contains the HTTP and WebSocket handlers.
type Handlers struct {
	hub         *relay.Hub
	relay       *relay.Module
	store       *history.Store
	limiter     *ratelimit.Limiter
	defaultRoom string
	logger      *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(relayModule *relay.Module, store *history.Store, limiter *ratelimit.Limiter, defaultRoom string) *Handlers {
	return &Handlers{
		hub:         relayModule.Hub(),
		relay:       relayModule,
		store:       store,
		limiter:     limiter,
		defaultRoom: defaultRoom,
		logger:      slog.Default(),
	}
}

// HandleWebSocket runs one connection session: register in the fan-out
// table as a member of the default room, replay its history, then process
// inbound frames one at a time until the socket closes. Sequential frame
// handling keeps a single sender's persist/publish order intact.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	client := relay.NewClient(c, sourceAddr(c), h.defaultRoom)
	h.hub.Register(client)
	defer func() {
		h.hub.Unregister(client)
		c.Close()
	}()

	ctx := context.Background()
	h.sendHistory(ctx, client, h.defaultRoom)
	h.notify(client, fmt.Sprintf("welcome to %s", h.defaultRoom), h.defaultRoom)

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", "addr", client.Addr(), "error", err)
			}
			break
		}
		h.handleFrame(ctx, client, raw)
	}

	h.logger.Info("WebSocket disconnected", "addr", client.Addr())
}

// handleFrame runs the acceptance pipeline for a single inbound frame:
// rate check, parse, validate, lazy room join, persist, publish. Any
// failure stops the frame with a local-only notice; a failed persist aborts
// before publish so history and broadcast never diverge.
func (h *Handlers) handleFrame(ctx context.Context, client *relay.Client, raw []byte) {
	admitted, err := h.limiter.Allow(ctx, client.Addr())
	if err != nil {
		h.logger.Error("Rate check failed", "addr", client.Addr(), "error", err)
		h.notify(client, noticeNotDelivered, "")
		return
	}
	if !admitted {
		h.notify(client, noticeRateLimited, "")
		return
	}

	var frame chat.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.notify(client, noticeInvalidJSON, "")
		return
	}
	if err := chat.ValidateFrame(frame); err != nil {
		h.notify(client, noticeInvalidShape, "")
		return
	}

	client.Join(frame.Room)

	msg := chat.NewMessage(frame.Room, frame.Text, frame.Username)
	if err := h.store.Append(ctx, msg.Room, msg); err != nil {
		h.logger.Error("History append failed", "room", msg.Room, "error", err)
		h.notify(client, noticeNotDelivered, msg.Room)
		return
	}
	if err := h.relay.Publish(ctx, msg); err != nil {
		h.logger.Error("Publish failed", "room", msg.Room, "error", err)
		h.notify(client, noticeNotDelivered, msg.Room)
	}
}

// sendHistory replays a room's bounded history as a single snapshot event.
func (h *Handlers) sendHistory(ctx context.Context, client *relay.Client, room string) {
	messages, err := h.store.Load(ctx, room)
	if err != nil {
		h.logger.Error("History load failed", "room", room, "error", err)
		return
	}
	if err := client.Send(chat.NewHistoryEvent(room, messages)); err != nil {
		h.logger.Error("Failed to send history", "room", room, "error", err)
	}
}

// notify sends a local system notice to a single connection.
func (h *Handlers) notify(client *relay.Client, text, room string) {
	if err := client.Send(chat.NewSystemEvent(text, room)); err != nil {
		h.logger.Error("Failed to send notice", "addr", client.Addr(), "error", err)
	}
}

// sourceAddr extracts the connection's address for rate-limit keying,
// dropping the ephemeral port so reconnects share a counter.
func sourceAddr(c *websocket.Conn) string {
	addr := c.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// REST handlers

// ListRooms handles GET /rooms: best-effort room discovery from existing
// history keys. Approximate by design; a room with expired history and no
// local members is invisible.
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.store.Rooms(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "room discovery unavailable",
		})
	}
	return c.JSON(fiber.Map{
		"rooms": rooms,
		"total": len(rooms),
	})
}

// HealthCheck handles GET /healthz.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "redis-chat-relay",
	})
}
