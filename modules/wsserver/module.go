// Package wsserver exposes the WebSocket endpoint and the HTTP surface.
package wsserver

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/redis-chat-relay/modules/history"
	"github.com/example/redis-chat-relay/modules/ratelimit"
	"github.com/example/redis-chat-relay/modules/relay"
)

// Module runs the Fiber server hosting /ws, /healthz, and /rooms.
type Module struct {
	addr        string
	defaultRoom string
	relay       *relay.Module
	history     *history.Module
	ratelimit   *ratelimit.Module
	app         *fiber.App
	handlers    *Handlers
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new WebSocket server module.
func NewModule(addr, defaultRoom string, relayModule *relay.Module, historyModule *history.Module, ratelimitModule *ratelimit.Module) *Module {
	return &Module{
		addr:        addr,
		defaultRoom: defaultRoom,
		relay:       relayModule,
		history:     historyModule,
		ratelimit:   ratelimitModule,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ws-server"
}

// Start initializes and starts the server.
func (m *Module) Start(_ context.Context) error {
	store := m.history.Store()
	limiter := m.ratelimit.Limiter()
	if store == nil || limiter == nil {
		return fmt.Errorf("history and ratelimit modules must start before ws-server")
	}

	m.handlers = NewHandlers(m.relay, store, limiter, m.defaultRoom)

	m.app = fiber.New(fiber.Config{
		AppName:               "Redis Chat Relay",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})
	m.app.Use(recover.New())

	m.registerRoutes()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("WebSocket server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[ws-server] Started on %s (default room: %s)", m.addr, m.defaultRoom)
	return nil
}

// Stop gracefully shuts down the server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	log.Println("[ws-server] Stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr":              m.addr,
			"connected_clients": m.relay.Hub().ClientCount(),
		},
	}
}

// registerRoutes sets up the HTTP and WebSocket routes.
func (m *Module) registerRoutes() {
	m.app.Get("/healthz", m.handlers.HealthCheck)
	m.app.Get("/rooms", m.handlers.ListRooms)

	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handlers.HandleWebSocket))
}

// errorHandler handles Fiber errors globally.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}
