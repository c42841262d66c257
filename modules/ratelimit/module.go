package ratelimit

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"

	"github.com/example/redis-chat-relay/modules/bus"
)

// Module wires the limiter to the bus module's Redis client.
type Module struct {
	bus     *bus.Module
	limit   int
	limiter *Limiter
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new rate limit module.
func NewModule(busModule *bus.Module, limit int) *Module {
	return &Module{
		bus:   busModule,
		limit: limit,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ratelimit"
}

// Start creates the limiter against the shared Redis client.
func (m *Module) Start(_ context.Context) error {
	client := m.bus.Client()
	if client == nil {
		return fmt.Errorf("bus module not started")
	}
	m.limiter = NewLimiter(client, m.limit)
	log.Printf("[ratelimit] Module started (%d messages/minute)", m.limit)
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[ratelimit] Module stopped")
	return nil
}

// Health reports whether the limiter is available.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.limiter != nil,
		Message: "operational",
		Details: map[string]any{"limit_per_minute": m.limit},
	}
}

// Limiter returns the limiter instance.
func (m *Module) Limiter() *Limiter {
	return m.limiter
}
