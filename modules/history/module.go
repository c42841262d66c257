package history

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"

	"github.com/example/redis-chat-relay/modules/bus"
)

// Module wires the history store to the bus module's Redis client.
type Module struct {
	bus   *bus.Module
	size  int
	ttl   time.Duration
	store *Store
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new history module.
func NewModule(busModule *bus.Module, size int, ttl time.Duration) *Module {
	return &Module{
		bus:  busModule,
		size: size,
		ttl:  ttl,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "history"
}

// Start creates the store against the shared Redis client.
func (m *Module) Start(_ context.Context) error {
	client := m.bus.Client()
	if client == nil {
		return fmt.Errorf("bus module not started")
	}
	m.store = NewStore(client, m.size, m.ttl)
	log.Printf("[history] Module started (cap: %d, TTL: %s)", m.size, m.ttl)
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[history] Module stopped")
	return nil
}

// Health reports whether the store is available.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.store != nil,
		Message: "operational",
		Details: map[string]any{"cap": m.size, "ttl": m.ttl.String()},
	}
}

// Store returns the history store.
func (m *Module) Store() *Store {
	return m.store
}
