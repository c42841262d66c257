// Package bus owns the shared Redis clients used by every other module.
package bus

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

// Module manages the process-wide Redis connections: one client for commands
// and publishing, one dedicated exclusively to pattern subscription. Both are
// long-lived and shared by all connection goroutines.
type Module struct {
	addr       string
	client     *redis.Client
	subscriber *redis.Client
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new bus module for the given Redis address.
func NewModule(addr string) *Module {
	return &Module{addr: addr}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "bus"
}

// Start connects both Redis clients and verifies the connection.
func (m *Module) Start(ctx context.Context) error {
	opts := &redis.Options{
		Addr:         m.addr,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	m.client = redis.NewClient(opts)
	m.subscriber = redis.NewClient(&redis.Options{Addr: m.addr})

	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", m.addr, err)
	}

	log.Printf("[bus] Connected to Redis at %s", m.addr)
	return nil
}

// Stop closes both Redis clients.
func (m *Module) Stop(_ context.Context) error {
	if m.subscriber != nil {
		if err := m.subscriber.Close(); err != nil {
			log.Printf("[bus] Error closing subscriber connection: %v", err)
		}
	}
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	log.Println("[bus] Module stopped")
	return nil
}

// Health reports the Redis connection state.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.client == nil {
		return mono.HealthStatus{Healthy: false, Message: "not connected"}
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"addr": m.addr},
	}
}

// Client returns the command/publish client.
func (m *Module) Client() *redis.Client {
	return m.client
}

// Subscriber returns the client reserved for pattern subscription.
func (m *Module) Subscriber() *redis.Client {
	return m.subscriber
}
