package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"

	"github.com/example/redis-chat-relay/domain/chat"
	"github.com/example/redis-chat-relay/modules/bus"
)

// channelPrefix namespaces room channels on the bus: chat:<room>.
const channelPrefix = "chat:"

// Module subscribes once to the whole room-channel namespace and fans each
// received message out to local room members. One pattern subscription
// covers every room, so the subscription count is independent of the room
// count; cross-instance fan-out is entirely delegated to Redis pub/sub.
type Module struct {
	bus    *bus.Module
	hub    *Hub
	pubsub *redis.PubSub
	done   chan struct{}
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new relay module.
func NewModule(busModule *bus.Module) *Module {
	return &Module{
		bus:  busModule,
		hub:  NewHub(),
		done: make(chan struct{}),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Start opens the pattern subscription and launches the receive loop.
func (m *Module) Start(ctx context.Context) error {
	subscriber := m.bus.Subscriber()
	if subscriber == nil {
		return fmt.Errorf("bus module not started")
	}

	pubsub := subscriber.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s*: %w", channelPrefix, err)
	}
	m.pubsub = pubsub

	go m.run()
	log.Printf("[relay] Module started - subscribed to %s*", channelPrefix)
	return nil
}

// run drives the fan-out loop until the subscription is closed. Malformed
// payloads are dropped; the subscription survives them.
func (m *Module) run() {
	defer close(m.done)

	for received := range m.pubsub.Channel() {
		room := strings.TrimPrefix(received.Channel, channelPrefix)

		var msg chat.Message
		if err := json.Unmarshal([]byte(received.Payload), &msg); err != nil {
			log.Printf("[relay] Dropping malformed payload on %s: %v", received.Channel, err)
			continue
		}
		m.hub.Deliver(room, msg)
	}
}

// Stop closes the subscription, waits for the receive loop, and closes all
// local connections.
func (m *Module) Stop(_ context.Context) error {
	if m.pubsub != nil {
		if err := m.pubsub.Close(); err != nil {
			log.Printf("[relay] Error closing subscription: %v", err)
		}
		<-m.done
	}
	m.hub.CloseAll()
	log.Println("[relay] Module stopped")
	return nil
}

// Health reports the relay state.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.pubsub != nil,
		Message: "operational",
		Details: map[string]any{"connected_clients": m.hub.ClientCount()},
	}
}

// Publish emits msg on its room's bus channel, where every instance's relay
// (this one included) picks it up for local fan-out.
func (m *Module) Publish(ctx context.Context, msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("publish marshal error: %w", err)
	}
	if err := m.bus.Client().Publish(ctx, channelPrefix+msg.Room, data).Err(); err != nil {
		return fmt.Errorf("publish error: %w", err)
	}
	return nil
}

// Hub returns the local fan-out hub.
func (m *Module) Hub() *Hub {
	return m.hub
}
