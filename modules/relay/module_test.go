package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/example/redis-chat-relay/domain/chat"
	"github.com/example/redis-chat-relay/modules/bus"
)

const testRedisAddr = "localhost:6379"

// setupTestRelay starts a bus and relay module pair against a local Redis,
// skipping when Redis is unreachable.
func setupTestRelay(t *testing.T) (*Module, func()) {
	t.Helper()

	ctx := context.Background()
	busModule := bus.NewModule(testRedisAddr)
	if err := busModule.Start(ctx); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	relayModule := NewModule(busModule)
	if err := relayModule.Start(ctx); err != nil {
		busModule.Stop(ctx)
		t.Fatalf("Relay start failed: %v", err)
	}

	cleanup := func() {
		relayModule.Stop(ctx)
		busModule.Stop(ctx)
	}
	return relayModule, cleanup
}

// waitForBroadcasts polls until the connection has seen want broadcasts or
// the deadline passes.
func waitForBroadcasts(t *testing.T, conn *fakeConn, want int) []chat.BroadcastEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := conn.broadcasts(t); len(events) >= want {
			return events
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn.broadcasts(t)
}

func TestRelay_PublishReachesLocalMembers(t *testing.T) {
	relayModule, cleanup := setupTestRelay(t)
	defer cleanup()

	room := fmt.Sprintf("e2e-room-%d", time.Now().UnixNano())
	memberConn := &fakeConn{}
	bystanderConn := &fakeConn{}
	relayModule.Hub().Register(NewClient(memberConn, "10.0.0.1", room))
	relayModule.Hub().Register(NewClient(bystanderConn, "10.0.0.2", "elsewhere"))

	msg := chat.NewMessage(room, "hi", "alice")
	if err := relayModule.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	events := waitForBroadcasts(t, memberConn, 1)
	if len(events) != 1 {
		t.Fatalf("Member received %d broadcasts, want 1", len(events))
	}
	if events[0].Message.Text != "hi" || events[0].Message.Username != "alice" {
		t.Errorf("Unexpected message: %+v", events[0].Message)
	}
	if events[0].Message.ID != msg.ID {
		t.Errorf("Message ID changed in transit: %s != %s", events[0].Message.ID, msg.ID)
	}

	if n := len(bystanderConn.broadcasts(t)); n != 0 {
		t.Errorf("Bystander received %d broadcasts, want 0", n)
	}
}

func TestRelay_MalformedPayloadDoesNotKillLoop(t *testing.T) {
	relayModule, cleanup := setupTestRelay(t)
	defer cleanup()

	room := fmt.Sprintf("e2e-room-%d", time.Now().UnixNano())
	conn := &fakeConn{}
	relayModule.Hub().Register(NewClient(conn, "10.0.0.1", room))

	ctx := context.Background()
	if err := relayModule.bus.Client().Publish(ctx, channelPrefix+room, "{not json").Err(); err != nil {
		t.Fatalf("Raw publish failed: %v", err)
	}
	if err := relayModule.Publish(ctx, chat.NewMessage(room, "still alive", "alice")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	events := waitForBroadcasts(t, conn, 1)
	if len(events) != 1 {
		t.Fatalf("Received %d broadcasts after malformed payload, want 1", len(events))
	}
	if events[0].Message.Text != "still alive" {
		t.Errorf("Text = %q, want %q", events[0].Message.Text, "still alive")
	}
}
