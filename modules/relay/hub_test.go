package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/example/redis-chat-relay/domain/chat"
)

// fakeConn records written frames in place of a live websocket.
type fakeConn struct {
	mu         sync.Mutex
	frames     [][]byte
	failWrites bool
	closed     bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("write on dead socket")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) broadcasts(t *testing.T) []chat.BroadcastEvent {
	t.Helper()
	var events []chat.BroadcastEvent
	for _, frame := range f.received() {
		var ev chat.BroadcastEvent
		if err := json.Unmarshal(frame, &ev); err != nil {
			t.Fatalf("Bad frame %s: %v", frame, err)
		}
		if ev.Type == "broadcast" {
			events = append(events, ev)
		}
	}
	return events
}

func TestClient_DefaultRoomMembership(t *testing.T) {
	client := NewClient(&fakeConn{}, "10.0.0.1", "lobby")

	if !client.InRoom("lobby") {
		t.Error("New client should be a member of the default room")
	}
	if client.InRoom("other") {
		t.Error("New client should not be in other rooms")
	}

	client.Join("other")
	if !client.InRoom("other") {
		t.Error("Client should be in a joined room")
	}
	if !client.InRoom("lobby") {
		t.Error("Joining must not remove existing memberships")
	}
}

func TestHub_DeliverToRoomMembersOnly(t *testing.T) {
	hub := NewHub()

	lobbyConn := &fakeConn{}
	otherConn := &fakeConn{}
	a := NewClient(lobbyConn, "10.0.0.1", "lobby")
	c := NewClient(otherConn, "10.0.0.2", "other")
	hub.Register(a)
	hub.Register(c)

	msg := chat.NewMessage("lobby", "hi", "alice")
	hub.Deliver("lobby", msg)

	got := lobbyConn.broadcasts(t)
	if len(got) != 1 {
		t.Fatalf("Lobby member received %d broadcasts, want 1", len(got))
	}
	if got[0].Message.Text != "hi" || got[0].Message.Username != "alice" {
		t.Errorf("Unexpected broadcast payload: %+v", got[0].Message)
	}

	if n := len(otherConn.broadcasts(t)); n != 0 {
		t.Errorf("Non-member received %d broadcasts, want 0", n)
	}
}

func TestHub_FailedSendDoesNotBlockOthers(t *testing.T) {
	hub := NewHub()

	dead := &fakeConn{failWrites: true}
	live := &fakeConn{}
	hub.Register(NewClient(dead, "10.0.0.1", "lobby"))
	hub.Register(NewClient(live, "10.0.0.2", "lobby"))

	hub.Deliver("lobby", chat.NewMessage("lobby", "hi", "alice"))

	if n := len(live.broadcasts(t)); n != 1 {
		t.Errorf("Healthy client received %d broadcasts, want 1", n)
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()

	conn := &fakeConn{}
	client := NewClient(conn, "10.0.0.1", "lobby")
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d, want 0", hub.ClientCount())
	}

	hub.Deliver("lobby", chat.NewMessage("lobby", "hi", "alice"))
	if n := len(conn.broadcasts(t)); n != 0 {
		t.Errorf("Unregistered client received %d broadcasts, want 0", n)
	}
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub()

	conn := &fakeConn{}
	hub.Register(NewClient(conn, "10.0.0.1", "lobby"))
	hub.CloseAll()

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0 after CloseAll", hub.ClientCount())
	}
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Error("CloseAll should close the underlying connection")
	}
}
