package relay

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the subset of the websocket connection the relay writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is the per-connection state held by the hub: the live socket, the
// source address used as the rate-limit key, and the set of rooms this
// connection has joined. The room set only grows; rooms are never left.
type Client struct {
	conn Conn
	addr string

	writeMu sync.Mutex // serializes socket writes (session vs. relay goroutine)

	roomsMu sync.RWMutex
	rooms   map[string]struct{}
}

// NewClient creates a client that starts as a member of defaultRoom.
func NewClient(conn Conn, addr, defaultRoom string) *Client {
	return &Client{
		conn:  conn,
		addr:  addr,
		rooms: map[string]struct{}{defaultRoom: {}},
	}
}

// Addr returns the connection's source address.
func (c *Client) Addr() string {
	return c.addr
}

// Join adds room to the client's membership set. Joining is lazy and has no
// acknowledgment; membership is inferred from the first message to a room.
func (c *Client) Join(room string) {
	c.roomsMu.Lock()
	c.rooms[room] = struct{}{}
	c.roomsMu.Unlock()
}

// InRoom reports whether the client is a member of room.
func (c *Client) InRoom(room string) bool {
	c.roomsMu.RLock()
	_, ok := c.rooms[room]
	c.roomsMu.RUnlock()
	return ok
}

// Send marshals v and writes it to the socket as a single text frame.
func (c *Client) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying socket.
func (c *Client) Close() error {
	return c.conn.Close()
}
