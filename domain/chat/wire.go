package chat

import "github.com/go-playground/validator/v10"

// Frame is the only inbound frame shape clients may send.
type Frame struct {
	Type     string `json:"type" validate:"required,eq=message"`
	Room     string `json:"room" validate:"required,min=1,max=64"`
	Text     string `json:"text" validate:"required,min=1,max=2000"`
	Username string `json:"username" validate:"required,min=1,max=40"`
}

var validate = validator.New()

// ValidateFrame checks an inbound frame against the wire schema. Length
// bounds apply to the raw (untrimmed) field values.
func ValidateFrame(f Frame) error {
	return validate.Struct(f)
}

// HistoryEvent replays a room's bounded history to a newly connected client.
type HistoryEvent struct {
	Type     string    `json:"type"`
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

// BroadcastEvent carries one relayed message to a subscribed connection.
type BroadcastEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// SystemEvent is a local-only notice (errors, welcome). It is never
// broadcast to other room members.
type SystemEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Room string `json:"room,omitempty"`
}

// NewHistoryEvent builds a history snapshot event.
func NewHistoryEvent(room string, messages []Message) HistoryEvent {
	return HistoryEvent{Type: "history", Room: room, Messages: messages}
}

// NewBroadcastEvent wraps a relayed message for delivery.
func NewBroadcastEvent(msg Message) BroadcastEvent {
	return BroadcastEvent{Type: "broadcast", Message: msg}
}

// NewSystemEvent builds a local notice, optionally scoped to a room.
func NewSystemEvent(text, room string) SystemEvent {
	return SystemEvent{Type: "system", Text: text, Room: room}
}
