package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is an immutable chat message. It is created exactly once per
// accepted inbound frame and never mutated afterwards; one copy goes to the
// history list, one to the bus channel.
type Message struct {
	ID        string `json:"id"`
	Room      string `json:"room"`
	Text      string `json:"text"`
	Username  string `json:"username"`
	Timestamp int64  `json:"ts"` // milliseconds since epoch, server-assigned
}

// NewMessage builds an accepted message from validated frame fields. Text and
// username are trimmed, the id is fresh, and the timestamp is assigned here.
func NewMessage(room, text, username string) Message {
	return Message{
		ID:        uuid.New().String(),
		Room:      room,
		Text:      strings.TrimSpace(text),
		Username:  strings.TrimSpace(username),
		Timestamp: time.Now().UnixMilli(),
	}
}
