// Package history provides the bounded, TTL-backed per-room message log.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/redis-chat-relay/domain/chat"
)

// keyPrefix namespaces history lists in Redis: history:<room>.
const keyPrefix = "history:"

// Store reads and writes room history as a capped Redis list. Entries are
// stored most-recent-first; reads return chronological order. The list's
// expiry slides forward on every write.
type Store struct {
	client *redis.Client
	size   int
	ttl    time.Duration
}

// NewStore creates a history store with the given cap and TTL.
func NewStore(client *redis.Client, size int, ttl time.Duration) *Store {
	return &Store{
		client: client,
		size:   size,
		ttl:    ttl,
	}
}

func (s *Store) key(room string) string {
	return keyPrefix + room
}

// Append inserts msg as the newest entry, trims the list to the cap, and
// resets the expiry — in that order, as one pipeline.
func (s *Store) Append(ctx context.Context, room string, msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("history marshal error: %w", err)
	}

	key := s.key(room)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(s.size-1))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history append error: %w", err)
	}
	return nil
}

// Load returns up to the configured cap of most recent messages for room, in
// chronological order. A missing or expired list yields an empty slice.
// Unparsable entries are treated as absent rather than failing the load.
func (s *Store) Load(ctx context.Context, room string) ([]chat.Message, error) {
	entries, err := s.client.LRange(ctx, s.key(room), 0, int64(s.size-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history load error: %w", err)
	}

	messages := make([]chat.Message, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		var msg chat.Message
		if err := json.Unmarshal([]byte(entries[i]), &msg); err != nil {
			log.Printf("[history] Skipping corrupt entry in room %s: %v", room, err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Rooms returns the rooms that currently have history, by scanning the
// history keyspace. Discovery is approximate: a room with no surviving
// history is invisible here even if it has live subscribers.
func (s *Store) Rooms(ctx context.Context) ([]string, error) {
	var rooms []string
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("history scan error: %w", err)
		}
		for _, key := range keys {
			rooms = append(rooms, strings.TrimPrefix(key, keyPrefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return rooms, nil
}
