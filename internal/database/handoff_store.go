package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrSlotEmpty is returned when a tab has nothing stored under a slot
var ErrSlotEmpty = errors.New("handoff slot is empty")

// Slot names shared by the booking views
const (
	SlotSeatSelection  = "seatSelection"
	SlotBookingDetails = "bookingDetails"
	SlotCheckout       = "checkout"
	SlotBookingStatus  = "bookingStatus"
	SlotEmailStatus    = "emailStatus"
)

// RedisHandoffStore keeps per-tab slots in Redis.
//
// Keys look like handoff:{tab}:{slot}. Every write refreshes the slot's TTL so
// an abandoned tab's state eventually disappears.
type RedisHandoffStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHandoffStore creates a store whose slots live for ttl after their last write
func NewRedisHandoffStore(client *redis.Client, ttl time.Duration) *RedisHandoffStore {
	return &RedisHandoffStore{client: client, ttl: ttl}
}

func slotKey(tabID, slot string) string {
	return "handoff:" + tabID + ":" + slot
}

// Put overwrites a slot
func (s *RedisHandoffStore) Put(ctx context.Context, tabID, slot string, value []byte) error {
	if err := s.client.Set(ctx, slotKey(tabID, slot), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s slot: %w", slot, err)
	}
	return nil
}

// Get reads a slot without consuming it
func (s *RedisHandoffStore) Get(ctx context.Context, tabID, slot string) ([]byte, error) {
	value, err := s.client.Get(ctx, slotKey(tabID, slot)).Bytes()
	if err == redis.Nil {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s slot: %w", slot, err)
	}
	return value, nil
}

// Take reads and removes slots in one transaction. Empty slots are left out of the result.
func (s *RedisHandoffStore) Take(ctx context.Context, tabID string, slots ...string) (map[string][]byte, error) {
	cmds := make(map[string]*redis.StringCmd, len(slots))
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, slot := range slots {
			key := slotKey(tabID, slot)
			cmds[slot] = pipe.Get(ctx, key)
			pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to take slots: %w", err)
	}

	taken := make(map[string][]byte, len(slots))
	for slot, cmd := range cmds {
		value, err := cmd.Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s slot: %w", slot, err)
		}
		taken[slot] = value
	}
	return taken, nil
}

// Delete removes slots, missing ones are ignored
func (s *RedisHandoffStore) Delete(ctx context.Context, tabID string, slots ...string) error {
	if len(slots) == 0 {
		return nil
	}
	keys := make([]string, len(slots))
	for i, slot := range slots {
		keys[i] = slotKey(tabID, slot)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear slots: %w", err)
	}
	return nil
}
