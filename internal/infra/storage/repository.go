// Package storage provides the persistence layer for the game server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"time"
)

// KVStore is the key-value persistence store holding save snapshots.
type KVStore interface {
	// Get returns the value under key. found is false when the key was never set.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
}

// GameEvent mirrors the domain event structure for persistence.
// The events package should NOT import this; the adapter lives in cmd.
type GameEvent struct {
	ID        string                 `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for the event journal.
type EventRepository interface {
	// Append adds a new event to the journal.
	Append(ctx context.Context, event GameEvent) error

	// GetRecent returns up to limit most recent events, oldest first.
	GetRecent(ctx context.Context, limit int) ([]GameEvent, error)

	// GetByEventType returns up to limit most recent events of one type, oldest first.
	GetByEventType(ctx context.Context, eventType string, limit int) ([]GameEvent, error)

	// GetAllByTypes returns every event of the given types in write order.
	GetAllByTypes(ctx context.Context, eventTypes ...string) ([]GameEvent, error)
}

func reverse(events []GameEvent) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
