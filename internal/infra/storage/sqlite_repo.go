package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteKVStore implements KVStore for SQLite.
type SQLiteKVStore struct {
	db *sql.DB
}

func NewSQLiteKVStore(db *sql.DB) *SQLiteKVStore {
	return &SQLiteKVStore{db: db}
}

func (s *SQLiteKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteKVStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event GameEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, timestamp, event_type, payload)
		VALUES (?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, event.ID, event.Timestamp.UTC(), event.EventType, string(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]GameEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []GameEvent
	for rows.Next() {
		var e GameEvent
		var payloadStr string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &payloadStr); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(events)
	return events, nil
}

func (r *SQLiteEventRepository) GetRecent(ctx context.Context, limit int) ([]GameEvent, error) {
	query := `SELECT id, timestamp, event_type, payload FROM events ORDER BY seq DESC LIMIT ?`
	return r.getMany(ctx, query, limit)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, eventType string, limit int) ([]GameEvent, error) {
	query := `SELECT id, timestamp, event_type, payload FROM events WHERE event_type = ? ORDER BY seq DESC LIMIT ?`
	return r.getMany(ctx, query, eventType, limit)
}

func (r *SQLiteEventRepository) GetAllByTypes(ctx context.Context, eventTypes ...string) ([]GameEvent, error) {
	if len(eventTypes) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eventTypes)), ",")
	query := `SELECT id, timestamp, event_type, payload FROM events WHERE event_type IN (` + placeholders + `) ORDER BY seq DESC`
	args := make([]interface{}, len(eventTypes))
	for i, t := range eventTypes {
		args[i] = t
	}
	return r.getMany(ctx, query, args...)
}
