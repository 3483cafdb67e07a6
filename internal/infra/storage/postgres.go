// Package storage - postgres.go
// PostgreSQL implementation of the save store and event journal.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL driver
)

// InitPostgres opens the database at dsn and creates the schemas.
func InitPostgres(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS event_log (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_log_event_type ON event_log(event_type)`,
	}
	for _, query := range schemas {
		if _, err := db.ExecContext(ctx, query); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schemas: %w", err)
		}
	}
	return db, nil
}

// PostgresKVStore implements KVStore using PostgreSQL.
type PostgresKVStore struct {
	db *sql.DB
}

// NewPostgresKVStore creates a new PostgreSQL save store.
func NewPostgresKVStore(db *sql.DB) *PostgresKVStore {
	return &PostgresKVStore{db: db}
}

// Get reads the value stored under key.
func (s *PostgresKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value under key.
func (s *PostgresKVStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// PostgresEventRepository implements EventRepository using PostgreSQL.
type PostgresEventRepository struct {
	db *sql.DB
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

// Append inserts a new event into the journal.
func (r *PostgresEventRepository) Append(ctx context.Context, event GameEvent) error {
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO event_log (id, timestamp, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.EventType,
		payloadJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// GetRecent returns the latest events, oldest first.
func (r *PostgresEventRepository) GetRecent(ctx context.Context, limit int) ([]GameEvent, error) {
	query := `
		SELECT id, timestamp, event_type, payload
		FROM event_log
		ORDER BY seq DESC
		LIMIT $1
	`

	return r.queryEvents(ctx, query, limit)
}

// GetByEventType returns the latest events of one type, oldest first.
func (r *PostgresEventRepository) GetByEventType(ctx context.Context, eventType string, limit int) ([]GameEvent, error) {
	query := `
		SELECT id, timestamp, event_type, payload
		FROM event_log
		WHERE event_type = $1
		ORDER BY seq DESC
		LIMIT $2
	`

	return r.queryEvents(ctx, query, eventType, limit)
}

// GetAllByTypes returns every event of the given types in write order.
func (r *PostgresEventRepository) GetAllByTypes(ctx context.Context, eventTypes ...string) ([]GameEvent, error) {
	if len(eventTypes) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, timestamp, event_type, payload
		FROM event_log
		WHERE event_type = ANY($1)
		ORDER BY seq DESC
	`

	return r.queryEvents(ctx, query, pq.Array(eventTypes))
}

// queryEvents is a helper to execute queries and scan results.
func (r *PostgresEventRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]GameEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []GameEvent
	for rows.Next() {
		var e GameEvent
		var payloadJSON []byte

		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &payloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	reverse(events)
	return events, nil
}
