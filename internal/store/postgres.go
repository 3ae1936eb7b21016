package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL is embedded so the archive can self-bootstrap its table.
//
//go:embed schema.sql
var schemaSQL string

// ArchivedEvent is one accepted event as written to the archive.
type ArchivedEvent struct {
	EventID     string
	EventType   string
	EventName   string
	UserID      string
	AnonymousID string
	SessionID   string
	EventTime   *time.Time // nil when the payload had no usable timestamp
	ReceivedAt  time.Time
	Payload     map[string]any
}

// PostgresArchive records accepted events in Postgres for downstream use.
// It is write-only: the in-memory buffer is never rebuilt from it.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive creates a connection pool and fails fast if DB is unreachable.
func NewPostgresArchive(dbURL string) (*PostgresArchive, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresArchive{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresArchive) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by the readiness endpoint.
func (p *PostgresArchive) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresArchive) Close() {
	p.pool.Close()
}

// Archive stores ev and returns inserted=false when event_id was already archived.
// Segment delivers at least once, so redeliveries of one messageId collapse here.
func (p *PostgresArchive) Archive(ctx context.Context, ev ArchivedEvent) (bool, error) {
	if ev.EventID == "" || ev.EventType == "" {
		return false, errors.New("eventID/eventType required")
	}

	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	var one int
	err = p.pool.QueryRow(ctx, `
		INSERT INTO processed_events(
			event_id, event_type, event_name, user_id, anonymous_id,
			session_id, event_ts, received_at, payload)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
			NULLIF($6, ''), $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING 1
	`, ev.EventID, ev.EventType, ev.EventName, ev.UserID, ev.AnonymousID,
		ev.SessionID, ev.EventTime, ev.ReceivedAt, payloadJSON).Scan(&one)

	if err == nil {
		return true, nil
	}
	// Conflict returns no rows because RETURNING yields nothing.
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}
