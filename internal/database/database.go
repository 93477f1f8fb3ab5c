package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DB wraps the database connection.
type DB struct {
	conn *sqlx.DB
}

// New opens a Postgres connection and bootstraps the schema.
func New(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.createTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// createTables creates the necessary tables and indexes.
func (db *DB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			discord_id TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game_sessions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			game_name TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			duration_seconds BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS game_sessions_user_open_idx
			ON game_sessions (user_id) WHERE ended_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS voice_sessions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			channel_name TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			duration_seconds BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS voice_sessions_user_open_idx
			ON voice_sessions (user_id, channel_name) WHERE ended_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			channel_name TEXT NOT NULL,
			message_length INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS activity_events (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			activity_type TEXT NOT NULL,
			activity_name TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS game_statistics (
			game_name TEXT PRIMARY KEY,
			total_seconds BIGINT NOT NULL DEFAULT 0,
			total_sessions BIGINT NOT NULL DEFAULT 0,
			seconds_this_week BIGINT NOT NULL DEFAULT 0,
			seconds_this_month BIGINT NOT NULL DEFAULT 0,
			last_updated TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_statistics (
			user_id BIGINT PRIMARY KEY REFERENCES users(id),
			total_gaming_seconds BIGINT NOT NULL DEFAULT 0,
			total_voice_seconds BIGINT NOT NULL DEFAULT 0,
			total_messages BIGINT NOT NULL DEFAULT 0,
			gaming_seconds_this_week BIGINT NOT NULL DEFAULT 0,
			gaming_seconds_this_month BIGINT NOT NULL DEFAULT 0,
			voice_seconds_this_week BIGINT NOT NULL DEFAULT 0,
			voice_seconds_this_month BIGINT NOT NULL DEFAULT 0,
			messages_this_week BIGINT NOT NULL DEFAULT 0,
			messages_this_month BIGINT NOT NULL DEFAULT 0,
			last_updated TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game_servers (
			id BIGSERIAL PRIMARY KEY,
			instance_id TEXT NOT NULL UNIQUE,
			instance_name TEXT NOT NULL,
			friendly_name TEXT NOT NULL,
			module TEXT NOT NULL,
			module_display_name TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL,
			port INT NOT NULL,
			running BOOLEAN NOT NULL DEFAULT FALSE,
			app_state INT NOT NULL DEFAULT 0,
			cpu_usage_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			memory_usage_mb DOUBLE PRECISION NOT NULL DEFAULT 0,
			active_users INT NOT NULL DEFAULT 0,
			cover_image TEXT NOT NULL DEFAULT '',
			cover_fetched BOOLEAN NOT NULL DEFAULT FALSE,
			display_order INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game_server_metrics (
			id BIGSERIAL PRIMARY KEY,
			server_id BIGINT NOT NULL REFERENCES game_servers(id) ON DELETE CASCADE,
			cpu_usage_percent DOUBLE PRECISION NOT NULL,
			memory_usage_mb DOUBLE PRECISION NOT NULL,
			active_users INT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}
