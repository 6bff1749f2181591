package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS partner_queue (
		pos INTEGER PRIMARY KEY,
		user_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS partner_sessions (
		channel_id TEXT PRIMARY KEY,
		members JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		last_activity_at TIMESTAMPTZ NOT NULL,
		messages JSONB NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'active',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		subject TEXT NOT NULL,
		channel_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		footer TEXT NOT NULL DEFAULT '',
		cooldown_seconds INTEGER NOT NULL DEFAULT 600,
		aliases JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS pings (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		subject_id BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		ping_value TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		role_id TEXT NOT NULL DEFAULT '',
		last_used_at TIMESTAMPTZ NOT NULL DEFAULT to_timestamp(0),
		UNIQUE(subject_id, ping_value)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pings_subject ON pings (subject_id, id)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
