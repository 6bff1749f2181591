package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goharguide/partnerbot/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

// SaveQueue rewrites the full ordered queue in one transaction so the stored
// order always matches the in-memory order.
func (r *PostgresRepository) SaveQueue(ctx context.Context, userIDs []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if _, err := tx.Exec(ctx, `DELETE FROM partner_queue`); err != nil {
		return err
	}
	for i, userID := range userIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO partner_queue (pos, user_id) VALUES ($1, $2)`,
			i, userID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) LoadQueue(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM partner_queue ORDER BY pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

func (r *PostgresRepository) SaveSession(ctx context.Context, session repository.Session) error {
	members, err := json.Marshal(session.Members)
	if err != nil {
		return fmt.Errorf("failed to encode members: %w", err)
	}
	messages, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO partner_sessions (channel_id, members, created_at, last_activity_at, messages, status, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (channel_id) DO UPDATE
		 SET members = EXCLUDED.members,
		     created_at = EXCLUDED.created_at,
		     last_activity_at = EXCLUDED.last_activity_at,
		     messages = EXCLUDED.messages,
		     status = EXCLUDED.status,
		     updated_at = NOW()`,
		session.ChannelID, members, session.CreatedAt, session.LastActivityAt, messages, string(session.Status))
	return err
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, channelID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM partner_sessions WHERE channel_id = $1`, channelID)
	return err
}

func (r *PostgresRepository) LoadAllSessions(ctx context.Context) ([]repository.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT channel_id, members, created_at, last_activity_at, messages, status
		 FROM partner_sessions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []repository.Session
	for rows.Next() {
		var s repository.Session
		var members, messages []byte
		var status string
		if err := rows.Scan(&s.ChannelID, &members, &s.CreatedAt, &s.LastActivityAt, &messages, &status); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(members, &s.Members); err != nil {
			return nil, fmt.Errorf("failed to decode members for %s: %w", s.ChannelID, err)
		}
		if err := json.Unmarshal(messages, &s.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode messages for %s: %w", s.ChannelID, err)
		}
		s.Status = repository.SessionStatus(status)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *PostgresRepository) ListSubjects(ctx context.Context) ([]repository.Subject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, subject, channel_id, message, footer, cooldown_seconds, aliases
		 FROM subjects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []repository.Subject
	for rows.Next() {
		var s repository.Subject
		var aliases []byte
		if err := rows.Scan(&s.ID, &s.Name, &s.ChannelID, &s.Message, &s.Footer, &s.CooldownSeconds, &aliases); err != nil {
			return nil, err
		}
		s.RawAliases = aliases
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range subjects {
		pings, err := r.listPings(ctx, subjects[i].ID)
		if err != nil {
			return nil, err
		}
		subjects[i].Pings = pings
	}
	return subjects, nil
}

func (r *PostgresRepository) listPings(ctx context.Context, subjectID int64) ([]repository.Ping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ping_value, name, role_id, last_used_at
		 FROM pings WHERE subject_id = $1 ORDER BY id`,
		subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pings []repository.Ping
	for rows.Next() {
		var p repository.Ping
		if err := rows.Scan(&p.Value, &p.Name, &p.RoleID, &p.LastUsedAt); err != nil {
			return nil, err
		}
		pings = append(pings, p)
	}
	return pings, rows.Err()
}

func (r *PostgresRepository) UpdatePingUsedAt(ctx context.Context, subjectID int64, pingValue string, usedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE pings SET last_used_at = $3 WHERE subject_id = $1 AND ping_value = $2`,
		subjectID, pingValue, usedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
