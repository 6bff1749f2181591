package repository

import (
	"context"
	"time"
)

type QueueRepository interface {
	SaveQueue(ctx context.Context, userIDs []string) error
	LoadQueue(ctx context.Context) ([]string, error)
}

type SessionRepository interface {
	SaveSession(ctx context.Context, session Session) error
	DeleteSession(ctx context.Context, channelID string) error
	LoadAllSessions(ctx context.Context) ([]Session, error)
}

type PingConfigRepository interface {
	ListSubjects(ctx context.Context) ([]Subject, error)
	UpdatePingUsedAt(ctx context.Context, subjectID int64, pingValue string, usedAt time.Time) error
}

type Repository interface {
	QueueRepository
	SessionRepository
	PingConfigRepository
}
