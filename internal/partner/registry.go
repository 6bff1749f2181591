package partner

import (
	"context"
	"fmt"
	"time"

	"github.com/goharguide/partnerbot/internal/repository"
)

// Registry owns the authoritative in-memory map of active sessions, mirrored
// synchronously into the session repository. Callers serialize access through
// the manager's mutex.
type Registry struct {
	repo     repository.SessionRepository
	sessions map[string]*repository.Session
	byMember map[string]string
}

func NewRegistry(repo repository.SessionRepository) *Registry {
	return &Registry{
		repo:     repo,
		sessions: make(map[string]*repository.Session),
		byMember: make(map[string]string),
	}
}

func (r *Registry) Len() int {
	return len(r.sessions)
}

func (r *Registry) Get(channelID string) *repository.Session {
	return r.sessions[channelID]
}

func (r *Registry) FindByMember(userID string) *repository.Session {
	channelID, ok := r.byMember[userID]
	if !ok {
		return nil
	}
	return r.sessions[channelID]
}

func (r *Registry) Create(ctx context.Context, members []string, channelID string, now time.Time) (*repository.Session, error) {
	if _, exists := r.sessions[channelID]; exists {
		return nil, ErrDuplicateSession
	}
	session := &repository.Session{
		ChannelID:      channelID,
		Members:        members,
		CreatedAt:      now,
		LastActivityAt: now,
		Status:         repository.SessionStatusActive,
	}
	if err := r.repo.SaveSession(ctx, *session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	r.index(session)
	return session, nil
}

// Restore inserts an already-persisted session during startup recovery.
func (r *Registry) Restore(session repository.Session) {
	s := session
	r.index(&s)
}

func (r *Registry) index(session *repository.Session) {
	r.sessions[session.ChannelID] = session
	for _, member := range session.Members {
		r.byMember[member] = session.ChannelID
	}
}

// RecordActivity appends a captured message and bumps LastActivityAt, then
// persists. Returns false when no active session exists for the channel. On a
// store failure the in-memory session is rolled back.
func (r *Registry) RecordActivity(ctx context.Context, channelID string, msg repository.Message) (bool, error) {
	session, ok := r.sessions[channelID]
	if !ok || session.Status != repository.SessionStatusActive {
		return false, nil
	}
	prevLen := len(session.Messages)
	prevActivity := session.LastActivityAt
	session.Messages = append(session.Messages, msg)
	if msg.Timestamp.After(session.LastActivityAt) {
		session.LastActivityAt = msg.Timestamp
	}
	if err := r.repo.SaveSession(ctx, *session); err != nil {
		session.Messages = session.Messages[:prevLen]
		session.LastActivityAt = prevActivity
		return false, fmt.Errorf("failed to persist session: %w", err)
	}
	return true, nil
}

// Close transitions the session to CLOSED, drops it from the active indexes
// and deletes the stored mirror. The returned snapshot backs transcript
// building. The in-memory entry is removed even when the store delete fails;
// the error is reported for logging only.
func (r *Registry) Close(ctx context.Context, channelID string) (repository.Session, bool, error) {
	session, ok := r.sessions[channelID]
	if !ok {
		return repository.Session{}, false, nil
	}
	delete(r.sessions, channelID)
	for _, member := range session.Members {
		if r.byMember[member] == channelID {
			delete(r.byMember, member)
		}
	}
	session.Status = repository.SessionStatusClosed
	snapshot := *session
	if err := r.repo.DeleteSession(ctx, channelID); err != nil {
		return snapshot, true, fmt.Errorf("failed to delete stored session: %w", err)
	}
	return snapshot, true, nil
}

// ActiveSessions returns detached copies for sweep evaluation.
func (r *Registry) ActiveSessions() []repository.Session {
	out := make([]repository.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		out = append(out, *session)
	}
	return out
}
