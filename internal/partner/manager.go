package partner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goharguide/partnerbot/internal/config"
	"github.com/goharguide/partnerbot/internal/discord"
	"github.com/goharguide/partnerbot/internal/repository"
	"github.com/goharguide/partnerbot/internal/webhook"
)

const (
	externalCallTimeout = 10 * time.Second
	lateHistoryLimit    = 500
	channelNameMaxLen   = 100
)

// Store is the persistence surface the lifecycle manager needs.
type Store interface {
	repository.QueueRepository
	repository.SessionRepository
}

// Manager orchestrates the pairing queue and the session registry. All
// queue/registry mutations happen under one mutex; provisioning, transcript
// delivery and channel deletion are issued with the mutex released.
type Manager struct {
	cfg     *config.Config
	store   Store
	discord discord.Client
	webhook webhook.Sender

	mu       sync.Mutex
	queue    *Queue
	registry *Registry
	// pending reserves both members of an in-flight pairing transaction for
	// the stretches where the mutex is released (member resolution, channel
	// provisioning). A reserved user is neither queued nor active yet, and
	// must not re-enter the queue until the transaction commits or aborts.
	pending map[string]struct{}

	botUserID string
	clock     func() time.Time
}

func NewManager(cfg *config.Config, store Store, dc discord.Client, wh webhook.Sender) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		discord:  dc,
		webhook:  wh,
		queue:    NewQueue(store),
		registry: NewRegistry(store),
		pending:  make(map[string]struct{}),
		clock:    time.Now,
	}
}

func (m *Manager) SetBotUserID(userID string) {
	m.botUserID = userID
}

func CommandDefinitions() []discord.CommandDefinition {
	return []discord.CommandDefinition{
		{Name: commandFindPartner, Description: commandFindPartnerDescription},
		{Name: commandClose, Description: commandCloseDescription},
	}
}

// Recover reloads the persisted queue and sessions after a restart. Sessions
// whose channel no longer exists on the platform are closed with what
// transcript is recoverable from cached messages.
func (m *Manager) Recover(ctx context.Context) error {
	m.mu.Lock()
	err := m.queue.Load(ctx)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	sessions, err := m.store.LoadAllSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	restored, orphaned := 0, 0
	for _, session := range sessions {
		if session.Status != repository.SessionStatusActive {
			if err := m.store.DeleteSession(ctx, session.ChannelID); err != nil {
				slog.Error("failed to delete stale closed session", "error", err, "channel_id", session.ChannelID)
			}
			continue
		}
		if m.discord.ChannelExists(session.ChannelID) {
			m.mu.Lock()
			m.registry.Restore(session)
			m.mu.Unlock()
			restored++
			continue
		}
		orphaned++
		slog.Warn("session channel gone; closing as orphaned", "channel_id", session.ChannelID, "members", session.Members)
		if err := m.store.DeleteSession(ctx, session.ChannelID); err != nil {
			slog.Error("failed to delete orphaned session", "error", err, "channel_id", session.ChannelID)
		}
		snapshot := session
		snapshot.Status = repository.SessionStatusClosed
		m.finalizeSession(ctx, snapshot, closeReasonOrphanedOnRestart, m.clock(), true)
	}
	slog.Info("recovery complete", "queued", m.QueueLength(), "restored_sessions", restored, "orphaned_sessions", orphaned)
	return nil
}

func (m *Manager) QueueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

func (m *Manager) ActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Len()
}

func (m *Manager) HandleCommand(ev discord.CommandEvent) {
	switch ev.CommandName {
	case commandFindPartner:
		m.handleFindPartner(ev)
	case commandClose:
		m.handleClose(ev)
	}
}

func (m *Manager) handleFindPartner(ev discord.CommandEvent) {
	if m.cfg.PairingChannelID != "" && ev.ChannelID != m.cfg.PairingChannelID {
		m.respond(ev, wrongChannelMessage(m.cfg.PairingChannelID))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()
	result, err := m.RequestPairing(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		slog.Error("pairing request failed", "error", err, "user_id", ev.UserID)
		m.respond(ev, messageEphemeralStartFailed)
		return
	}
	switch result.Status {
	case PairingStatusQueued:
		m.respond(ev, messageEphemeralQueued)
	case PairingStatusWithdrawn:
		m.respond(ev, messageEphemeralWithdrawn)
	case PairingStatusAlreadyActive:
		m.respond(ev, messageEphemeralAlreadyActive)
	case PairingStatusPaired:
		m.respond(ev, pairedEphemeralMessage(result.Session.ChannelID))
	}
}

func (m *Manager) handleClose(ev discord.CommandEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()
	result, err := m.CloseSession(ctx, CloseRequest{
		GuildID:     ev.GuildID,
		ChannelID:   ev.ChannelID,
		RequesterID: ev.UserID,
		Reason:      closeReasonManual,
	})
	if err != nil {
		slog.Error("close request failed", "error", err, "user_id", ev.UserID, "channel_id", ev.ChannelID)
		m.respond(ev, messageEphemeralCloseFailed)
		return
	}
	switch result.Status {
	case CloseStatusNotFound:
		m.respond(ev, messageEphemeralNoSession)
	case CloseStatusUnauthorized:
		m.respond(ev, messageEphemeralNotAllowed)
	case CloseStatusClosed:
		m.respond(ev, messageEphemeralClosed)
	}
}

func (m *Manager) respond(ev discord.CommandEvent, content string) {
	if ev.RespondEphemeral == nil {
		return
	}
	if err := ev.RespondEphemeral(content); err != nil {
		slog.Error("failed to respond to command", "error", err, "command", ev.CommandName, "user_id", ev.UserID)
	}
}

// RequestPairing runs the pairing transaction: toggle withdrawal for queued
// users, match against the queue head with bounded retries past unresolvable
// members, provision a private channel, and create the session.
func (m *Manager) RequestPairing(ctx context.Context, guildID, userID string) (PairingResult, error) {
	m.mu.Lock()
	if _, busy := m.pending[userID]; busy {
		m.mu.Unlock()
		return PairingResult{Status: PairingStatusAlreadyActive}, nil
	}
	if session := m.registry.FindByMember(userID); session != nil {
		m.mu.Unlock()
		return PairingResult{Status: PairingStatusAlreadyActive, Session: session}, nil
	}
	if m.queue.Contains(userID) {
		_, err := m.queue.Remove(ctx, userID)
		m.mu.Unlock()
		if err != nil {
			return PairingResult{}, err
		}
		return PairingResult{Status: PairingStatusWithdrawn}, nil
	}

	m.pending[userID] = struct{}{}
	partnerID, err := m.dequeueResolvablePartnerLocked(ctx, guildID)
	if err != nil {
		delete(m.pending, userID)
		m.mu.Unlock()
		return PairingResult{}, err
	}
	if partnerID == "" {
		err := m.queue.Enqueue(ctx, userID)
		delete(m.pending, userID)
		m.mu.Unlock()
		if err != nil {
			return PairingResult{}, err
		}
		return PairingResult{Status: PairingStatusQueued}, nil
	}
	// Both members stay reserved until the session is installed or the
	// partner is back at the queue head.
	m.mu.Unlock()

	channelID, err := m.provisionSessionChannel(ctx, guildID, userID, partnerID)
	if err != nil {
		m.mu.Lock()
		if pushErr := m.queue.PushHead(ctx, partnerID); pushErr != nil {
			slog.Error("failed to restore queue head after provisioning failure", "error", pushErr, "user_id", partnerID)
		}
		delete(m.pending, userID)
		delete(m.pending, partnerID)
		m.mu.Unlock()
		return PairingResult{}, fmt.Errorf("failed to provision session channel: %w", err)
	}

	// Member order is request order: the waiting participant asked first.
	m.mu.Lock()
	session, err := m.registry.Create(ctx, []string{partnerID, userID}, channelID, m.clock())
	if err == nil {
		delete(m.pending, userID)
		delete(m.pending, partnerID)
	}
	m.mu.Unlock()
	if err != nil {
		deleteCtx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
		if delErr := m.discord.DeleteChannel(deleteCtx, channelID); delErr != nil {
			slog.Error("failed to delete channel after aborted pairing", "error", delErr, "channel_id", channelID)
		}
		cancel()
		m.mu.Lock()
		if pushErr := m.queue.PushHead(ctx, partnerID); pushErr != nil {
			slog.Error("failed to restore queue head after aborted pairing", "error", pushErr, "user_id", partnerID)
		}
		delete(m.pending, userID)
		delete(m.pending, partnerID)
		m.mu.Unlock()
		return PairingResult{}, err
	}
	slog.Info("session created", "channel_id", channelID, "members", session.Members)

	if err := m.discord.SendChannelMessage(channelID, welcomeMessage(partnerID, userID)); err != nil {
		slog.Error("failed to send welcome message", "error", err, "channel_id", channelID)
	}
	return PairingResult{Status: PairingStatusPaired, Session: session}, nil
}

// dequeueResolvablePartnerLocked pops queue heads until one still resolves as
// a guild member. Unresolvable heads are discarded, not re-enqueued. Bounded
// by the queue length at entry. Returns "" when the queue is exhausted.
// The mutex is released around the member lookup; the popped head is held in
// pending over that window and stays reserved when returned to the caller.
func (m *Manager) dequeueResolvablePartnerLocked(ctx context.Context, guildID string) (string, error) {
	attempts := m.queue.Len()
	for i := 0; i < attempts; i++ {
		head, ok, err := m.queue.PopHead(ctx)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		m.pending[head] = struct{}{}
		m.mu.Unlock()
		exists, lookupErr := m.discord.GuildMemberExists(guildID, head)
		m.mu.Lock()
		if lookupErr != nil || !exists {
			delete(m.pending, head)
			slog.Warn("discarding unresolvable queued user", "user_id", head, "error", lookupErr)
			continue
		}
		return head, nil
	}
	return "", nil
}

func (m *Manager) provisionSessionChannel(ctx context.Context, guildID, requesterID, partnerID string) (string, error) {
	name := sessionChannelName(
		m.discord.MemberDisplayName(guildID, requesterID),
		m.discord.MemberDisplayName(guildID, partnerID))
	provisionCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()
	return m.discord.CreatePrivateTextChannel(provisionCtx, discord.PrivateChannelRequest{
		GuildID:               guildID,
		Name:                  name,
		CategoryHintChannelID: m.cfg.PairingChannelID,
		MemberIDs:             []string{requesterID, partnerID},
	})
}

// RecordActivity captures a session channel message for the transcript and
// bumps the session's activity timestamp. Returns false when the channel has
// no active session.
func (m *Manager) RecordActivity(ctx context.Context, channelID string, msg repository.Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.RecordActivity(ctx, channelID, msg)
}

func (m *Manager) HandleMessageCreate(ev discord.MessageEvent) {
	if ev.AuthorIsBot {
		return
	}
	// Welcome and inactivity notices must not count as session activity even
	// when the gateway omits the bot flag on our own messages.
	if m.botUserID != "" && ev.AuthorID == m.botUserID {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()
	captured, err := m.RecordActivity(ctx, ev.ChannelID, repository.Message{
		ID:         ev.MessageID,
		Timestamp:  ev.Timestamp,
		AuthorID:   ev.AuthorID,
		AuthorName: ev.AuthorName,
		Content:    ev.Content,
	})
	if err != nil {
		slog.Error("failed to record session activity", "error", err, "channel_id", ev.ChannelID)
		return
	}
	if captured {
		slog.Debug("captured session message", "channel_id", ev.ChannelID, "message_id", ev.MessageID)
	}
}

// CloseSession closes the session resolved by channel ID, or by the
// requester's membership when invoked outside the session channel. The
// requester must be a member or hold Manage Channels. Everything past
// transcript building is best-effort.
func (m *Manager) CloseSession(ctx context.Context, req CloseRequest) (CloseResult, error) {
	m.mu.Lock()
	session := m.registry.Get(req.ChannelID)
	if session == nil && req.RequesterID != "" {
		session = m.registry.FindByMember(req.RequesterID)
	}
	if session == nil {
		m.mu.Unlock()
		return CloseResult{Status: CloseStatusNotFound}, nil
	}
	channelID := session.ChannelID
	authorized := req.RequesterID == "" || slices.Contains(session.Members, req.RequesterID)
	m.mu.Unlock()

	if !authorized {
		elevated, err := m.discord.MemberHasManageChannels(req.ChannelID, req.RequesterID)
		if err != nil {
			slog.Warn("permission lookup failed; denying close", "error", err, "user_id", req.RequesterID)
		}
		if err != nil || !elevated {
			return CloseResult{Status: CloseStatusUnauthorized}, nil
		}
	}

	reason := req.Reason
	if reason == "" {
		reason = closeReasonManual
	}
	channelGone := !m.discord.ChannelExists(channelID)
	if !m.closeByChannel(ctx, channelID, reason, channelGone) {
		// Raced with the sweeper or another close request.
		return CloseResult{Status: CloseStatusNotFound}, nil
	}
	return CloseResult{Status: CloseStatusClosed}, nil
}

// CloseIdleSessions closes every active session idle for at least the
// configured threshold. Sessions are evaluated independently; one failure
// does not block the rest. Returns the number of sessions closed.
func (m *Manager) CloseIdleSessions(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	sessions := m.registry.ActiveSessions()
	m.mu.Unlock()

	threshold := m.cfg.AutoCloseThreshold()
	closed := 0
	for _, session := range sessions {
		idle := now.Sub(session.LastActivityAt)
		if idle < threshold {
			continue
		}
		channelGone := !m.discord.ChannelExists(session.ChannelID)
		reason := closeReasonInactivity
		if channelGone {
			reason = closeReasonOrphanedChannel
		} else if err := m.discord.SendChannelMessage(session.ChannelID, messageChannelInactivityNotice); err != nil {
			slog.Error("failed to send inactivity notice", "error", err, "channel_id", session.ChannelID)
		}
		slog.Info("auto-closing idle session", "channel_id", session.ChannelID, "idle_seconds", int64(idle.Seconds()), "channel_gone", channelGone)
		if m.closeByChannel(ctx, session.ChannelID, reason, channelGone) {
			closed++
		}
	}
	return closed
}

func (m *Manager) closeByChannel(ctx context.Context, channelID, reason string, channelGone bool) bool {
	m.mu.Lock()
	snapshot, ok, storeErr := m.registry.Close(ctx, channelID)
	m.mu.Unlock()
	if storeErr != nil {
		slog.Error("session removed from registry but store delete failed", "error", storeErr, "channel_id", channelID)
	}
	if !ok {
		return false
	}
	m.finalizeSession(ctx, snapshot, reason, m.clock(), channelGone)
	return true
}

// finalizeSession builds and delivers the transcript, then tears down the
// channel. All failures here are logged, never retried; the session is
// already gone from the registry and store.
func (m *Manager) finalizeSession(ctx context.Context, session repository.Session, reason string, closedAt time.Time, channelGone bool) {
	var late []discord.HistoryMessage
	if !channelGone {
		historyCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
		fetched, err := m.discord.FetchChannelHistory(historyCtx, session.ChannelID, lateHistoryLimit)
		cancel()
		if err != nil {
			slog.Warn("failed to fetch late channel history; using cached messages only", "error", err, "channel_id", session.ChannelID)
		} else {
			late = fetched
		}
	}

	memberNames := make([]string, 0, len(session.Members))
	for _, member := range session.Members {
		memberNames = append(memberNames, m.discord.MemberDisplayName(m.cfg.DiscordGuildID, member))
	}
	filename, body := buildTranscript(transcriptInput{
		Session:     session,
		ChannelName: m.discord.ChannelName(session.ChannelID),
		MemberNames: memberNames,
		ClosedAt:    closedAt,
		Reason:      reason,
		Late:        late,
	})

	m.deliverTranscript(ctx, session, reason, filename, body)

	webhookCtx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	if err := m.webhook.SendSessionLog(webhookCtx, webhook.SessionLogPayload{
		SchemaVersion: webhook.SessionLogSchemaVersion,
		ChannelID:     session.ChannelID,
		ChannelName:   m.discord.ChannelName(session.ChannelID),
		Members:       session.Members,
		CreatedAt:     session.CreatedAt.UTC().Format(time.RFC3339),
		ClosedAt:      closedAt.UTC().Format(time.RFC3339),
		Reason:        reason,
		MessageCount:  len(session.Messages),
		Transcript:    string(body),
	}); err != nil {
		slog.Error("failed to send session log webhook", "error", err, "channel_id", session.ChannelID)
	}
	cancel()

	if !channelGone {
		deleteCtx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
		if err := m.discord.DeleteChannel(deleteCtx, session.ChannelID); err != nil {
			slog.Error("failed to delete session channel", "error", err, "channel_id", session.ChannelID)
		}
		cancel()
	}
	slog.Info("session finalized", "channel_id", session.ChannelID, "reason", reason, "messages", len(session.Messages))
}

func (m *Manager) deliverTranscript(ctx context.Context, session repository.Session, reason, filename string, body []byte) {
	destination := m.cfg.TranscriptChannelID
	if destination == "" {
		destCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
		found, err := m.discord.FindOrCreateTextChannel(destCtx, m.cfg.DiscordGuildID, defaultLogChannelName)
		cancel()
		if err != nil {
			slog.Error("failed to resolve transcript destination; transcript dropped", "error", err, "channel_id", session.ChannelID)
			return
		}
		destination = found
	}
	mentions := make([]string, 0, len(session.Members))
	for _, member := range session.Members {
		mentions = append(mentions, "<@"+member+">")
	}
	header := fmt.Sprintf(transcriptHeaderFormat, strings.Join(mentions, ", "), session.ChannelID, reason)
	if err := m.discord.SendChannelMessageWithFile(discord.FileMessage{
		ChannelID: destination,
		Content:   header,
		Filename:  filename,
		FileBody:  body,
	}); err != nil {
		slog.Error("failed to deliver transcript", "error", err, "channel_id", session.ChannelID, "destination", destination)
	}
}

func sessionChannelName(requesterName, partnerName string) string {
	name := "study-" + sanitizeChannelToken(requesterName) + "-" + sanitizeChannelToken(partnerName)
	if len(name) > channelNameMaxLen {
		name = name[:channelNameMaxLen]
	}
	return name
}

func sanitizeChannelToken(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "partner"
	}
	return b.String()
}
