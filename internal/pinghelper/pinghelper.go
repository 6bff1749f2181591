package pinghelper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goharguide/partnerbot/internal/discord"
	"github.com/goharguide/partnerbot/internal/repository"
)

const (
	commandPing            = "ping"
	commandPingDescription = "Ping the helper role for a subject."
	optionSubject          = "subject"

	defaultCooldownSeconds = 600
	lookupTimeout          = 10 * time.Second

	messageEphemeralUnknownSubject = ":warning: **Unknown subject. Check the subject name or its aliases.**"
	messageEphemeralPinged         = ":white_check_mark: **Helpers have been pinged.**"
	messageEphemeralFailed         = ":warning: **Pinging helpers failed. Please try again in a moment.**"
)

// Helper resolves /ping invocations against the subject/ping configuration.
// The alias table is normalized once at load; per-ping cooldowns are tracked
// in memory and persisted through the repository.
type Helper struct {
	repo    repository.PingConfigRepository
	discord discord.Client

	mu         sync.Mutex
	table      map[string]lookupEntry
	lastUsedAt map[string]time.Time

	clock func() time.Time
}

func NewHelper(repo repository.PingConfigRepository, dc discord.Client) *Helper {
	return &Helper{
		repo:       repo,
		discord:    dc,
		table:      make(map[string]lookupEntry),
		lastUsedAt: make(map[string]time.Time),
		clock:      time.Now,
	}
}

func CommandDefinitions() []discord.CommandDefinition {
	return []discord.CommandDefinition{
		{
			Name:        commandPing,
			Description: commandPingDescription,
			Options: []discord.CommandOption{
				{Name: optionSubject, Description: "Subject name, ping value or alias", Required: true},
			},
		},
	}
}

// Reload rebuilds the normalized lookup table from the repository.
func (h *Helper) Reload(ctx context.Context) error {
	subjects, err := h.repo.ListSubjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subjects: %w", err)
	}
	table := buildLookupTable(subjects)
	lastUsed := make(map[string]time.Time)
	for _, subject := range subjects {
		for _, ping := range subject.Pings {
			lastUsed[cooldownKey(subject.ID, ping.Value)] = ping.LastUsedAt
		}
	}
	h.mu.Lock()
	h.table = table
	h.lastUsedAt = lastUsed
	h.mu.Unlock()
	slog.Info("ping lookup table loaded", "subjects", len(subjects), "tokens", len(table))
	return nil
}

func (h *Helper) HandleCommand(ev discord.CommandEvent) {
	if ev.CommandName != commandPing {
		return
	}
	token := ev.Options[optionSubject]
	entry, ok := h.lookup(token)
	if !ok {
		h.respond(ev, messageEphemeralUnknownSubject)
		return
	}
	ping := entry.Subject.Pings[entry.PingIndex]
	now := h.clock()

	if remaining, cooling := h.cooldownRemaining(entry.Subject, ping, now); cooling {
		h.respond(ev, cooldownMessage(now, remaining))
		return
	}

	channelID := entry.Subject.ChannelID
	if channelID == "" {
		channelID = ev.ChannelID
	}
	if err := h.discord.SendChannelMessage(channelID, pingMessage(entry.Subject, ping)); err != nil {
		slog.Error("failed to send helper ping", "error", err, "subject", entry.Subject.Name, "channel_id", channelID)
		h.respond(ev, messageEphemeralFailed)
		return
	}
	h.markUsed(entry.Subject, ping, now)
	h.respond(ev, messageEphemeralPinged)
}

func (h *Helper) lookup(token string) (lookupEntry, bool) {
	key := strings.ToLower(strings.TrimSpace(token))
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry, ok := h.table[key]; ok {
		return entry, true
	}
	entry, ok := h.table[normalizeToken(key)]
	return entry, ok
}

func (h *Helper) cooldownRemaining(subject repository.Subject, ping repository.Ping, now time.Time) (time.Duration, bool) {
	cooldown := time.Duration(subject.CooldownSeconds) * time.Second
	if cooldown <= 0 {
		cooldown = defaultCooldownSeconds * time.Second
	}
	h.mu.Lock()
	last := h.lastUsedAt[cooldownKey(subject.ID, ping.Value)]
	h.mu.Unlock()
	elapsed := now.Sub(last)
	if elapsed >= cooldown {
		return 0, false
	}
	return cooldown - elapsed, true
}

func (h *Helper) markUsed(subject repository.Subject, ping repository.Ping, now time.Time) {
	h.mu.Lock()
	h.lastUsedAt[cooldownKey(subject.ID, ping.Value)] = now
	h.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	if err := h.repo.UpdatePingUsedAt(ctx, subject.ID, ping.Value, now); err != nil {
		slog.Error("failed to persist ping cooldown", "error", err, "subject", subject.Name, "ping", ping.Value)
	}
}

func (h *Helper) respond(ev discord.CommandEvent, content string) {
	if ev.RespondEphemeral == nil {
		return
	}
	if err := ev.RespondEphemeral(content); err != nil {
		slog.Error("failed to respond to ping command", "error", err, "user_id", ev.UserID)
	}
}

func cooldownKey(subjectID int64, pingValue string) string {
	return fmt.Sprintf("%d:%s", subjectID, pingValue)
}

func cooldownMessage(now time.Time, remaining time.Duration) string {
	end := now.Add(remaining).Unix()
	return fmt.Sprintf(":hourglass: **This helper ping is cooling down.** Available again <t:%d:R>.", end)
}

func pingMessage(subject repository.Subject, ping repository.Ping) string {
	content := fmt.Sprintf("<@&%s> %s Helper", ping.RoleID, ping.Name)
	if subject.Message != "" {
		content += "\n" + subject.Message
	}
	if subject.Footer != "" {
		content += "\n-# " + subject.Footer
	}
	return content
}
