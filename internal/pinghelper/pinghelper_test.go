package pinghelper

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goharguide/partnerbot/internal/discord"
	"github.com/goharguide/partnerbot/internal/repository"
)

type fakePingRepo struct {
	mu       sync.Mutex
	subjects []repository.Subject
	updates  []string
}

func (f *fakePingRepo) ListSubjects(_ context.Context) ([]repository.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subjects, nil
}

func (f *fakePingRepo) UpdatePingUsedAt(_ context.Context, subjectID int64, pingValue string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, pingValue)
	return nil
}

type fakePingDiscord struct {
	discord.Client

	mu    sync.Mutex
	sends map[string][]string
}

func newFakePingDiscord() *fakePingDiscord {
	return &fakePingDiscord{sends: map[string][]string{}}
}

func (f *fakePingDiscord) SendChannelMessage(channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends[channelID] = append(f.sends[channelID], content)
	return nil
}

func mathSubject(rawAliases string, pings ...repository.Ping) repository.Subject {
	return repository.Subject{
		ID:              1,
		Name:            "Mathematics",
		ChannelID:       "math-channel",
		Message:         "A helper will be with you shortly.",
		Footer:          "Please describe your problem.",
		CooldownSeconds: 600,
		RawAliases:      json.RawMessage(rawAliases),
		Pings:           pings,
	}
}

func newTestHelper(t *testing.T, subjects ...repository.Subject) (*Helper, *fakePingRepo, *fakePingDiscord) {
	t.Helper()
	repo := &fakePingRepo{subjects: subjects}
	dc := newFakePingDiscord()
	h := NewHelper(repo, dc)
	if err := h.Reload(context.Background()); err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}
	return h, repo, dc
}

func pingEvent(subject string, respond func(string) error) discord.CommandEvent {
	return discord.CommandEvent{
		GuildID:          "guild-1",
		ChannelID:        "invoked-channel",
		CommandName:      commandPing,
		UserID:           "user-1",
		Options:          map[string]string{optionSubject: subject},
		RespondEphemeral: respond,
	}
}

func TestHandleCommand_ResolvesNestedAliases(t *testing.T) {
	subject := mathSubject(`[["algebra","alg"],["geometry","geo"]]`,
		repository.Ping{Value: "math-alg", Name: "Algebra", RoleID: "role-alg"},
		repository.Ping{Value: "math-geo", Name: "Geometry", RoleID: "role-geo"},
	)
	h, _, dc := newTestHelper(t, subject)

	var got string
	h.HandleCommand(pingEvent("geo", func(content string) error {
		got = content
		return nil
	}))
	if got != messageEphemeralPinged {
		t.Fatalf("unexpected response: %q", got)
	}
	sends := dc.sends["math-channel"]
	if len(sends) != 1 || !strings.Contains(sends[0], "<@&role-geo>") || !strings.Contains(sends[0], "Geometry Helper") {
		t.Fatalf("unexpected ping message: %v", sends)
	}
}

func TestHandleCommand_ResolvesParallelAliases(t *testing.T) {
	subject := mathSubject(`["alg","geo"]`,
		repository.Ping{Value: "math-alg", Name: "Algebra", RoleID: "role-alg"},
		repository.Ping{Value: "math-geo", Name: "Geometry", RoleID: "role-geo"},
	)
	h, _, dc := newTestHelper(t, subject)

	h.HandleCommand(pingEvent("alg", nil))
	sends := dc.sends["math-channel"]
	if len(sends) != 1 || !strings.Contains(sends[0], "<@&role-alg>") {
		t.Fatalf("unexpected ping message: %v", sends)
	}
}

func TestHandleCommand_ResolvesSinglePingAliases(t *testing.T) {
	subject := mathSubject(`["maths","calculus","numbers"]`,
		repository.Ping{Value: "math", Name: "Mathematics", RoleID: "role-math"},
	)
	h, _, dc := newTestHelper(t, subject)

	for _, token := range []string{"maths", "Calculus", " numbers "} {
		h.HandleCommand(pingEvent(token, nil))
	}
	sends := dc.sends["math-channel"]
	if len(sends) != 1 {
		t.Fatalf("expected one send then cooldown, got %d", len(sends))
	}
	if !strings.Contains(sends[0], "<@&role-math>") {
		t.Fatalf("unexpected ping message: %q", sends[0])
	}
}

func TestHandleCommand_UnknownSubject(t *testing.T) {
	subject := mathSubject(`null`, repository.Ping{Value: "math", Name: "Mathematics", RoleID: "role-math"})
	h, _, dc := newTestHelper(t, subject)

	var got string
	h.HandleCommand(pingEvent("chemistry", func(content string) error {
		got = content
		return nil
	}))
	if got != messageEphemeralUnknownSubject {
		t.Fatalf("unexpected response: %q", got)
	}
	if len(dc.sends) != 0 {
		t.Fatalf("expected no sends, got %v", dc.sends)
	}
}

func TestHandleCommand_CooldownBlocksThenAllows(t *testing.T) {
	subject := mathSubject(`null`, repository.Ping{Value: "math", Name: "Mathematics", RoleID: "role-math"})
	h, repo, dc := newTestHelper(t, subject)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	h.clock = func() time.Time { return now }

	var responses []string
	respond := func(content string) error {
		responses = append(responses, content)
		return nil
	}

	h.HandleCommand(pingEvent("math", respond))
	now = now.Add(5 * time.Minute)
	h.HandleCommand(pingEvent("math", respond))
	now = now.Add(6 * time.Minute)
	h.HandleCommand(pingEvent("math", respond))

	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(responses))
	}
	if responses[0] != messageEphemeralPinged {
		t.Fatalf("expected first ping to succeed, got %q", responses[0])
	}
	if !strings.Contains(responses[1], "cooling down") {
		t.Fatalf("expected cooldown response, got %q", responses[1])
	}
	if responses[2] != messageEphemeralPinged {
		t.Fatalf("expected ping after cooldown to succeed, got %q", responses[2])
	}
	if len(dc.sends["math-channel"]) != 2 {
		t.Fatalf("expected two helper pings, got %d", len(dc.sends["math-channel"]))
	}
	if len(repo.updates) != 2 {
		t.Fatalf("expected two persisted cooldowns, got %v", repo.updates)
	}
}

func TestHandleCommand_FallsBackToInvokingChannel(t *testing.T) {
	subject := mathSubject(`null`, repository.Ping{Value: "math", Name: "Mathematics", RoleID: "role-math"})
	subject.ChannelID = ""
	h, _, dc := newTestHelper(t, subject)

	h.HandleCommand(pingEvent("math", nil))
	if len(dc.sends["invoked-channel"]) != 1 {
		t.Fatalf("expected ping in invoking channel, got %v", dc.sends)
	}
}

func TestReload_SeedsCooldownsFromStore(t *testing.T) {
	lastUsed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	subject := mathSubject(`null`, repository.Ping{Value: "math", Name: "Mathematics", RoleID: "role-math", LastUsedAt: lastUsed})
	h, _, _ := newTestHelper(t, subject)

	h.clock = func() time.Time { return lastUsed.Add(time.Minute) }
	var got string
	h.HandleCommand(pingEvent("math", func(content string) error {
		got = content
		return nil
	}))
	if !strings.Contains(got, "cooling down") {
		t.Fatalf("expected persisted cooldown to apply after reload, got %q", got)
	}
}

func TestNormalizeToken(t *testing.T) {
	cases := map[string]string{
		"real analysis": "realanalysis",
		"Algebra-II":    "algebraii",
		"c++":           "c",
	}
	for in, want := range cases {
		if got := normalizeToken(strings.ToLower(in)); got != want {
			t.Errorf("normalizeToken(%q) = %q, want %q", in, got, want)
		}
	}
}
