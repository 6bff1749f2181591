package partner

import (
	"strings"
	"testing"
	"time"

	"github.com/goharguide/partnerbot/internal/discord"
	"github.com/goharguide/partnerbot/internal/repository"
)

func TestBuildTranscript_HeaderAndBody(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	closed := created.Add(30 * time.Minute)
	filename, body := buildTranscript(transcriptInput{
		Session: repository.Session{
			ChannelID: "chan-1",
			Members:   []string{"user-a", "user-b"},
			CreatedAt: created,
			Messages: []repository.Message{
				{ID: "m2", Timestamp: created.Add(2 * time.Minute), AuthorName: "Bea", Content: "hi back"},
				{ID: "m1", Timestamp: created.Add(1 * time.Minute), AuthorName: "Al", Content: "hi"},
			},
		},
		ChannelName: "study-al-bea",
		MemberNames: []string{"Al", "Bea"},
		ClosedAt:    closed,
		Reason:      "manual",
	})

	if filename != "session-chan-1-20260801T100000Z.log" {
		t.Fatalf("unexpected filename: %s", filename)
	}
	text := string(body)
	for _, want := range []string{
		"----- PARTNER CHANNEL LOG -----",
		"Channel ID: chan-1",
		"Channel Name: study-al-bea",
		"Created At: 2026-08-01T10:00:00Z",
		"Closed At: 2026-08-01T10:30:00Z",
		"Closure Reason: manual",
		"Members: Al, Bea",
		"[2026-08-01T10:01:00Z] Al: hi",
		"[2026-08-01T10:02:00Z] Bea: hi back",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("transcript missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "Al: hi") > strings.Index(text, "Bea: hi back") {
		t.Fatalf("messages not ordered oldest-first:\n%s", text)
	}
}

func TestMergeMessages_DeduplicatesAndSorts(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	cached := []repository.Message{
		{ID: "m2", Timestamp: base.Add(2 * time.Second), Content: "two"},
	}
	late := []discord.HistoryMessage{
		{ID: "m1", Timestamp: base.Add(1 * time.Second), Content: "one"},
		{ID: "m2", Timestamp: base.Add(2 * time.Second), Content: "two duplicate"},
		{ID: "m3", Timestamp: base.Add(3 * time.Second), Content: "three"},
	}

	merged := mergeMessages(cached, late)
	if len(merged) != 3 {
		t.Fatalf("expected 3 merged messages, got %d", len(merged))
	}
	for i, want := range []string{"one", "two", "three"} {
		if merged[i].Content != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, merged[i].Content)
		}
	}
}

func TestMergeMessages_EmptyCacheUsesLateHistory(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	late := []discord.HistoryMessage{
		{ID: "m1", Timestamp: base, AuthorName: "Al", Content: "only line"},
	}
	merged := mergeMessages(nil, late)
	if len(merged) != 1 || merged[0].Content != "only line" || merged[0].AuthorName != "Al" {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
}
