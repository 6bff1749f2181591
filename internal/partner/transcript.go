package partner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goharguide/partnerbot/internal/discord"
	"github.com/goharguide/partnerbot/internal/repository"
)

const transcriptTimeLayout = time.RFC3339

type transcriptInput struct {
	Session     repository.Session
	ChannelName string
	MemberNames []string
	ClosedAt    time.Time
	Reason      string
	// Late holds host-platform history fetched at closure time that may not
	// have been captured; it is merged by message ID, oldest-first.
	Late []discord.HistoryMessage
}

func buildTranscript(in transcriptInput) (string, []byte) {
	lines := []string{
		"----- PARTNER CHANNEL LOG -----",
		"",
		fmt.Sprintf("Channel ID: %s", in.Session.ChannelID),
		fmt.Sprintf("Channel Name: %s", in.ChannelName),
		fmt.Sprintf("Created At: %s", in.Session.CreatedAt.UTC().Format(transcriptTimeLayout)),
		fmt.Sprintf("Closed At: %s", in.ClosedAt.UTC().Format(transcriptTimeLayout)),
		fmt.Sprintf("Closure Reason: %s", in.Reason),
		fmt.Sprintf("Members: %s", strings.Join(in.MemberNames, ", ")),
		"",
	}
	for _, msg := range mergeMessages(in.Session.Messages, in.Late) {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			msg.Timestamp.UTC().Format(transcriptTimeLayout), msg.AuthorName, msg.Content))
	}

	filename := fmt.Sprintf("session-%s-%s.log",
		in.Session.ChannelID, in.Session.CreatedAt.UTC().Format("20060102T150405Z"))
	return filename, []byte(strings.Join(lines, "\n"))
}

// mergeMessages combines cached messages with late-fetched history,
// deduplicated by message ID and ordered oldest-first. Capture order wins for
// equal timestamps.
func mergeMessages(cached []repository.Message, late []discord.HistoryMessage) []repository.Message {
	seen := make(map[string]struct{}, len(cached))
	merged := make([]repository.Message, 0, len(cached)+len(late))
	for _, msg := range cached {
		if msg.ID != "" {
			seen[msg.ID] = struct{}{}
		}
		merged = append(merged, msg)
	}
	for _, msg := range late {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		merged = append(merged, repository.Message{
			ID:         msg.ID,
			Timestamp:  msg.Timestamp,
			AuthorID:   msg.AuthorID,
			AuthorName: msg.AuthorName,
			Content:    msg.Content,
		})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}
