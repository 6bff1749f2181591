package discord

import (
	"context"
	"time"
)

type FileMessage struct {
	ChannelID string
	Content   string
	Filename  string
	FileBody  []byte
}

type CommandOption struct {
	Name        string
	Description string
	Required    bool
}

type CommandDefinition struct {
	Name        string
	Description string
	Options     []CommandOption
}

type CommandEvent struct {
	GuildID          string
	ChannelID        string
	CommandName      string
	UserID           string
	Options          map[string]string
	RespondEphemeral func(content string) error
}

type MessageEvent struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	Content     string
	Timestamp   time.Time
}

type HistoryMessage struct {
	ID         string
	Timestamp  time.Time
	AuthorID   string
	AuthorName string
	Content    string
}

// PrivateChannelRequest describes a fresh text channel visible only to the
// listed members (and the bot itself); everyone else is denied.
type PrivateChannelRequest struct {
	GuildID string
	Name    string
	// CategoryHintChannelID points at an existing channel whose parent
	// category the new channel should inherit. When empty or unresolvable,
	// a fallback category is found or created.
	CategoryHintChannelID string
	MemberIDs             []string
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Run() error
	GetBotUserID() (string, error)
	RegisterCommandHandler(handler func(CommandEvent))
	RegisterMessageCreateHandler(handler func(MessageEvent))
	UpsertGuildCommands(guildID string, defs []CommandDefinition) error
	CreatePrivateTextChannel(ctx context.Context, req PrivateChannelRequest) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	ChannelExists(channelID string) bool
	ChannelName(channelID string) string
	FindOrCreateTextChannel(ctx context.Context, guildID, name string) (string, error)
	GuildMemberExists(guildID, userID string) (bool, error)
	MemberDisplayName(guildID, userID string) string
	MemberHasManageChannels(channelID, userID string) (bool, error)
	SendChannelMessage(channelID, content string) error
	SendChannelMessageWithFile(msg FileMessage) error
	FetchChannelHistory(ctx context.Context, channelID string, limit int) ([]HistoryMessage, error)
}
