package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/goharguide/partnerbot/internal/discord"
)

const (
	fallbackCategoryName = "Matchmaking"
	historyPageSize      = 100
)

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(
		discordgo.IntentsGuilds |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsGuildMembers |
			discordgo.IntentMessageContent)
	s.State.TrackChannels = true
	s.State.TrackMembers = true
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) Run() error {
	select {}
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) RegisterCommandHandler(handler func(discordpkg.CommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := ""
		if ic.Member != nil && ic.Member.User != nil {
			userID = ic.Member.User.ID
		}
		if userID == "" && ic.User != nil {
			userID = ic.User.ID
		}
		if userID == "" {
			return
		}
		options := make(map[string]string, len(data.Options))
		for _, opt := range data.Options {
			if opt == nil || opt.Type != discordgo.ApplicationCommandOptionString {
				continue
			}
			options[opt.Name] = opt.StringValue()
		}
		slog.Info("command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", userID)
		handler(discordpkg.CommandEvent{
			GuildID:     ic.GuildID,
			ChannelID:   ic.ChannelID,
			CommandName: data.Name,
			UserID:      userID,
			Options:     options,
			RespondEphemeral: func(content string) error {
				return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{
						Content: content,
						Flags:   discordgo.MessageFlagsEphemeral,
					},
				})
			},
		})
	})
}

func (c *Client) RegisterMessageCreateHandler(handler func(discordpkg.MessageEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, mc *discordgo.MessageCreate) {
		if mc == nil || mc.Message == nil || mc.Author == nil {
			return
		}
		if mc.GuildID == "" || mc.ChannelID == "" {
			return
		}
		handler(discordpkg.MessageEvent{
			GuildID:     mc.GuildID,
			ChannelID:   mc.ChannelID,
			MessageID:   mc.ID,
			AuthorID:    mc.Author.ID,
			AuthorName:  messageAuthorName(mc.Message),
			AuthorIsBot: mc.Author.Bot,
			Content:     mc.Content,
			Timestamp:   mc.Timestamp,
		})
	})
}

func messageAuthorName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	return preferredDiscordName(m.Author.GlobalName, m.Author.Username, m.Author.ID)
}

func (c *Client) UpsertGuildCommands(guildID string, defs []discordpkg.CommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	existing, err := c.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.upsertGuildCommand(appID, guildID, def, existingByName); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertGuildCommand(appID, guildID string, def discordpkg.CommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	for _, opt := range def.Options {
		payload.Options = append(payload.Options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        opt.Name,
			Description: opt.Description,
			Required:    opt.Required,
		})
	}
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := c.session.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if cmd.Description == def.Description && len(cmd.Options) == len(payload.Options) {
		return nil
	}
	_, err := c.session.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

// CreatePrivateTextChannel creates a text channel visible only to the listed
// members and the bot: @everyone is denied view, each member is allowed view
// and send.
func (c *Client) CreatePrivateTextChannel(ctx context.Context, req discordpkg.PrivateChannelRequest) (string, error) {
	parentID := c.resolveParentCategory(ctx, req.GuildID, req.CategoryHintChannelID)

	overwrites := []*discordgo.PermissionOverwrite{
		{
			// The @everyone role ID equals the guild ID.
			ID:   req.GuildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
	}
	memberIDs := req.MemberIDs
	if c.botUserID != "" {
		memberIDs = append(append([]string{}, memberIDs...), c.botUserID)
	}
	for _, memberID := range memberIDs {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    memberID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		})
	}

	channel, err := c.session.GuildChannelCreateComplex(req.GuildID, discordgo.GuildChannelCreateData{
		Name:                 req.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             parentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

// resolveParentCategory prefers the category of the hint channel, then an
// existing fallback category, then creates the fallback. Returns "" when no
// category can be used; channel creation proceeds uncategorized.
func (c *Client) resolveParentCategory(ctx context.Context, guildID, hintChannelID string) string {
	if hintChannelID != "" {
		if channel := c.resolveChannel(hintChannelID); channel != nil && channel.ParentID != "" {
			return channel.ParentID
		}
	}
	if id := c.findChannelByName(guildID, fallbackCategoryName, discordgo.ChannelTypeGuildCategory); id != "" {
		return id
	}
	category, err := c.session.GuildChannelCreate(guildID, fallbackCategoryName, discordgo.ChannelTypeGuildCategory, discordgo.WithContext(ctx))
	if err != nil {
		slog.Warn("failed to create fallback category; channel will be uncategorized", "error", err, "guild_id", guildID)
		return ""
	}
	return category.ID
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := c.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	if isRESTNotFound(err) {
		return nil
	}
	return err
}

// ChannelExists reports whether the channel is still present. Transient
// lookup failures count as present so callers do not treat a live session
// channel as orphaned.
func (c *Client) ChannelExists(channelID string) bool {
	if c.session == nil {
		return false
	}
	if c.session.State != nil {
		if channel, err := c.session.State.Channel(channelID); err == nil && channel != nil {
			return true
		}
	}
	_, err := c.session.Channel(channelID)
	if err == nil {
		return true
	}
	if isRESTNotFound(err) {
		return false
	}
	slog.Warn("channel existence check failed; assuming channel exists", "error", err, "channel_id", channelID)
	return true
}

func (c *Client) ChannelName(channelID string) string {
	channel := c.resolveChannel(channelID)
	if channel == nil || channel.Name == "" {
		return channelID
	}
	return channel.Name
}

func (c *Client) FindOrCreateTextChannel(ctx context.Context, guildID, name string) (string, error) {
	if id := c.findChannelByName(guildID, name, discordgo.ChannelTypeGuildText); id != "" {
		return id, nil
	}
	channels, err := c.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err == nil {
		for _, channel := range channels {
			if channel != nil && channel.Type == discordgo.ChannelTypeGuildText && channel.Name == name {
				return channel.ID, nil
			}
		}
	}
	channel, err := c.session.GuildChannelCreate(guildID, name, discordgo.ChannelTypeGuildText, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

func (c *Client) findChannelByName(guildID, name string, channelType discordgo.ChannelType) string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	guild, err := c.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return ""
	}
	for _, channel := range guild.Channels {
		if channel != nil && channel.Type == channelType && channel.Name == name {
			return channel.ID
		}
	}
	return ""
}

func (c *Client) GuildMemberExists(guildID, userID string) (bool, error) {
	if c.session == nil {
		return false, fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil {
		member, err := c.session.State.Member(guildID, userID)
		if err == nil && member != nil {
			return true, nil
		}
	}
	_, err := c.session.GuildMember(guildID, userID)
	if err == nil {
		return true, nil
	}
	if isRESTNotFound(err) {
		return false, nil
	}
	return false, err
}

func (c *Client) MemberDisplayName(guildID, userID string) string {
	member := c.resolveGuildMember(guildID, userID)
	if member != nil {
		if member.Nick != "" {
			return member.Nick
		}
		if member.User != nil {
			return preferredDiscordName(member.User.GlobalName, member.User.Username, userID)
		}
	}
	u, err := c.session.User(userID)
	if err == nil && u != nil {
		return preferredDiscordName(u.GlobalName, u.Username, userID)
	}
	return userID
}

func (c *Client) MemberHasManageChannels(channelID, userID string) (bool, error) {
	perms, err := c.session.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false, err
	}
	return perms&discordgo.PermissionManageChannels != 0, nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content)
	return err
}

func (c *Client) SendChannelMessageWithFile(msg discordpkg.FileMessage) error {
	_, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: msg.Content,
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: "text/plain", Reader: bytes.NewReader(msg.FileBody)},
		},
	})
	return err
}

// FetchChannelHistory returns up to limit messages, oldest first. The REST
// API pages newest-first in batches of at most 100.
func (c *Client) FetchChannelHistory(ctx context.Context, channelID string, limit int) ([]discordpkg.HistoryMessage, error) {
	var collected []*discordgo.Message
	beforeID := ""
	for len(collected) < limit {
		pageSize := historyPageSize
		if remaining := limit - len(collected); remaining < pageSize {
			pageSize = remaining
		}
		page, err := c.session.ChannelMessages(channelID, pageSize, beforeID, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		collected = append(collected, page...)
		beforeID = page[len(page)-1].ID
		if len(page) < pageSize {
			break
		}
	}

	history := make([]discordpkg.HistoryMessage, 0, len(collected))
	for i := len(collected) - 1; i >= 0; i-- {
		m := collected[i]
		if m == nil || m.Author == nil {
			continue
		}
		if m.Author.Bot {
			continue
		}
		history = append(history, discordpkg.HistoryMessage{
			ID:         m.ID,
			Timestamp:  m.Timestamp,
			AuthorID:   m.Author.ID,
			AuthorName: messageAuthorName(m),
			Content:    m.Content,
		})
	}
	return history, nil
}

func (c *Client) resolveChannel(channelID string) *discordgo.Channel {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		channel, err := c.session.State.Channel(channelID)
		if err == nil && channel != nil && channel.Name != "" {
			return channel
		}
	}
	channel, err := c.session.Channel(channelID)
	if err != nil || channel == nil {
		return nil
	}
	return channel
}

func (c *Client) resolveGuildMember(guildID, userID string) *discordgo.Member {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		member, err := c.session.State.Member(guildID, userID)
		if err == nil && member != nil {
			return member
		}
	}
	member, err := c.session.GuildMember(guildID, userID)
	if err != nil {
		return nil
	}
	return member
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	if c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}

func preferredDiscordName(globalName, username, fallback string) string {
	if globalName != "" {
		return globalName
	}
	if username != "" {
		return username
	}
	return fallback
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}
