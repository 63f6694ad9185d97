package channels

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"linkpeek/pkg/bus"
	"linkpeek/pkg/config"
	"linkpeek/pkg/logger"
)

type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	config  config.DiscordConfig
}

func NewDiscordChannel(cfg config.DiscordConfig, messageBus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	c := &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", messageBus, cfg.AllowFrom),
		session:     session,
		config:      cfg,
	}

	session.AddHandler(c.onMessageCreate)

	return c, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return nil
	}
	logger.InfoC("discord", "Starting Discord bot")

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	c.setRunning(true)
	logger.InfoCF("discord", "Discord bot connected", map[string]interface{}{
		"username": c.session.State.User.Username,
	})

	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	if !c.IsRunning() {
		return nil
	}
	logger.InfoC("discord", "Stopping Discord bot")
	c.setRunning(false)

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore the bot's own messages and other bots.
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	content := m.Content
	if content == "" {
		return
	}

	logger.InfoCF("discord", "Discord message received", map[string]interface{}{
		logger.FieldSenderID: m.Author.ID,
		logger.FieldPreview:  truncateString(content, 50),
	})

	if !c.IsAllowed(m.Author.ID) {
		logger.WarnCF("discord", "Discord message rejected by allowlist", map[string]interface{}{
			logger.FieldSenderID: m.Author.ID,
			logger.FieldChatID:   m.ChannelID,
		})
		return
	}

	metadata := map[string]string{
		"message_id": m.ID,
		"username":   m.Author.Username,
		"guild_id":   m.GuildID,
	}

	c.HandleMessage(m.Author.ID, m.ChannelID, content, metadata)
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}

	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.ImageURL != "" {
		send.Embed = &discordgo.MessageEmbed{
			Image: &discordgo.MessageEmbedImage{URL: msg.ImageURL},
		}
	}

	_, err := c.session.ChannelMessageSendComplex(msg.ChatID, send, discordgo.WithContext(ctx))
	if err != nil {
		logger.ErrorCF("discord", "Discord send failed", map[string]interface{}{
			logger.FieldChatID: msg.ChatID,
			logger.FieldError:  err.Error(),
		})
	}
	return err
}

func (c *DiscordChannel) HealthCheck(ctx context.Context) error {
	if !c.IsRunning() {
		return fmt.Errorf("channel discord not running")
	}
	if c.session.State == nil || c.session.State.User == nil {
		return fmt.Errorf("discord session has no authenticated user")
	}
	return nil
}
