package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoutil"

	"linkpeek/pkg/bus"
	"linkpeek/pkg/config"
	"linkpeek/pkg/logger"
)

const telegramPollingRestartDelay = 5 * time.Second

type TelegramChannel struct {
	*BaseChannel
	bot       *telego.Bot
	config    config.TelegramConfig
	updates   <-chan telego.Update
	runCancel cancelGuard
}

func NewTelegramChannel(cfg config.TelegramConfig, messageBus *bus.MessageBus) (*TelegramChannel, error) {
	bot, err := telego.NewBot(cfg.Token, telego.WithDefaultLogger(false, false))
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", messageBus, cfg.AllowFrom),
		bot:         bot,
		config:      cfg,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return nil
	}
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)")

	runCtx, cancel := context.WithCancel(ctx)
	c.runCancel.set(cancel)

	updates, err := c.bot.UpdatesViaLongPolling(runCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to start updates polling: %w", err)
	}
	c.updates = updates

	c.setRunning(true)

	botInfo, err := c.bot.GetMe(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.InfoCF("telegram", "Telegram bot connected", map[string]interface{}{
		"username": botInfo.Username,
	})

	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.WarnC("telegram", "Updates channel closed unexpectedly, attempting to restart polling...")
					c.setRunning(false)

					select {
					case <-runCtx.Done():
						return
					case <-time.After(telegramPollingRestartDelay):
					}

					newUpdates, err := c.bot.UpdatesViaLongPolling(runCtx, nil)
					if err != nil {
						logger.ErrorCF("telegram", "Failed to restart updates polling", map[string]interface{}{
							logger.FieldError: err.Error(),
						})
						continue
					}

					updates = newUpdates
					c.updates = newUpdates
					c.setRunning(true)
					logger.InfoC("telegram", "Updates polling restarted successfully")
					continue
				}
				if update.Message != nil {
					c.handleMessage(update.Message)
				}
			}
		}
	}()

	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	if !c.IsRunning() {
		return nil
	}
	logger.InfoC("telegram", "Stopping Telegram bot")
	c.setRunning(false)
	c.runCancel.cancelAndClear()

	// Long polling is stopped by canceling the context passed to
	// UpdatesViaLongPolling, no separate Stop call needed.

	return nil
}

func (c *TelegramChannel) handleMessage(message *telego.Message) {
	user := message.From
	if user == nil {
		return
	}
	senderID := fmt.Sprintf("%d", user.ID)
	chatID := fmt.Sprintf("%d", message.Chat.ID)

	content := message.Text
	if message.Caption != "" {
		if content != "" {
			content += "\n"
		}
		content += message.Caption
	}

	if content == "" {
		return
	}

	logger.InfoCF("telegram", "Telegram message received", map[string]interface{}{
		logger.FieldSenderID: senderID,
		logger.FieldPreview:  truncateString(content, 50),
	})

	if !c.IsAllowed(senderID) {
		logger.WarnCF("telegram", "Telegram message rejected by allowlist", map[string]interface{}{
			logger.FieldSenderID: senderID,
			logger.FieldChatID:   chatID,
		})
		return
	}

	metadata := map[string]string{
		"message_id": fmt.Sprintf("%d", message.MessageID),
		"username":   user.Username,
		"is_group":   fmt.Sprintf("%t", message.Chat.Type != telego.ChatTypePrivate),
	}

	c.HandleMessage(senderID, chatID, content, metadata)
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatIDInt, err := parseChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	chatID := telegoutil.ID(chatIDInt)

	if msg.ImageURL != "" {
		_, err := c.bot.SendPhoto(ctx, telegoutil.Photo(chatID, telegoutil.FileFromURL(msg.ImageURL)).
			WithCaption(msg.Content))
		if err == nil {
			return nil
		}
		logger.WarnCF("telegram", "Photo send failed, falling back to plain text", map[string]interface{}{
			logger.FieldChatID: msg.ChatID,
			logger.FieldError:  err.Error(),
		})
	}

	_, err = c.bot.SendMessage(ctx, telegoutil.Message(chatID, msg.Content))
	if err != nil {
		logger.ErrorCF("telegram", "Telegram send failed", map[string]interface{}{
			logger.FieldChatID: msg.ChatID,
			logger.FieldError:  err.Error(),
		})
	}
	return err
}

func parseChatID(chatIDStr string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(chatIDStr, "%d", &id)
	return id, err
}
