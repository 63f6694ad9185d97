package channels

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tencent-connect/botgo"
	"github.com/tencent-connect/botgo/dto"
	"github.com/tencent-connect/botgo/event"
	"github.com/tencent-connect/botgo/openapi"
	"github.com/tencent-connect/botgo/token"
	"golang.org/x/oauth2"

	"linkpeek/pkg/bus"
	"linkpeek/pkg/config"
	"linkpeek/pkg/logger"
)

type QQChannel struct {
	*BaseChannel
	config         config.QQConfig
	api            openapi.OpenAPI
	tokenSource    oauth2.TokenSource
	runCancel      cancelGuard
	sessionManager botgo.SessionManager
	processedIDs   map[string]bool
	groupChats     map[string]bool
	mu             sync.RWMutex
}

func NewQQChannel(cfg config.QQConfig, messageBus *bus.MessageBus) (*QQChannel, error) {
	return &QQChannel{
		BaseChannel:  NewBaseChannel("qq", messageBus, cfg.AllowFrom),
		config:       cfg,
		processedIDs: make(map[string]bool),
		groupChats:   make(map[string]bool),
	}, nil
}

func (c *QQChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return nil
	}
	if c.config.AppID == "" || c.config.AppSecret == "" {
		return fmt.Errorf("QQ app_id and app_secret not configured")
	}

	logger.InfoC("qq", "Starting QQ bot (WebSocket mode)")

	credentials := &token.QQBotCredentials{
		AppID:     c.config.AppID,
		AppSecret: c.config.AppSecret,
	}
	c.tokenSource = token.NewQQBotTokenSource(credentials)

	runCtx, cancel := context.WithCancel(ctx)
	c.runCancel.set(cancel)

	if err := token.StartRefreshAccessToken(runCtx, c.tokenSource); err != nil {
		return fmt.Errorf("failed to start token refresh: %w", err)
	}

	c.api = botgo.NewOpenAPI(c.config.AppID, c.tokenSource).WithTimeout(5 * time.Second)

	intent := event.RegisterHandlers(
		c.handleC2CMessage(),
		c.handleGroupATMessage(),
	)

	wsInfo, err := c.api.WS(runCtx, nil, "")
	if err != nil {
		return fmt.Errorf("failed to get websocket info: %w", err)
	}

	logger.InfoCF("qq", "Got WebSocket info", map[string]interface{}{
		"shards": wsInfo.Shards,
	})

	c.sessionManager = botgo.NewSessionManager()

	runChannelTask("qq", "websocket session", func() error {
		return c.sessionManager.Start(wsInfo, c.tokenSource, &intent)
	}, func(_ error) {
		c.setRunning(false)
	})

	c.setRunning(true)
	logger.InfoC("qq", "QQ bot started successfully")

	return nil
}

func (c *QQChannel) Stop(ctx context.Context) error {
	if !c.IsRunning() {
		return nil
	}
	logger.InfoC("qq", "Stopping QQ bot")
	c.setRunning(false)

	c.runCancel.cancelAndClear()
	return nil
}

func (c *QQChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("QQ bot not running")
	}

	// QQ rich media upload needs a separate exchange, so the image rides
	// along as a plain URL line.
	content := msg.Content
	if msg.ImageURL != "" {
		content += "\n" + msg.ImageURL
	}

	msgToCreate := &dto.MessageToCreate{
		Content: content,
	}

	var err error
	if c.isGroupChat(msg.ChatID) {
		_, err = c.api.PostGroupMessage(ctx, msg.ChatID, msgToCreate)
	} else {
		_, err = c.api.PostC2CMessage(ctx, msg.ChatID, msgToCreate)
	}
	if err != nil {
		logger.ErrorCF("qq", "Failed to send message", map[string]interface{}{
			logger.FieldChatID: msg.ChatID,
			logger.FieldError:  err.Error(),
		})
		return err
	}

	return nil
}

// handleC2CMessage handles QQ private messages
func (c *QQChannel) handleC2CMessage() event.C2CMessageEventHandler {
	return func(event *dto.WSPayload, data *dto.WSC2CMessageData) error {
		if c.isDuplicate(data.ID) {
			return nil
		}

		var senderID string
		if data.Author != nil && data.Author.ID != "" {
			senderID = data.Author.ID
		} else {
			logger.WarnC("qq", "Received message with no sender ID")
			return nil
		}

		content := data.Content
		if content == "" {
			logger.DebugC("qq", "Received empty message, ignoring")
			return nil
		}

		if !c.IsAllowed(senderID) {
			logger.DebugCF("qq", "Message ignored (sender not allowed)", map[string]interface{}{
				logger.FieldSenderID: senderID,
			})
			return nil
		}

		logger.InfoCF("qq", "Received C2C message", map[string]interface{}{
			logger.FieldSenderID:             senderID,
			logger.FieldMessageContentLength: len(content),
		})

		metadata := map[string]string{
			"message_id": data.ID,
		}

		c.HandleMessage(senderID, senderID, content, metadata)

		return nil
	}
}

// handleGroupATMessage handles group @ messages
func (c *QQChannel) handleGroupATMessage() event.GroupATMessageEventHandler {
	return func(event *dto.WSPayload, data *dto.WSGroupATMessageData) error {
		if c.isDuplicate(data.ID) {
			return nil
		}

		var senderID string
		if data.Author != nil && data.Author.ID != "" {
			senderID = data.Author.ID
		} else {
			logger.WarnC("qq", "Received group message with no sender ID")
			return nil
		}

		content := data.Content
		if content == "" {
			logger.DebugC("qq", "Received empty group message, ignoring")
			return nil
		}

		if !c.IsAllowed(senderID) {
			logger.DebugCF("qq", "Group message ignored (sender not allowed)", map[string]interface{}{
				logger.FieldSenderID: senderID,
			})
			return nil
		}

		logger.InfoCF("qq", "Received group AT message", map[string]interface{}{
			logger.FieldSenderID:             senderID,
			"group_id":                       data.GroupID,
			logger.FieldMessageContentLength: len(content),
		})

		// Remember group chats so replies route through the group endpoint.
		c.mu.Lock()
		c.groupChats[data.GroupID] = true
		c.mu.Unlock()

		metadata := map[string]string{
			"message_id": data.ID,
			"group_id":   data.GroupID,
		}

		c.HandleMessage(senderID, data.GroupID, content, metadata)

		return nil
	}
}

func (c *QQChannel) isGroupChat(chatID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.groupChats[chatID]
}

// isDuplicate checks whether a message is duplicated
func (c *QQChannel) isDuplicate(messageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processedIDs[messageID] {
		return true
	}

	c.processedIDs[messageID] = true

	// Simple cleanup: limit map size
	if len(c.processedIDs) > 10000 {
		count := 0
		for id := range c.processedIDs {
			if count >= 5000 {
				break
			}
			delete(c.processedIDs, id)
			count++
		}
	}

	return false
}
