package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"linkpeek/pkg/bus"
	"linkpeek/pkg/config"
	"linkpeek/pkg/logger"
)

const oneBotDedupSize = 1024

// OneBotChannel speaks the OneBot v11 websocket protocol. Besides QQ-side
// bridges (NapCat, Lagrange and friends) it is the debug transport: any
// local bridge that emits OneBot message events can drive the bot.
type OneBotChannel struct {
	*BaseChannel
	config      config.OneBotConfig
	conn        *websocket.Conn
	runCancel   cancelGuard
	dedup       map[string]struct{}
	dedupRing   []string
	dedupIdx    int
	echoCounter int64
	mu          sync.Mutex
	writeMu     sync.Mutex
}

type oneBotRawEvent struct {
	PostType      string          `json:"post_type"`
	MessageType   string          `json:"message_type"`
	SubType       string          `json:"sub_type"`
	MessageID     json.RawMessage `json:"message_id"`
	UserID        json.RawMessage `json:"user_id"`
	GroupID       json.RawMessage `json:"group_id"`
	RawMessage    string          `json:"raw_message"`
	MetaEventType string          `json:"meta_event_type"`
	Echo          string          `json:"echo"`
}

type oneBotAPIRequest struct {
	Action string      `json:"action"`
	Params interface{} `json:"params"`
	Echo   string      `json:"echo,omitempty"`
}

type oneBotSegment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

func NewOneBotChannel(cfg config.OneBotConfig, messageBus *bus.MessageBus) (*OneBotChannel, error) {
	return &OneBotChannel{
		BaseChannel: NewBaseChannel("onebot", messageBus, cfg.AllowFrom),
		config:      cfg,
		dedup:       make(map[string]struct{}, oneBotDedupSize),
		dedupRing:   make([]string, oneBotDedupSize),
	}, nil
}

func (c *OneBotChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return nil
	}
	if c.config.WSURL == "" {
		return fmt.Errorf("OneBot ws_url not configured")
	}

	logger.InfoCF("onebot", "Starting OneBot channel", map[string]interface{}{
		"ws_url": c.config.WSURL,
	})

	runCtx, cancel := context.WithCancel(ctx)
	c.runCancel.set(cancel)

	if err := c.connect(); err != nil {
		return fmt.Errorf("failed to connect to OneBot endpoint: %w", err)
	}

	c.setRunning(true)
	go c.listen(runCtx)

	logger.InfoC("onebot", "OneBot channel started successfully")
	return nil
}

func (c *OneBotChannel) connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	var header http.Header
	if c.config.AccessToken != "" {
		header = http.Header{"Authorization": []string{"Bearer " + c.config.AccessToken}}
	}

	conn, _, err := dialer.Dial(c.config.WSURL, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	logger.InfoC("onebot", "WebSocket connected")
	return nil
}

func (c *OneBotChannel) Stop(ctx context.Context) error {
	if !c.IsRunning() {
		return nil
	}
	logger.InfoC("onebot", "Stopping OneBot channel")
	c.setRunning(false)
	c.runCancel.cancelAndClear()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			logger.WarnCF("onebot", "Error closing OneBot connection", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
		c.conn = nil
	}

	return nil
}

func (c *OneBotChannel) listen(ctx context.Context) {
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				if !sleepWithContext(ctx, backoff) {
					return
				}
				backoff = nextBackoff(backoff, maxBackoff)
				if err := c.connect(); err != nil {
					logger.WarnCF("onebot", "Reconnect failed", map[string]interface{}{
						logger.FieldError: err.Error(),
					})
				}
				continue
			}

			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.WarnCF("onebot", "WebSocket read error, reconnecting", map[string]interface{}{
					logger.FieldError: err.Error(),
				})
				c.mu.Lock()
				if c.conn != nil {
					c.conn.Close()
					c.conn = nil
				}
				c.mu.Unlock()
				continue
			}
			backoff = 200 * time.Millisecond

			var raw oneBotRawEvent
			if err := json.Unmarshal(message, &raw); err != nil {
				logger.WarnCF("onebot", "Failed to unmarshal raw event", map[string]interface{}{
					logger.FieldError: err.Error(),
				})
				continue
			}

			c.handleRawEvent(&raw)
		}
	}
}

func (c *OneBotChannel) handleRawEvent(raw *oneBotRawEvent) {
	switch raw.PostType {
	case "message":
		c.handleMessageEvent(raw)
	case "meta_event":
		if raw.MetaEventType == "lifecycle" {
			logger.InfoCF("onebot", "Lifecycle event", map[string]interface{}{
				"sub_type": raw.SubType,
			})
		} else {
			logger.DebugC("onebot", "Heartbeat received")
		}
	case "":
		// API responses carry an echo and no post_type; we fire and forget
		// sends, so nothing waits on these.
		logger.DebugCF("onebot", "API response received", map[string]interface{}{
			"echo": raw.Echo,
		})
	default:
		logger.DebugCF("onebot", "Ignoring post_type", map[string]interface{}{
			"post_type": raw.PostType,
		})
	}
}

func (c *OneBotChannel) handleMessageEvent(raw *oneBotRawEvent) {
	messageID := parseJSONString(raw.MessageID)
	if c.isDuplicate(messageID) {
		return
	}

	userID, err := parseJSONInt64(raw.UserID)
	if err != nil || userID == 0 {
		logger.WarnC("onebot", "Received message with no sender ID")
		return
	}
	senderID := strconv.FormatInt(userID, 10)

	content := strings.TrimSpace(raw.RawMessage)
	if content == "" {
		return
	}

	if !c.IsAllowed(senderID) {
		logger.DebugCF("onebot", "Message ignored (sender not allowed)", map[string]interface{}{
			logger.FieldSenderID: senderID,
		})
		return
	}

	var chatID string
	switch raw.MessageType {
	case "private":
		chatID = "private:" + senderID
	case "group":
		groupID, _ := parseJSONInt64(raw.GroupID)
		if groupID == 0 {
			logger.WarnC("onebot", "Group message without group_id, dropping")
			return
		}
		chatID = "group:" + strconv.FormatInt(groupID, 10)
	default:
		logger.DebugCF("onebot", "Unknown message type", map[string]interface{}{
			"type": raw.MessageType,
		})
		return
	}

	logger.InfoCF("onebot", "OneBot message received", map[string]interface{}{
		logger.FieldSenderID: senderID,
		logger.FieldChatID:   chatID,
		logger.FieldPreview:  truncateString(content, 50),
	})

	metadata := map[string]string{
		"message_id": messageID,
	}

	c.HandleMessage(senderID, chatID, content, metadata)
}

func (c *OneBotChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("OneBot channel not running")
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("OneBot WebSocket not connected")
	}

	action, params, err := c.buildSendRequest(msg)
	if err != nil {
		return err
	}

	req := oneBotAPIRequest{
		Action: action,
		Params: params,
		Echo:   c.nextEcho("send"),
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal OneBot request: %w", err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()

	if err != nil {
		logger.ErrorCF("onebot", "Failed to send message", map[string]interface{}{
			logger.FieldChatID: msg.ChatID,
			logger.FieldError:  err.Error(),
		})
		return err
	}

	return nil
}

func (c *OneBotChannel) buildSendRequest(msg bus.OutboundMessage) (string, interface{}, error) {
	segments := []oneBotSegment{
		{Type: "text", Data: map[string]string{"text": msg.Content}},
	}
	if msg.ImageURL != "" {
		segments = append(segments, oneBotSegment{
			Type: "image",
			Data: map[string]string{"file": msg.ImageURL},
		})
	}

	if rest, ok := strings.CutPrefix(msg.ChatID, "group:"); ok {
		groupID, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid group ID in chatID: %s", msg.ChatID)
		}
		return "send_group_msg", map[string]interface{}{
			"group_id": groupID,
			"message":  segments,
		}, nil
	}

	rest := strings.TrimPrefix(msg.ChatID, "private:")
	userID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid chatID for OneBot: %s", msg.ChatID)
	}
	return "send_private_msg", map[string]interface{}{
		"user_id": userID,
		"message": segments,
	}, nil
}

func (c *OneBotChannel) nextEcho(prefix string) string {
	c.writeMu.Lock()
	c.echoCounter++
	echo := fmt.Sprintf("%s_%d", prefix, c.echoCounter)
	c.writeMu.Unlock()
	return echo
}

// isDuplicate keeps a fixed-size ring of seen message IDs; bridges may
// redeliver events after a reconnect.
func (c *OneBotChannel) isDuplicate(messageID string) bool {
	if messageID == "" || messageID == "0" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.dedup[messageID]; exists {
		return true
	}

	if old := c.dedupRing[c.dedupIdx]; old != "" {
		delete(c.dedup, old)
	}
	c.dedupRing[c.dedupIdx] = messageID
	c.dedup[messageID] = struct{}{}
	c.dedupIdx = (c.dedupIdx + 1) % len(c.dedupRing)

	return false
}

func parseJSONInt64(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	return 0, fmt.Errorf("cannot parse as int64: %s", string(raw))
}

func parseJSONString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
