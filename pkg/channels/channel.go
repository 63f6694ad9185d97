package channels

import (
	"context"
	"fmt"
	"sync"

	"linkpeek/pkg/bus"
	"linkpeek/pkg/logger"
)

// Channel is a connected chat platform: it feeds inbound messages onto the
// bus and delivers outbound replies back to the originating chat.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	HealthCheck(ctx context.Context) error
	IsRunning() bool
}

// BaseChannel carries the state every channel shares: name, bus handle,
// allowlist and running flag.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom []string
	running   bool
	mu        sync.RWMutex
}

func NewBaseChannel(name string, messageBus *bus.MessageBus, allowFrom []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       messageBus,
		allowFrom: allowFrom,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *BaseChannel) setRunning(running bool) {
	c.mu.Lock()
	c.running = running
	c.mu.Unlock()
}

// IsAllowed reports whether the sender passes the allowlist. An empty
// allowlist admits everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowFrom) == 0 {
		return true
	}
	for _, allowed := range c.allowFrom {
		if allowed == senderID {
			return true
		}
	}
	return false
}

// HandleMessage publishes an inbound message onto the bus. Empty content is
// dropped here so the dispatch loop only ever sees scannable text.
func (c *BaseChannel) HandleMessage(senderID, chatID, content string, metadata map[string]string) {
	if content == "" {
		logger.DebugCF(c.name, "Dropping empty message", map[string]interface{}{
			logger.FieldSenderID: senderID,
		})
		return
	}

	c.bus.PublishInbound(bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Metadata: metadata,
	})
}

func (c *BaseChannel) HealthCheck(ctx context.Context) error {
	if !c.IsRunning() {
		return fmt.Errorf("channel %s not running", c.name)
	}
	return nil
}
