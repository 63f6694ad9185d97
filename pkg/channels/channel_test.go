package channels

import (
	"context"
	"testing"
	"time"

	"linkpeek/pkg/bus"
)

func TestBaseChannelAllowlist(t *testing.T) {
	t.Parallel()

	open := NewBaseChannel("test", bus.NewMessageBus(), nil)
	if !open.IsAllowed("anyone") {
		t.Fatalf("empty allowlist should admit everyone")
	}

	restricted := NewBaseChannel("test", bus.NewMessageBus(), []string{"alice", "bob"})
	if !restricted.IsAllowed("alice") {
		t.Fatalf("listed sender should be allowed")
	}
	if restricted.IsAllowed("mallory") {
		t.Fatalf("unlisted sender should be rejected")
	}
}

func TestBaseChannelDropsEmptyContent(t *testing.T) {
	t.Parallel()

	b := bus.NewMessageBus()
	c := NewBaseChannel("test", b, nil)

	c.HandleMessage("u1", "chat1", "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if msg, ok := b.ConsumeInbound(ctx); ok {
		t.Fatalf("empty message should not reach the bus, got %+v", msg)
	}
}

func TestBaseChannelPublishesInbound(t *testing.T) {
	t.Parallel()

	b := bus.NewMessageBus()
	c := NewBaseChannel("test", b, nil)

	c.HandleMessage("u1", "chat1", "hello", map[string]string{"message_id": "m1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatalf("expected inbound message")
	}
	if msg.Channel != "test" || msg.SenderID != "u1" || msg.ChatID != "chat1" || msg.Content != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Metadata["message_id"] != "m1" {
		t.Fatalf("metadata lost: %+v", msg.Metadata)
	}
}

func TestBaseChannelHealthCheck(t *testing.T) {
	t.Parallel()

	c := NewBaseChannel("test", bus.NewMessageBus(), nil)
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatalf("stopped channel should fail health check")
	}
	c.setRunning(true)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("running channel should pass health check: %v", err)
	}
}
