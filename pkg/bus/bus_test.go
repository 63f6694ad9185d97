package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsumeInbound(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishInbound(InboundMessage{
		Channel:  "telegram",
		SenderID: "42",
		ChatID:   "42",
		Content:  "hello",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, ok := mb.ConsumeInbound(ctx)
	if !ok {
		t.Fatalf("expected inbound message")
	}
	if msg.Channel != "telegram" || msg.Content != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestPublishOutboundCarriesImagePart(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishOutbound(OutboundMessage{
		Channel:  "onebot",
		ChatID:   "1",
		Content:  "repo summary",
		ImageURL: "http://x/a.png",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, ok := mb.SubscribeOutbound(ctx)
	if !ok {
		t.Fatalf("expected outbound message")
	}
	if msg.ImageURL != "http://x/a.png" {
		t.Fatalf("image url mismatch: %q", msg.ImageURL)
	}
}

func TestConsumeInboundRespectsContext(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := mb.ConsumeInbound(ctx)
	if ok {
		t.Fatalf("expected no message on canceled context")
	}
}

func TestPublishAfterCloseDoesNotPanic(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	mb.Close()
	mb.Close() // idempotent

	mb.PublishInbound(InboundMessage{Channel: "qq", Content: "late"})
	mb.PublishOutbound(OutboundMessage{Channel: "qq", Content: "late"})
}
