package channels

import (
	"fmt"
	"testing"

	"linkpeek/pkg/bus"
	"linkpeek/pkg/config"
)

func newTestOneBotChannel(t *testing.T) *OneBotChannel {
	t.Helper()
	c, err := NewOneBotChannel(config.OneBotConfig{WSURL: "ws://localhost:3001"}, bus.NewMessageBus())
	if err != nil {
		t.Fatalf("NewOneBotChannel: %v", err)
	}
	return c
}

func TestOneBotBuildSendRequestRouting(t *testing.T) {
	t.Parallel()

	c := newTestOneBotChannel(t)

	action, params, err := c.buildSendRequest(bus.OutboundMessage{ChatID: "group:12345", Content: "hi"})
	if err != nil {
		t.Fatalf("buildSendRequest: %v", err)
	}
	if action != "send_group_msg" {
		t.Fatalf("expected send_group_msg, got %s", action)
	}
	if params.(map[string]interface{})["group_id"].(int64) != 12345 {
		t.Fatalf("unexpected group params: %v", params)
	}

	action, _, err = c.buildSendRequest(bus.OutboundMessage{ChatID: "private:678", Content: "hi"})
	if err != nil {
		t.Fatalf("buildSendRequest: %v", err)
	}
	if action != "send_private_msg" {
		t.Fatalf("expected send_private_msg, got %s", action)
	}

	if _, _, err := c.buildSendRequest(bus.OutboundMessage{ChatID: "group:abc"}); err == nil {
		t.Fatalf("expected error for non-numeric group ID")
	}
}

func TestOneBotSendRequestCarriesImageSegment(t *testing.T) {
	t.Parallel()

	c := newTestOneBotChannel(t)

	_, params, err := c.buildSendRequest(bus.OutboundMessage{
		ChatID:   "private:1",
		Content:  "text part",
		ImageURL: "http://x/a.png",
	})
	if err != nil {
		t.Fatalf("buildSendRequest: %v", err)
	}

	segments := params.(map[string]interface{})["message"].([]oneBotSegment)
	if len(segments) != 2 {
		t.Fatalf("expected text + image segments, got %d", len(segments))
	}
	if segments[0].Type != "text" || segments[0].Data["text"] != "text part" {
		t.Fatalf("unexpected text segment: %+v", segments[0])
	}
	if segments[1].Type != "image" || segments[1].Data["file"] != "http://x/a.png" {
		t.Fatalf("unexpected image segment: %+v", segments[1])
	}
}

func TestOneBotDedupRing(t *testing.T) {
	t.Parallel()

	c := newTestOneBotChannel(t)

	if c.isDuplicate("m1") {
		t.Fatalf("first sighting should not be a duplicate")
	}
	if !c.isDuplicate("m1") {
		t.Fatalf("second sighting should be a duplicate")
	}
	if c.isDuplicate("") || c.isDuplicate("0") {
		t.Fatalf("empty and zero IDs are never deduplicated")
	}

	// Ring overflow evicts the oldest entry.
	for i := 0; i < oneBotDedupSize; i++ {
		c.isDuplicate(fmt.Sprintf("fill_%d", i))
	}
	if c.isDuplicate("m1") {
		t.Fatalf("evicted ID should no longer count as duplicate")
	}
}
