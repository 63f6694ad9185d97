package channels

import (
	"testing"

	"linkpeek/pkg/bus"
	"linkpeek/pkg/config"
)

func TestManagerSkipsChannelsWithMissingCredentials(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = ""
	cfg.Channels.OneBot.Enabled = true
	cfg.Channels.OneBot.WSURL = ""

	m, err := NewManager(cfg, bus.NewMessageBus())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if names := m.GetEnabledChannels(); len(names) != 0 {
		t.Fatalf("expected no channels without credentials, got %v", names)
	}
	if _, ok := m.GetChannel("telegram"); ok {
		t.Fatal("telegram should not be registered without a token")
	}
}

func TestManagerGetChannelUnknownName(t *testing.T) {
	t.Parallel()

	m, err := NewManager(config.DefaultConfig(), bus.NewMessageBus())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, ok := m.GetChannel("matrix"); ok {
		t.Fatal("unknown channel name must not resolve")
	}
}
