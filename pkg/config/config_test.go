package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Platforms.Bilibili.Enabled {
		t.Fatalf("expected bilibili enabled by default")
	}
	if cfg.Platforms.TimeoutSec != 10 {
		t.Fatalf("expected default timeout 10, got %d", cfg.Platforms.TimeoutSec)
	}
	if cfg.Platforms.GitHub.APIBase != "https://api.github.com" {
		t.Fatalf("unexpected github api_base: %s", cfg.Platforms.GitHub.APIBase)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"bogus_section": {}}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadConfigRejectsTrailingContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"gateway": {"port": 9000}} {"more": true}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for trailing JSON content")
	}
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"platforms": {"timeout_sec": 5, "github": {"enabled": false, "api_base": "https://api.github.com", "token": ""}}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Platforms.TimeoutSec != 5 {
		t.Fatalf("expected timeout 5, got %d", cfg.Platforms.TimeoutSec)
	}
	if cfg.Platforms.GitHub.Enabled {
		t.Fatalf("expected github disabled")
	}
	if !cfg.Platforms.Gitee.Enabled {
		t.Fatalf("expected gitee to keep its default")
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := DefaultConfig()
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = "123:abc"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !loaded.Channels.Telegram.Enabled || loaded.Channels.Telegram.Token != "123:abc" {
		t.Fatalf("round trip lost telegram settings: %+v", loaded.Channels.Telegram)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = ""
	cfg.Channels.OneBot.Enabled = true
	cfg.Channels.OneBot.WSURL = "http://not-a-ws"
	cfg.Platforms.TimeoutSec = 0
	cfg.Gateway.Port = 0

	errs := Validate(cfg)
	if len(errs) != 4 {
		t.Fatalf("expected 4 errors, got %d: %v", len(errs), errs)
	}
	joined := ""
	for _, e := range errs {
		joined += e.Error() + "\n"
	}
	for _, want := range []string{"channels.telegram", "channels.onebot", "timeout_sec", "gateway"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected error mentioning %q, got:\n%s", want, joined)
		}
	}
}

func TestValidateDefaultsAreClean(t *testing.T) {
	t.Parallel()

	if errs := Validate(DefaultConfig()); len(errs) != 0 {
		t.Fatalf("default config should validate, got: %v", errs)
	}
}
