package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Channels  ChannelsConfig  `json:"channels"`
	Platforms PlatformsConfig `json:"platforms"`
	Gateway   GatewayConfig   `json:"gateway"`
	Logging   LoggingConfig   `json:"logging"`
	Sentinel  SentinelConfig  `json:"sentinel"`
	mu        sync.RWMutex
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	QQ       QQConfig       `json:"qq"`
	OneBot   OneBotConfig   `json:"onebot"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled" env:"LINKPEEK_CHANNELS_TELEGRAM_ENABLED"`
	Token     string   `json:"token" env:"LINKPEEK_CHANNELS_TELEGRAM_TOKEN"`
	AllowFrom []string `json:"allow_from" env:"LINKPEEK_CHANNELS_TELEGRAM_ALLOW_FROM"`
}

type DiscordConfig struct {
	Enabled   bool     `json:"enabled" env:"LINKPEEK_CHANNELS_DISCORD_ENABLED"`
	Token     string   `json:"token" env:"LINKPEEK_CHANNELS_DISCORD_TOKEN"`
	AllowFrom []string `json:"allow_from" env:"LINKPEEK_CHANNELS_DISCORD_ALLOW_FROM"`
}

type QQConfig struct {
	Enabled   bool     `json:"enabled" env:"LINKPEEK_CHANNELS_QQ_ENABLED"`
	AppID     string   `json:"app_id" env:"LINKPEEK_CHANNELS_QQ_APP_ID"`
	AppSecret string   `json:"app_secret" env:"LINKPEEK_CHANNELS_QQ_APP_SECRET"`
	AllowFrom []string `json:"allow_from" env:"LINKPEEK_CHANNELS_QQ_ALLOW_FROM"`
}

// OneBotConfig points at a OneBot v11 websocket endpoint. It doubles as the
// debug transport: point ws_url at a local bridge and every message flows
// through the same dispatch path as production channels.
type OneBotConfig struct {
	Enabled     bool     `json:"enabled" env:"LINKPEEK_CHANNELS_ONEBOT_ENABLED"`
	WSURL       string   `json:"ws_url" env:"LINKPEEK_CHANNELS_ONEBOT_WS_URL"`
	AccessToken string   `json:"access_token" env:"LINKPEEK_CHANNELS_ONEBOT_ACCESS_TOKEN"`
	AllowFrom   []string `json:"allow_from" env:"LINKPEEK_CHANNELS_ONEBOT_ALLOW_FROM"`
}

type PlatformsConfig struct {
	Bilibili     BilibiliConfig `json:"bilibili"`
	GitHub       GitRepoConfig  `json:"github"`
	Gitee        GitRepoConfig  `json:"gitee"`
	TimeoutSec   int            `json:"timeout_sec" env:"LINKPEEK_PLATFORMS_TIMEOUT_SEC"`
	MaxDescRunes int            `json:"max_desc_runes" env:"LINKPEEK_PLATFORMS_MAX_DESC_RUNES"`
}

type BilibiliConfig struct {
	Enabled bool   `json:"enabled" env:"LINKPEEK_PLATFORMS_BILIBILI_ENABLED"`
	APIBase string `json:"api_base" env:"LINKPEEK_PLATFORMS_BILIBILI_API_BASE"`
}

type GitRepoConfig struct {
	Enabled bool   `json:"enabled"`
	APIBase string `json:"api_base"`
	Token   string `json:"token"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"LINKPEEK_GATEWAY_HOST"`
	Port int    `json:"port" env:"LINKPEEK_GATEWAY_PORT"`
}

type LoggingConfig struct {
	Enabled       bool   `json:"enabled" env:"LINKPEEK_LOGGING_ENABLED"`
	Dir           string `json:"dir" env:"LINKPEEK_LOGGING_DIR"`
	Filename      string `json:"filename" env:"LINKPEEK_LOGGING_FILENAME"`
	MaxSizeMB     int    `json:"max_size_mb" env:"LINKPEEK_LOGGING_MAX_SIZE_MB"`
	RetentionDays int    `json:"retention_days" env:"LINKPEEK_LOGGING_RETENTION_DAYS"`
}

type SentinelConfig struct {
	Enabled       bool   `json:"enabled" env:"LINKPEEK_SENTINEL_ENABLED"`
	IntervalSec   int    `json:"interval_sec" env:"LINKPEEK_SENTINEL_INTERVAL_SEC"`
	AutoHeal      bool   `json:"auto_heal" env:"LINKPEEK_SENTINEL_AUTO_HEAL"`
	NotifyChannel string `json:"notify_channel" env:"LINKPEEK_SENTINEL_NOTIFY_CHANNEL"`
	NotifyChatID  string `json:"notify_chat_id" env:"LINKPEEK_SENTINEL_NOTIFY_CHAT_ID"`
}

var (
	isDebug bool
	muDebug sync.RWMutex
)

func SetDebugMode(debug bool) {
	muDebug.Lock()
	defer muDebug.Unlock()
	isDebug = debug
}

func IsDebugMode() bool {
	muDebug.RLock()
	defer muDebug.RUnlock()
	return isDebug
}

func GetConfigDir() string {
	if IsDebugMode() {
		return ".linkpeek"
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".linkpeek")
}

func DefaultConfig() *Config {
	configDir := GetConfigDir()
	return &Config{
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				Token:     "",
				AllowFrom: []string{},
			},
			Discord: DiscordConfig{
				Enabled:   false,
				Token:     "",
				AllowFrom: []string{},
			},
			QQ: QQConfig{
				Enabled:   false,
				AppID:     "",
				AppSecret: "",
				AllowFrom: []string{},
			},
			OneBot: OneBotConfig{
				Enabled:     false,
				WSURL:       "ws://localhost:3001",
				AccessToken: "",
				AllowFrom:   []string{},
			},
		},
		Platforms: PlatformsConfig{
			Bilibili: BilibiliConfig{
				Enabled: true,
				APIBase: "https://api.bilibili.com",
			},
			GitHub: GitRepoConfig{
				Enabled: true,
				APIBase: "https://api.github.com",
			},
			Gitee: GitRepoConfig{
				Enabled: true,
				APIBase: "https://gitee.com/api/v5",
			},
			TimeoutSec:   10,
			MaxDescRunes: 100,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18791,
		},
		Logging: LoggingConfig{
			Enabled:       true,
			Dir:           filepath.Join(configDir, "logs"),
			Filename:      "linkpeek.log",
			MaxSizeMB:     20,
			RetentionDays: 3,
		},
		Sentinel: SentinelConfig{
			Enabled:       true,
			IntervalSec:   60,
			AutoHeal:      true,
			NotifyChannel: "",
			NotifyChatID:  "",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := unmarshalConfigStrict(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func unmarshalConfigStrict(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing JSON content")
		}
		return err
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) LogFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := expandHome(c.Logging.Dir)
	filename := c.Logging.Filename
	if filename == "" {
		filename = "linkpeek.log"
	}
	return filepath.Join(dir, filename)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
