package config

import (
	"fmt"
	"strings"
)

// Validate checks the loaded configuration and returns every problem found
// rather than stopping at the first one.
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.Channels.Telegram.Enabled && strings.TrimSpace(cfg.Channels.Telegram.Token) == "" {
		errs = append(errs, fmt.Errorf("channels.telegram: token required when enabled"))
	}
	if cfg.Channels.Discord.Enabled && strings.TrimSpace(cfg.Channels.Discord.Token) == "" {
		errs = append(errs, fmt.Errorf("channels.discord: token required when enabled"))
	}
	if cfg.Channels.QQ.Enabled {
		if strings.TrimSpace(cfg.Channels.QQ.AppID) == "" {
			errs = append(errs, fmt.Errorf("channels.qq: app_id required when enabled"))
		}
		if strings.TrimSpace(cfg.Channels.QQ.AppSecret) == "" {
			errs = append(errs, fmt.Errorf("channels.qq: app_secret required when enabled"))
		}
	}
	if cfg.Channels.OneBot.Enabled {
		ws := strings.TrimSpace(cfg.Channels.OneBot.WSURL)
		if ws == "" {
			errs = append(errs, fmt.Errorf("channels.onebot: ws_url required when enabled"))
		} else if !strings.HasPrefix(ws, "ws://") && !strings.HasPrefix(ws, "wss://") {
			errs = append(errs, fmt.Errorf("channels.onebot: ws_url must start with ws:// or wss://"))
		}
	}

	if cfg.Platforms.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("platforms: timeout_sec must be positive"))
	}
	if cfg.Platforms.MaxDescRunes <= 3 {
		errs = append(errs, fmt.Errorf("platforms: max_desc_runes must be greater than 3"))
	}
	if cfg.Platforms.Bilibili.Enabled && strings.TrimSpace(cfg.Platforms.Bilibili.APIBase) == "" {
		errs = append(errs, fmt.Errorf("platforms.bilibili: api_base required when enabled"))
	}
	if cfg.Platforms.GitHub.Enabled && strings.TrimSpace(cfg.Platforms.GitHub.APIBase) == "" {
		errs = append(errs, fmt.Errorf("platforms.github: api_base required when enabled"))
	}
	if cfg.Platforms.Gitee.Enabled && strings.TrimSpace(cfg.Platforms.Gitee.APIBase) == "" {
		errs = append(errs, fmt.Errorf("platforms.gitee: api_base required when enabled"))
	}

	if cfg.Gateway.Port < 1 || cfg.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway: port must be between 1 and 65535"))
	}

	if cfg.Logging.Enabled {
		if strings.TrimSpace(cfg.Logging.Dir) == "" {
			errs = append(errs, fmt.Errorf("logging: dir required when enabled"))
		}
		if cfg.Logging.MaxSizeMB <= 0 {
			errs = append(errs, fmt.Errorf("logging: max_size_mb must be positive"))
		}
		if cfg.Logging.RetentionDays <= 0 {
			errs = append(errs, fmt.Errorf("logging: retention_days must be positive"))
		}
	}

	if cfg.Sentinel.Enabled && cfg.Sentinel.IntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("sentinel: interval_sec must be positive"))
	}

	return errs
}
