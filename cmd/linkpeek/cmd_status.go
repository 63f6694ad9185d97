package main

import (
	"fmt"
	"os"
	"strings"

	"linkpeek/pkg/preview"
)

func statusCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return
	}

	configPath := getConfigPath()

	fmt.Printf("%s linkpeek Status\n\n", logo)

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "✓")
	} else {
		fmt.Println("Config:", configPath, "✗")
	}

	registry := preview.NewRegistry(cfg)
	platforms := registry.Platforms()
	if len(platforms) > 0 {
		fmt.Printf("Platforms: %s\n", strings.Join(platforms, ", "))
	} else {
		fmt.Println("Platforms: none enabled")
	}

	enabled := make([]string, 0, 4)
	if cfg.Channels.Telegram.Enabled {
		enabled = append(enabled, "telegram")
	}
	if cfg.Channels.Discord.Enabled {
		enabled = append(enabled, "discord")
	}
	if cfg.Channels.QQ.Enabled {
		enabled = append(enabled, "qq")
	}
	if cfg.Channels.OneBot.Enabled {
		enabled = append(enabled, "onebot")
	}
	if len(enabled) > 0 {
		fmt.Printf("Channels: %s\n", strings.Join(enabled, ", "))
	} else {
		fmt.Println("Channels: none enabled")
	}

	fmt.Printf("Request Timeout: %ds\n", cfg.Platforms.TimeoutSec)
	fmt.Printf("Logging: %v\n", cfg.Logging.Enabled)
	if cfg.Logging.Enabled {
		fmt.Printf("Log File: %s\n", cfg.LogFilePath())
		fmt.Printf("Log Max Size: %d MB\n", cfg.Logging.MaxSizeMB)
		fmt.Printf("Log Retention: %d days\n", cfg.Logging.RetentionDays)
	}
}
