package main

import (
	"context"
	"fmt"
	"os"

	"linkpeek/pkg/bus"
	"linkpeek/pkg/channels"
)

func channelCmd() {
	if len(os.Args) < 3 {
		channelHelp()
		return
	}

	subcommand := os.Args[2]

	switch subcommand {
	case "test":
		channelTestCmd()
	default:
		fmt.Printf("Unknown channel command: %s\n", subcommand)
		channelHelp()
	}
}

func channelHelp() {
	fmt.Println("\nChannel commands:")
	fmt.Println("  test              Send a test message to a specific channel")
	fmt.Println()
	fmt.Println("Test options:")
	fmt.Println("  --to             Recipient ID")
	fmt.Println("  --channel        Channel name (telegram, discord, etc.)")
	fmt.Println("  -m, --message    Message to send")
	fmt.Println("  --image          Image URL to attach")
}

func channelTestCmd() {
	msg := bus.OutboundMessage{
		Content: "This is a test message from linkpeek 🔍",
	}

	args := os.Args[3:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--to":
			if i+1 < len(args) {
				msg.ChatID = args[i+1]
				i++
			}
		case "--channel":
			if i+1 < len(args) {
				msg.Channel = args[i+1]
				i++
			}
		case "-m", "--message":
			if i+1 < len(args) {
				msg.Content = args[i+1]
				i++
			}
		case "--image":
			if i+1 < len(args) {
				msg.ImageURL = args[i+1]
				i++
			}
		}
	}

	if msg.Channel == "" || msg.ChatID == "" {
		fmt.Println("Error: --channel and --to are required")
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	msgBus := bus.NewMessageBus()
	mgr, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		fmt.Printf("Error creating channel manager: %v\n", err)
		os.Exit(1)
	}

	channel, ok := mgr.GetChannel(msg.Channel)
	if !ok {
		fmt.Printf("Error: channel %s is not enabled\n", msg.Channel)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := channel.Start(ctx); err != nil {
		fmt.Printf("Error starting channel: %v\n", err)
		os.Exit(1)
	}
	defer channel.Stop(ctx)

	if msg.ImageURL != "" {
		fmt.Printf("Sending test message with image to %s (%s)...\n", msg.Channel, msg.ChatID)
	} else {
		fmt.Printf("Sending test message to %s (%s)...\n", msg.Channel, msg.ChatID)
	}
	if err := channel.Send(ctx, msg); err != nil {
		fmt.Printf("✗ Failed to send message: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Test message sent successfully!")
}
