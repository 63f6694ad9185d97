package main

import (
	"errors"
	"fmt"
	"os"

	"linkpeek/pkg/config"
	"linkpeek/pkg/logger"
)

const version = "0.1.0"
const logo = "🔍"
const gatewayServiceName = "linkpeek-gateway.service"

var globalConfigPathOverride string

var errGatewayNotRunning = errors.New("gateway not running")

func main() {
	globalConfigPathOverride = detectConfigPathFromArgs(os.Args)

	for _, arg := range os.Args {
		if arg == "--debug" || arg == "-d" {
			config.SetDebugMode(true)
			logger.SetLevel(logger.DEBUG)
			break
		}
	}

	os.Args = normalizeCLIArgs(os.Args)

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "gateway":
		gatewayCmd()
	case "status":
		statusCmd()
	case "config":
		configCmd()
	case "channel":
		channelCmd()
	case "version", "--version", "-v":
		fmt.Printf("%s linkpeek v%s\n", logo, version)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}
