package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/logging"
	"github.com/ismaiel54/match-arena/internal/watch"
)

func main() {
	var (
		url      = flag.String("url", "ws://127.0.0.1:8080/ws", "Arena websocket endpoint")
		matchID  = flag.String("match", "", "Match to follow (default: the next one announced)")
		logLevel = flag.String("log-level", "error", "Log level for connection diagnostics")
	)
	flag.Parse()

	// stdout belongs to the TUI
	logger, err := logging.NewLogger("arena-watch", *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client, err := watch.Dial(*url, logger)
	if err != nil {
		logger.Error("failed to connect", zap.String("url", *url), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", *url, err)
		os.Exit(1)
	}
	defer client.Close()

	p := tea.NewProgram(watch.NewModel(client, *matchID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
