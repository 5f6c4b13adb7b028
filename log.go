package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, appName).CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, appName+".log"), nil
}

// setupLog sends log output to a file in the user cache directory. The
// terminal belongs to the TUI and to the headless commands' own output.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetReportTimestamp(true)
	if os.Getenv("READALOUD_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}
	return f.Close, nil
}
