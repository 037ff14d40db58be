package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

func getLogFilePath() (string, error) {
	p, err := gap.NewScope(gap.User, "ttsbridge").LogPath("ttsbridge.log")
	if err != nil {
		return "", fmt.Errorf("could not locate log directory: %w", err)
	}
	return p, nil
}

// setupLog sends logs to the configured file, or to the user log directory
// when none is set.
func setupLog(c *tts.Config) (func() error, error) {
	file := c.Log.File
	if file == "" {
		p, err := getLogFilePath()
		if err != nil {
			return nil, err
		}
		file = p
	}

	closer, err := tts.InitializeLogging(c.Log.Level, file)
	if err != nil {
		return nil, err
	}
	log.Debug("Logging to file", "path", file)
	return closer.Close, nil
}
