package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

const defaultConfig = `# speech engine: auto, piper, espeak or mock
engine: "auto"
# piper voice model (.onnx)
# model: "~/.local/share/piper/en_US-lessac-medium.onnx"
# backend voice or speaker; empty picks one per language
voice: ""
pitch: 1.0
rate: 1.0
# candidate languages in priority order
languages: ["en-US", "en-GB", "en"]
# longest text sent to the engine in one utterance
max_input_length: 4000
timeout: "30s"
# default folder for synth output
output_dir: ""

cache:
  enabled: true
  # dir: "~/.cache/ttsbridge/audio"
  max_size_mb: 100
  # in-memory tier in front of the disk, 0 to disable
  memory_mb: 16
  # zstd level
  level: 3

focus:
  enabled: true
  # auto, request or legacy
  api: "auto"

notify:
  # 0 uses the terminal width
  width: 0
  quiet: false

# command that opens the speech settings when the engine cannot start
settings:
  command: []
  interval: "1m"

nats:
  url: ""
  subject: "ttsbridge.notifications"
  bucket: ""

metrics:
  addr: ":9464"

log:
  level: "info"
  file: ""
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the ttsbridge config file",
	Long:    paragraph(fmt.Sprintf("\n%s the ttsbridge config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("ttsbridge config\nttsbridge config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// The config may be invalid; editing it must still work.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("ttsbridge", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func defaultConfigPath() string {
	p, err := gap.NewScope(gap.User, "ttsbridge").ConfigPath(tts.ConfigFileName)
	if err != nil {
		return tts.ConfigFileName
	}
	return p
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = defaultConfigPath()
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
