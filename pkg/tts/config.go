package tts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "TTSBRIDGE_"

// ConfigFileName is the name of the config file in the search paths.
const ConfigFileName = "ttsbridge.yml"

// Config is the file and environment configuration of a session and the
// components around it.
type Config struct {
	// Engine is auto, piper, espeak or mock.
	Engine string `yaml:"engine" mapstructure:"engine" env:"ENGINE"`
	// Model is the piper voice model.
	Model string `yaml:"model" mapstructure:"model" env:"MODEL"`
	// Voice is a backend voice or speaker; empty picks one per language.
	Voice string  `yaml:"voice" mapstructure:"voice" env:"VOICE"`
	Pitch float64 `yaml:"pitch" mapstructure:"pitch" env:"PITCH"`
	Rate  float64 `yaml:"rate" mapstructure:"rate" env:"RATE"`
	// Languages are BCP 47 candidates in priority order.
	Languages      []string      `yaml:"languages" mapstructure:"languages" env:"LANGUAGES" envSeparator:","`
	MaxInputLength int           `yaml:"max_input_length" mapstructure:"max_input_length" env:"MAX_INPUT_LENGTH"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout" env:"TIMEOUT"`
	OutputDir      string        `yaml:"output_dir" mapstructure:"output_dir" env:"OUTPUT_DIR"`

	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache" envPrefix:"CACHE_"`
	Focus    FocusConfig    `yaml:"focus" mapstructure:"focus" envPrefix:"FOCUS_"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify" envPrefix:"NOTIFY_"`
	Settings SettingsConfig `yaml:"settings" mapstructure:"settings" envPrefix:"SETTINGS_"`
	NATS     NATSConfig     `yaml:"nats" mapstructure:"nats" envPrefix:"NATS_"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics" envPrefix:"METRICS_"`
	Log      LogConfig      `yaml:"log" mapstructure:"log" envPrefix:"LOG_"`
	Messages Messages       `yaml:"messages" mapstructure:"messages"`
}

// CacheConfig controls the synthesized audio cache.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled" env:"ENABLED"`
	Dir       string `yaml:"dir" mapstructure:"dir" env:"DIR"`
	MaxSizeMB int    `yaml:"max_size_mb" mapstructure:"max_size_mb" env:"MAX_SIZE_MB"`
	// MemoryMB sizes an in-memory tier in front of the disk; 0 disables it.
	MemoryMB int `yaml:"memory_mb" mapstructure:"memory_mb" env:"MEMORY_MB"`
	// Level is the zstd compression level.
	Level int `yaml:"level" mapstructure:"level" env:"LEVEL"`
}

// FocusConfig controls audio focus handling.
type FocusConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled" env:"ENABLED"`
	// API is auto, request or legacy.
	API string `yaml:"api" mapstructure:"api" env:"API"`
}

// NotifyConfig controls terminal and published notifications.
type NotifyConfig struct {
	// Width truncates short notifications; 0 uses the terminal width.
	Width int  `yaml:"width" mapstructure:"width" env:"WIDTH"`
	Quiet bool `yaml:"quiet" mapstructure:"quiet" env:"QUIET"`
}

// SettingsConfig is the command that opens speech settings.
type SettingsConfig struct {
	Command  []string      `yaml:"command" mapstructure:"command" env:"COMMAND" envSeparator:" "`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" env:"INTERVAL"`
}

// NATSConfig connects notifications and documents to NATS.
type NATSConfig struct {
	URL     string `yaml:"url" mapstructure:"url" env:"URL"`
	Subject string `yaml:"subject" mapstructure:"subject" env:"SUBJECT"`
	Bucket  string `yaml:"bucket" mapstructure:"bucket" env:"BUCKET"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr" env:"ADDR"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" env:"LEVEL"`
	File  string `yaml:"file" mapstructure:"file" env:"FILE"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine:         "auto",
		Pitch:          1.0,
		Rate:           1.0,
		Languages:      []string{"en-US", "en-GB", "en"},
		MaxInputLength: 4000,
		Timeout:        30 * time.Second,
		Cache: CacheConfig{
			Enabled:   true,
			MaxSizeMB: 100,
			MemoryMB:  16,
			Level:     3,
		},
		Focus: FocusConfig{
			Enabled: true,
			API:     "auto",
		},
		Settings: SettingsConfig{
			Interval: time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Messages: DefaultMessages(),
	}
}

// DefaultConfigPaths returns where LoadConfig looks for a config file, in
// order: the working directory, then the user config directory.
func DefaultConfigPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ConfigFileName))
	}
	scope := gap.NewScope(gap.User, "ttsbridge")
	if p, err := scope.ConfigPath(ConfigFileName); err == nil {
		paths = append(paths, p)
	}
	return paths
}

// LoadConfig reads path, or the first existing default path when path is
// empty, then applies TTSBRIDGE_ environment variables. A missing default
// file is not an error; a missing explicit path is.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		for _, p := range DefaultConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		v := viper.New()
		v.SetConfigType("yaml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		log.Debug("Loaded configuration", "path", path)
	} else {
		log.Debug("No config file found, using defaults")
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Model = ExpandPath(cfg.Model)
	cfg.OutputDir = ExpandPath(cfg.OutputDir)
	cfg.Cache.Dir = ExpandPath(cfg.Cache.Dir)
	cfg.Log.File = ExpandPath(cfg.Log.File)
	cfg.Messages = cfg.Messages.withDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	log.Info("Saved configuration", "path", path)
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Engine {
	case "auto", "piper", "espeak", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown engine %q", c.Engine))
	}
	if c.Pitch <= 0 || c.Pitch > 4 {
		errs = append(errs, fmt.Errorf("pitch must be in (0, 4], got %v", c.Pitch))
	}
	if c.Rate <= 0 || c.Rate > 4 {
		errs = append(errs, fmt.Errorf("rate must be in (0, 4], got %v", c.Rate))
	}
	if len(ParseLanguages(c.Languages)) == 0 {
		errs = append(errs, errors.New("at least one valid language is required"))
	}
	if c.MaxInputLength <= 0 {
		errs = append(errs, fmt.Errorf("max_input_length must be positive, got %d", c.MaxInputLength))
	}
	if c.Cache.Enabled && c.Cache.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("cache.max_size_mb must be positive, got %d", c.Cache.MaxSizeMB))
	}
	if c.Cache.MemoryMB < 0 {
		errs = append(errs, fmt.Errorf("cache.memory_mb must not be negative, got %d", c.Cache.MemoryMB))
	}
	switch c.Focus.API {
	case "", "auto", "request", "legacy":
	default:
		errs = append(errs, fmt.Errorf("unknown focus api %q", c.Focus.API))
	}
	if _, err := log.ParseLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// LanguageTags returns the parsed language candidates.
func (c *Config) LanguageTags() []language.Tag {
	return ParseLanguages(c.Languages)
}

// CacheDir returns the configured cache directory or the user cache
// directory for ttsbridge.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	dir, err := gap.NewScope(gap.User, "ttsbridge").CacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

// SessionOptions maps the configuration onto session options.
func (c *Config) SessionOptions() []Option {
	return []Option{
		WithPitch(c.Pitch),
		WithSpeechRate(c.Rate),
		WithLanguages(c.LanguageTags()...),
		WithMaxInputLength(c.MaxInputLength),
		WithMessages(c.Messages),
	}
}

// ExpandPath expands a leading ~ and environment variables in path.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~") {
		if p, err := homedir.Expand(path); err == nil {
			return p
		}
	}
	return path
}
