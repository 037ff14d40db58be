package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
	"github.com/dgnsrekt/ttsbridge/pkg/tts/engines"
)

func mockConfig() *tts.Config {
	c := tts.DefaultConfig()
	c.Engine = "mock"
	c.Notify.Quiet = true
	c.Cache.Enabled = false
	return c
}

func newTestHost(t *testing.T, c *tts.Config) *host {
	t.Helper()
	h, err := newHost(c, io.Discard)
	require.NoError(t, err)
	t.Cleanup(h.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.initialize(ctx))
	return h
}

func TestDefaultConfigFileLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttsbridge.yml")
	require.NoError(t, os.WriteFile(path, []byte(defaultConfig), 0o644))

	c, err := tts.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "auto", c.Engine)
	assert.Equal(t, ":9464", c.Metrics.Addr)
	assert.Equal(t, time.Minute, c.Settings.Interval)
}

func TestEnsureConfigFile(t *testing.T) {
	prev := configFile
	t.Cleanup(func() { configFile = prev })

	configFile = filepath.Join(t.TempDir(), "nested", "ttsbridge.yml")
	require.NoError(t, ensureConfigFile())
	data, err := os.ReadFile(configFile)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig, string(data))

	// An existing file is left alone.
	require.NoError(t, os.WriteFile(configFile, []byte("engine: mock\n"), 0o644))
	require.NoError(t, ensureConfigFile())
	data, err = os.ReadFile(configFile)
	require.NoError(t, err)
	assert.Equal(t, "engine: mock\n", string(data))

	configFile = filepath.Join(t.TempDir(), "ttsbridge.toml")
	assert.ErrorContains(t, ensureConfigFile(), "not a supported configuration type")
}

func TestSourceFromArg(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(doc, []byte("# Notes"), 0o644))

	assert.Equal(t, tts.DocumentReference{Locator: doc, DisplayName: "notes.md"}, sourceFromArg(doc))
	assert.Equal(t, tts.DocumentReference{Locator: "nats://docs/a.md"}, sourceFromArg("nats://docs/a.md"))
	assert.Equal(t, tts.CharSequence{Text: "hello there", Description: "text"}, sourceFromArg("hello there"))
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "notes.wav", outputName(tts.DocumentReference{Locator: "/tmp/notes.md"}))
	assert.Equal(t, "a.wav", outputName(tts.DocumentReference{Locator: "nats://docs/a.md", DisplayName: "Doc A"}))
	assert.Equal(t, "text.wav", outputName(tts.CharSequence{Text: "hi"}))
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, tts.PolicyFlush, policyFor(true))
	assert.Equal(t, tts.PolicyAppend, policyFor(false))
}

func TestSpeakAllWithMockEngine(t *testing.T) {
	h := newTestHost(t, mockConfig())

	sources := []tts.InputSource{
		tts.CharSequence{Text: "hello"},
		tts.CharSequence{Text: "world"},
	}
	require.NoError(t, speakAll(context.Background(), h, sources, tts.PolicyAppend))

	stats := h.session.Stats()
	assert.Equal(t, int64(2), stats.Results[tts.ResultSuccess])
	assert.Zero(t, stats.Dropped)
}

func TestSpeakAllReportsFailure(t *testing.T) {
	h := newTestHost(t, mockConfig())

	missing := tts.DocumentReference{Locator: filepath.Join(t.TempDir(), "missing.md")}
	err := speakAll(context.Background(), h, []tts.InputSource{missing}, tts.PolicyAppend)
	assert.ErrorContains(t, err, "could not speak")
}

func TestInitializeFailure(t *testing.T) {
	c := mockConfig()
	c.Engine = "auto"
	t.Setenv("PATH", t.TempDir())
	prev := newPlayer
	newPlayer = func() (engines.Player, error) { return nil, errors.New("no audio device") }
	t.Cleanup(func() { newPlayer = prev })

	h, err := newHost(c, io.Discard)
	require.NoError(t, err)
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = h.initialize(ctx)
	assert.ErrorIs(t, err, tts.ErrNoUsableEngine)
}

func TestSynthCommand(t *testing.T) {
	prevLog := log.Default()
	t.Cleanup(func() { log.SetDefault(prevLog) })

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ttsbridge.yml")
	logPath := filepath.Join(dir, "ttsbridge.log")
	require.NoError(t, os.WriteFile(cfgPath, []byte("engine: mock\ncache:\n  enabled: false\nnotify:\n  quiet: true\nlog:\n  file: "+logPath+"\n"), 0o644))

	doc := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(doc, []byte("# Notes\n\nRemember the milk."), 0o644))
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(outDir, 0o755))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"--config", cfgPath, "synth", doc, outDir})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		configFile = ""
	})

	require.NoError(t, rootCmd.Execute())
	if logCloser != nil {
		_ = logCloser()
	}

	assert.FileExists(t, filepath.Join(outDir, "notes.wav"))
	assert.Contains(t, out.String(), "notes.wav")
}
