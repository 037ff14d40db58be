package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"

	"github.com/dgnsrekt/ttsbridge/internal/audio"
	"github.com/dgnsrekt/ttsbridge/internal/cache"
	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultGracePeriod    = 500 * time.Millisecond
	defaultMaxInputLength = 4000
)

// ErrNoPlayer is returned by Speak when the engine has no audio output.
var ErrNoPlayer = errors.New("no audio player configured")

// Player plays PCM audio.
type Player interface {
	Play(ctx context.Context, pcm []byte, f audio.Format) error
	Stop()
	Close() error
}

// Cache stores synthesized audio by key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Options configures a CommandEngine.
type Options struct {
	// Model is the piper voice model (.onnx).
	Model string
	// Voice is a backend voice or speaker name.
	Voice string
	// Languages overrides what the engine reports as installed.
	Languages []string
	// SampleRate of raw backend output. Defaults to 22050.
	SampleRate int
	// Timeout bounds a single synthesis. Defaults to 30s.
	Timeout time.Duration
	// GracePeriod is how long a cancelled synthesizer gets to exit after
	// an interrupt before it is killed.
	GracePeriod    time.Duration
	MaxInputLength int

	Cache  Cache
	Player Player
	Logger *log.Logger
}

// CommandEngine runs a synthesizer binary per utterance.
type CommandEngine struct {
	b      *backend
	opts   Options
	logger *log.Logger

	mu       sync.Mutex
	pitch    float64
	rate     float64
	voice    string
	lang     language.Tag
	inflight map[uint64]context.CancelFunc
	next     uint64
	shut     bool
}

func newCommandEngine(b *backend, opts Options) *CommandEngine {
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.SampleRate
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if opts.MaxInputLength <= 0 {
		opts.MaxInputLength = defaultMaxInputLength
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &CommandEngine{
		b:        b,
		opts:     opts,
		logger:   logger.With("engine", b.name),
		pitch:    1.0,
		rate:     1.0,
		voice:    opts.Voice,
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// Name returns the backend name.
func (e *CommandEngine) Name() string { return e.b.name }

// Init checks that the synthesizer can run and reports the result on a new
// goroutine.
func (e *CommandEngine) Init(done func(tts.Status)) {
	go func() {
		if err := e.check(); err != nil {
			e.logger.Error("Engine unavailable", "error", err)
			done(tts.StatusError)
			return
		}
		e.logger.Debug("Engine initialized")
		done(tts.StatusSuccess)
	}()
}

func (e *CommandEngine) check() error {
	if e.isShut() {
		return tts.ErrEngineShutdown
	}
	if _, err := exec.LookPath(e.b.binary); err != nil {
		return fmt.Errorf("%s not found: %w", e.b.binary, err)
	}
	if e.b == piperBackend {
		if e.opts.Model == "" {
			return errors.New("piper requires a model path")
		}
		if _, err := os.Stat(e.opts.Model); err != nil {
			return fmt.Errorf("piper model: %w", err)
		}
	}
	return nil
}

func (e *CommandEngine) SetPitch(pitch float64) error {
	if pitch <= 0 {
		return fmt.Errorf("pitch must be positive, got %v", pitch)
	}
	e.mu.Lock()
	e.pitch = pitch
	e.mu.Unlock()
	return nil
}

func (e *CommandEngine) SetSpeechRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", rate)
	}
	e.mu.Lock()
	e.rate = rate
	e.mu.Unlock()
	return nil
}

// Languages returns the configured languages, or what the backend offers.
func (e *CommandEngine) Languages() []language.Tag {
	if len(e.opts.Languages) > 0 {
		return tts.ParseLanguages(e.opts.Languages)
	}
	return e.b.languages(e.settings())
}

func (e *CommandEngine) SetLanguage(tag language.Tag) error {
	for _, t := range e.Languages() {
		if t == tag {
			e.mu.Lock()
			e.lang = tag
			if e.opts.Voice == "" {
				e.voice = e.b.voiceFor(tag)
			}
			e.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("language %s not installed", tag)
}

// Speak synthesizes text and plays it. QueueFlush cuts off anything the
// player is still playing.
func (e *CommandEngine) Speak(ctx context.Context, text string, mode tts.QueueMode, utteranceID string) error {
	if e.isShut() {
		return tts.ErrEngineShutdown
	}
	if e.opts.Player == nil {
		return ErrNoPlayer
	}
	if mode == tts.QueueFlush {
		e.opts.Player.Stop()
	}

	ctx, release := e.track(ctx)
	defer release()

	pcm, f, err := e.synthesize(ctx, text)
	if err != nil {
		return err
	}
	e.logger.Debug("Speaking", "utterance", utteranceID, "duration", f.Duration(len(pcm)))
	if err := e.opts.Player.Play(ctx, pcm, f); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// SynthesizeToFile writes text to path as a WAV file.
func (e *CommandEngine) SynthesizeToFile(ctx context.Context, text, path, utteranceID string) error {
	if e.isShut() {
		return tts.ErrEngineShutdown
	}

	ctx, release := e.track(ctx)
	defer release()

	pcm, f, err := e.synthesize(ctx, text)
	if err != nil {
		return err
	}
	e.logger.Debug("Writing utterance", "utterance", utteranceID, "path", path)
	return audio.WriteWAV(path, f, pcm)
}

// Stop cancels every synthesis in flight and silences the player.
func (e *CommandEngine) Stop() error {
	e.mu.Lock()
	for id, cancel := range e.inflight {
		cancel()
		delete(e.inflight, id)
	}
	shut := e.shut
	e.mu.Unlock()

	if e.opts.Player != nil {
		e.opts.Player.Stop()
	}
	if shut {
		return tts.ErrEngineShutdown
	}
	return nil
}

// Shutdown stops the engine and closes the player. It is idempotent.
func (e *CommandEngine) Shutdown() {
	e.mu.Lock()
	if e.shut {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.Stop()

	e.mu.Lock()
	e.shut = true
	e.mu.Unlock()

	if e.opts.Player != nil {
		if err := e.opts.Player.Close(); err != nil {
			e.logger.Debug("Failed to close player", "error", err)
		}
	}
	e.logger.Debug("Engine shut down")
}

func (e *CommandEngine) Engines() []tts.EngineInfo {
	return Discover()
}

func (e *CommandEngine) MaxInputLength() int {
	return e.opts.MaxInputLength
}

func (e *CommandEngine) synthesize(ctx context.Context, text string) ([]byte, audio.Format, error) {
	v := e.settings()
	key := cache.Key(e.b.name, v.model, v.voice,
		strconv.FormatFloat(v.pitch, 'f', 2, 64),
		strconv.FormatFloat(v.rate, 'f', 2, 64),
		text)

	if e.opts.Cache != nil {
		if wav, ok := e.opts.Cache.Get(key); ok {
			if f, pcm, err := audio.ParseWAV(wav); err == nil {
				e.logger.Debug("Cache hit", "bytes", len(pcm))
				return pcm, f, nil
			}
		}
	}

	out, err := e.run(ctx, v, text)
	if err != nil {
		return nil, audio.Format{}, err
	}
	pcm, f, err := e.b.decode(v, out)
	if err != nil {
		return nil, audio.Format{}, err
	}

	if e.opts.Cache != nil {
		if err := e.opts.Cache.Put(key, audio.EncodeWAV(f, pcm)); err != nil {
			e.logger.Debug("Failed to cache audio", "error", err)
		}
	}
	return pcm, f, nil
}

// run executes the synthesizer with text on stdin. Cancellation sends an
// interrupt first and kills the process after the grace period.
func (e *CommandEngine) run(ctx context.Context, v voiceSettings, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.b.binary, e.b.args(v)...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = e.opts.GracePeriod

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s interrupted: %w", e.b.binary, ctxErr)
		}
		return nil, fmt.Errorf("%s failed: %w: %s", e.b.binary, err, strings.TrimSpace(stderr.String()))
	}
	e.logger.Debug("Synthesized", "chars", len(text), "bytes", stdout.Len(), "took", time.Since(start))
	return stdout.Bytes(), nil
}

func (e *CommandEngine) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	id := e.next
	e.next++
	e.inflight[id] = cancel
	e.mu.Unlock()

	return ctx, func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
		cancel()
	}
}

func (e *CommandEngine) settings() voiceSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return voiceSettings{
		model:      e.opts.Model,
		voice:      e.voice,
		pitch:      e.pitch,
		rate:       e.rate,
		sampleRate: e.opts.SampleRate,
	}
}

func (e *CommandEngine) isShut() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shut
}

var _ tts.SpeechEngine = (*CommandEngine)(nil)
