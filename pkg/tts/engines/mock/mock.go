// Package mock provides a scriptable speech engine for tests and dry runs.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/dgnsrekt/ttsbridge/internal/audio"
	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

// SpeakCall records one Speak invocation.
type SpeakCall struct {
	Text        string
	Mode        tts.QueueMode
	UtteranceID string
}

// FileCall records one SynthesizeToFile invocation.
type FileCall struct {
	Text        string
	Path        string
	UtteranceID string
}

// Option configures an Engine.
type Option func(*Engine)

// WithInitStatus sets the status reported by Init.
func WithInitStatus(s tts.Status) Option {
	return func(e *Engine) { e.initStatus = s }
}

// WithAsyncInit reports Init from a new goroutine instead of inline.
func WithAsyncInit() Option {
	return func(e *Engine) { e.asyncInit = true }
}

// WithLanguages sets the installed languages.
func WithLanguages(tags ...language.Tag) Option {
	return func(e *Engine) { e.installed = tags }
}

// WithEngines sets what Engines reports.
func WithEngines(infos ...tts.EngineInfo) Option {
	return func(e *Engine) { e.engines = infos }
}

// WithMaxInputLength sets the per-call text limit.
func WithMaxInputLength(n int) Option {
	return func(e *Engine) { e.maxInput = n }
}

// WithBlockingSpeak makes Speak wait until ctx is done or Stop is called.
func WithBlockingSpeak() Option {
	return func(e *Engine) { e.block = true }
}

// WithDelay makes every Speak and SynthesizeToFile take at least d.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) { e.delay = d }
}

// WithSpeakError makes Speak fail with err.
func WithSpeakError(err error) Option {
	return func(e *Engine) { e.speakErr = err }
}

// WithFileError makes SynthesizeToFile fail with err.
func WithFileError(err error) Option {
	return func(e *Engine) { e.fileErr = err }
}

// WithStopError makes Stop fail with err.
func WithStopError(err error) Option {
	return func(e *Engine) { e.stopErr = err }
}

// Engine implements tts.SpeechEngine without producing sound.
type Engine struct {
	initStatus tts.Status
	asyncInit  bool
	installed  []language.Tag
	engines    []tts.EngineInfo
	maxInput   int
	block      bool
	delay      time.Duration
	speakErr   error
	fileErr    error
	stopErr    error

	mu        sync.Mutex
	speaks    []SpeakCall
	files     []FileCall
	pitch     float64
	rate      float64
	lang      language.Tag
	inits     int
	stops     int
	shutdowns int
	stopCh    chan struct{}
}

// New creates an engine that initializes successfully with American
// English installed.
func New(opts ...Option) *Engine {
	e := &Engine{
		initStatus: tts.StatusSuccess,
		installed:  []language.Tag{language.AmericanEnglish},
		engines:    []tts.EngineInfo{{Name: "mock", Label: "Mock engine", Default: true}},
		maxInput:   4000,
		pitch:      1.0,
		rate:       1.0,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Init(done func(tts.Status)) {
	e.mu.Lock()
	e.inits++
	status := e.initStatus
	e.mu.Unlock()

	if e.asyncInit {
		go done(status)
		return
	}
	done(status)
}

func (e *Engine) SetPitch(p float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pitch = p
	return nil
}

func (e *Engine) SetSpeechRate(r float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = r
	return nil
}

func (e *Engine) Languages() []language.Tag {
	return append([]language.Tag(nil), e.installed...)
}

func (e *Engine) SetLanguage(tag language.Tag) error {
	for _, t := range e.installed {
		if t == tag {
			e.mu.Lock()
			e.lang = tag
			e.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("mock: language %s not installed", tag)
}

func (e *Engine) Speak(ctx context.Context, text string, mode tts.QueueMode, utteranceID string) error {
	e.mu.Lock()
	e.speaks = append(e.speaks, SpeakCall{Text: text, Mode: mode, UtteranceID: utteranceID})
	stop := e.stopCh
	e.mu.Unlock()

	if err := e.wait(ctx, stop); err != nil {
		return err
	}
	return e.speakErr
}

func (e *Engine) SynthesizeToFile(ctx context.Context, text, path, utteranceID string) error {
	e.mu.Lock()
	e.files = append(e.files, FileCall{Text: text, Path: path, UtteranceID: utteranceID})
	stop := e.stopCh
	e.mu.Unlock()

	if err := e.wait(ctx, stop); err != nil {
		return err
	}
	if e.fileErr != nil {
		return e.fileErr
	}
	// one silent sample per byte of text
	return audio.WriteWAV(path, audio.DefaultFormat(), make([]byte, 2*len(text)))
}

func (e *Engine) wait(ctx context.Context, stop <-chan struct{}) error {
	var timer <-chan time.Time
	if e.delay > 0 {
		t := time.NewTimer(e.delay)
		defer t.Stop()
		timer = t.C
	} else if !e.block {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stop:
		return fmt.Errorf("mock: stopped: %w", context.Canceled)
	case <-timer:
		if e.block {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-stop:
				return fmt.Errorf("mock: stopped: %w", context.Canceled)
			}
		}
		return nil
	}
}

// Stop releases any blocked Speak or SynthesizeToFile call.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	close(e.stopCh)
	e.stopCh = make(chan struct{})
	return e.stopErr
}

func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdowns++
}

func (e *Engine) Engines() []tts.EngineInfo {
	return append([]tts.EngineInfo(nil), e.engines...)
}

func (e *Engine) MaxInputLength() int { return e.maxInput }

// SpeakCalls returns every Speak call so far.
func (e *Engine) SpeakCalls() []SpeakCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SpeakCall(nil), e.speaks...)
}

// FileCalls returns every SynthesizeToFile call so far.
func (e *Engine) FileCalls() []FileCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]FileCall(nil), e.files...)
}

// Inits returns how many times Init was called.
func (e *Engine) Inits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inits
}

// Stops returns how many times Stop was called.
func (e *Engine) Stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

// Shutdowns returns how many times Shutdown was called.
func (e *Engine) Shutdowns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdowns
}

// Pitch returns the last pitch set.
func (e *Engine) Pitch() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pitch
}

// Rate returns the last speech rate set.
func (e *Engine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// Language returns the language selected by SetLanguage.
func (e *Engine) Language() language.Tag {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lang
}

var _ tts.SpeechEngine = (*Engine)(nil)
