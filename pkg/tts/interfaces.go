package tts

import (
	"context"

	"golang.org/x/text/language"
)

// SpeechEngine is the platform speech engine a Session drives.
type SpeechEngine interface {
	// Init boots the engine and reports the outcome through done, from any
	// goroutine, exactly once.
	Init(done func(Status))

	SetPitch(pitch float64) error
	SetSpeechRate(rate float64) error

	// Languages lists the installed languages.
	Languages() []language.Tag
	SetLanguage(tag language.Tag) error

	// Speak plays text and blocks until it finished, ctx was cancelled or
	// Stop was called.
	Speak(ctx context.Context, text string, mode QueueMode, utteranceID string) error

	// SynthesizeToFile writes text as a WAV file at path.
	SynthesizeToFile(ctx context.Context, text, path, utteranceID string) error

	// Stop interrupts current playback or synthesis.
	Stop() error
	Shutdown()

	// Engines lists the engines installed on the host.
	Engines() []EngineInfo

	// MaxInputLength is the longest text accepted by a single call.
	MaxInputLength() int
}

// EngineFactory constructs a new engine. Returning an error wrapping
// ErrNoUsableEngine marks the failure as "nothing installed".
type EngineFactory func() (SpeechEngine, error)

// Notification is a short message for the user.
type Notification struct {
	TaskID string
	Result ResultCode
	Text   string
	// Long asks the sink to keep the message visible longer.
	Long bool
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// SettingsLauncher opens the platform speech settings.
type SettingsLauncher interface {
	OpenSettings(ctx context.Context) error
}

// DocumentProvider resolves document references and output locations.
type DocumentProvider interface {
	// ReadText returns the text content behind locator.
	ReadText(ctx context.Context, locator string) (string, error)
	// ResolveOutputDir returns a local directory for locator.
	ResolveOutputDir(ctx context.Context, locator string) (string, error)
}

// FocusController requests and abandons audio focus for speech.
type FocusController interface {
	Request() bool
	Release()
	// OnLoss registers fn to be called on every involuntary focus loss.
	OnLoss(fn func())
}
