package tts

import (
	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
)

// Option configures a Session.
type Option func(*Session)

// WithNotifier sets the sink for user-facing messages.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithSettingsLauncher sets what opens the platform speech settings after
// an engine failure.
func WithSettingsLauncher(l SettingsLauncher) Option {
	return func(s *Session) { s.settings = l }
}

// WithDocuments sets the provider for document references and output
// directories.
func WithDocuments(p DocumentProvider) Option {
	return func(s *Session) { s.docs = p }
}

// WithFocus sets the audio focus controller. Any focus loss it reports
// stops the current task.
func WithFocus(f FocusController) Option {
	return func(s *Session) { s.focus = f }
}

// WithMessages overrides user-facing messages. Empty fields keep defaults.
func WithMessages(m Messages) Option {
	return func(s *Session) { s.messages = m }
}

// WithLanguages sets the language candidates in priority order.
func WithLanguages(tags ...language.Tag) Option {
	return func(s *Session) { s.languages = tags }
}

// WithPitch sets the pitch applied after init. 1.0 is normal.
func WithPitch(p float64) Option {
	return func(s *Session) { s.pitch = p }
}

// WithSpeechRate sets the rate applied after init. 1.0 is normal.
func WithSpeechRate(r float64) Option {
	return func(s *Session) { s.rate = r }
}

// WithMaxInputLength caps the text passed to a single engine call, below
// whatever the engine allows.
func WithMaxInputLength(n int) Option {
	return func(s *Session) { s.maxInput = n }
}

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithTracer sets the tracer used for init and task spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) { s.tracer = t }
}
