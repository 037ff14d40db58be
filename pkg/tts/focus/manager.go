package focus

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/ttsbridge/internal/metrics"
	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

// Option configures a Manager.
type Option func(*Manager)

// WithAPI forces a subsystem API. Forcing APIRequest on a subsystem that
// cannot serve it panics.
func WithAPI(api API) Option {
	return func(m *Manager) { m.api = api }
}

// WithGain overrides the requested gain. The default is GainTransient.
func WithGain(g Gain) Option {
	return func(m *Manager) { m.gain = g }
}

// WithAttributes overrides the stream attributes.
func WithAttributes(a Attributes) Option {
	return func(m *Manager) { m.attrs = a }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager holds one client's audio focus. It satisfies the session's
// focus controller contract.
type Manager struct {
	api    API
	gain   Gain
	attrs  Attributes
	logger *log.Logger

	strategy strategy

	mu     sync.Mutex
	state  State
	onLoss []func()
}

// NewManager creates a manager for sys, which must implement
// LegacySubsystem, RequestSubsystem, or both.
func NewManager(sys any, opts ...Option) *Manager {
	m := &Manager{
		gain:  GainTransient,
		attrs: SpeechAttributes(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.Default().With("component", "focus")
	}
	m.strategy = selectStrategy(sys, m.api, m, m.attrs, m.gain)
	m.logger.Debug("Audio focus API selected", "api", m.strategy.name())
	return m
}

// Request asks for focus and reports whether it was granted immediately.
func (m *Manager) Request() bool {
	grant := m.strategy.request()

	m.mu.Lock()
	switch grant {
	case GrantGranted:
		m.state = StateGranted
	case GrantDelayed:
		m.state = StatePending
	}
	m.mu.Unlock()

	if grant != GrantGranted {
		m.logger.Debug("Audio focus not granted", "grant", grant)
	}
	return grant == GrantGranted
}

// Release abandons any outstanding request, including a delayed one.
func (m *Manager) Release() {
	m.mu.Lock()
	prev := m.state
	m.state = StateNotRequested
	m.mu.Unlock()

	if prev != StateNotRequested {
		m.strategy.abandon()
	}
}

// OnLoss registers fn to run on every focus loss.
func (m *Manager) OnLoss(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLoss = append(m.onLoss, fn)
}

// State returns the current focus state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnFocusChange implements Listener.
func (m *Manager) OnFocusChange(c Change) {
	m.mu.Lock()
	if m.state == StateNotRequested {
		m.mu.Unlock()
		m.logger.Debug("Ignoring focus change after release", "change", c)
		return
	}
	if !c.IsLoss() {
		m.state = StateGranted
		m.mu.Unlock()
		return
	}
	m.state = StateLost
	callbacks := append([]func(){}, m.onLoss...)
	m.mu.Unlock()

	metrics.FocusLosses.WithLabelValues(c.String()).Inc()
	m.logger.Info("Audio focus lost", "change", c)
	for _, fn := range callbacks {
		fn()
	}
}

var (
	_ Listener            = (*Manager)(nil)
	_ tts.FocusController = (*Manager)(nil)
)
