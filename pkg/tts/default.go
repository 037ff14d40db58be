package tts

import (
	"sync"
	"sync/atomic"
)

var (
	defaultMu      sync.Mutex
	defaultSession atomic.Pointer[Session]
)

// Default returns the process-wide session, creating it with factory and
// opts on first use. Later calls ignore their arguments.
func Default(factory EngineFactory, opts ...Option) *Session {
	if s := defaultSession.Load(); s != nil {
		return s
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	if s := defaultSession.Load(); s != nil {
		return s
	}
	s := NewSession(factory, opts...)
	defaultSession.Store(s)
	return s
}

// ResetDefault releases and forgets the process-wide session.
func ResetDefault() {
	defaultMu.Lock()
	s := defaultSession.Swap(nil)
	defaultMu.Unlock()

	if s != nil {
		s.ReleaseTTS()
	}
}
