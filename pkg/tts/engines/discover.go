package engines

import (
	"fmt"
	"os/exec"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

// Auto selects the first installed backend.
const Auto = "auto"

// Names lists the backends this package knows about.
func Names() []string {
	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, b.name)
	}
	return names
}

// Discover reports the backends whose binaries are on PATH. The first one
// found is marked as the default.
func Discover() []tts.EngineInfo {
	var found []tts.EngineInfo
	for _, b := range backends {
		if _, err := exec.LookPath(b.binary); err != nil {
			continue
		}
		found = append(found, tts.EngineInfo{
			Name:    b.name,
			Label:   b.label,
			Default: len(found) == 0,
		})
	}
	return found
}

// New builds an engine for the named backend. Auto picks the first
// installed backend and fails with tts.ErrNoUsableEngine when there is none.
func New(name string, opts Options) (*CommandEngine, error) {
	if name == "" || name == Auto {
		installed := Discover()
		if len(installed) == 0 {
			return nil, fmt.Errorf("looked for %v: %w", Names(), tts.ErrNoUsableEngine)
		}
		name = installed[0].Name
	}

	b, ok := lookupBackend(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, tts.ErrEngineNotFound)
	}
	return newCommandEngine(b, opts), nil
}

// Factory returns a tts.EngineFactory building the named backend.
func Factory(name string, opts Options) tts.EngineFactory {
	return func() (tts.SpeechEngine, error) {
		e, err := New(name, opts)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}
