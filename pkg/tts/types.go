package tts

import (
	"strconv"

	"golang.org/x/text/language"
)

// Status is the raw code an engine reports for initialization.
type Status int

const (
	StatusSuccess Status = 0
	StatusError   Status = -1
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}

// QueueMode tells the engine how an utterance relates to audio it is
// already playing.
type QueueMode int

const (
	// QueueAdd plays after whatever is already queued.
	QueueAdd QueueMode = iota
	// QueueFlush drops queued audio and plays immediately.
	QueueFlush
)

func (m QueueMode) String() string {
	if m == QueueFlush {
		return "flush"
	}
	return "add"
}

// OutputPolicy controls what happens to output that already exists.
type OutputPolicy int

const (
	// PolicyAppend keeps existing output. Speech is queued behind audio
	// already playing and file output gets a name that does not clash.
	PolicyAppend OutputPolicy = iota
	// PolicyFlush replaces existing output.
	PolicyFlush
)

// QueueMode returns the engine queue mode for the policy.
func (p OutputPolicy) QueueMode() QueueMode {
	if p == PolicyFlush {
		return QueueFlush
	}
	return QueueAdd
}

// EngineState is the lifecycle state of a Session's engine.
type EngineState int

const (
	// StateUninitialized is the idle state before init and after release.
	StateUninitialized EngineState = iota
	StateInitializing
	StateReady
	StateFailed
)

// String returns a string representation of the engine state.
func (s EngineState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureReason distinguishes the ways initialization can fail.
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureNoUsableEngine
	FailureInitFailed
	FailureNoLanguage
)

// String returns a string representation of the failure reason.
func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "none"
	case FailureNoUsableEngine:
		return "no usable engine"
	case FailureInitFailed:
		return "init failed"
	case FailureNoLanguage:
		return "no language available"
	default:
		return "unknown"
	}
}

// Err returns the sentinel error for the reason, or nil for FailureNone.
func (r FailureReason) Err() error {
	switch r {
	case FailureNoUsableEngine:
		return ErrNoUsableEngine
	case FailureInitFailed:
		return ErrInitFailed
	case FailureNoLanguage:
		return ErrNoLanguageAvailable
	default:
		return nil
	}
}

// opensSettings reports whether the failure should send the user to the
// platform speech settings.
func (r FailureReason) opensSettings() bool {
	return r == FailureNoUsableEngine || r == FailureInitFailed
}

// EngineInfo describes an installed speech engine.
type EngineInfo struct {
	Name      string
	Label     string
	Default   bool
	Languages []language.Tag
}
