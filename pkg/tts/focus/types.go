// Package focus manages audio focus for speech.
//
// A Manager asks an audio Subsystem for transient, speech-flavoured focus
// and reports every involuntary loss to its registered callbacks. Two
// subsystem APIs exist: the legacy listener-keyed API and the newer
// request-object API. Which one a Manager uses is decided once, when it
// is created.
package focus

import "errors"

// MinRequestAPILevel is the first subsystem API level that supports
// request objects.
const MinRequestAPILevel = 26

// ErrUnsupportedFocusAPI is the panic value raised when the request API is
// forced on a subsystem that does not support it.
var ErrUnsupportedFocusAPI = errors.New("focus: request API not supported by subsystem")

// Gain is the kind of focus being requested.
type Gain int

const (
	GainFull Gain = iota
	GainTransient
	GainTransientMayDuck
	GainTransientExclusive
)

func (g Gain) String() string {
	switch g {
	case GainFull:
		return "full"
	case GainTransient:
		return "transient"
	case GainTransientMayDuck:
		return "transient_may_duck"
	case GainTransientExclusive:
		return "transient_exclusive"
	default:
		return "unknown"
	}
}

// lossFor returns the change a holder sees when another client takes
// focus with g.
func (g Gain) lossFor() Change {
	switch g {
	case GainFull:
		return ChangeLoss
	case GainTransientMayDuck:
		return ChangeLossTransientCanDuck
	default:
		return ChangeLossTransient
	}
}

// Change is a focus change delivered to a Listener.
type Change int

const (
	ChangeGain Change = iota
	ChangeLoss
	ChangeLossTransient
	ChangeLossTransientCanDuck
)

func (c Change) String() string {
	switch c {
	case ChangeGain:
		return "gain"
	case ChangeLoss:
		return "loss"
	case ChangeLossTransient:
		return "loss_transient"
	case ChangeLossTransientCanDuck:
		return "loss_transient_can_duck"
	default:
		return "unknown"
	}
}

// IsLoss reports whether c takes focus away.
func (c Change) IsLoss() bool {
	return c == ChangeLoss || c == ChangeLossTransient || c == ChangeLossTransientCanDuck
}

// Usage describes why audio is played.
type Usage int

const (
	UsageMedia Usage = iota
	UsageAssistanceAccessibility
	UsageAssistant
)

// Content describes what is played.
type Content int

const (
	ContentMusic Content = iota
	ContentSpeech
)

// Attributes describe the audio stream focus is requested for.
type Attributes struct {
	Usage   Usage
	Content Content
}

// SpeechAttributes are the attributes used for spoken text.
func SpeechAttributes() Attributes {
	return Attributes{Usage: UsageAssistanceAccessibility, Content: ContentSpeech}
}

// Grant is the subsystem's answer to a focus request.
type Grant int

const (
	GrantFailed Grant = iota
	GrantGranted
	GrantDelayed
)

func (g Grant) String() string {
	switch g {
	case GrantGranted:
		return "granted"
	case GrantDelayed:
		return "delayed"
	default:
		return "failed"
	}
}

// Listener receives focus changes. Implementations are compared by
// identity, so they must be comparable; pointers are.
type Listener interface {
	OnFocusChange(c Change)
}

// LegacySubsystem is the listener-keyed focus API.
type LegacySubsystem interface {
	RequestFocus(l Listener, attrs Attributes, gain Gain) Grant
	AbandonFocus(l Listener) Grant
}

// Request bundles everything the request API needs. The pointer is the
// request's identity.
type Request struct {
	Attributes         Attributes
	Gain               Gain
	Listener           Listener
	AcceptsDelayedGain bool
	PauseWhenDucked    bool
}

// RequestSubsystem is the request-object focus API, available from
// MinRequestAPILevel.
type RequestSubsystem interface {
	APILevel() int
	RequestFocusWith(r *Request) Grant
	AbandonFocusRequest(r *Request) Grant
}

// API selects which subsystem API a Manager uses.
type API int

const (
	// APIAuto uses the request API when the subsystem supports it.
	APIAuto API = iota
	APIRequest
	APILegacy
)

// ParseAPI parses "auto", "request" or "legacy".
func ParseAPI(s string) (API, error) {
	switch s {
	case "", "auto":
		return APIAuto, nil
	case "request":
		return APIRequest, nil
	case "legacy":
		return APILegacy, nil
	default:
		return APIAuto, errors.New("focus: unknown api " + s)
	}
}

// State is what a Manager currently holds.
type State int

const (
	StateNotRequested State = iota
	// StatePending means the subsystem will grant focus later.
	StatePending
	StateGranted
	StateLost
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateGranted:
		return "granted"
	case StateLost:
		return "lost"
	default:
		return "not_requested"
	}
}
