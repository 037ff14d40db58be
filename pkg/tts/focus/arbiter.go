package focus

import (
	"sync"

	"github.com/charmbracelet/log"
)

type holder struct {
	key      any
	listener Listener
	gain     Gain
}

// Arbiter is an in-process audio subsystem. Holders form a stack: a new
// request takes focus from the current top, which is told about the loss.
// A permanent loss removes the previous holder; a transient one keeps it
// underneath and hands focus back when the new holder abandons.
//
// Arbiter implements both LegacySubsystem and RequestSubsystem.
type Arbiter struct {
	level  int
	logger *log.Logger

	mu    sync.Mutex
	stack []holder
}

// NewArbiter creates an arbiter reporting the given API level. A level of
// zero means MinRequestAPILevel.
func NewArbiter(level int) *Arbiter {
	if level == 0 {
		level = MinRequestAPILevel
	}
	return &Arbiter{
		level:  level,
		logger: log.Default().With("component", "arbiter"),
	}
}

func (a *Arbiter) APILevel() int { return a.level }

func (a *Arbiter) RequestFocus(l Listener, _ Attributes, gain Gain) Grant {
	return a.push(holder{key: l, listener: l, gain: gain})
}

func (a *Arbiter) AbandonFocus(l Listener) Grant {
	return a.remove(l)
}

func (a *Arbiter) RequestFocusWith(r *Request) Grant {
	return a.push(holder{key: r, listener: r.Listener, gain: r.Gain})
}

func (a *Arbiter) AbandonFocusRequest(r *Request) Grant {
	return a.remove(r)
}

// Holders returns how many clients are on the stack.
func (a *Arbiter) Holders() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.stack)
}

func (a *Arbiter) push(h holder) Grant {
	a.mu.Lock()
	a.stack = a.without(h.key)

	var prev *holder
	if n := len(a.stack); n > 0 {
		top := a.stack[n-1]
		prev = &top
	}
	change := h.gain.lossFor()
	if prev != nil && change == ChangeLoss {
		a.stack = a.stack[:len(a.stack)-1]
	}
	a.stack = append(a.stack, h)
	a.mu.Unlock()

	if prev != nil && prev.listener != nil {
		a.logger.Debug("Focus preempted", "change", change)
		prev.listener.OnFocusChange(change)
	}
	return GrantGranted
}

func (a *Arbiter) remove(key any) Grant {
	a.mu.Lock()
	n := len(a.stack)
	wasTop := n > 0 && a.stack[n-1].key == key
	a.stack = a.without(key)

	var next *holder
	if wasTop && len(a.stack) > 0 {
		top := a.stack[len(a.stack)-1]
		next = &top
	}
	a.mu.Unlock()

	if next != nil && next.listener != nil {
		next.listener.OnFocusChange(ChangeGain)
	}
	return GrantGranted
}

// without must be called with mu held.
func (a *Arbiter) without(key any) []holder {
	out := a.stack[:0]
	for _, h := range a.stack {
		if h.key != key {
			out = append(out, h)
		}
	}
	return out
}

var (
	_ LegacySubsystem  = (*Arbiter)(nil)
	_ RequestSubsystem = (*Arbiter)(nil)
)
