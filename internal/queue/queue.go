package queue

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// Stats tracks slot activity.
type Stats struct {
	Submitted int64
	Rejected  int64
	Dropped   int64
	Delivered int64
}

// Slot is a single-slot, drop-latest conduit with at most one active
// subscriber. Items submitted while nobody is subscribed are rejected, and a
// new subscriber never sees items published before it attached.
type Slot[T any] struct {
	mu     sync.Mutex
	sub    *subscription[T]
	onDrop func(T)

	submitted atomic.Int64
	rejected  atomic.Int64
	dropped   atomic.Int64
	delivered atomic.Int64
}

type subscription[T any] struct {
	items chan T
	done  chan struct{}
}

// New creates an empty slot. onDrop, if non-nil, is called for every pending
// item that gets replaced or discarded before delivery. It runs with the
// slot locked and must not call back into the slot.
func New[T any](onDrop func(T)) *Slot[T] {
	return &Slot[T]{onDrop: onDrop}
}

// Submit offers item to the current subscriber without blocking. It returns
// false when there is no subscriber. A pending item that has not been
// consumed yet is replaced.
func (s *Slot[T]) Submit(item T) bool {
	s.submitted.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.sub
	if sub == nil {
		s.rejected.Add(1)
		return false
	}

	select {
	case sub.items <- item:
		return true
	default:
	}

	// Only producers send, and they hold mu, so after draining the slot the
	// second send cannot block.
	select {
	case old := <-sub.items:
		s.drop(old)
	default:
	}
	sub.items <- item
	return true
}

// Subscribe attaches a new consumer and returns the sequence of items it
// receives. The subscription is registered before Subscribe returns, so
// items submitted between Subscribe and the first iteration are kept. Any
// previous subscription is closed and its pending item discarded. The
// sequence ends when ctx is done or a newer subscription replaces it.
func (s *Slot[T]) Subscribe(ctx context.Context) iter.Seq[T] {
	sub := &subscription[T]{
		items: make(chan T, 1),
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	if prev := s.sub; prev != nil {
		s.closeLocked(prev)
	}
	s.sub = sub
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.detach(sub)
		case <-sub.done:
		}
	}()

	return func(yield func(T) bool) {
		defer s.detach(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case item := <-sub.items:
				s.delivered.Add(1)
				if !yield(item) {
					return
				}
			}
		}
	}
}

// Subscribed reports whether a consumer is attached.
func (s *Slot[T]) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// Close detaches the current subscriber, if any, discarding its pending item.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.closeLocked(s.sub)
		s.sub = nil
	}
}

// Stats returns a snapshot of the slot counters.
func (s *Slot[T]) Stats() Stats {
	return Stats{
		Submitted: s.submitted.Load(),
		Rejected:  s.rejected.Load(),
		Dropped:   s.dropped.Load(),
		Delivered: s.delivered.Load(),
	}
}

func (s *Slot[T]) detach(sub *subscription[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == sub {
		s.closeLocked(sub)
		s.sub = nil
	}
}

// closeLocked must be called with mu held.
func (s *Slot[T]) closeLocked(sub *subscription[T]) {
	select {
	case <-sub.done:
		return
	default:
	}
	close(sub.done)
	select {
	case old := <-sub.items:
		s.drop(old)
	default:
	}
}

func (s *Slot[T]) drop(item T) {
	s.dropped.Add(1)
	if s.onDrop != nil {
		s.onDrop(item)
	}
}
