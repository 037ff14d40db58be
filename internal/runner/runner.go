// Package runner drives a single consumer loop over a subscribable source.
// Items are handled one at a time, and restarting the loop never lets two
// handlers overlap.
package runner

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Source produces the items a Runner consumes. Subscribe must register the
// subscription before it returns.
type Source[T any] interface {
	Subscribe(ctx context.Context) iter.Seq[T]
}

// Handler processes one item. ctx is cancelled when the loop that received
// the item is stopped or replaced.
type Handler[T any] func(ctx context.Context, item T)

// Option configures a Runner.
type Option[T any] func(*Runner[T])

// WithLogger sets the logger used for panics and discarded items.
func WithLogger[T any](l *log.Logger) Option[T] {
	return func(r *Runner[T]) { r.logger = l }
}

// WithPanicHandler is called after a handler panic has been recovered.
func WithPanicHandler[T any](fn func(item T, recovered any)) Option[T] {
	return func(r *Runner[T]) { r.onPanic = fn }
}

// WithDiscardHandler is called for items received by a loop that was
// cancelled before the item could start.
func WithDiscardHandler[T any](fn func(item T)) Option[T] {
	return func(r *Runner[T]) { r.onDiscard = fn }
}

// Runner is a restartable consumer loop.
type Runner[T any] struct {
	src    Source[T]
	handle Handler[T]
	logger *log.Logger

	onPanic   func(T, any)
	onDiscard func(T)

	mu     sync.Mutex
	cancel context.CancelFunc
	starts atomic.Uint64

	// exec keeps handlers single-flight across loop generations.
	exec sync.Mutex
	wg   sync.WaitGroup
}

// New creates a stopped runner.
func New[T any](src Source[T], handle Handler[T], opts ...Option[T]) *Runner[T] {
	r := &Runner[T]{
		src:    src,
		handle: handle,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default().With("component", "runner")
	}
	return r
}

// Start cancels any running loop and starts a new one bound to parent. It
// does not wait for the previous loop's current item to finish, so it is safe
// to call from inside a handler.
func (r *Runner[T]) Start(parent context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	gen := r.starts.Add(1)

	seq := r.src.Subscribe(ctx)

	r.wg.Add(1)
	go r.loop(ctx, gen, seq)
}

// Stop cancels the running loop, if any. It returns false when the runner
// was already stopped.
func (r *Runner[T]) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// Running reports whether a loop is active.
func (r *Runner[T]) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Starts returns how many times the loop has been started.
func (r *Runner[T]) Starts() uint64 {
	return r.starts.Load()
}

// Wait blocks until every loop started so far has exited.
func (r *Runner[T]) Wait() {
	r.wg.Wait()
}

func (r *Runner[T]) loop(ctx context.Context, gen uint64, seq iter.Seq[T]) {
	defer r.wg.Done()
	r.logger.Debug("Consumer loop started", "generation", gen)

	for item := range seq {
		r.exec.Lock()
		if ctx.Err() != nil {
			r.exec.Unlock()
			r.discard(item)
			break
		}
		r.run(ctx, item)
		r.exec.Unlock()
	}

	r.logger.Debug("Consumer loop exited", "generation", gen)
}

func (r *Runner[T]) run(ctx context.Context, item T) {
	defer r.recoverPanic(item)
	r.handle(ctx, item)
}

func (r *Runner[T]) discard(item T) {
	r.logger.Debug("Discarding item received by a cancelled loop")
	if r.onDiscard != nil {
		r.onDiscard(item)
	}
}

// recoverPanic keeps a misbehaving handler from taking the loop down.
func (r *Runner[T]) recoverPanic(item T) {
	if p := recover(); p != nil {
		r.logger.Error("Handler panicked", "panic", p)
		if r.onPanic != nil {
			r.onPanic(item, p)
		}
	}
}
