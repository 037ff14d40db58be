//go:build cgo

// Package speaker plays PCM through the default output device using oto.
package speaker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/ttsbridge/internal/audio"
)

var (
	// ErrStopped is returned by Play when Stop interrupted playback.
	ErrStopped = errors.New("playback stopped")
	// ErrClosed is returned by Play after Close.
	ErrClosed = errors.New("speaker closed")
)

// oto allows a single context per process.
var (
	ctxOnce   sync.Once
	otoCtx    *oto.Context
	ctxFormat audio.Format
	ctxErr    error
)

func sharedContext(f audio.Format) (*oto.Context, audio.Format, error) {
	ctxOnce.Do(func() {
		c, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			ctxErr = fmt.Errorf("failed to create audio context: %w", err)
			return
		}
		<-ready
		otoCtx = c
		ctxFormat = f
	})
	return otoCtx, ctxFormat, ctxErr
}

// Speaker plays one buffer at a time.
type Speaker struct {
	ctx    *oto.Context
	format audio.Format
	logger *log.Logger

	mu      sync.Mutex
	current *oto.Player
	stop    chan struct{}
	closed  bool
}

// New opens the output device. The device runs at the format of the first
// Speaker created in the process; later speakers resample to it.
func New(f audio.Format) (*Speaker, error) {
	c, actual, err := sharedContext(f)
	if err != nil {
		return nil, err
	}
	return &Speaker{
		ctx:    c,
		format: actual,
		logger: log.Default().With("component", "speaker"),
	}, nil
}

// Play blocks until pcm finished playing, ctx is done or Stop is called.
// Any buffer already playing is stopped first.
func (s *Speaker) Play(ctx context.Context, pcm []byte, f audio.Format) error {
	if len(pcm) == 0 {
		return nil
	}
	data, err := audio.Resample(pcm, f, s.format)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.stopLocked()
	p := s.ctx.NewPlayer(bytes.NewReader(data))
	stop := make(chan struct{})
	s.current, s.stop = p, stop
	s.mu.Unlock()

	defer s.finish(p)

	p.Play()
	s.logger.Debug("Playback started", "bytes", len(data), "duration", s.format.Duration(len(data)))

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for p.IsPlaying() {
		select {
		case <-ctx.Done():
			p.Pause()
			return ctx.Err()
		case <-stop:
			return ErrStopped
		case <-ticker.C:
		}
	}
	return nil
}

// Stop interrupts the current buffer, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Close stops playback and rejects further Play calls. The shared device
// stays open for other speakers.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.closed = true
	return nil
}

func (s *Speaker) stopLocked() {
	if s.current == nil {
		return
	}
	s.current.Pause()
	close(s.stop)
	s.current, s.stop = nil, nil
}

func (s *Speaker) finish(p *oto.Player) {
	s.mu.Lock()
	if s.current == p {
		s.current, s.stop = nil, nil
	}
	s.mu.Unlock()

	if err := p.Close(); err != nil {
		s.logger.Debug("Failed to close player", "error", err)
	}
}
