//go:build !cgo

package speaker

import (
	"context"
	"errors"

	"github.com/dgnsrekt/ttsbridge/internal/audio"
)

var (
	ErrStopped = errors.New("playback stopped")
	ErrClosed  = errors.New("speaker closed")

	errNoCGO = errors.New("audio playback requires a cgo build")
)

// Speaker is unavailable without cgo.
type Speaker struct{}

func New(audio.Format) (*Speaker, error) { return nil, errNoCGO }

func (*Speaker) Play(context.Context, []byte, audio.Format) error { return errNoCGO }
func (*Speaker) Stop()                                            {}
func (*Speaker) Close() error                                     { return nil }
