package tts

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEngineNotReady is returned when a task is submitted before the
	// engine finished initializing.
	ErrEngineNotReady = errors.New("speech engine not initialized")

	// ErrNoUsableEngine indicates that no speech engine is installed.
	ErrNoUsableEngine = errors.New("no usable speech engine installed")

	// ErrInitFailed indicates the engine reported an initialization failure.
	ErrInitFailed = errors.New("speech engine failed to initialize")

	// ErrNoLanguageAvailable indicates none of the candidate languages is
	// installed on the engine.
	ErrNoLanguageAvailable = errors.New("no supported language available")

	// ErrUnavailableOutputDir indicates the output directory could not be resolved.
	ErrUnavailableOutputDir = errors.New("output directory unavailable")

	// ErrUnwritableOutputDir indicates the output directory is read-only.
	ErrUnwritableOutputDir = errors.New("output directory not writable")

	// ErrUnavailableInputSource indicates the input could not be read.
	ErrUnavailableInputSource = errors.New("input source unavailable")

	// ErrZeroLengthInput indicates the input resolved to no text.
	ErrZeroLengthInput = errors.New("input is empty")

	// ErrEngineNotFound indicates an unknown engine name was requested.
	ErrEngineNotFound = errors.New("speech engine not found")

	// ErrEngineShutdown is returned by engines used after Shutdown.
	ErrEngineShutdown = errors.New("speech engine shut down")
)

// Error ties a failure to the operation and result kind it produced.
type Error struct {
	Op   string
	Kind ResultCode
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind ResultCode, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// ResultFromError maps an error raised while executing a task to the result
// code reported for it.
func ResultFromError(err error) ResultCode {
	if err == nil {
		return ResultSuccess
	}

	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ResultInterrupted
	case errors.Is(err, ErrEngineNotReady), errors.Is(err, ErrEngineShutdown):
		return ResultEngineNotReady
	case errors.Is(err, ErrUnavailableOutputDir):
		return ResultUnavailableOutputDir
	case errors.Is(err, ErrUnwritableOutputDir):
		return ResultUnwritableOutputDir
	case errors.Is(err, ErrUnavailableInputSource):
		return ResultUnavailableInputSource
	case errors.Is(err, ErrZeroLengthInput):
		return ResultZeroLengthInput
	default:
		return ResultUnknown
	}
}
