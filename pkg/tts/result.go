package tts

import "time"

// ResultCode is the outcome of a task.
type ResultCode int

const (
	ResultSuccess ResultCode = iota
	ResultEngineNotReady
	ResultUnavailableOutputDir
	ResultUnavailableInputSource
	ResultUnwritableOutputDir
	ResultZeroLengthInput
	ResultUnknown
	// ResultInterrupted marks a task cut short by StopTask, release or a
	// loss of audio focus.
	ResultInterrupted
)

// String returns a string representation of the result code.
func (c ResultCode) String() string {
	switch c {
	case ResultSuccess:
		return "success"
	case ResultEngineNotReady:
		return "engine_not_ready"
	case ResultUnavailableOutputDir:
		return "unavailable_output_dir"
	case ResultUnavailableInputSource:
		return "unavailable_input_source"
	case ResultUnwritableOutputDir:
		return "unwritable_output_dir"
	case ResultZeroLengthInput:
		return "zero_length_input"
	case ResultUnknown:
		return "unknown"
	case ResultInterrupted:
		return "interrupted"
	default:
		return "invalid"
	}
}

// TaskResult is what a task produced.
type TaskResult struct {
	Code     ResultCode
	Task     Task
	Err      error
	Duration time.Duration
}

// OK reports whether the task succeeded.
func (r TaskResult) OK() bool {
	return r.Code == ResultSuccess
}

func resultOf(task Task, err error) TaskResult {
	return TaskResult{Code: ResultFromError(err), Task: task, Err: err}
}
