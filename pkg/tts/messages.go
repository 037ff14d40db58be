package tts

// Messages holds the user-facing text for every outcome. Hosts localize by
// supplying their own copy.
type Messages struct {
	EngineNotReady         string `yaml:"engine_not_ready" mapstructure:"engine_not_ready"`
	UnavailableOutputDir   string `yaml:"unavailable_output_dir" mapstructure:"unavailable_output_dir"`
	UnwritableOutputDir    string `yaml:"unwritable_output_dir" mapstructure:"unwritable_output_dir"`
	UnavailableInputSource string `yaml:"unavailable_input_source" mapstructure:"unavailable_input_source"`
	Unknown                string `yaml:"unknown" mapstructure:"unknown"`
	NoUsableEngine         string `yaml:"no_usable_engine" mapstructure:"no_usable_engine"`
	InitFailed             string `yaml:"init_failed" mapstructure:"init_failed"`
	NoLanguage             string `yaml:"no_language" mapstructure:"no_language"`
}

// DefaultMessages returns the built-in English messages.
func DefaultMessages() Messages {
	return Messages{
		EngineNotReady:         "Text-to-speech is not ready yet",
		UnavailableOutputDir:   "Could not open the output folder",
		UnwritableOutputDir:    "The output folder is read-only",
		UnavailableInputSource: "Could not read the document",
		Unknown:                "Text-to-speech failed",
		NoUsableEngine:         "No text-to-speech engine is installed",
		InitFailed:             "Text-to-speech engine failed to start",
		NoLanguage:             "No supported language is installed for text-to-speech",
	}
}

// withDefaults fills empty fields from DefaultMessages.
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&m.EngineNotReady, d.EngineNotReady)
	fill(&m.UnavailableOutputDir, d.UnavailableOutputDir)
	fill(&m.UnwritableOutputDir, d.UnwritableOutputDir)
	fill(&m.UnavailableInputSource, d.UnavailableInputSource)
	fill(&m.Unknown, d.Unknown)
	fill(&m.NoUsableEngine, d.NoUsableEngine)
	fill(&m.InitFailed, d.InitFailed)
	fill(&m.NoLanguage, d.NoLanguage)
	return m
}

// ForFailure returns the message stored when initialization fails.
func (m Messages) ForFailure(r FailureReason) string {
	switch r {
	case FailureNoUsableEngine:
		return m.NoUsableEngine
	case FailureInitFailed:
		return m.InitFailed
	case FailureNoLanguage:
		return m.NoLanguage
	default:
		return ""
	}
}

// ForResult returns the notification text for a task result. Success and
// interruption produce an empty string. initError is the message stored by
// a failed initialization and takes precedence for EngineNotReady.
func (m Messages) ForResult(r TaskResult, initError string) string {
	switch r.Code {
	case ResultSuccess, ResultInterrupted:
		return ""
	case ResultEngineNotReady:
		if initError != "" {
			return initError
		}
		return m.EngineNotReady
	case ResultUnavailableOutputDir:
		return m.UnavailableOutputDir
	case ResultUnwritableOutputDir:
		return m.UnwritableOutputDir
	case ResultUnavailableInputSource:
		return m.UnavailableInputSource
	case ResultZeroLengthInput:
		if r.Task != nil {
			return r.Task.ZeroLengthMessage()
		}
		return m.Unknown
	default:
		return m.Unknown
	}
}
