package engines

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/dgnsrekt/ttsbridge/internal/audio"
)

// voiceSettings is what a backend needs to build a command line.
type voiceSettings struct {
	model      string
	voice      string
	pitch      float64
	rate       float64
	sampleRate int
}

type backend struct {
	name   string
	binary string
	label  string

	// args returns the arguments for synthesizing stdin to stdout.
	args func(v voiceSettings) []string
	// decode turns stdout into PCM.
	decode func(v voiceSettings, out []byte) ([]byte, audio.Format, error)
	// languages lists what the backend can speak when none are configured.
	languages func(v voiceSettings) []language.Tag
	// voiceFor maps a language to a backend voice name.
	voiceFor func(tag language.Tag) string
}

var piperBackend = &backend{
	name:   "piper",
	binary: "piper",
	label:  "Piper (offline neural TTS)",
	args: func(v voiceSettings) []string {
		args := []string{
			"--model", v.model,
			"--output-raw",
			"--length-scale", strconv.FormatFloat(1/v.rate, 'f', 2, 64),
		}
		if v.voice != "" {
			args = append(args, "--speaker", v.voice)
		}
		return args
	},
	decode: func(v voiceSettings, out []byte) ([]byte, audio.Format, error) {
		if len(out) == 0 {
			return nil, audio.Format{}, fmt.Errorf("piper produced no audio")
		}
		return out, audio.Format{SampleRate: v.sampleRate, Channels: 1}, nil
	},
	languages: func(v voiceSettings) []language.Tag {
		// models are named like en_US-amy-medium.onnx
		name := filepath.Base(v.model)
		code, _, _ := strings.Cut(name, "-")
		tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
		if err != nil {
			return nil
		}
		return []language.Tag{tag}
	},
	voiceFor: func(language.Tag) string { return "" },
}

var espeakBackend = &backend{
	name:   "espeak",
	binary: "espeak-ng",
	label:  "eSpeak NG",
	args: func(v voiceSettings) []string {
		pitch := int(v.pitch * 50)
		pitch = max(0, min(pitch, 99))
		wpm := int(v.rate * 175)
		wpm = max(80, min(wpm, 450))

		args := []string{"--stdout", "--stdin", "-p", strconv.Itoa(pitch), "-s", strconv.Itoa(wpm)}
		if v.voice != "" {
			args = append(args, "-v", v.voice)
		}
		return args
	},
	decode: func(_ voiceSettings, out []byte) ([]byte, audio.Format, error) {
		f, pcm, err := audio.ParseWAV(out)
		if err != nil {
			return nil, audio.Format{}, fmt.Errorf("espeak-ng output: %w", err)
		}
		return pcm, f, nil
	},
	languages: func(voiceSettings) []language.Tag {
		return []language.Tag{
			language.AmericanEnglish,
			language.BritishEnglish,
			language.German,
			language.French,
			language.Spanish,
			language.Italian,
			language.Portuguese,
		}
	},
	voiceFor: func(tag language.Tag) string {
		return strings.ToLower(tag.String())
	},
}

var backends = []*backend{piperBackend, espeakBackend}

func lookupBackend(name string) (*backend, bool) {
	for _, b := range backends {
		if b.name == name {
			return b, true
		}
	}
	return nil, false
}
