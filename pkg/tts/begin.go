package tts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgnsrekt/ttsbridge/internal/audio"
	"github.com/dgnsrekt/ttsbridge/internal/textutil"
)

// begin runs task against eng and reports its outcome.
func (s *Session) begin(ctx context.Context, eng SpeechEngine, task Task) TaskResult {
	switch t := task.(type) {
	case *TextTask:
		return resultOf(t, s.beginText(ctx, eng, t))
	case *FileTask:
		return resultOf(t, s.beginFile(ctx, eng, t))
	default:
		return TaskResult{Code: ResultUnknown, Task: task, Err: fmt.Errorf("unsupported task type %T", task)}
	}
}

func (s *Session) beginText(ctx context.Context, eng SpeechEngine, t *TextTask) error {
	text, err := s.readSource(ctx, t.Source())
	if err != nil {
		return err
	}
	chunks := s.chunk(eng, text)
	if len(chunks) == 0 {
		return newError("speak", ResultZeroLengthInput, ErrZeroLengthInput)
	}

	if s.focus != nil {
		if !s.focus.Request() {
			s.logger.Warn("Audio focus not granted, speaking anyway", "id", t.ID())
		}
		defer s.focus.Release()
	}

	mode := t.Policy().QueueMode()
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := eng.Speak(ctx, chunk, mode, utteranceID(t, i)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("speak chunk %d: %w", i, err)
		}
		mode = QueueAdd
		t.Observer().OnProgress(t, i+1, len(chunks))
	}
	return nil
}

func (s *Session) beginFile(ctx context.Context, eng SpeechEngine, t *FileTask) error {
	dir, err := s.resolveOutputDir(ctx, t.OutputDir)
	if err != nil {
		return newError("resolve output", ResultUnavailableOutputDir, err)
	}
	if err := checkWritable(dir); err != nil {
		return newError("resolve output", ResultUnwritableOutputDir, err)
	}

	text, err := s.readSource(ctx, t.Source())
	if err != nil {
		return err
	}
	chunks := s.chunk(eng, text)
	if len(chunks) == 0 {
		return newError("synthesize", ResultZeroLengthInput, ErrZeroLengthInput)
	}

	target := outputPath(dir, t.FileName, t.Policy())
	base := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			removeAll(t.Parts())
			return err
		}
		part := filepath.Join(dir, fmt.Sprintf(".%s.%s.%03d.part.wav", base, shortID(t), i))
		if err := eng.SynthesizeToFile(ctx, chunk, part, utteranceID(t, i)); err != nil {
			os.Remove(part)
			removeAll(t.Parts())
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return writeError("synthesize", fmt.Errorf("chunk %d: %w", i, err))
		}
		t.addPart(part)
		t.Observer().OnProgress(t, i+1, len(chunks))
	}

	parts := t.Parts()
	if len(parts) == 1 {
		err = os.Rename(parts[0], target)
	} else {
		err = audio.MergeWAV(target, parts)
	}
	removeAll(parts)
	if err != nil {
		return writeError("write output", err)
	}

	t.setOutput(target)
	s.logger.Debug("Wrote audio file", "id", t.ID(), "path", target, "parts", len(parts))
	return nil
}

func (s *Session) readSource(ctx context.Context, src InputSource) (string, error) {
	switch src := src.(type) {
	case CharSequence:
		return src.Text, nil
	case DocumentReference:
		if s.docs == nil {
			return "", newError("read", ResultUnavailableInputSource,
				fmt.Errorf("no document provider for %q", src.Locator))
		}
		text, err := s.docs.ReadText(ctx, src.Locator)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", newError("read", ResultUnavailableInputSource, err)
		}
		return text, nil
	default:
		return "", newError("read", ResultUnavailableInputSource, ErrUnavailableInputSource)
	}
}

func (s *Session) resolveOutputDir(ctx context.Context, locator string) (string, error) {
	if s.docs != nil {
		return s.docs.ResolveOutputDir(ctx, locator)
	}
	if locator == "" {
		return "", ErrUnavailableOutputDir
	}
	fi, err := os.Stat(locator)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%s: not a directory", locator)
	}
	return locator, nil
}

func (s *Session) chunk(eng SpeechEngine, text string) []string {
	limit := eng.MaxInputLength()
	if s.maxInput > 0 && (limit <= 0 || s.maxInput < limit) {
		limit = s.maxInput
	}
	return textutil.Chunk(text, limit)
}

// checkWritable checks dir by creating and removing a temporary file.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".ttsbridge-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// outputPath picks the target file. PolicyFlush reuses the requested name;
// PolicyAppend adds " (n)" until the name is free.
func outputPath(dir, name string, policy OutputPolicy) string {
	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "speech.wav"
	}
	if filepath.Ext(name) == "" {
		name += ".wav"
	}

	target := filepath.Join(dir, name)
	if policy == PolicyFlush {
		return target
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(target); err != nil {
			return target
		}
		target = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
}

func writeError(op string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return newError(op, ResultUnwritableOutputDir, err)
	}
	return newError(op, ResultUnknown, err)
}

func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

func utteranceID(t Task, i int) string {
	return fmt.Sprintf("%s-%d", t.ID(), i)
}

func shortID(t Task) string {
	id := t.ID()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
