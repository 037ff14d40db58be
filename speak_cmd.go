package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

var (
	speakClipboard bool
	speakFlush     bool

	speakCmd = &cobra.Command{
		Use:   "speak [TEXT|DOC...]",
		Short: "Speak text, a document or the clipboard",
		Long: paragraph(fmt.Sprintf("\n%s the given text aloud. Arguments that name a document (a path, file:// or nats:// URL) are read from it; "+
			"without arguments text is read from stdin.", keyword("Speak"))),
		Example: paragraph("ttsbridge speak \"hello there\"\nttsbridge speak README.md\ncat notes.txt | ttsbridge speak\nttsbridge speak --clipboard"),
		RunE:    runSpeak,
	}
)

func init() {
	speakCmd.Flags().BoolVarP(&speakClipboard, "clipboard", "c", false, "speak the clipboard contents")
	speakCmd.Flags().BoolVarP(&speakFlush, "flush", "f", false, "interrupt audio that is already playing")
}

func runSpeak(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sources, err := speakSources(args)
	if err != nil {
		return err
	}

	h, err := newHost(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.initialize(ctx); err != nil {
		return err
	}
	return speakAll(ctx, h, sources, policyFor(speakFlush))
}

// speakAll speaks each source in turn, waiting for one to finish before
// submitting the next so none is replaced in the queue.
func speakAll(ctx context.Context, h *host, sources []tts.InputSource, policy tts.OutputPolicy) error {
	for _, src := range sources {
		res, err := h.run(ctx, func(obs tts.TaskOption) error {
			return h.session.Submit(tts.NewTextTask(src, obs, tts.WithPolicy(policy)))
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("Speech interrupted")
				return nil
			}
			return err
		}
		if err := resultError(res); err != nil {
			return fmt.Errorf("could not speak %s: %w", src.Describe(), err)
		}
	}
	return nil
}

func speakSources(args []string) ([]tts.InputSource, error) {
	if speakClipboard {
		text, err := clipboard.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("unable to read clipboard: %w", err)
		}
		return []tts.InputSource{tts.CharSequence{Text: text, Description: "clipboard"}}, nil
	}

	if len(args) == 0 {
		if !stdinIsPipe() {
			return nil, errors.New("nothing to speak: pass text, a document or pipe text to stdin")
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("unable to read stdin: %w", err)
		}
		return []tts.InputSource{tts.CharSequence{Text: string(data), Description: "stdin"}}, nil
	}

	sources := make([]tts.InputSource, 0, len(args))
	for _, arg := range args {
		sources = append(sources, sourceFromArg(arg))
	}
	return sources, nil
}

// sourceFromArg treats arg as a document when it is a URL or names an
// existing file, and as text otherwise.
func sourceFromArg(arg string) tts.InputSource {
	if strings.Contains(arg, "://") {
		return tts.DocumentReference{Locator: arg}
	}
	if fi, err := os.Stat(arg); err == nil && !fi.IsDir() {
		return tts.DocumentReference{Locator: arg, DisplayName: fi.Name()}
	}
	return tts.CharSequence{Text: arg, Description: "text"}
}

func policyFor(flush bool) tts.OutputPolicy {
	if flush {
		return tts.PolicyFlush
	}
	return tts.PolicyAppend
}
