package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

var (
	synthName   string
	synthFlush  bool
	synthUpload string

	synthCmd = &cobra.Command{
		Use:   "synth DOC [OUTDIR]",
		Short: "Synthesize a document to a WAV file",
		Long: paragraph(fmt.Sprintf("\n%s a document into a WAV file in OUTDIR, or the configured output_dir. "+
			"Existing files are kept and the new one gets a free name unless --flush is set.", keyword("Synthesize"))),
		Example: paragraph("ttsbridge synth notes.md ~/audio\nttsbridge synth nats://docs/notes.md /tmp --upload nats://audio/notes.wav"),
		Args:    cobra.RangeArgs(1, 2),
		RunE:    runSynth,
	}
)

func init() {
	synthCmd.Flags().StringVarP(&synthName, "name", "n", "", "output file name (default: document name)")
	synthCmd.Flags().BoolVarP(&synthFlush, "flush", "f", false, "overwrite an existing output file")
	synthCmd.Flags().StringVar(&synthUpload, "upload", "", "also store the result in a NATS object store (nats://bucket/key)")
}

func runSynth(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	outDir := cfg.OutputDir
	if len(args) > 1 {
		outDir = args[1]
	}
	if outDir == "" {
		return errors.New("no output directory: pass OUTDIR or set output_dir")
	}

	src := sourceFromArg(args[0])
	name := synthName
	if name == "" {
		name = outputName(src)
	}

	h, err := newHost(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer h.Close()

	if synthUpload != "" && h.objects == nil {
		return errors.New("--upload needs nats.url in the config")
	}

	if err := h.initialize(ctx); err != nil {
		return err
	}

	var task *tts.FileTask
	res, err := h.run(ctx, func(obs tts.TaskOption) error {
		task = tts.NewFileTask(src, outDir, name, obs, tts.WithPolicy(policyFor(synthFlush)))
		return h.session.Submit(task)
	})
	if err != nil {
		return err
	}
	if err := resultError(res); err != nil {
		return fmt.Errorf("could not synthesize %s: %w", src.Describe(), err)
	}

	out := task.Output()
	fi, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("unable to stat output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s %s\n", out, faint("("+humanize.Bytes(uint64(fi.Size()))+")"))

	if synthUpload != "" {
		f, err := os.Open(out)
		if err != nil {
			return fmt.Errorf("unable to open output: %w", err)
		}
		defer f.Close()
		if err := h.objects.Upload(ctx, synthUpload, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded to %s\n", synthUpload)
	}
	return nil
}

// outputName derives a WAV file name from the source.
func outputName(src tts.InputSource) string {
	base := filepath.Base(src.Describe())
	if doc, ok := src.(tts.DocumentReference); ok {
		base = filepath.Base(doc.Locator)
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "speech.wav"
	}
	return base + ".wav"
}
