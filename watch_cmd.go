package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

const (
	watchDebounce     = 250 * time.Millisecond
	readHeaderTimeout = 5 * time.Second
)

var (
	watchMetrics bool

	watchCmd = &cobra.Command{
		Use:   "watch DOC",
		Short: "Speak a document every time it changes",
		Long: paragraph(fmt.Sprintf("\n%s a local document and speak it again whenever it is written. "+
			"A new version interrupts the one being spoken.", keyword("Watch"))),
		Example: paragraph("ttsbridge watch notes.md\nttsbridge watch notes.md --metrics"),
		Args:    cobra.ExactArgs(1),
		RunE:    runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchMetrics, "metrics", false, "serve Prometheus metrics on metrics.addr")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	path, err := filepath.Abs(tts.ExpandPath(args[0]))
	if err != nil {
		return fmt.Errorf("unable to resolve %s: %w", args[0], err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("unable to watch %s: %w", args[0], err)
	}

	h, err := newHost(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.initialize(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watchDocument(ctx, h.session, path) })
	if watchMetrics {
		g.Go(func() error { return serveMetrics(ctx, cfg.Metrics.Addr) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchDocument speaks path once, then again after every write to it.
// Events are taken from the parent directory.
func watchDocument(ctx context.Context, s *tts.Session, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}
	log.Info("fsnotify watching dir", "dir", dir)

	ref := tts.DocumentReference{Locator: path, DisplayName: filepath.Base(path)}
	speak := func() {
		// A newer version replaces whatever is playing.
		s.StopTask()
		if _, err := s.ParseDocument(ref, tts.WithPolicy(tts.PolicyFlush)); err != nil {
			log.Warn("Could not queue document", "path", path, "error", err)
		}
	}
	speak()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			debounce = time.After(watchDebounce)
		case <-debounce:
			debounce = nil
			speak()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", dir, "error", err)
		}
	}
}

// serveMetrics serves the default registry on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("Serving metrics", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
