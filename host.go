package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dgnsrekt/ttsbridge/internal/audio"
	"github.com/dgnsrekt/ttsbridge/internal/audio/speaker"
	"github.com/dgnsrekt/ttsbridge/internal/cache"
	"github.com/dgnsrekt/ttsbridge/internal/metrics"
	"github.com/dgnsrekt/ttsbridge/pkg/tts"
	"github.com/dgnsrekt/ttsbridge/pkg/tts/documents"
	"github.com/dgnsrekt/ttsbridge/pkg/tts/engines"
	"github.com/dgnsrekt/ttsbridge/pkg/tts/engines/mock"
	"github.com/dgnsrekt/ttsbridge/pkg/tts/focus"
	"github.com/dgnsrekt/ttsbridge/pkg/tts/notify"
)

// newPlayer opens the audio output used by command engines.
var newPlayer = func() (engines.Player, error) {
	return speaker.New(audio.DefaultFormat())
}

// host owns a session and everything wired around it.
type host struct {
	session *tts.Session
	objects *documents.ObjectStoreProvider

	cache io.Closer
	nc    *nats.Conn
}

// newHost builds a session from cfg. Output is where notifications are
// printed.
func newHost(cfg *tts.Config, out io.Writer) (*host, error) {
	h := &host{}
	logger := log.Default()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	notifiers := []tts.Notifier{notify.NewLogNotifier(logger)}
	if !cfg.Notify.Quiet {
		notifiers = append(notifiers, notify.NewTerminalNotifier(out, cfg.Notify.Width))
	}

	router := documents.NewRouter()
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("ttsbridge"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}
		h.nc = nc
		notifiers = append(notifiers, notify.NewNATSNotifier(nc, cfg.NATS.Subject))

		js, err := nc.JetStream()
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to open JetStream: %w", err)
		}
		if cfg.NATS.Bucket != "" {
			if _, err := documents.EnsureBucket(js, cfg.NATS.Bucket); err != nil {
				h.Close()
				return nil, err
			}
		}
		h.objects = documents.NewObjectStoreProvider(js)
		router.Handle(documents.Scheme, h.objects)
	}

	factory, err := h.engineFactory(cfg, logger)
	if err != nil {
		h.Close()
		return nil, err
	}

	opts := append(cfg.SessionOptions(),
		tts.WithNotifier(notify.Multi(notifiers...)),
		tts.WithDocuments(router),
		tts.WithLogger(logger.With("component", "tts")),
	)
	if len(cfg.Settings.Command) > 0 {
		opts = append(opts, tts.WithSettingsLauncher(notify.NewCommandLauncher(cfg.Settings.Command, cfg.Settings.Interval)))
	}
	if cfg.Focus.Enabled {
		api, err := focus.ParseAPI(cfg.Focus.API)
		if err != nil {
			h.Close()
			return nil, err
		}
		opts = append(opts, tts.WithFocus(focus.NewManager(focus.NewArbiter(0),
			focus.WithAPI(api),
			focus.WithLogger(logger.With("component", "focus")),
		)))
	}

	h.session = tts.NewSession(factory, opts...)
	return h, nil
}

func (h *host) engineFactory(cfg *tts.Config, logger *log.Logger) (tts.EngineFactory, error) {
	if cfg.Engine == "mock" {
		return func() (tts.SpeechEngine, error) {
			return mock.New(mock.WithLanguages(cfg.LanguageTags()...)), nil
		}, nil
	}

	opts := engines.Options{
		Model:          cfg.Model,
		Voice:          cfg.Voice,
		Languages:      cfg.Languages,
		Timeout:        cfg.Timeout,
		MaxInputLength: cfg.MaxInputLength,
		Logger:         logger.With("component", "engine"),
	}

	if cfg.Cache.Enabled {
		dir, err := cfg.CacheDir()
		if err != nil {
			return nil, err
		}
		disk, err := cache.NewDiskCache(dir, int64(cfg.Cache.MaxSizeMB)<<20, cfg.Cache.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to open audio cache: %w", err)
		}
		h.cache, opts.Cache = disk, disk
		if cfg.Cache.MemoryMB > 0 {
			tiered := cache.NewTiered(cache.NewMemoryCache(int64(cfg.Cache.MemoryMB)<<20), disk)
			h.cache, opts.Cache = tiered, tiered
		}
	}

	if spk, err := newPlayer(); err != nil {
		log.Warn("Audio output unavailable, speech is disabled", "error", err)
	} else {
		opts.Player = spk
	}

	return engines.Factory(cfg.Engine, opts), nil
}

// initialize starts the engine and waits for the outcome.
func (h *host) initialize(ctx context.Context) error {
	done := make(chan tts.Status, 1)
	h.session.InitTTS(func(s tts.Status) { done <- s })

	select {
	case <-ctx.Done():
		return ctx.Err()
	case status := <-done:
		if status == tts.StatusSuccess && h.session.Ready() {
			log.Debug("Speech engine ready", "language", h.session.Language())
			return nil
		}
		reason, msg := h.session.Failure()
		if err := reason.Err(); err != nil {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return fmt.Errorf("speech engine failed to start: %s", status)
	}
}

// run submits a task built by submit and waits for it to complete.
func (h *host) run(ctx context.Context, submit func(tts.TaskOption) error) (tts.TaskResult, error) {
	done := make(chan tts.TaskResult, 1)
	observer := tts.WithObserver(tts.ObserverFuncs{
		Complete: func(_ tts.Task, r tts.TaskResult) { done <- r },
	})
	if err := submit(observer); err != nil {
		return tts.TaskResult{}, err
	}

	select {
	case <-ctx.Done():
		h.session.StopTask()
		return tts.TaskResult{}, ctx.Err()
	case r := <-done:
		return r, nil
	}
}

// Close releases the session and everything it was wired to.
func (h *host) Close() {
	if h.session != nil {
		h.session.ReleaseTTS()
	}
	if h.cache != nil {
		if err := h.cache.Close(); err != nil {
			log.Warn("Failed to close audio cache", "error", err)
		}
	}
	if h.nc != nil {
		if err := h.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			log.Warn("Failed to drain NATS connection", "error", err)
		}
	}
}

// resultError turns a failed task result into a command error.
func resultError(r tts.TaskResult) error {
	if r.OK() {
		return nil
	}
	if r.Err != nil {
		return fmt.Errorf("%s: %w", r.Code, r.Err)
	}
	return errors.New(r.Code.String())
}

func stdinIsPipe() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice == 0
}
