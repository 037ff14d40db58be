package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

var (
	// ErrNoCommand is returned when no settings command is configured.
	ErrNoCommand = errors.New("notify: no settings command configured")

	// ErrRateLimited is returned when settings were opened too recently.
	ErrRateLimited = errors.New("notify: settings launch rate limited")
)

// CommandLauncher opens speech settings by starting an external command,
// at most once per interval.
type CommandLauncher struct {
	argv    []string
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewCommandLauncher runs argv. An interval of zero disables rate limiting.
func NewCommandLauncher(argv []string, interval time.Duration) *CommandLauncher {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &CommandLauncher{
		argv:    argv,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.Default().With("component", "settings"),
	}
}

// OpenSettings starts the command without waiting for it to exit.
func (l *CommandLauncher) OpenSettings(ctx context.Context) error {
	if len(l.argv) == 0 || l.argv[0] == "" {
		return ErrNoCommand
	}
	if !l.limiter.Allow() {
		l.logger.Debug("Skipping settings launch", "command", l.argv[0])
		return ErrRateLimited
	}

	// The command outlives ctx; only its start is bound to it.
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := exec.Command(l.argv[0], l.argv[1:]...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", l.argv[0], err)
	}
	l.logger.Info("Opened speech settings", "command", l.argv[0], "pid", cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			l.logger.Debug("Settings command exited", "error", err)
		}
	}()
	return nil
}

var _ tts.SettingsLauncher = (*CommandLauncher)(nil)
