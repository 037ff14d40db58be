package notify

import (
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

// NewLogNotifier returns a notifier that logs through l, or the default
// logger when l is nil.
func NewLogNotifier(l *log.Logger) *LogNotifier {
	if l == nil {
		l = log.Default().With("component", "notify")
	}
	return &LogNotifier{Logger: l}
}

func (n *LogNotifier) Notify(note tts.Notification) {
	kv := []any{"result", note.Result}
	if note.TaskID != "" {
		kv = append(kv, "task", note.TaskID)
	}
	if note.Result == tts.ResultSuccess {
		n.Logger.Info(note.Text, kv...)
		return
	}
	n.Logger.Warn(note.Text, kv...)
}
