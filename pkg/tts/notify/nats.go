package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

// DefaultSubject is where task notifications are published.
const DefaultSubject = "ttsbridge.notifications"

// Event is the JSON payload published for each notification.
type Event struct {
	TaskID string    `json:"task_id,omitempty"`
	Result string    `json:"result"`
	Text   string    `json:"text"`
	Long   bool      `json:"long,omitempty"`
	Time   time.Time `json:"time"`
}

// NATSNotifier publishes notifications to a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *log.Logger
}

// NewNATSNotifier publishes on subject, or DefaultSubject when empty.
func NewNATSNotifier(conn *nats.Conn, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{
		conn:    conn,
		subject: subject,
		logger:  log.Default().With("component", "notify", "subject", subject),
	}
}

func (n *NATSNotifier) Notify(note tts.Notification) {
	if err := n.Publish(note); err != nil {
		n.logger.Warn("Failed to publish notification", "error", err)
	}
}

// Publish sends note and reports any failure.
func (n *NATSNotifier) Publish(note tts.Notification) error {
	data, err := json.Marshal(Event{
		TaskID: note.TaskID,
		Result: note.Result.String(),
		Text:   note.Text,
		Long:   note.Long,
		Time:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
