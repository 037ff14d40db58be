package notify

import "github.com/dgnsrekt/ttsbridge/pkg/tts"

type multi []tts.Notifier

// Multi fans a notification out to every non-nil notifier in order.
func Multi(notifiers ...tts.Notifier) tts.Notifier {
	var m multi
	for _, n := range notifiers {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

func (m multi) Notify(note tts.Notification) {
	for _, n := range m {
		n.Notify(note)
	}
}
