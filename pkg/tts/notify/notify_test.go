package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

func startTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	srv := test.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return srv, nc
}

func TestTerminalNotifierTruncatesShortMessages(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminalNotifier(&buf, 12)

	n.Notify(tts.Notification{Result: tts.ResultUnknown, Text: "Text-to-speech failed badly"})

	out := strings.TrimSpace(buf.String())
	assert.Contains(t, out, "…")
	assert.NotContains(t, out, "badly")
}

func TestTerminalNotifierWrapsLongMessages(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminalNotifier(&buf, 20)

	n.Notify(tts.Notification{
		Result: tts.ResultEngineNotReady,
		Text:   "No supported language is installed for text-to-speech",
		Long:   true,
	})

	out := buf.String()
	assert.Contains(t, out, "installed")
	assert.Greater(t, strings.Count(out, "\n"), 1)
}

func TestTerminalNotifierSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTerminalNotifier(&buf, 0).Notify(tts.Notification{})
	assert.Empty(t, buf.String())
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(log.New(&buf))

	n.Notify(tts.Notification{TaskID: "abc", Result: tts.ResultUnavailableInputSource, Text: "Could not read the document"})

	out := buf.String()
	assert.Contains(t, out, "Could not read the document")
	assert.Contains(t, out, "abc")
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify(tts.Notification) { c.n++ }

func TestMulti(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	m := Multi(a, nil, b)

	m.Notify(tts.Notification{Text: "hi"})
	m.Notify(tts.Notification{Text: "again"})

	assert.Equal(t, 2, a.n)
	assert.Equal(t, 2, b.n)
}

func TestNATSNotifierPublishes(t *testing.T) {
	_, nc := startTestServer(t)

	sub, err := nc.SubscribeSync("tasks.events")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	n := NewNATSNotifier(nc, "tasks.events")
	n.Notify(tts.Notification{TaskID: "t-1", Result: tts.ResultZeroLengthInput, Text: "Nothing to read in notes"})

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "t-1", ev.TaskID)
	assert.Equal(t, "zero_length_input", ev.Result)
	assert.Equal(t, "Nothing to read in notes", ev.Text)
	assert.False(t, ev.Time.IsZero())
}

func TestNATSNotifierDefaultSubject(t *testing.T) {
	_, nc := startTestServer(t)

	sub, err := nc.SubscribeSync(DefaultSubject)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	require.NoError(t, NewNATSNotifier(nc, "").Publish(tts.Notification{Text: "hello"}))
	_, err = sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
}

func TestNATSNotifierClosedConnection(t *testing.T) {
	_, nc := startTestServer(t)
	nc.Close()

	err := NewNATSNotifier(nc, "x").Publish(tts.Notification{Text: "hello"})
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}

func TestCommandLauncher(t *testing.T) {
	l := NewCommandLauncher([]string{"true"}, time.Hour)

	require.NoError(t, l.OpenSettings(context.Background()))
	assert.ErrorIs(t, l.OpenSettings(context.Background()), ErrRateLimited)
}

func TestCommandLauncherUnlimited(t *testing.T) {
	l := NewCommandLauncher([]string{"true"}, 0)
	for range 3 {
		require.NoError(t, l.OpenSettings(context.Background()))
	}
}

func TestCommandLauncherErrors(t *testing.T) {
	assert.ErrorIs(t, NewCommandLauncher(nil, 0).OpenSettings(context.Background()), ErrNoCommand)

	err := NewCommandLauncher([]string{"/nonexistent/ttsbridge-settings"}, 0).OpenSettings(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewCommandLauncher([]string{"true"}, 0).OpenSettings(ctx), context.Canceled)
}
