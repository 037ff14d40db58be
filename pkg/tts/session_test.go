package tts_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/text/language"

	"github.com/dgnsrekt/ttsbridge/internal/audio"
	"github.com/dgnsrekt/ttsbridge/pkg/tts"
	"github.com/dgnsrekt/ttsbridge/pkg/tts/engines/mock"
)

const waitFor = 2 * time.Second

type recordingNotifier struct {
	mu    sync.Mutex
	notes []tts.Notification
}

func (r *recordingNotifier) Notify(n tts.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) all() []tts.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tts.Notification(nil), r.notes...)
}

type recordingLauncher struct {
	calls atomic.Int32
	err   error
}

func (l *recordingLauncher) OpenSettings(context.Context) error {
	l.calls.Add(1)
	return l.err
}

type fakeFocus struct {
	mu       sync.Mutex
	grant    bool
	requests int
	releases int
	onLoss   func()
}

func (f *fakeFocus) Request() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return f.grant
}

func (f *fakeFocus) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
}

func (f *fakeFocus) OnLoss(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onLoss = fn
}

func (f *fakeFocus) lose() {
	f.mu.Lock()
	fn := f.onLoss
	f.mu.Unlock()
	fn()
}

func (f *fakeFocus) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests, f.releases
}

type failingDocuments struct{}

func (failingDocuments) ReadText(_ context.Context, loc string) (string, error) {
	return "", fmt.Errorf("open %s: %w", loc, os.ErrNotExist)
}

func (failingDocuments) ResolveOutputDir(_ context.Context, loc string) (string, error) {
	return "", fmt.Errorf("resolve %s: %w", loc, os.ErrNotExist)
}

// unreadableDocuments resolves output folders but cannot read any document.
type unreadableDocuments struct {
	dir string
}

func (unreadableDocuments) ReadText(_ context.Context, loc string) (string, error) {
	return "", fmt.Errorf("open %s: %w", loc, os.ErrPermission)
}

func (d unreadableDocuments) ResolveOutputDir(context.Context, string) (string, error) {
	return d.dir, nil
}

// completions collects task results from an observer.
type completions chan tts.TaskResult

func (c completions) observer() tts.TaskOption {
	return tts.WithObserver(tts.ObserverFuncs{
		Complete: func(_ tts.Task, r tts.TaskResult) { c <- r },
	})
}

func (c completions) next(t *testing.T) tts.TaskResult {
	t.Helper()
	select {
	case r := <-c:
		return r
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for task to complete")
		return tts.TaskResult{}
	}
}

func startedSignal() (chan tts.Task, tts.TaskOption) {
	ch := make(chan tts.Task, 1)
	return ch, tts.WithObserver(tts.ObserverFuncs{
		Start: func(t tts.Task) { ch <- t },
	})
}

func newSession(t *testing.T, eng tts.SpeechEngine, opts ...tts.Option) (*tts.Session, *recordingNotifier) {
	t.Helper()
	rec := &recordingNotifier{}
	factory := func() (tts.SpeechEngine, error) { return eng, nil }
	s := tts.NewSession(factory, append([]tts.Option{tts.WithNotifier(rec)}, opts...)...)
	t.Cleanup(s.ReleaseTTS)
	return s, rec
}

func initSession(t *testing.T, s *tts.Session) tts.Status {
	t.Helper()
	done := make(chan tts.Status, 1)
	s.InitTTS(func(st tts.Status) { done <- st })
	select {
	case st := <-done:
		return st
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for init")
		return tts.StatusError
	}
}

func TestSubmitBeforeInit(t *testing.T) {
	eng := mock.New()
	s, rec := newSession(t, eng)

	_, err := s.ParseText("hello", "greeting")
	require.Error(t, err)
	assert.ErrorIs(t, err, tts.ErrEngineNotReady)
	assert.Equal(t, tts.ResultEngineNotReady, tts.ResultFromError(err))

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, tts.ResultEngineNotReady, notes[0].Result)
	assert.Equal(t, tts.DefaultMessages().EngineNotReady, notes[0].Text)

	assert.Zero(t, eng.Inits())
	assert.Empty(t, eng.SpeakCalls())
	assert.Equal(t, tts.StateUninitialized, s.State())
}

func TestSpeakText(t *testing.T) {
	eng := mock.New()
	s, rec := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))
	assert.Equal(t, tts.StateReady, s.State())
	assert.Equal(t, language.AmericanEnglish, s.Language())

	done := make(completions, 1)
	task, err := s.ParseText("hello", "greeting", done.observer())
	require.NoError(t, err)

	res := done.next(t)
	assert.Equal(t, tts.ResultSuccess, res.Code)
	assert.Same(t, task, res.Task)

	calls := eng.SpeakCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "hello", calls[0].Text)
	assert.Equal(t, tts.QueueAdd, calls[0].Mode)
	assert.True(t, strings.HasPrefix(calls[0].UtteranceID, task.ID()))
	assert.Empty(t, rec.all())
}

func TestSpeakFlushPolicyAndChunks(t *testing.T) {
	eng := mock.New(mock.WithMaxInputLength(16))
	s, _ := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	var progress []int
	done := make(completions, 1)
	_, err := s.ParseText("First sentence. Second sentence. Third.", "doc",
		tts.WithPolicy(tts.PolicyFlush),
		tts.WithObserver(tts.ObserverFuncs{
			Progress: func(_ tts.Task, n, _ int) { progress = append(progress, n) },
			Complete: func(_ tts.Task, r tts.TaskResult) { done <- r },
		}))
	require.NoError(t, err)
	require.Equal(t, tts.ResultSuccess, done.next(t).Code)

	calls := eng.SpeakCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, tts.QueueFlush, calls[0].Mode)
	assert.Equal(t, tts.QueueAdd, calls[1].Mode)
	assert.Equal(t, tts.QueueAdd, calls[2].Mode)
	assert.Equal(t, "Third.", calls[2].Text)
	assert.Equal(t, []int{1, 2, 3}, progress)
}

func TestInitWhenReadyIsNoop(t *testing.T) {
	eng := mock.New()
	var built atomic.Int32
	s := tts.NewSession(func() (tts.SpeechEngine, error) {
		built.Add(1)
		return eng, nil
	})
	t.Cleanup(s.ReleaseTTS)

	require.Equal(t, tts.StatusSuccess, initSession(t, s))
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	assert.EqualValues(t, 1, built.Load())
	assert.Equal(t, 1, eng.Inits())
}

func TestConcurrentInitSharesOutcome(t *testing.T) {
	eng := mock.New(mock.WithAsyncInit())
	var built atomic.Int32
	s := tts.NewSession(func() (tts.SpeechEngine, error) {
		built.Add(1)
		return eng, nil
	})
	t.Cleanup(s.ReleaseTTS)

	const callers = 8
	statuses := make(chan tts.Status, callers)
	for range callers {
		go s.InitTTS(func(st tts.Status) { statuses <- st })
	}
	for range callers {
		select {
		case st := <-statuses:
			assert.Equal(t, tts.StatusSuccess, st)
		case <-time.After(waitFor):
			t.Fatal("init callback missing")
		}
	}
	assert.EqualValues(t, 1, built.Load())
	assert.True(t, s.Ready())
}

func TestInitNoLanguage(t *testing.T) {
	eng := mock.New(mock.WithLanguages(language.Japanese))
	launcher := &recordingLauncher{}
	s, rec := newSession(t, eng,
		tts.WithLanguages(language.French, language.German),
		tts.WithSettingsLauncher(launcher),
	)

	// The callback sees the engine's raw status even though the session failed.
	assert.Equal(t, tts.StatusSuccess, initSession(t, s))
	assert.Equal(t, tts.StateFailed, s.State())

	reason, msg := s.Failure()
	assert.Equal(t, tts.FailureNoLanguage, reason)
	assert.Equal(t, tts.DefaultMessages().NoLanguage, msg)
	assert.Equal(t, 1, eng.Shutdowns())
	assert.Zero(t, launcher.calls.Load())

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.True(t, notes[0].Long)
	assert.Equal(t, msg, notes[0].Text)

	// Later submissions repeat the stored failure message.
	_, err := s.ParseText("hello", "")
	assert.ErrorIs(t, err, tts.ErrEngineNotReady)
	notes = rec.all()
	require.Len(t, notes, 2)
	assert.Equal(t, msg, notes[1].Text)
}

func TestInitFailureOpensSettings(t *testing.T) {
	tests := []struct {
		name    string
		factory tts.EngineFactory
		status  tts.Status
		reason  tts.FailureReason
	}{
		{
			name: "engine reports failure",
			factory: func() (tts.SpeechEngine, error) {
				return mock.New(mock.WithInitStatus(tts.StatusError)), nil
			},
			status: tts.StatusError,
			reason: tts.FailureInitFailed,
		},
		{
			name: "no engines installed",
			factory: func() (tts.SpeechEngine, error) {
				return mock.New(mock.WithInitStatus(tts.StatusError), mock.WithEngines()), nil
			},
			status: tts.StatusError,
			reason: tts.FailureNoUsableEngine,
		},
		{
			name: "factory finds nothing",
			factory: func() (tts.SpeechEngine, error) {
				return nil, fmt.Errorf("discover: %w", tts.ErrNoUsableEngine)
			},
			status: tts.StatusError,
			reason: tts.FailureNoUsableEngine,
		},
		{
			name: "factory error",
			factory: func() (tts.SpeechEngine, error) {
				return nil, errors.New("boom")
			},
			status: tts.StatusError,
			reason: tts.FailureInitFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := &recordingLauncher{}
			rec := &recordingNotifier{}
			s := tts.NewSession(tt.factory, tts.WithNotifier(rec), tts.WithSettingsLauncher(launcher))
			t.Cleanup(s.ReleaseTTS)

			assert.Equal(t, tt.status, initSession(t, s))
			assert.Equal(t, tts.StateFailed, s.State())
			reason, _ := s.Failure()
			assert.Equal(t, tt.reason, reason)
			assert.EqualValues(t, 1, launcher.calls.Load())
			assert.Empty(t, rec.all())
		})
	}
}

func TestInitFailureNotifiesWithoutSettings(t *testing.T) {
	failing := func() (tts.SpeechEngine, error) {
		return mock.New(mock.WithInitStatus(tts.StatusError)), nil
	}

	tests := []struct {
		name string
		opts []tts.Option
	}{
		{name: "no launcher"},
		{name: "launcher fails", opts: []tts.Option{tts.WithSettingsLauncher(&recordingLauncher{err: errors.New("no settings app")})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingNotifier{}
			s := tts.NewSession(failing, append([]tts.Option{tts.WithNotifier(rec)}, tt.opts...)...)
			t.Cleanup(s.ReleaseTTS)

			assert.Equal(t, tts.StatusError, initSession(t, s))
			assert.Equal(t, tts.StateFailed, s.State())

			_, msg := s.Failure()
			notes := rec.all()
			require.Len(t, notes, 1)
			assert.Equal(t, tts.ResultEngineNotReady, notes[0].Result)
			assert.Equal(t, msg, notes[0].Text)
			assert.True(t, notes[0].Long)
		})
	}
}

func TestInitAfterFailureRetries(t *testing.T) {
	var attempts atomic.Int32
	s := tts.NewSession(func() (tts.SpeechEngine, error) {
		if attempts.Add(1) == 1 {
			return mock.New(mock.WithInitStatus(tts.StatusError)), nil
		}
		return mock.New(), nil
	})
	t.Cleanup(s.ReleaseTTS)

	assert.Equal(t, tts.StatusError, initSession(t, s))
	assert.Equal(t, tts.StatusSuccess, initSession(t, s))
	assert.True(t, s.Ready())
	reason, msg := s.Failure()
	assert.Equal(t, tts.FailureNone, reason)
	assert.Empty(t, msg)
}

func TestReleaseIsIdempotent(t *testing.T) {
	eng := mock.New()
	s, _ := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	s.ReleaseTTS()
	s.ReleaseTTS()

	assert.Equal(t, tts.StateUninitialized, s.State())
	assert.Equal(t, 1, eng.Shutdowns())
	assert.Equal(t, language.Und, s.Language())

	_, err := s.ParseText("hello", "")
	assert.ErrorIs(t, err, tts.ErrEngineNotReady)
	assert.Empty(t, eng.SpeakCalls())
}

// deferredInit holds the init callback until the test fires it.
type deferredInit struct {
	*mock.Engine
	done chan func(tts.Status)
}

func (d *deferredInit) Init(done func(tts.Status)) { d.done <- done }

func TestReleaseDuringInit(t *testing.T) {
	eng := &deferredInit{Engine: mock.New(), done: make(chan func(tts.Status), 1)}
	s, _ := newSession(t, eng)

	got := make(chan tts.Status, 1)
	s.InitTTS(func(st tts.Status) { got <- st })
	assert.Equal(t, tts.StateInitializing, s.State())

	var fire func(tts.Status)
	select {
	case fire = <-eng.done:
	case <-time.After(waitFor):
		t.Fatal("engine init never called")
	}

	s.ReleaseTTS()
	select {
	case st := <-got:
		assert.Equal(t, tts.StatusError, st)
	case <-time.After(waitFor):
		t.Fatal("pending init callback not called on release")
	}

	// A late success from the abandoned engine must not revive the session.
	fire(tts.StatusSuccess)
	assert.Equal(t, tts.StateUninitialized, s.State())
	assert.Equal(t, 1, eng.Shutdowns())
}

func TestPendingTaskIsReplaced(t *testing.T) {
	eng := mock.New(mock.WithDelay(200 * time.Millisecond))
	s, rec := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	started, startOpt := startedSignal()
	_, err := s.ParseText("first", "", startOpt)
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("first task never started")
	}

	var secondStarted atomic.Bool
	_, err = s.ParseText("second", "", tts.WithObserver(tts.ObserverFuncs{
		Start: func(tts.Task) { secondStarted.Store(true) },
	}))
	require.NoError(t, err)

	done := make(completions, 1)
	_, err = s.ParseText("third", "", done.observer())
	require.NoError(t, err)
	require.Equal(t, tts.ResultSuccess, done.next(t).Code)

	var texts []string
	for _, c := range eng.SpeakCalls() {
		texts = append(texts, c.Text)
	}
	assert.Equal(t, []string{"first", "third"}, texts)
	assert.False(t, secondStarted.Load())

	stats := s.Stats()
	assert.EqualValues(t, 3, stats.Submitted)
	assert.EqualValues(t, 1, stats.Dropped)
	assert.Empty(t, rec.all())
}

func TestStopTaskInterruptsAndRestarts(t *testing.T) {
	eng := mock.New(mock.WithBlockingSpeak())
	s, rec := newSession(t, eng)

	assert.False(t, s.StopTask(), "stop before init has no engine to stop")

	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	started, startOpt := startedSignal()
	done := make(completions, 1)
	_, err := s.ParseText("long read", "", startOpt, done.observer())
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("task never started")
	}
	require.Eventually(t, func() bool { return len(eng.SpeakCalls()) == 1 }, waitFor, 5*time.Millisecond)

	assert.True(t, s.StopTask())
	assert.Equal(t, tts.ResultInterrupted, done.next(t).Code)
	assert.Equal(t, 1, eng.Stops())

	// The restarted loop keeps accepting work.
	next, nextOpt := startedSignal()
	_, err = s.ParseText("again", "", nextOpt)
	require.NoError(t, err)
	select {
	case <-next:
	case <-time.After(waitFor):
		t.Fatal("task after stop never started")
	}
	assert.Empty(t, rec.all())
}

func TestStopTaskReportsEngineFailure(t *testing.T) {
	eng := mock.New(mock.WithStopError(errors.New("busy")))
	s, _ := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	assert.False(t, s.StopTask())
	assert.True(t, s.Ready())
}

func TestFocusLossStopsSpeech(t *testing.T) {
	eng := mock.New(mock.WithBlockingSpeak())
	focus := &fakeFocus{grant: true}
	s, _ := newSession(t, eng, tts.WithFocus(focus))
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	_, err := s.ParseText("hello", "", done.observer())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(eng.SpeakCalls()) == 1 }, waitFor, 5*time.Millisecond)

	focus.lose()
	assert.Equal(t, tts.ResultInterrupted, done.next(t).Code)
	assert.Equal(t, 1, eng.Stops())

	requests, releases := focus.counts()
	assert.Equal(t, 1, requests)
	assert.Equal(t, 1, releases)
}

func TestFocusDeniedStillSpeaks(t *testing.T) {
	eng := mock.New()
	focus := &fakeFocus{grant: false}
	s, _ := newSession(t, eng, tts.WithFocus(focus))
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	_, err := s.ParseText("hello", "", done.observer())
	require.NoError(t, err)
	assert.Equal(t, tts.ResultSuccess, done.next(t).Code)
	assert.Len(t, eng.SpeakCalls(), 1)
}

func TestUnreadableDocument(t *testing.T) {
	eng := mock.New()
	s, rec := newSession(t, eng, tts.WithDocuments(failingDocuments{}))
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	_, err := s.ParseDocument(tts.DocumentReference{Locator: "file:///missing.md"}, done.observer())
	require.NoError(t, err)

	res := done.next(t)
	assert.Equal(t, tts.ResultUnavailableInputSource, res.Code)
	assert.ErrorIs(t, res.Err, os.ErrNotExist)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, 5*time.Millisecond)
	notes := rec.all()
	assert.Equal(t, tts.ResultUnavailableInputSource, notes[0].Result)
	assert.Equal(t, tts.DefaultMessages().UnavailableInputSource, notes[0].Text)
	assert.Empty(t, eng.SpeakCalls())
}

func TestParseFileUnreadableDocument(t *testing.T) {
	dir := t.TempDir()
	eng := mock.New()
	s, rec := newSession(t, eng, tts.WithDocuments(unreadableDocuments{dir: dir}))
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	_, err := s.ParseFile(tts.DocumentReference{Locator: "file:///locked.md"}, "file:///out", "locked.wav", done.observer())
	require.NoError(t, err)

	res := done.next(t)
	assert.Equal(t, tts.ResultUnavailableInputSource, res.Code)
	assert.ErrorIs(t, res.Err, os.ErrPermission)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(rec.all()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, tts.DefaultMessages().UnavailableInputSource, rec.all()[0].Text)
	assert.Empty(t, eng.FileCalls())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSpeakTimeoutIsReported(t *testing.T) {
	eng := mock.New(mock.WithSpeakError(fmt.Errorf("piper: %w", context.DeadlineExceeded)))
	s, rec := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	_, err := s.ParseText("hello", "", done.observer())
	require.NoError(t, err)

	res := done.next(t)
	assert.Equal(t, tts.ResultUnknown, res.Code)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, tts.DefaultMessages().Unknown, rec.all()[0].Text)
}

func TestResultFromError(t *testing.T) {
	assert.Equal(t, tts.ResultSuccess, tts.ResultFromError(nil))
	assert.Equal(t, tts.ResultInterrupted, tts.ResultFromError(fmt.Errorf("speak: %w", context.Canceled)))
	assert.Equal(t, tts.ResultUnknown, tts.ResultFromError(fmt.Errorf("speak: %w", context.DeadlineExceeded)))
	assert.Equal(t, tts.ResultZeroLengthInput, tts.ResultFromError(tts.ErrZeroLengthInput))
}

func TestObserversCompose(t *testing.T) {
	s, _ := newSession(t, mock.New())
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	started, startOpt := startedSignal()
	done := make(completions, 1)
	_, err := s.ParseText("hello", "", startOpt, done.observer())
	require.NoError(t, err)

	assert.Equal(t, tts.ResultSuccess, done.next(t).Code)
	select {
	case <-started:
	default:
		t.Fatal("start observer not called")
	}
}

func TestZeroLengthInput(t *testing.T) {
	eng := mock.New()
	s, rec := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	_, err := s.ParseText("   \n\t", "shopping list", done.observer())
	require.NoError(t, err)
	assert.Equal(t, tts.ResultZeroLengthInput, done.next(t).Code)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "Nothing to read in shopping list", rec.all()[0].Text)
}

func TestSpeakErrorReportsUnknown(t *testing.T) {
	eng := mock.New(mock.WithSpeakError(errors.New("device gone")))
	s, rec := newSession(t, eng, tts.WithMessages(tts.Messages{Unknown: "Speech failed"}))
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	_, err := s.ParseText("hello", "", done.observer())
	require.NoError(t, err)
	assert.Equal(t, tts.ResultUnknown, done.next(t).Code)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "Speech failed", rec.all()[0].Text)
}

// panicky panics while speaking.
type panicky struct{ *mock.Engine }

func (panicky) Speak(context.Context, string, tts.QueueMode, string) error {
	panic("synthesizer exploded")
}

func TestPanicInTaskIsContained(t *testing.T) {
	s, rec := newSession(t, panicky{mock.New()})
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	_, err := s.ParseText("hello", "", done.observer())
	require.NoError(t, err)
	assert.Equal(t, tts.ResultUnknown, done.next(t).Code)
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, 5*time.Millisecond)

	_, err = s.ParseText("again", "", done.observer())
	require.NoError(t, err)
	assert.Equal(t, tts.ResultUnknown, done.next(t).Code)
}

func TestParseFileMergesParts(t *testing.T) {
	dir := t.TempDir()
	eng := mock.New(mock.WithMaxInputLength(12))
	s, rec := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	text := "One two. Three four. Five six."
	done := make(completions, 1)
	task, err := s.ParseFile(tts.CharSequence{Text: text}, dir, "speech.wav", done.observer())
	require.NoError(t, err)
	require.Equal(t, tts.ResultSuccess, done.next(t).Code)

	assert.Equal(t, filepath.Join(dir, "speech.wav"), task.Output())
	require.Len(t, eng.FileCalls(), 3)
	assert.Len(t, task.Parts(), 3)

	data, err := os.ReadFile(task.Output())
	require.NoError(t, err)
	f, pcm, err := audio.ParseWAV(data)
	require.NoError(t, err)
	assert.Equal(t, audio.DefaultFormat(), f)

	var want int
	for _, c := range eng.FileCalls() {
		want += 2 * len(c.Text)
	}
	assert.Len(t, pcm, want)

	// Only the merged file remains.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Empty(t, rec.all())
}

func TestParseFileOutputPolicy(t *testing.T) {
	dir := t.TempDir()
	eng := mock.New()
	s, _ := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	run := func(policy tts.OutputPolicy) *tts.FileTask {
		done := make(completions, 1)
		task, err := s.ParseFile(tts.CharSequence{Text: "hi"}, dir, "note", done.observer(), tts.WithPolicy(policy))
		require.NoError(t, err)
		require.Equal(t, tts.ResultSuccess, done.next(t).Code)
		return task
	}

	assert.Equal(t, filepath.Join(dir, "note.wav"), run(tts.PolicyAppend).Output())
	assert.Equal(t, filepath.Join(dir, "note (1).wav"), run(tts.PolicyAppend).Output())
	assert.Equal(t, filepath.Join(dir, "note (2).wav"), run(tts.PolicyAppend).Output())
	assert.Equal(t, filepath.Join(dir, "note.wav"), run(tts.PolicyFlush).Output())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestParseFileMissingOutputDir(t *testing.T) {
	eng := mock.New()
	s, rec := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := s.ParseFile(tts.CharSequence{Text: "hi"}, missing, "a.wav", done.observer())
	require.NoError(t, err)
	assert.Equal(t, tts.ResultUnavailableOutputDir, done.next(t).Code)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, tts.DefaultMessages().UnavailableOutputDir, rec.all()[0].Text)
	assert.Empty(t, eng.FileCalls())
}

func TestParseFileReadOnlyOutputDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { os.Chmod(dir, 0o700) })

	s, rec := newSession(t, mock.New())
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	_, err := s.ParseFile(tts.CharSequence{Text: "hi"}, dir, "a.wav", done.observer())
	require.NoError(t, err)
	assert.Equal(t, tts.ResultUnwritableOutputDir, done.next(t).Code)
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, 5*time.Millisecond)
}

func TestParseFileSynthesisFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	eng := mock.New(mock.WithFileError(errors.New("engine crashed")))
	s, _ := newSession(t, eng)
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	task, err := s.ParseFile(tts.CharSequence{Text: "hi"}, dir, "a.wav", done.observer())
	require.NoError(t, err)
	assert.Equal(t, tts.ResultUnknown, done.next(t).Code)
	assert.Empty(t, task.Output())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSessionSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s, _ := newSession(t, mock.New(), tts.WithTracer(tp.Tracer("test")))
	require.Equal(t, tts.StatusSuccess, initSession(t, s))

	done := make(completions, 1)
	_, err := s.ParseText("hello", "", done.observer())
	require.NoError(t, err)
	done.next(t)

	require.Eventually(t, func() bool { return len(sr.Ended()) == 2 }, waitFor, 5*time.Millisecond)
	names := []string{sr.Ended()[0].Name(), sr.Ended()[1].Name()}
	assert.ElementsMatch(t, []string{"tts.init", "tts.task"}, names)
}

func TestDefaultSession(t *testing.T) {
	t.Cleanup(tts.ResetDefault)

	factory := func() (tts.SpeechEngine, error) { return mock.New(), nil }
	a := tts.Default(factory)
	b := tts.Default(nil)
	assert.Same(t, a, b)

	require.Equal(t, tts.StatusSuccess, initSession(t, a))
	tts.ResetDefault()
	assert.Equal(t, tts.StateUninitialized, a.State())

	c := tts.Default(factory)
	assert.NotSame(t, a, c)
}
