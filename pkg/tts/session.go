package tts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/dgnsrekt/ttsbridge/internal/metrics"
	"github.com/dgnsrekt/ttsbridge/internal/queue"
	"github.com/dgnsrekt/ttsbridge/internal/runner"
)

const instrumentationName = "github.com/dgnsrekt/ttsbridge/pkg/tts"

// Session owns one speech engine and the consumer loop that feeds it.
//
// State moves Uninitialized -> Initializing -> Ready or Failed, and back to
// Uninitialized on ReleaseTTS. Tasks are only accepted while Ready and run
// strictly one after another.
type Session struct {
	factory   EngineFactory
	notifier  Notifier
	settings  SettingsLauncher
	docs      DocumentProvider
	focus     FocusController
	messages  Messages
	languages []language.Tag
	pitch     float64
	rate      float64
	maxInput  int
	logger    *log.Logger
	tracer    trace.Tracer

	ctx    context.Context
	queue  *queue.Slot[Task]
	runner *runner.Runner[Task]

	mu        sync.Mutex
	state     EngineState
	engine    SpeechEngine
	lang      language.Tag
	failure   FailureReason
	initError string
	gen       uint64
	pending   []func(Status)
	initSpan  trace.Span
	results   map[ResultCode]int64

	// stopMu serializes StopTask.
	stopMu sync.Mutex
}

// NewSession creates an uninitialized session that builds its engine with
// factory.
func NewSession(factory EngineFactory, opts ...Option) *Session {
	s := &Session{
		factory:   factory,
		messages:  DefaultMessages(),
		languages: DefaultLanguages,
		pitch:     1.0,
		rate:      1.0,
		ctx:       context.Background(),
		results:   make(map[ResultCode]int64),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = log.Default().With("component", "tts")
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(instrumentationName)
	}
	if s.notifier == nil {
		s.notifier = NotifierFunc(func(Notification) {})
	}
	s.messages = s.messages.withDefaults()

	s.queue = queue.New(s.onDrop)
	s.runner = runner.New[Task](s.queue, s.execute,
		runner.WithLogger[Task](s.logger),
		runner.WithPanicHandler[Task](s.onPanic),
	)

	if s.focus != nil {
		s.focus.OnLoss(s.onFocusLoss)
	}
	return s
}

// InitTTS brings the engine up and calls cb with the engine's raw status.
// When the session is already Ready, cb is called immediately with
// StatusSuccess and nothing is restarted. Calls made while initialization
// is in flight wait for the same outcome.
func (s *Session) InitTTS(cb func(Status)) {
	if cb == nil {
		cb = func(Status) {}
	}

	s.mu.Lock()
	switch s.state {
	case StateReady:
		s.mu.Unlock()
		cb(StatusSuccess)
		return
	case StateInitializing:
		s.pending = append(s.pending, cb)
		s.mu.Unlock()
		return
	}

	s.gen++
	gen := s.gen
	s.setStateLocked(StateInitializing)
	s.failure, s.initError = FailureNone, ""
	s.pending = []func(Status){cb}
	_, s.initSpan = s.tracer.Start(s.ctx, "tts.init")
	// Subscribe before the engine exists so the loop is in place the moment
	// the session turns Ready.
	s.runner.Start(s.ctx)
	s.mu.Unlock()

	s.logger.Debug("Initializing speech engine", "generation", gen)

	eng, err := s.factory()
	if err != nil {
		reason := FailureInitFailed
		if errors.Is(err, ErrNoUsableEngine) {
			reason = FailureNoUsableEngine
		}
		s.logger.Error("Failed to create speech engine", "error", err)
		s.failInit(gen, reason, StatusError)
		return
	}

	var once sync.Once
	eng.Init(func(status Status) {
		once.Do(func() { s.onEngineInit(gen, eng, status) })
	})
}

func (s *Session) onEngineInit(gen uint64, eng SpeechEngine, status Status) {
	if !s.isCurrent(gen) {
		s.logger.Debug("Discarding engine from a superseded init", "generation", gen)
		eng.Shutdown()
		return
	}

	if status != StatusSuccess {
		reason := FailureInitFailed
		if len(eng.Engines()) == 0 {
			reason = FailureNoUsableEngine
		}
		eng.Shutdown()
		s.failInit(gen, reason, status)
		return
	}

	if err := eng.SetPitch(s.pitch); err != nil {
		s.logger.Warn("Failed to set pitch", "pitch", s.pitch, "error", err)
	}
	if err := eng.SetSpeechRate(s.rate); err != nil {
		s.logger.Warn("Failed to set speech rate", "rate", s.rate, "error", err)
	}

	tag, ok := SelectLanguage(s.languages, eng.Languages())
	if ok {
		if err := eng.SetLanguage(tag); err != nil {
			s.logger.Warn("Engine rejected language", "language", tag, "error", err)
			ok = false
		}
	}
	if !ok {
		eng.Shutdown()
		s.failInit(gen, FailureNoLanguage, status)
		return
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateInitializing {
		s.mu.Unlock()
		eng.Shutdown()
		return
	}
	s.engine = eng
	s.lang = tag
	s.setStateLocked(StateReady)
	callbacks := s.pending
	s.pending = nil
	span := s.initSpan
	s.initSpan = nil
	s.mu.Unlock()

	span.SetAttributes(attribute.String("tts.language", tag.String()))
	span.SetStatus(codes.Ok, "")
	span.End()
	metrics.EngineInits.WithLabelValues("ready").Inc()
	s.logger.Info("Speech engine ready", "language", tag)

	for _, cb := range callbacks {
		cb(status)
	}
}

func (s *Session) failInit(gen uint64, reason FailureReason, status Status) {
	s.mu.Lock()
	if s.gen != gen || s.state != StateInitializing {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateFailed)
	s.failure = reason
	s.initError = s.messages.ForFailure(reason)
	msg := s.initError
	callbacks := s.pending
	s.pending = nil
	span := s.initSpan
	s.initSpan = nil
	s.runner.Stop()
	s.mu.Unlock()

	span.SetStatus(codes.Error, reason.String())
	span.End()
	metrics.EngineInits.WithLabelValues(outcomeLabel(reason)).Inc()
	s.logger.Error("Speech engine initialization failed", "reason", reason, "status", status)

	if !reason.opensSettings() || !s.openSettings() {
		s.notifier.Notify(Notification{Result: ResultEngineNotReady, Text: msg, Long: true})
	}

	for _, cb := range callbacks {
		cb(status)
	}
}

// openSettings reports whether the settings launcher ran.
func (s *Session) openSettings() bool {
	if s.settings == nil {
		return false
	}
	if err := s.settings.OpenSettings(s.ctx); err != nil {
		s.logger.Warn("Failed to open speech settings", "error", err)
		return false
	}
	return true
}

// ReleaseTTS stops any speech, shuts the engine down, stops the consumer
// loop and abandons audio focus. It is safe to call repeatedly.
func (s *Session) ReleaseTTS() {
	s.mu.Lock()
	prev := s.state
	eng := s.engine
	s.engine = nil
	s.gen++
	s.lang = language.Und
	s.setStateLocked(StateUninitialized)
	callbacks := s.pending
	s.pending = nil
	span := s.initSpan
	s.initSpan = nil
	s.mu.Unlock()

	if eng != nil {
		if err := eng.Stop(); err != nil {
			s.logger.Debug("Engine stop during release failed", "error", err)
		}
		eng.Shutdown()
	}
	s.runner.Stop()
	if s.focus != nil {
		s.focus.Release()
	}

	if span != nil {
		span.SetStatus(codes.Error, "released during init")
		span.End()
	}
	if prev != StateUninitialized {
		s.logger.Info("Speech engine released", "from", prev)
	}
	for _, cb := range callbacks {
		cb(StatusError)
	}
}

// StopTask interrupts whatever the engine is doing and restarts the
// consumer loop so a stuck task cannot block later ones. It reports whether
// the engine accepted the stop, not whether anything was playing.
func (s *Session) StopTask() bool {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	s.mu.Lock()
	eng := s.engine
	s.mu.Unlock()

	ok := false
	if eng != nil {
		if err := eng.Stop(); err != nil {
			s.logger.Warn("Engine stop failed", "error", err)
		} else {
			ok = true
		}
	}

	s.mu.Lock()
	if s.state == StateReady {
		s.runner.Start(s.ctx)
	}
	s.mu.Unlock()

	metrics.StopRequests.WithLabelValues(strconv.FormatBool(ok)).Inc()
	s.logger.Debug("Stop requested", "ok", ok)
	return ok
}

// ParseText queues text to be spoken.
func (s *Session) ParseText(text, description string, opts ...TaskOption) (*TextTask, error) {
	t := NewTextTask(CharSequence{Text: text, Description: description}, opts...)
	return t, s.Submit(t)
}

// ParseDocument queues a document to be spoken.
func (s *Session) ParseDocument(ref DocumentReference, opts ...TaskOption) (*TextTask, error) {
	t := NewTextTask(ref, opts...)
	return t, s.Submit(t)
}

// ParseFile queues src to be synthesized into fileName inside outputDir.
func (s *Session) ParseFile(src InputSource, outputDir, fileName string, opts ...TaskOption) (*FileTask, error) {
	t := NewFileTask(src, outputDir, fileName, opts...)
	return t, s.Submit(t)
}

// Submit queues task, replacing any task still waiting to start. It fails
// fast with ErrEngineNotReady, after notifying the user, when the session
// is not Ready.
func (s *Session) Submit(task Task) error {
	kind := task.Kind().String()

	s.mu.Lock()
	state := s.state
	accepted := state == StateReady && s.queue.Submit(task)
	initError := s.initError
	s.mu.Unlock()

	if !accepted {
		metrics.TasksSubmitted.WithLabelValues(kind, "rejected").Inc()
		s.logger.Warn("Rejected task, engine not ready", "id", task.ID(), "state", state)
		res := TaskResult{Code: ResultEngineNotReady, Task: task}
		s.notifier.Notify(Notification{
			TaskID: task.ID(),
			Result: ResultEngineNotReady,
			Text:   s.messages.ForResult(res, initError),
		})
		return newError("submit", ResultEngineNotReady, ErrEngineNotReady)
	}

	metrics.TasksSubmitted.WithLabelValues(kind, "accepted").Inc()
	s.logger.Debug("Task queued", "id", task.ID(), "kind", kind)
	return nil
}

// State returns the engine state.
func (s *Session) State() EngineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready reports whether tasks are accepted.
func (s *Session) Ready() bool {
	return s.State() == StateReady
}

// Failure returns why the last initialization failed and the stored message.
func (s *Session) Failure() (FailureReason, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure, s.initError
}

// Language returns the language selected during init, or language.Und.
func (s *Session) Language() language.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Stats is a snapshot of session activity.
type Stats struct {
	State     EngineState
	Submitted int64
	Rejected  int64
	Dropped   int64
	Results   map[ResultCode]int64
}

// Stats returns a snapshot of session activity.
func (s *Session) Stats() Stats {
	q := s.queue.Stats()
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make(map[ResultCode]int64, len(s.results))
	for k, v := range s.results {
		results[k] = v
	}
	return Stats{
		State:     s.state,
		Submitted: q.Submitted,
		Rejected:  q.Rejected,
		Dropped:   q.Dropped,
		Results:   results,
	}
}

func (s *Session) execute(ctx context.Context, task Task) {
	eng := s.readyEngine()
	if eng == nil {
		// Released between submission and consumption.
		s.logger.Debug("Dropping task, engine released", "id", task.ID())
		return
	}

	kind := task.Kind().String()
	ctx, span := s.tracer.Start(ctx, "tts.task", trace.WithAttributes(
		attribute.String("tts.task.id", task.ID()),
		attribute.String("tts.task.kind", kind),
	))
	defer span.End()

	task.Observer().OnStart(task)

	start := time.Now()
	res := s.begin(ctx, eng, task)
	res.Duration = time.Since(start)

	span.SetAttributes(attribute.String("tts.task.result", res.Code.String()))
	if res.Code != ResultSuccess && res.Code != ResultInterrupted {
		span.SetStatus(codes.Error, res.Code.String())
	}
	metrics.TaskDuration.WithLabelValues(kind).Observe(res.Duration.Seconds())

	s.complete(task, res)
}

func (s *Session) complete(task Task, res TaskResult) {
	metrics.TaskResults.WithLabelValues(task.Kind().String(), res.Code.String()).Inc()

	s.mu.Lock()
	s.results[res.Code]++
	initError := s.initError
	s.mu.Unlock()

	if res.Err != nil && res.Code != ResultInterrupted {
		s.logger.Warn("Task failed", "id", task.ID(), "result", res.Code, "error", res.Err)
	} else {
		s.logger.Debug("Task finished", "id", task.ID(), "result", res.Code, "duration", res.Duration)
	}

	task.Observer().OnComplete(task, res)

	if msg := s.messages.ForResult(res, initError); msg != "" {
		s.notifier.Notify(Notification{TaskID: task.ID(), Result: res.Code, Text: msg})
	}
}

func (s *Session) onDrop(task Task) {
	metrics.TasksDropped.WithLabelValues(task.Kind().String()).Inc()
	s.logger.Debug("Replaced pending task", "id", task.ID())
}

func (s *Session) onPanic(task Task, p any) {
	s.complete(task, TaskResult{
		Code: ResultUnknown,
		Task: task,
		Err:  fmt.Errorf("task panicked: %v", p),
	})
}

func (s *Session) onFocusLoss() {
	s.logger.Info("Audio focus lost, stopping speech")
	s.StopTask()
}

func (s *Session) readyEngine() SpeechEngine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil
	}
	return s.engine
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.state == StateInitializing
}

// setStateLocked must be called with mu held.
func (s *Session) setStateLocked(st EngineState) {
	if s.state != st {
		s.logger.Debug("Engine state changed", "from", s.state, "to", st)
	}
	s.state = st
	metrics.EngineState.Set(float64(st))
}

func outcomeLabel(r FailureReason) string {
	switch r {
	case FailureNoUsableEngine:
		return "no_usable_engine"
	case FailureNoLanguage:
		return "no_language"
	default:
		return "failed"
	}
}
