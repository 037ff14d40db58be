package tts

import (
	"sync"

	"github.com/google/uuid"
)

// TaskKind identifies the variant of a Task.
type TaskKind int

const (
	KindText TaskKind = iota
	KindFile
)

func (k TaskKind) String() string {
	if k == KindFile {
		return "file"
	}
	return "text"
}

// Task is one synthesis request. The only implementations are *TextTask
// and *FileTask.
type Task interface {
	ID() string
	Kind() TaskKind
	Source() InputSource
	Observer() Observer
	Policy() OutputPolicy
	// ZeroLengthMessage is shown when the input turns out to be empty.
	ZeroLengthMessage() string
	isTask()
}

// Observer follows a task through execution. Callbacks run on the consumer
// goroutine and should return quickly.
type Observer interface {
	OnStart(task Task)
	OnProgress(task Task, done, total int)
	OnComplete(task Task, result TaskResult)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Start    func(Task)
	Progress func(Task, int, int)
	Complete func(Task, TaskResult)
}

func (o ObserverFuncs) OnStart(t Task) {
	if o.Start != nil {
		o.Start(t)
	}
}

func (o ObserverFuncs) OnProgress(t Task, done, total int) {
	if o.Progress != nil {
		o.Progress(t, done, total)
	}
}

func (o ObserverFuncs) OnComplete(t Task, r TaskResult) {
	if o.Complete != nil {
		o.Complete(t, r)
	}
}

// TaskOption configures a task at construction.
type TaskOption func(*taskBase)

// WithObserver attaches an observer. Repeated options add observers; they
// are called in the order given.
func WithObserver(o Observer) TaskOption {
	return func(b *taskBase) {
		switch prev := b.observer.(type) {
		case nil:
			b.observer = o
		case observers:
			b.observer = append(prev, o)
		default:
			b.observer = observers{prev, o}
		}
	}
}

type observers []Observer

func (m observers) OnStart(t Task) {
	for _, o := range m {
		o.OnStart(t)
	}
}

func (m observers) OnProgress(t Task, done, total int) {
	for _, o := range m {
		o.OnProgress(t, done, total)
	}
}

func (m observers) OnComplete(t Task, r TaskResult) {
	for _, o := range m {
		o.OnComplete(t, r)
	}
}

// WithPolicy sets the output policy. The default is PolicyAppend.
func WithPolicy(p OutputPolicy) TaskOption {
	return func(b *taskBase) { b.policy = p }
}

// WithTaskID overrides the generated task ID.
func WithTaskID(id string) TaskOption {
	return func(b *taskBase) { b.id = id }
}

type taskBase struct {
	id       string
	source   InputSource
	observer Observer
	policy   OutputPolicy
}

func newTaskBase(src InputSource, opts []TaskOption) taskBase {
	b := taskBase{source: src}
	for _, opt := range opts {
		opt(&b)
	}
	if b.id == "" {
		b.id = uuid.NewString()
	}
	if b.observer == nil {
		b.observer = ObserverFuncs{}
	}
	return b
}

func (b *taskBase) ID() string           { return b.id }
func (b *taskBase) Source() InputSource  { return b.source }
func (b *taskBase) Observer() Observer   { return b.observer }
func (b *taskBase) Policy() OutputPolicy { return b.policy }

func (b *taskBase) ZeroLengthMessage() string {
	return "Nothing to read in " + b.source.Describe()
}

// TextTask speaks its input aloud.
type TextTask struct {
	taskBase
}

// NewTextTask creates a task that speaks src.
func NewTextTask(src InputSource, opts ...TaskOption) *TextTask {
	return &TextTask{taskBase: newTaskBase(src, opts)}
}

func (*TextTask) Kind() TaskKind { return KindText }
func (*TextTask) isTask()        {}

// FileTask synthesizes its input into an audio file.
type FileTask struct {
	taskBase

	// OutputDir is resolved through the session's DocumentProvider.
	OutputDir string
	// FileName is the requested target name inside OutputDir.
	FileName string

	mu     sync.Mutex
	parts  []string
	output string
}

// NewFileTask creates a task that writes src to fileName inside outputDir.
func NewFileTask(src InputSource, outputDir, fileName string, opts ...TaskOption) *FileTask {
	return &FileTask{
		taskBase:  newTaskBase(src, opts),
		OutputDir: outputDir,
		FileName:  fileName,
	}
}

func (*FileTask) Kind() TaskKind { return KindFile }
func (*FileTask) isTask()        {}

// Parts returns the intermediate files produced so far.
func (t *FileTask) Parts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.parts...)
}

// Output returns the final file path once the task succeeded.
func (t *FileTask) Output() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.output
}

func (t *FileTask) addPart(path string) {
	t.mu.Lock()
	t.parts = append(t.parts, path)
	t.mu.Unlock()
}

func (t *FileTask) setOutput(path string) {
	t.mu.Lock()
	t.output = path
	t.mu.Unlock()
}

var (
	_ Task = (*TextTask)(nil)
	_ Task = (*FileTask)(nil)
)
