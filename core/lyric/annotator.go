package lyric

import (
	"context"
	"errors"
	"strings"
	"sync"

	"SyncFM/logger"
	"SyncFM/metrics"
)

// Placeholder replaces lines whose annotation comes out empty so the display
// keeps its line height.
const Placeholder = "\u00a0"

// rubyMarkup marks text that has already been annotated.
const rubyMarkup = "<ruby>"

// ErrNotReady 分词器尚未加载完成
var ErrNotReady = errors.New("annotator not ready")

// State is the tokenizer lifecycle of an Annotator.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed // 加载失败，歌词保持原文
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Converter turns one line of text into its annotated form.
type Converter interface {
	Convert(text string) (string, error)
}

// ConverterLoader builds a Converter; it may take a while.
type ConverterLoader func(ctx context.Context) (Converter, error)

// LineCache remembers annotated lines across tracks and sessions.
type LineCache interface {
	Get(ctx context.Context, text string) (string, bool)
	Put(ctx context.Context, text, annotated string)
}

// Annotator adds furigana to lyric lines. The converter is loaded once per
// process in the background; until it is ready lines stay as they are, and
// when it becomes ready the OnReady subscriber is notified exactly once.
type Annotator struct {
	mu      sync.Mutex
	state   State
	loader  ConverterLoader
	conv    Converter
	onReady func()

	cache   LineCache
	metrics *metrics.Metrics
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithLineCache sets a cache consulted before converting a line.
func WithLineCache(c LineCache) Option {
	return func(a *Annotator) { a.cache = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Annotator) { a.metrics = m }
}

// NewAnnotator creates an annotator that will load its converter with loader.
func NewAnnotator(loader ConverterLoader, opts ...Option) *Annotator {
	a := &Annotator{loader: loader}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnReady registers the single readiness subscriber, replacing any previous
// one. If the annotator is already ready fn runs right away.
func (a *Annotator) OnReady(fn func()) {
	a.mu.Lock()
	a.onReady = fn
	ready := a.state == StateReady
	a.mu.Unlock()

	if ready && fn != nil {
		fn()
	}
}

// State returns the current lifecycle state.
func (a *Annotator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Ready reports whether Annotate can convert text.
func (a *Annotator) Ready() bool {
	return a.State() == StateReady
}

// Start begins loading the converter in the background. Only the first call
// has any effect.
func (a *Annotator) Start(ctx context.Context) {
	a.mu.Lock()
	if a.state != StateUninitialized {
		a.mu.Unlock()
		return
	}
	a.state = StateInitializing
	a.mu.Unlock()

	logger.Info("loading furigana tokenizer")
	go a.load(ctx)
}

func (a *Annotator) load(ctx context.Context) {
	conv, err := a.loader(ctx)

	a.mu.Lock()
	if err != nil {
		a.state = StateFailed
		a.mu.Unlock()
		logger.Warn("furigana tokenizer unavailable, lyrics stay unannotated", logger.ErrorField(err))
		return
	}
	a.conv = conv
	a.state = StateReady
	fn := a.onReady
	a.mu.Unlock()

	logger.Info("furigana tokenizer ready")
	if a.metrics != nil {
		a.metrics.AnnotatorReady.Set(1)
	}
	if fn != nil {
		fn()
	}
}

// Annotate returns text with reading aids. Already annotated text is returned
// unchanged, and an empty conversion result becomes Placeholder, so
// Annotate(Annotate(x)) == Annotate(x).
func (a *Annotator) Annotate(ctx context.Context, text string) (string, error) {
	if strings.Contains(text, rubyMarkup) {
		return text, nil
	}

	a.mu.Lock()
	conv := a.conv
	ready := a.state == StateReady
	a.mu.Unlock()
	if !ready {
		return text, ErrNotReady
	}

	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, text); ok {
			return cached, nil
		}
	}

	out, err := conv.Convert(text)
	if err != nil {
		return text, err
	}
	if strings.TrimSpace(out) == "" {
		out = Placeholder
	}

	if a.cache != nil {
		a.cache.Put(ctx, text, out)
	}
	return out, nil
}

// BackfillAll rewrites every cue of store with its annotated text, one index
// at a time in order. The store's length and order are untouched, so a Cursor
// reading concurrently sees either the old or the new text of a cue.
func (a *Annotator) BackfillAll(ctx context.Context, store *Store) error {
	if !a.Ready() {
		return ErrNotReady
	}

	n := store.Len()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		orig := store.Text(i)
		out, err := a.Annotate(ctx, orig)
		if err != nil {
			logger.Debug("annotate line failed", logger.Int("index", i), logger.ErrorField(err))
			continue
		}
		if out != orig {
			store.SetText(i, out)
			if a.metrics != nil {
				a.metrics.AnnotatedLines.Inc()
			}
		}
	}
	return nil
}
