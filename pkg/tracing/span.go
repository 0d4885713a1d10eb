// Package tracing times the stages of a long-running job. A root span is
// carried in the context, stages hang off it as children, and the finished
// tree is written to slog with one record per span.
package tracing

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// Span is one timed stage. It is safe to end and annotate from the
// goroutine running the stage while the parent collects timings.
type Span struct {
	Name    string
	TraceID string

	mu       sync.Mutex
	start    time.Time
	end      time.Time
	children []*Span
	attrs    map[string]any
}

func newSpan(name, traceID string) *Span {
	return &Span{Name: name, TraceID: traceID, start: time.Now(), attrs: make(map[string]any)}
}

// StartSpan begins a root span and stores it in the returned context. An
// empty traceID gets a random one.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	span := newSpan(name, traceID)
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan begins a stage under the span in ctx. Without a parent the
// span is standalone and has no trace ID.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	var traceID string
	if parent != nil {
		traceID = parent.TraceID
	}
	child := newSpan(name, traceID)
	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// End stops the clock. Only the first call counts.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.end.IsZero() {
		s.end = time.Now()
	}
}

// Duration is the elapsed time so far for a running span.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durationLocked()
}

func (s *Span) durationLocked() time.Duration {
	if s.end.IsZero() {
		return time.Since(s.start)
	}
	return s.end.Sub(s.start)
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// Timing is the flattened duration of one stage.
type Timing struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Timings returns the direct children of s ordered by start time. Stages
// fitted concurrently may finish in any order.
func (s *Span) Timings() []Timing {
	s.mu.Lock()
	children := slices.Clone(s.children)
	s.mu.Unlock()

	slices.SortStableFunc(children, func(a, b *Span) int { return a.start.Compare(b.start) })
	out := make([]Timing, 0, len(children))
	for _, c := range children {
		out = append(out, Timing{Name: c.Name, Duration: c.Duration()})
	}
	return out
}

// Log writes the span tree to logger, or slog.Default when nil. Attributes
// are emitted in key order.
func (s *Span) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.log(logger, 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, s.attrs[k]))
	}
	duration := s.durationLocked()
	children := slices.Clone(s.children)
	s.mu.Unlock()

	logger.LogAttrs(context.Background(), slog.LevelInfo, "span",
		slog.String("trace_id", s.TraceID),
		slog.String("span", s.Name),
		slog.Int64("duration_ms", duration.Milliseconds()),
		slog.Int("depth", depth),
		slog.Attr{Key: "attrs", Value: slog.GroupValue(attrs...)},
	)
	for _, c := range children {
		c.log(logger, depth+1)
	}
}
