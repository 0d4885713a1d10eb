package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestChildSpansInheritTrace(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "train", "")
	if root.TraceID == "" {
		t.Fatal("expected generated trace id")
	}
	for _, name := range []string{"split", "vectorize", "fit"} {
		_, child := StartChildSpan(ctx, name)
		child.End()
		if child.TraceID != root.TraceID {
			t.Errorf("%s trace id = %q, want %q", name, child.TraceID, root.TraceID)
		}
	}
	root.End()

	timings := root.Timings()
	if len(timings) != 3 || timings[0].Name != "split" || timings[2].Name != "fit" {
		t.Fatalf("unexpected timings: %+v", timings)
	}
}

func TestEndIsFinal(t *testing.T) {
	_, s := StartSpan(context.Background(), "job", "t-1")
	s.End()
	first := s.Duration()
	time.Sleep(2 * time.Millisecond)
	s.End()
	if s.Duration() != first {
		t.Errorf("second End changed duration: %v -> %v", first, s.Duration())
	}
}

func TestLogWritesTree(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx, root := StartSpan(context.Background(), "training", "trace-7")
	_, child := StartChildSpan(ctx, "fit:naive_bayes")
	child.SetAttr("accuracy", 0.8)
	child.End()
	root.End()
	root.Log(logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 records, got %d:\n%s", len(lines), buf.String())
	}
	var rec struct {
		TraceID string         `json:"trace_id"`
		Span    string         `json:"span"`
		Depth   int            `json:"depth"`
		Attrs   map[string]any `json:"attrs"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.TraceID != "trace-7" || rec.Span != "fit:naive_bayes" || rec.Depth != 1 || rec.Attrs["accuracy"] != 0.8 {
		t.Errorf("child record = %+v", rec)
	}
}

func TestSpanFromEmptyContext(t *testing.T) {
	if SpanFromContext(context.Background()) != nil {
		t.Error("expected nil span")
	}
	_, orphan := StartChildSpan(context.Background(), "orphan")
	if orphan.TraceID != "" {
		t.Error("orphan span should have no trace id")
	}
}
