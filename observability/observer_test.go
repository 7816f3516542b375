package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/agentics/observability"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  string
	}{
		{name: "trace range", level: 1, want: "TRACE"},
		{name: "verbose maps to DEBUG", level: observability.LevelVerbose, want: "DEBUG"},
		{name: "info maps to INFO", level: observability.LevelInfo, want: "INFO"},
		{name: "warning maps to WARN", level: observability.LevelWarning, want: "WARN"},
		{name: "error maps to ERROR", level: observability.LevelError, want: "ERROR"},
		{name: "fatal range", level: 21, want: "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  slog.Level
	}{
		{name: "verbose maps to Debug", level: observability.LevelVerbose, want: slog.LevelDebug},
		{name: "info maps to Info", level: observability.LevelInfo, want: slog.LevelInfo},
		{name: "warning maps to Warn", level: observability.LevelWarning, want: slog.LevelWarn},
		{name: "error maps to Error", level: observability.LevelError, want: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.SlogLevel(); got != tt.want {
				t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestEmit_NilObserver(t *testing.T) {
	observability.Emit(context.Background(), nil, "test.event", observability.LevelInfo, "test", nil)
}

func TestEmit_StampsTimestamp(t *testing.T) {
	rec := &observability.Recorder{}
	before := time.Now()

	observability.Emit(context.Background(), rec, "test.event", observability.LevelInfo, "test", map[string]any{"n": 1})

	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(events))
	}
	if events[0].Timestamp.Before(before) {
		t.Errorf("timestamp %v before emit time %v", events[0].Timestamp, before)
	}
	if events[0].Source != "test" {
		t.Errorf("source = %q, want %q", events[0].Source, "test")
	}
}

func TestMultiObserver_NilFiltering(t *testing.T) {
	rec := &observability.Recorder{}
	multi := observability.NewMultiObserver(nil, rec, nil)

	multi.OnEvent(context.Background(), observability.Event{
		Type:  "test.event",
		Level: observability.LevelInfo,
	})

	if got := rec.Count("test.event"); got != 1 {
		t.Errorf("received %d events, want 1 (nil observers should be filtered)", got)
	}
}

func TestRecorder_ConcurrentUse(t *testing.T) {
	rec := &observability.Recorder{}

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.OnEvent(context.Background(), observability.Event{Type: "worker.complete"})
		}()
	}
	wg.Wait()

	if got := rec.Count("worker.complete"); got != 50 {
		t.Errorf("Count() = %d, want 50", got)
	}

	rec.Reset()
	if got := len(rec.Events()); got != 0 {
		t.Errorf("after Reset() got %d events, want 0", got)
	}
}

func TestSlogObserver_LevelMapping(t *testing.T) {
	tests := []struct {
		name      string
		level     observability.Level
		minLevel  slog.Level
		expectLog bool
	}{
		{name: "verbose at debug handler", level: observability.LevelVerbose, minLevel: slog.LevelDebug, expectLog: true},
		{name: "verbose at info handler", level: observability.LevelVerbose, minLevel: slog.LevelInfo, expectLog: false},
		{name: "info at warn handler", level: observability.LevelInfo, minLevel: slog.LevelWarn, expectLog: false},
		{name: "warning at warn handler", level: observability.LevelWarning, minLevel: slog.LevelWarn, expectLog: true},
		{name: "error at error handler", level: observability.LevelError, minLevel: slog.LevelError, expectLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
				Level: tt.minLevel,
			}))

			obs := observability.NewSlogObserver(logger)
			obs.OnEvent(context.Background(), observability.Event{
				Type:      "test.event",
				Level:     tt.level,
				Timestamp: time.Now(),
				Source:    "test",
			})

			hasOutput := buf.Len() > 0
			if hasOutput != tt.expectLog {
				t.Errorf("log output = %v, want %v (buf: %q)", hasOutput, tt.expectLog, buf.String())
			}
		})
	}
}

func TestSlogObserver_RunIDAndData(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx := observability.WithRunID(context.Background(), "run-123")
	observability.NewSlogObserver(logger).OnEvent(ctx, observability.Event{
		Type:   "transduction.run.start",
		Level:  observability.LevelInfo,
		Source: "transduction.RunMap",
		Data:   map[string]any{"records": 42, "batch_size": 10},
	})

	output := buf.String()
	for _, want := range []string{
		"transduction.run.start",
		"source=transduction.RunMap",
		"run_id=run-123",
		"records=42",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
	if strings.Index(output, "batch_size=") > strings.Index(output, "records=") {
		t.Errorf("expected data attributes in sorted order, got: %s", output)
	}
}

func TestRegistry_GetObserver(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "empty resolves to noop", key: "", wantErr: false},
		{name: "noop exists", key: "noop", wantErr: false},
		{name: "slog exists", key: "slog", wantErr: false},
		{name: "unknown fails", key: "nonexistent", wantErr: true},
		{name: "list resolves", key: "noop, slog", wantErr: false},
		{name: "list with unknown fails", key: "noop,nonexistent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := observability.GetObserver(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetObserver(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if !tt.wantErr && obs == nil {
				t.Errorf("GetObserver(%q) returned nil observer", tt.key)
			}
		})
	}
}

func TestRegistry_RegisterAndList(t *testing.T) {
	rec := &observability.Recorder{}
	observability.RegisterObserver("test-recorder", rec)

	obs, err := observability.GetObserver("test-recorder")
	if err != nil {
		t.Fatalf("GetObserver failed: %v", err)
	}
	obs.OnEvent(context.Background(), observability.Event{Type: "test.event"})

	if got := rec.Count("test.event"); got != 1 {
		t.Errorf("received %d events, want 1", got)
	}

	found := false
	for _, name := range observability.Observers() {
		if name == "test-recorder" {
			found = true
		}
	}
	if !found {
		t.Errorf("Observers() = %v, missing test-recorder", observability.Observers())
	}
}

func TestRegistry_GetObserverList(t *testing.T) {
	first := &observability.Recorder{}
	second := &observability.Recorder{}
	observability.RegisterObserver("test-list-first", first)
	observability.RegisterObserver("test-list-second", second)

	obs, err := observability.GetObserver("test-list-first,test-list-second")
	if err != nil {
		t.Fatalf("GetObserver failed: %v", err)
	}
	if _, ok := obs.(*observability.MultiObserver); !ok {
		t.Fatalf("GetObserver returned %T, want *MultiObserver", obs)
	}

	obs.OnEvent(context.Background(), observability.Event{Type: "test.fanout"})

	if first.Count("test.fanout") != 1 || second.Count("test.fanout") != 1 {
		t.Errorf("fan-out counts = %d, %d, want 1, 1", first.Count("test.fanout"), second.Count("test.fanout"))
	}
}
