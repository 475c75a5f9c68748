package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestProgressTracker_BasicOperations(t *testing.T) {
	pt := NewProgressTracker("aggregate", 10)

	pt.RecordCompletion(100 * time.Millisecond)
	pt.RecordCompletion(150 * time.Millisecond)
	pt.RecordFailure()

	completed, failed, total := pt.Progress()
	if completed != 2 {
		t.Errorf("expected completed=2, got %d", completed)
	}
	if failed != 1 {
		t.Errorf("expected failed=1, got %d", failed)
	}
	if total != 10 {
		t.Errorf("expected total=10, got %d", total)
	}
}

func TestProgressTracker_ETA(t *testing.T) {
	pt := NewProgressTracker("aggregate", 10)

	pt.RecordCompletion(100 * time.Millisecond)
	pt.RecordCompletion(100 * time.Millisecond)

	eta := pt.ETA()
	// With 2 completed at 100ms each, 8 remaining should be ~800ms
	if eta < 700*time.Millisecond || eta > 900*time.Millisecond {
		t.Errorf("expected ETA ~800ms, got %v", eta)
	}
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	pt := NewProgressTracker("aggregate", 0)
	if eta := pt.ETA(); eta != 0 {
		t.Errorf("expected 0 ETA for zero total, got %v", eta)
	}
}

func TestCompletionEvent_BasicFields(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	pretty = false

	NewCompletionEvent(log, "test_event", "test_phase", 500*time.Millisecond).
		Str("key", "value").
		Int("count", 42).
		Strs("stats", []string{"mean", "sum"}).
		Log("test message")

	output := buf.String()
	for _, want := range []string{
		`"event":"test_event"`,
		`"phase":"test_phase"`,
		`"duration_ms":500`,
		`"key":"value"`,
		`"count":42`,
		`"stats":["mean","sum"]`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
	if strings.Contains(output, "duration_h") {
		t.Errorf("unexpected human field in JSON mode: %s", output)
	}
}

func TestCompletionEvent_PrettyMode(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	pretty = true
	defer func() { pretty = false }()

	FileCreated(log, "aggregate", 1500*time.Millisecond).Log("wrote grid")

	output := buf.String()
	if !strings.Contains(output, `"event":"file_created"`) {
		t.Errorf("expected file_created event, got: %s", output)
	}
	if !strings.Contains(output, `"duration_h":"1.5s"`) {
		t.Errorf("expected duration_h field, got: %s", output)
	}
}

func TestCompletionEvent_ProgressFromTracker(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	pretty = false

	pt := NewProgressTracker("sample", 4)
	pt.RecordCompletion(10 * time.Millisecond)
	pt.RecordFailure()

	PhaseComplete(log, "sample", time.Second).ProgressFromTracker(pt).Log("done")

	output := buf.String()
	for _, want := range []string{`"completed":1`, `"failed":1`, `"total":4`, `"progress_pct":50`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestCompletionEvent_LogDebug(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.InfoLevel)

	SourceComplete(log, "harvest", time.Second).LogDebug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug event should be filtered at info level, got: %s", buf.String())
	}
}
