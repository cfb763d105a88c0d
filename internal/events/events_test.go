package events

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type memRecorder struct {
	mu   sync.Mutex
	evs  []RunEvent
	fail error
}

func (m *memRecorder) Record(ev RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.evs = append(m.evs, ev)
	return nil
}

func (m *memRecorder) Close() error { return nil }

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestEmitterSequencesEvents(t *testing.T) {
	rec := &memRecorder{}
	em := NewEmitter("run1", rec, zerolog.Nop(), fixedClock)
	for i := 0; i < 5; i++ {
		if err := em.Emit(KindSystem, ContentPlannerStep, map[string]any{"step": i + 1}, nil); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if len(rec.evs) != 5 {
		t.Fatalf("recorded %d events", len(rec.evs))
	}
	for i, ev := range rec.evs {
		if ev.Seq != i+1 {
			t.Fatalf("seq[%d] = %d", i, ev.Seq)
		}
		if ev.RunID != "run1" {
			t.Fatalf("run id = %s", ev.RunID)
		}
		if ev.EventType != KindSystem || ev.ContentType != ContentPlannerStep {
			t.Fatalf("event = %+v", ev)
		}
	}
}

func TestEmitterConcurrentGapFree(t *testing.T) {
	rec := &memRecorder{}
	em := NewEmitter("run1", rec, zerolog.Nop(), fixedClock)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = em.Emit(KindTool, ContentURLSelected, "https://example.com", nil)
		}()
	}
	wg.Wait()
	if em.Seq() != 20 {
		t.Fatalf("seq = %d, want 20", em.Seq())
	}
	seen := map[int]bool{}
	for _, ev := range rec.evs {
		if seen[ev.Seq] {
			t.Fatalf("duplicate seq %d", ev.Seq)
		}
		seen[ev.Seq] = true
	}
	for i := 1; i <= 20; i++ {
		if !seen[i] {
			t.Fatalf("missing seq %d", i)
		}
	}
}

func TestEmitterMirrorFailureIsNonFatal(t *testing.T) {
	primary := &memRecorder{}
	mirror := &memRecorder{fail: errors.New("redis down")}
	em := NewEmitter("run1", primary, zerolog.Nop(), fixedClock, mirror)
	if err := em.Emit(KindSystem, ContentMessage, "run_started", nil); err != nil {
		t.Fatalf("mirror failure surfaced: %v", err)
	}
	if len(primary.evs) != 1 {
		t.Fatalf("primary events = %d", len(primary.evs))
	}
}

func TestEmitterPrimaryFailureIsFatal(t *testing.T) {
	primary := &memRecorder{fail: errors.New("disk full")}
	em := NewEmitter("run1", primary, zerolog.Nop(), fixedClock)
	if err := em.Emit(KindSystem, ContentMessage, "run_started", nil); err == nil {
		t.Fatal("primary failure swallowed")
	}
}

func TestFileRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("NewFileRecorder: %v", err)
	}
	em := NewEmitter("run1", rec, zerolog.Nop(), fixedClock)
	if err := em.Emit(KindSystem, ContentMessage, "run_started", map[string]string{"query": "q"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := em.Emit(KindSystem, ContentReportDone, map[string]any{"report_path": "report.md"}, nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d events", len(got))
	}
	if got[0].EventType != KindSystem || got[0].Data != "run_started" || got[0].Metadata["query"] != "q" {
		t.Fatalf("event 0 = %+v", got[0])
	}
	if got[1].Seq != 2 || got[1].ContentType != ContentReportDone {
		t.Fatalf("event 1 = %+v", got[1])
	}
	data, ok := got[1].Data.(map[string]any)
	if !ok || data["report_path"] != "report.md" {
		t.Fatalf("event 1 data = %#v", got[1].Data)
	}
}
