package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/logging"
)

func newTestMonitor() *Monitor {
	return NewMonitor(&logging.NoOpLogger{}, time.Second, time.Second)
}

func TestRecordResultStartsHealthy(t *testing.T) {
	m := newTestMonitor()
	m.Register("asr", nil)
	if got := m.State("asr"); got != Healthy {
		t.Fatalf("expected Healthy, got %v", got)
	}
}

func TestThreeConsecutiveFailuresTripsToFailed(t *testing.T) {
	m := newTestMonitor()
	m.Register("llm", nil)

	m.RecordResult("llm", errors.New("boom"))
	if got := m.State("llm"); got != Healthy {
		t.Fatalf("expected Healthy after 1 strike, got %v", got)
	}

	m.RecordResult("llm", errors.New("boom"))
	if got := m.State("llm"); got != Degraded {
		t.Fatalf("expected Degraded after 2 strikes, got %v", got)
	}

	m.RecordResult("llm", errors.New("boom"))
	if got := m.State("llm"); got != Failed {
		t.Fatalf("expected Failed after 3 strikes, got %v", got)
	}
}

func TestSuccessClearsStrikesImmediately(t *testing.T) {
	m := newTestMonitor()
	m.Register("tts", nil)

	m.RecordResult("tts", errors.New("boom"))
	m.RecordResult("tts", errors.New("boom"))
	m.RecordResult("tts", nil)

	if got := m.State("tts"); got != Healthy {
		t.Fatalf("expected Healthy after success, got %v", got)
	}
}

func TestResetForcesHealthy(t *testing.T) {
	m := newTestMonitor()
	m.Register("asr", nil)
	m.RecordResult("asr", errors.New("boom"))
	m.RecordResult("asr", errors.New("boom"))
	m.RecordResult("asr", errors.New("boom"))

	if !m.Reset("asr") {
		t.Fatal("expected Reset to find the registered service")
	}
	if got := m.State("asr"); got != Healthy {
		t.Fatalf("expected Healthy after Reset, got %v", got)
	}
}

func TestResetUnknownServiceReturnsFalse(t *testing.T) {
	m := newTestMonitor()
	if m.Reset("nonexistent") {
		t.Fatal("expected Reset to report failure for an unknown service")
	}
}

func TestRunProbesUntilContextCancelled(t *testing.T) {
	m := NewMonitor(&logging.NoOpLogger{}, 5*time.Millisecond, 50*time.Millisecond)
	calls := 0
	m.Register("probe-svc", func(ctx context.Context) error {
		calls++
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	if calls == 0 {
		t.Fatal("expected at least one probe to run")
	}
}

func TestSnapshotReportsAllServices(t *testing.T) {
	m := newTestMonitor()
	m.Register("asr", nil)
	m.Register("llm", nil)

	snap := m.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 services, got %d", len(snap))
	}
}
