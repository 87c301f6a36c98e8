package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockPurger struct {
	calls      atomic.Int32
	lastWindow atomic.Int64
	err        error
}

func (m *mockPurger) PurgeDeleted(_ context.Context, olderThan time.Duration) (int, error) {
	m.calls.Add(1)
	m.lastWindow.Store(int64(olderThan))
	return 2, m.err
}

func TestNewFilePurger_Defaults(t *testing.T) {
	t.Parallel()

	p := NewFilePurger(&mockPurger{}, FilePurgerConfig{})
	if p.cfg.Interval != time.Hour {
		t.Errorf("expected interval 1h, got %v", p.cfg.Interval)
	}
	if p.cfg.Retention != 30*24*time.Hour {
		t.Errorf("expected retention 30d, got %v", p.cfg.Retention)
	}
}

func TestFilePurger_RunOnce_PassesRetention(t *testing.T) {
	t.Parallel()

	m := &mockPurger{}
	p := NewFilePurger(m, FilePurgerConfig{Retention: 48 * time.Hour})

	n, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 purged, got %d", n)
	}
	if time.Duration(m.lastWindow.Load()) != 48*time.Hour {
		t.Errorf("expected retention to be passed, got %v", time.Duration(m.lastWindow.Load()))
	}
}

func TestFilePurger_StartStop(t *testing.T) {
	t.Parallel()

	m := &mockPurger{err: errors.New("store offline")}
	p := NewFilePurger(m, FilePurgerConfig{
		Interval:   5 * time.Millisecond,
		StartDelay: time.Millisecond,
	})

	p.Start()
	p.Start()
	if !p.IsRunning() {
		t.Fatal("expected purger to be running")
	}

	deadline := time.Now().Add(time.Second)
	for m.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	p.Stop()
	p.Stop()

	if m.calls.Load() < 2 {
		t.Errorf("expected repeated passes despite errors, got %d", m.calls.Load())
	}
	if p.IsRunning() {
		t.Error("expected purger to be stopped")
	}
}

func TestFilePurger_StopBeforeFirstRun(t *testing.T) {
	t.Parallel()

	m := &mockPurger{}
	p := NewFilePurger(m, FilePurgerConfig{StartDelay: time.Hour})
	p.Start()
	p.Stop()

	if m.calls.Load() != 0 {
		t.Errorf("expected no purge before the start delay, got %d", m.calls.Load())
	}
}
