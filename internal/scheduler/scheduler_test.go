package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestRegisterTaskRejectsDuplicateID(t *testing.T) {
	s := newTestScheduler(t)

	config := TaskConfig{
		ID:       "refresh",
		Name:     "Refresh",
		Interval: time.Hour,
		Func:     func(context.Context) error { return nil },
	}
	if err := s.RegisterTask(config); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}
	if err := s.RegisterTask(config); err == nil {
		t.Error("RegisterTask accepted a duplicate id")
	}
}

func TestRunNowExecutesTask(t *testing.T) {
	s := newTestScheduler(t)

	done := make(chan struct{})
	err := s.RegisterTask(TaskConfig{
		ID:       "refresh",
		Name:     "Refresh",
		Interval: time.Hour,
		Func: func(context.Context) error {
			close(done)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.RunNow("refresh"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}

	if err := s.RunNow("nosuch"); err == nil {
		t.Error("RunNow accepted an unknown task id")
	}
}

func TestRunNowSkipsRunningTask(t *testing.T) {
	s := newTestScheduler(t)

	var calls atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	err := s.RegisterTask(TaskConfig{
		ID:       "refresh",
		Name:     "Refresh",
		Interval: time.Hour,
		Func: func(context.Context) error {
			calls.Add(1)
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.RunNow("refresh"); err != nil {
		t.Fatalf("first RunNow failed: %v", err)
	}
	<-started

	// Triggering a running task is not an error, but the overlapping
	// run is skipped rather than doubled.
	if err := s.RunNow("refresh"); err != nil {
		t.Fatalf("RunNow on a running task failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("task executions = %d, want 1 while still running", got)
	}
	close(release)
}
