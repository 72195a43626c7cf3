package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	// Should add a valid cron job without error
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("not a cron", func() {}); err == nil {
		t.Error("Expected error for invalid expression")
	}
}

func TestSchedulerEveryRejectsNonPositive(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.Every(0, func() {}); err == nil {
		t.Error("Expected error for zero interval")
	}
}

func TestSchedulerEveryRunsAndRecovers(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs int32
	if err := s.Every(time.Second, func() {
		atomic.AddInt32(&runs, 1)
		panic("job exploded")
	}); err != nil {
		t.Fatalf("Every failed: %v", err)
	}

	deadline := time.Now().Add(3500 * time.Millisecond)
	for atomic.LoadInt32(&runs) < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if atomic.LoadInt32(&runs) < 2 {
		t.Errorf("Expected job to keep running after panic, ran %d times", runs)
	}
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var running, maxRunning int32
	if err := s.Every(time.Second, func() {
		n := atomic.AddInt32(&running, 1)
		if n > atomic.LoadInt32(&maxRunning) {
			atomic.StoreInt32(&maxRunning, n)
		}
		time.Sleep(2500 * time.Millisecond)
		atomic.AddInt32(&running, -1)
	}); err != nil {
		t.Fatalf("Every failed: %v", err)
	}

	time.Sleep(3500 * time.Millisecond)
	if atomic.LoadInt32(&maxRunning) > 1 {
		t.Errorf("Expected at most one concurrent run, saw %d", maxRunning)
	}
}
