package lockfile

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireWritesHolder(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	h := readHolder(filepath.Join(dir, LockFileName))
	if h.PID != os.Getpid() {
		t.Errorf("expected holder pid %d, got %d", os.Getpid(), h.PID)
	}
	if !h.Running {
		t.Error("our own process should be reported as running")
	}
	if time.Since(h.Started) > time.Minute {
		t.Errorf("unexpected start time %v", h.Started)
	}
}

func TestLockConflictDescribesHolder(t *testing.T) {
	dir := t.TempDir()
	lock1, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2, err := AcquireLock(dir)
	if err == nil {
		lock2.Release()
		t.Fatal("Second lock acquisition should have failed")
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Expected *LockError, got %T", err)
	}
	if lockErr.Holder.PID != os.Getpid() {
		t.Errorf("expected conflict to name pid %d, got %d", os.Getpid(), lockErr.Holder.PID)
	}
	msg := err.Error()
	if !strings.Contains(msg, "another SalesPipe instance") || !strings.Contains(msg, dir) {
		t.Errorf("unhelpful error message: %s", msg)
	}

	// The failed attempt must not clobber the holder's details.
	if h := readHolder(filepath.Join(dir, LockFileName)); h.PID != os.Getpid() {
		t.Errorf("holder details lost after conflict, got pid %d", h.PID)
	}
}

func TestReleaseIsIdempotentAndAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file should be removed after release")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op: %v", err)
	}

	again, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to reacquire lock: %v", err)
	}
	again.Release()
}

func TestAcquireCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Should create directory and acquire lock: %v", err)
	}
	defer lock.Release()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestParseHolder(t *testing.T) {
	tests := []struct {
		name    string
		content string
		pid     int
		started bool
	}{
		{"full", "pid=12345\nstarted=2026-03-10T12:00:00Z\n", 12345, true},
		{"pid only", "pid=67890\n", 67890, false},
		{"bad pid", "pid=abc\nstarted=yesterday\n", 0, false},
		{"empty", "", 0, false},
		{"no separator", "pid12345", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := parseHolder(bufio.NewScanner(strings.NewReader(tt.content)))
			if h.PID != tt.pid {
				t.Errorf("pid = %d, want %d", h.PID, tt.pid)
			}
			if h.Started.IsZero() == tt.started {
				t.Errorf("started parsed = %v, want %v", !h.Started.IsZero(), tt.started)
			}
		})
	}
}

func TestHolderString(t *testing.T) {
	if s := (Holder{}).String(); s != "unknown holder" {
		t.Errorf("unexpected %q", s)
	}
	if s := (Holder{PID: 42}).String(); !strings.Contains(s, "stale") {
		t.Errorf("dead holder should be marked stale: %q", s)
	}
}
