package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "state.db.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	pid, ok := HolderPID(lockPath)
	if !ok {
		t.Fatalf("expected PID in lock file")
	}
	if pid != os.Getpid() {
		t.Fatalf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireConflictNamesHolder(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "nested", "state.db.lock")
	first, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	t.Cleanup(func() { _ = first.Release() })

	_, err = Acquire(lockPath)
	if !errors.Is(err, ErrHeld) {
		t.Fatalf("second Acquire err = %v, want ErrHeld", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	t.Parallel()

	lockPath := PathFor(filepath.Join(t.TempDir(), "state.db"))
	first, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	second, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	_ = second.Release()
}

func TestAcquireEmptyPath(t *testing.T) {
	if _, err := Acquire(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Fatal("current process reported dead")
	}
	if ProcessAlive(0) || ProcessAlive(-1) {
		t.Fatal("non-positive pid reported alive")
	}
}
