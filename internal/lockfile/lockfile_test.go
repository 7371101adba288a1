package lockfile

import (
	"path/filepath"
	"testing"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyd-go.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	// A second acquire after release must succeed; the file persists.
	lock2, err := Acquire(path)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	defer lock2.Release()
}

func TestAcquireFailsWhenAlreadyHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyd-go.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer lock.Release()

	if _, err := Acquire(path); err == nil {
		t.Fatal("expected second Acquire on a held lock to fail")
	}
}
