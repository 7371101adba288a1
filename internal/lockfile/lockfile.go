// Package lockfile provides the single-instance lock (§6, Persistent
// state): a single exclusive lock file preventing concurrent daemon
// instances, grounded in golang.org/x/sys/unix's Flock, the pack-wide
// syscall library wired in per SPEC_FULL.md's DOMAIN STACK.
package lockfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is a held exclusive advisory lock on a single file.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if necessary) and exclusively, non-blockingly
// locks path. It returns an error naming the lock file if another
// instance already holds it.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquire lock %s: already running? (%w)", path, err)
	}

	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
