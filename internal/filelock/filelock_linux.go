//go:build linux

// Package filelock provides a non-blocking advisory exclusive lock on an
// open day file, so two writer processes never append to the same file
// concurrently (spec §4.5 "single-writer per day file").
//
// There is no flock-wrapping library anywhere in the reference pack, and
// the lock primitive is a single syscall with no interesting cross-process
// protocol to get wrong, so this is one of the few places the standard
// library is used directly instead of a third-party dependency.
package filelock

import (
	"fmt"
	"os"
	"syscall"

	"github.com/sensorgrid/tsdb/errs"
)

// Lock acquires a non-blocking exclusive advisory lock on f. It returns
// errs.ErrLockHeld if another process already holds the lock.
func Lock(f *os.File) error {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		return nil
	}
	if err == syscall.EWOULDBLOCK {
		return fmt.Errorf("%w: %s", errs.ErrLockHeld, f.Name())
	}

	return fmt.Errorf("flock %s: %w", f.Name(), err)
}

// Unlock releases a lock previously acquired with Lock.
func Unlock(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("funlock %s: %w", f.Name(), err)
	}

	return nil
}
