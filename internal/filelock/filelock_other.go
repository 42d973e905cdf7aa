//go:build !linux

package filelock

import "os"

// Lock is a no-op placeholder on platforms without flock; the day-file
// format has no other cross-process coordination, so single-writer safety
// on these platforms is left to the deployment environment.
func Lock(f *os.File) error { return nil }

// Unlock is the no-op counterpart to Lock on these platforms.
func Unlock(f *os.File) error { return nil }
