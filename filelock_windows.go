//go:build windows

package main

import "os"

// withFileLock is best-effort on Windows: flock is unavailable, and config
// writes are short single-process operations, so the lock file only marks
// the write in progress.
func withFileLock(lockPath string, fn func() error) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	f.Close()
	defer os.Remove(lockPath)
	return fn()
}
