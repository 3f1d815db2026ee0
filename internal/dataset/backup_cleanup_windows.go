//go:build windows

package dataset

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

// cleanupBackup removes backupPath if possible.
//
// On Windows, antivirus/indexers can briefly hold a handle to a file we just
// wrote; retry for a short period before giving up. A backup that survives is
// read as a crashed merge, so deletion is never deferred to reboot.
func cleanupBackup(backupPath string) error {
	if backupPath == "" {
		return nil
	}

	var lastErr error
	for i := 0; i < 15; i++ {
		err := os.Remove(backupPath)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		lastErr = err
		if !errors.Is(err, windows.ERROR_SHARING_VIOLATION) && !errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return err
		}
		time.Sleep(200 * time.Millisecond)
	}
	return lastErr
}
