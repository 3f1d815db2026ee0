//go:build !windows

package dataset

import (
	"errors"
	"os"
)

// cleanupBackup removes backupPath if possible.
func cleanupBackup(backupPath string) error {
	if backupPath == "" {
		return nil
	}
	err := os.Remove(backupPath)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
