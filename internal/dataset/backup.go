package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BackupPath returns the backup file of datasetPath. Its presence means a
// merge did not finish and the dataset must be restored before reuse.
func BackupPath(datasetPath string) string { return datasetPath + ".bak" }

// HasBackup reports whether a leftover backup exists for datasetPath.
func HasBackup(datasetPath string) bool {
	_, err := os.Stat(BackupPath(datasetPath))
	return err == nil
}

// createBackup copies the dataset to its backup path. An absent dataset is
// recorded as an empty backup so that restoring it removes the dataset again.
func createBackup(datasetPath string) error {
	bak := BackupPath(datasetPath)
	tmp := bak + ".tmp"

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cannot create backup: %w", err)
	}
	in, err := os.Open(filepath.Clean(datasetPath))
	switch {
	case err == nil:
		_, err = io.Copy(out, in)
		_ = in.Close()
		if err != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
			return fmt.Errorf("cannot copy dataset to backup: %w", err)
		}
	case !os.IsNotExist(err):
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("cannot open dataset: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("cannot sync backup: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, bak); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cannot install backup: %w", err)
	}
	return nil
}

// Recover restores datasetPath from a leftover backup and removes the
// backup. It reports whether a restore happened.
func Recover(datasetPath string) (bool, error) {
	bak := BackupPath(datasetPath)
	st, err := os.Stat(bak)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("cannot stat backup %s: %w", bak, err)
	}
	if st.Size() == 0 {
		if err := os.Remove(datasetPath); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("cannot remove dataset %s: %w", datasetPath, err)
		}
		if err := cleanupBackup(bak); err != nil {
			return false, fmt.Errorf("cannot remove backup %s: %w", bak, err)
		}
		return true, nil
	}
	if err := os.Rename(bak, datasetPath); err != nil {
		return false, fmt.Errorf("cannot restore %s from backup: %w", datasetPath, err)
	}
	return true, nil
}
