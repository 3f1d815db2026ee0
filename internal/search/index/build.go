package index

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Export writes a snapshot of ix to outDir, replacing any previous snapshot
// atomically.
func Export(ix *Index, outDir string) (*Snapshot, error) {
	snap, err := ix.Snapshot()
	if err != nil {
		return nil, err
	}
	parent := filepath.Dir(outDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", parent, err)
	}
	tmp := fmt.Sprintf("%s.tmp-%d", outDir, time.Now().UnixNano())
	if err := Write(tmp, snap); err != nil {
		_ = os.RemoveAll(tmp)
		return nil, err
	}
	if err := AtomicSwap(tmp, outDir); err != nil {
		_ = os.RemoveAll(tmp)
		return nil, fmt.Errorf("cannot install snapshot: %w", err)
	}
	return snap, nil
}

// AtomicSwap replaces destDir with srcDir by renaming.
func AtomicSwap(srcDir, destDir string) error {
	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	backup := destDir + ".bak"
	_ = os.RemoveAll(backup)
	if _, err := os.Stat(destDir); err == nil {
		if err := os.Rename(destDir, backup); err != nil {
			return err
		}
	}
	if err := os.Rename(srcDir, destDir); err != nil {
		// rollback best-effort
		if _, stErr := os.Stat(backup); stErr == nil {
			_ = os.Rename(backup, destDir)
		}
		return err
	}
	_ = os.RemoveAll(backup)
	return nil
}
