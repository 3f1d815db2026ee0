package dataset

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// moveInto moves src into dir without overwriting and returns the new path.
// A name clash is resolved by inserting a short content fingerprint before
// the extension, then a counter.
func moveInto(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if _, err := os.Stat(dst); err == nil {
		sum, err := fileMD5(src)
		if err != nil {
			return "", fmt.Errorf("md5 %s: %w", src, err)
		}
		dst = conflictPath(dst, sum[:8])
		for i := 2; ; i++ {
			if _, err := os.Stat(dst); os.IsNotExist(err) {
				break
			}
			dst = conflictPath(filepath.Join(dir, filepath.Base(src)), fmt.Sprintf("%s-%d", sum[:8], i))
		}
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("cannot move %s to %s: %w", src, dst, err)
	}
	return dst, nil
}

// conflictPath inserts .dup-<tag> before the final extension.
//
//	start_0.91.json → start_0.91.dup-1a2b3c4d.json
func conflictPath(original, tag string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	return base + ".dup-" + tag + ext
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
