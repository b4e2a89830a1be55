// Package fsutil holds the local filesystem helpers shared by the file-backed
// components: atomic file replacement and atomic directory swaps.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces path with data so readers observe either the old or
// the new content. The temporary file is created next to path so the final
// rename never crosses a filesystem boundary.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// SwapDir replaces dst with the fully written directory staged. The previous
// content of dst is moved aside first and only removed after staged is in
// place; if the final rename fails the previous content is restored.
func SwapDir(staged, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	previous := ""
	if _, err := os.Stat(dst); err == nil {
		previous = dst + ".previous"
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("failed to clear %s: %w", previous, err)
		}
		if err := os.Rename(dst, previous); err != nil {
			return fmt.Errorf("failed to move %s aside: %w", dst, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", dst, err)
	}

	if err := os.Rename(staged, dst); err != nil {
		if previous != "" {
			if restoreErr := os.Rename(previous, dst); restoreErr != nil {
				return fmt.Errorf("failed to install %s: %w (restore failed: %v)", dst, err, restoreErr)
			}
		}
		return fmt.Errorf("failed to install %s: %w", dst, err)
	}

	if previous != "" {
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("failed to remove %s: %w", previous, err)
		}
	}
	return nil
}
