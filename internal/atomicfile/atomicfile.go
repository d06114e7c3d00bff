// Package atomicfile replaces files so that readers see either the old
// content or the new content, never a mix.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Write writes data to path via a temporary file in the same directory,
// fsyncs it, renames it over path and fsyncs the directory. On error the
// previous content of path is untouched.
func Write(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp := path + ".tmp." + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp) // best effort cleanup
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp, path); err != nil {
		return err
	}
	return syncDir(dir)
}

// syncDir flushes a rename to disk. Filesystems that cannot fsync a
// directory are ignored.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	d.Sync()
	return nil
}

// FindTemp lists leftover temporary files for path.
func FindTemp(path string) ([]string, error) {
	return filepath.Glob(path + ".tmp.*")
}

// CleanupTemp removes leftover temporary files for path, as produced by an
// interrupted Write. It returns the number of files removed.
func CleanupTemp(path string) (int, error) {
	matches, err := FindTemp(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return n, err
		}
		n++
	}
	return n, nil
}
