package contextdoc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RenameFunc publishes a temporary file over its target.
type RenameFunc func(oldpath, newpath string) error

// BackupPath is the sibling holding the previous version of path.
func BackupPath(path string) string {
	return swapExt(path, ".bak")
}

func tempPath(path string) string {
	return swapExt(path, ".tmp")
}

func swapExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// WriteAtomic replaces path with data so readers see either the old or the
// new content, never a partial write. The previous content is copied to
// BackupPath first.
func WriteAtomic(path string, data []byte) error {
	return writeAtomic(path, data, os.Rename)
}

func writeAtomic(path string, data []byte, rename RenameFunc) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	tmp := tempPath(path)
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err := writeSynced(tmp, data); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}

	prev, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := writeSynced(BackupPath(path), prev); err != nil {
			return fmt.Errorf("backing up %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := rename(tmp, path); err != nil {
		return fmt.Errorf("publishing %s: %w", path, err)
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
