package spool

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to path via a temp file and rename, so that
// readers either see the previous content or the full new content, never a
// partial write. When sync is set the file is flushed to stable storage
// before the rename; when dirSync is set the containing directory is flushed
// after the rename so the new entry survives a crash immediately afterwards.
func writeFileAtomic(path string, data []byte, sync, dirSync bool) error {
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if sync {
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("fsync %s: %w", tmp, err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	if dirSync {
		return syncDir(filepath.Dir(path))
	}
	return nil
}

// removeFile deletes path, optionally flushing the containing directory so
// the removal itself is durable. A file that is already gone is not an error.
func removeFile(path string, dirSync bool) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if dirSync {
		return syncDir(filepath.Dir(path))
	}
	return nil
}

// syncDir flushes a directory's metadata to stable storage.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("fsync dir %s: %w", dir, err)
	}
	return nil
}

// Quarantine moves an unsendable spool file into the broken/ subdirectory of
// its spool directory, creating it on first use. Quarantined files are left
// for operator inspection and never retried.
func Quarantine(path string) error {
	dir := filepath.Dir(path)
	brokenDir := filepath.Join(dir, BrokenDirName)
	if err := os.MkdirAll(brokenDir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", brokenDir, err)
	}
	dst := filepath.Join(brokenDir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("quarantine %s: %w", path, err)
	}
	return nil
}

// BrokenDirName is the subdirectory receiving quarantined files.
const BrokenDirName = "broken"
