// Package fileio holds the file primitives shared by the snapshot store
// and the exporters: no-follow reads and temp-then-rename writes.
package fileio

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// EnsureDir creates dir (and parents) with owner-only permissions.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	// best-effort, may not work on all platforms
	_ = os.Chmod(dir, 0700)
	return nil
}

// ReadFile reads the whole file at path without following a symlink in
// the final path component.
func ReadFile(path string) ([]byte, error) {
	f, err := openFileNoFollowRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteAtomic writes data to path through a temp file in the same
// directory, replacing any existing file.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	return write(path, data, perm, true)
}

// WriteNew writes data to path through a temp file in the same directory.
// If path already exists the write fails with an error wrapping
// os.ErrExist and the existing file is left untouched.
func WriteNew(path string, data []byte, perm os.FileMode) error {
	return write(path, data, perm, false)
}

func write(path string, data []byte, perm os.FileMode, replace bool) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("failed to generate temp file name: %w", err)
	}
	tempPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+hex.EncodeToString(randBytes)+".tmp")
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}

	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	file = nil

	info, statErr := os.Lstat(path)
	if statErr == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("destination %s is a symlink", path)
		}
		if !replace {
			return fmt.Errorf("%s: %w", path, os.ErrExist)
		}
	}

	if !replace {
		// A hard link fails if the destination appeared since the Lstat above.
		if err := os.Link(tempPath, path); err != nil {
			return fmt.Errorf("failed to finalize %s: %w", path, err)
		}
		success = true
		os.Remove(tempPath)
		return nil
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return fmt.Errorf("%s: %w", path, os.ErrExist)
			}
		}
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	success = true
	return nil
}
