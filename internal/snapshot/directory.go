package snapshot

import (
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/uas/internal/fileio"
)

// Clock supplies the time used to name new snapshots.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Directory is the storage a Store reads and writes snapshot files in.
// Write must never replace an existing file; it fails with an error
// wrapping os.ErrExist instead.
type Directory interface {
	Path() string
	List() ([]string, error)
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
}

// OSDirectory is a Directory on the local filesystem.
type OSDirectory struct {
	path string
}

// NewOSDirectory creates dir if needed and returns a Directory for it.
func NewOSDirectory(dir string) (*OSDirectory, error) {
	if err := fileio.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &OSDirectory{path: dir}, nil
}

// Path returns the directory path.
func (d *OSDirectory) Path() string { return d.path }

// List returns the names of the regular files in the directory.
func (d *OSDirectory) List() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Read returns the contents of the named file.
func (d *OSDirectory) Read(name string) ([]byte, error) {
	return fileio.ReadFile(filepath.Join(d.path, name))
}

// Write creates the named file with data, failing if it exists.
func (d *OSDirectory) Write(name string, data []byte) error {
	return fileio.WriteNew(filepath.Join(d.path, name), data, 0600)
}
