// Package snapshot stores trees as immutable, timestamp-named files.
//
// A snapshot is named <key>.<ext> where key is a run of digits; the tree
// for a run is always the snapshot with the greatest numeric key. Saves
// never modify or delete an existing file.
package snapshot

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/uas/internal/config"
	"github.com/hpungsan/uas/internal/errors"
	"github.com/hpungsan/uas/internal/tree"
)

// Defaults used when Options leave a field empty.
const (
	DefaultExt    = "UAS"
	DefaultLayout = "20060102150405"
)

// ID is the numeric key of a snapshot, e.g. "20261018143000".
type ID string

// Info describes one snapshot file.
type Info struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Options configures a Store.
type Options struct {
	Ext    string
	Layout string
	Clock  Clock
	// Sleep waits for the clock to move on when a save's name is taken.
	// Defaults to time.Sleep.
	Sleep  func(time.Duration)
	Logger *zap.Logger
}

// Store selects, reads and writes snapshots in a Directory.
type Store struct {
	dir    Directory
	ext    string
	layout string
	clock  Clock
	sleep  func(time.Duration)
	logger *zap.Logger
}

// NewStore creates a Store over dir.
func NewStore(dir Directory, opts Options) *Store {
	s := &Store{
		dir:    dir,
		ext:    strings.TrimPrefix(opts.Ext, "."),
		layout: opts.Layout,
		clock:  opts.Clock,
		sleep:  opts.Sleep,
		logger: opts.Logger,
	}
	if s.ext == "" {
		s.ext = DefaultExt
	}
	if s.layout == "" {
		s.layout = DefaultLayout
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Open creates a Store over the configured saves directory on disk.
func Open(cfg *config.Config, logger *zap.Logger) (*Store, error) {
	dir, err := NewOSDirectory(cfg.SavesDir)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return NewStore(dir, Options{
		Ext:    cfg.SnapshotExt,
		Layout: cfg.TimestampLayout,
		Logger: logger,
	}), nil
}

// Dir returns the path of the underlying directory.
func (s *Store) Dir() string {
	return s.dir.Path()
}

// List returns every well-formed snapshot, oldest key first.
// Files that are not snapshots (.DS_Store, temp files, other
// extensions) are skipped.
func (s *Store) List() ([]Info, error) {
	names, err := s.dir.List()
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.NewInternal(fmt.Errorf("list %s: %w", s.dir.Path(), err))
	}

	infos := make([]Info, 0, len(names))
	for _, name := range names {
		id, ok := s.parseName(name)
		if !ok {
			continue
		}
		infos = append(infos, Info{ID: id, Name: name})
	}
	sort.Slice(infos, func(i, j int) bool {
		return less(infos[i], infos[j])
	})
	return infos, nil
}

// Latest returns the snapshot with the greatest key.
func (s *Store) Latest() (Info, error) {
	infos, err := s.List()
	if err != nil {
		return Info{}, err
	}
	if len(infos) == 0 {
		return Info{}, errors.NewNoSnapshotFound(s.dir.Path())
	}
	return infos[len(infos)-1], nil
}

// LoadLatest reads and parses the latest snapshot.
func (s *Store) LoadLatest() (*tree.Tree, Info, error) {
	info, err := s.Latest()
	if err != nil {
		return nil, Info{}, err
	}
	t, err := s.read(info)
	if err != nil {
		return nil, Info{}, err
	}
	s.logger.Debug("loaded snapshot",
		zap.String("snapshot", info.Name),
		zap.Int("slots", t.Len()),
		zap.Int("occupied", t.Occupied()))
	return t, info, nil
}

// Load reads and parses the snapshot with the given id.
func (s *Store) Load(id ID) (*tree.Tree, Info, error) {
	infos, err := s.List()
	if err != nil {
		return nil, Info{}, err
	}
	for _, info := range infos {
		if info.ID == id {
			t, err := s.read(info)
			return t, info, err
		}
	}
	return nil, Info{}, errors.NewInvalidRequest(fmt.Sprintf("snapshot %s not found in %s", id, s.dir.Path()))
}

// saveAttempts bounds how many names Save tries before giving up. Each
// retry waits for the next second, so minute-resolution layouts still
// get a fresh name.
const saveAttempts = 120

// Save writes t to a new snapshot named after the current time.
// If a snapshot with that name already exists and holds the same
// content, its id is returned without writing. If it holds different
// content, Save waits for the clock to produce a new name; only when
// that never happens does it fail with SNAPSHOT_EXISTS.
func (s *Store) Save(t *tree.Tree) (Info, error) {
	data, err := tree.Marshal(t)
	if err != nil {
		return Info{}, errors.NewInternal(err)
	}

	for attempt := 1; ; attempt++ {
		now := s.clock.Now()
		id := ID(now.Format(s.layout))
		info := Info{ID: id, Name: string(id) + "." + s.ext}

		err := s.dir.Write(info.Name, data)
		if err == nil {
			s.logger.Debug("saved snapshot",
				zap.String("snapshot", filepath.Join(s.dir.Path(), info.Name)),
				zap.Int("occupied", t.Occupied()))
			return info, nil
		}
		if !stderrors.Is(err, os.ErrExist) {
			return Info{}, errors.NewInternal(fmt.Errorf("write %s: %w", info.Name, err))
		}

		existing, readErr := s.dir.Read(info.Name)
		if readErr == nil && bytes.Equal(existing, data) {
			s.logger.Debug("snapshot unchanged", zap.String("snapshot", info.Name))
			return info, nil
		}
		if attempt >= saveAttempts {
			return Info{}, errors.NewSnapshotExists(info.Name)
		}
		s.logger.Debug("snapshot name taken, waiting for the next one", zap.String("snapshot", info.Name))
		s.sleep(untilNextSecond(now))
	}
}

func untilNextSecond(now time.Time) time.Duration {
	return now.Truncate(time.Second).Add(time.Second).Sub(now)
}

// Seed creates the first snapshot of a new tree holding only root.
// It refuses to run when a snapshot already exists.
func (s *Store) Seed(root string) (Info, error) {
	infos, err := s.List()
	if err != nil {
		return Info{}, err
	}
	if len(infos) > 0 {
		return Info{}, errors.NewConflict(fmt.Sprintf("%s already holds %d snapshot(s); latest is %s",
			s.dir.Path(), len(infos), infos[len(infos)-1].Name))
	}
	t, err := tree.New(root)
	if err != nil {
		return Info{}, err
	}
	return s.Save(t)
}

func (s *Store) read(info Info) (*tree.Tree, error) {
	data, err := s.dir.Read(info.Name)
	if err != nil {
		return nil, errors.NewCorruptSnapshot(info.Name, err)
	}
	t, err := tree.Unmarshal(data)
	if err != nil {
		return nil, errors.NewCorruptSnapshot(info.Name, err)
	}
	return t, nil
}

// parseName accepts "<digits>.<ext>", comparing ext case-insensitively.
func (s *Store) parseName(name string) (ID, bool) {
	key, ext, ok := strings.Cut(name, ".")
	if !ok || key == "" || !strings.EqualFold(ext, s.ext) {
		return "", false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return ID(key), true
}

// less orders snapshots by the numeric value of their keys without
// parsing them, so keys of any length compare correctly.
func less(a, b Info) bool {
	ka, kb := trimZeros(string(a.ID)), trimZeros(string(b.ID))
	if len(ka) != len(kb) {
		return len(ka) < len(kb)
	}
	if ka != kb {
		return ka < kb
	}
	return a.Name < b.Name
}

func trimZeros(key string) string {
	trimmed := strings.TrimLeft(key, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
