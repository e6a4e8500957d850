package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/uas/internal/errors"
	"github.com/hpungsan/uas/internal/journal"
	"github.com/hpungsan/uas/internal/snapshot"
	"github.com/hpungsan/uas/internal/traverse"
	"github.com/hpungsan/uas/internal/tree"
	"github.com/hpungsan/uas/internal/ui"
)

// tickingClock advances one second on every call so each save gets a
// distinct snapshot name.
type tickingClock struct{ t time.Time }

func (c *tickingClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

type recordingPresenter struct {
	welcomes int
	shown    []traverse.Message
	invalid  int
	finished []bool
}

func (p *recordingPresenter) Show(m traverse.Message) {
	if m.Kind == traverse.Welcome {
		p.welcomes++
		return
	}
	p.shown = append(p.shown, m)
}
func (p *recordingPresenter) NotifyInvalid()               { p.invalid++ }
func (p *recordingPresenter) NotifyFinished(graceful bool) { p.finished = append(p.finished, graceful) }

type memRecorder struct {
	entries []journal.Entry
	err     error
}

func (r *memRecorder) Record(_ context.Context, e journal.Entry) error {
	r.entries = append(r.entries, e)
	return r.err
}

type fixture struct {
	dir   string
	store *snapshot.Store
	clock *tickingClock
	out   *recordingPresenter
}

func newFixture(t *testing.T, root string) *fixture {
	t.Helper()
	dir := t.TempDir()
	osDir, err := snapshot.NewOSDirectory(dir)
	require.NoError(t, err)

	clock := &tickingClock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)}
	store := snapshot.NewStore(osDir, snapshot.Options{Clock: clock})
	if root != "" {
		_, err := store.Seed(root)
		require.NoError(t, err)
	}
	return &fixture{dir: dir, store: store, clock: clock, out: &recordingPresenter{}}
}

func (f *fixture) controller(input string, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = f.clock
	}
	in := ui.NewLineReader(strings.NewReader(input), io.Discard)
	return New(f.store, in, f.out, opts)
}

func (f *fixture) snapshotCount(t *testing.T) int {
	t.Helper()
	infos, err := f.store.List()
	require.NoError(t, err)
	return len(infos)
}

func (f *fixture) latest(t *testing.T) *tree.Tree {
	t.Helper()
	tr, _, err := f.store.LoadLatest()
	require.NoError(t, err)
	return tr
}

func TestRun_GraftScenario(t *testing.T) {
	f := newFixture(t, "root-prompt")

	err := f.controller("y\nplays chess\n", Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, f.out.welcomes)
	require.Equal(t, []bool{true}, f.out.finished)
	require.Equal(t, 2, f.snapshotCount(t))

	tr := f.latest(t)
	root, _ := tr.ValueAt(0)
	require.Equal(t, "root-prompt", root)
	v, ok := tr.ValueAt(2)
	require.True(t, ok)
	require.Equal(t, "plays chess", v)
	_, ok = tr.ValueAt(1)
	require.False(t, ok)

	infos, err := f.store.List()
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(f.dir, infos[len(infos)-1].Name))
	require.NoError(t, err)
	require.Equal(t, "[\"root-prompt\",null,\"plays chess\"]\n", string(data))
}

func TestRun_RestartsAfterTooManyErrors(t *testing.T) {
	f := newFixture(t, "root")

	err := f.controller("x\nx\nx\ny\nplays chess\n", Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, f.out.welcomes, "a fresh session starts after the non-graceful finish")
	require.Equal(t, []bool{false, true}, f.out.finished)
	require.Equal(t, 2, f.out.invalid)
	require.Equal(t, 3, f.snapshotCount(t), "seed + non-graceful save + graceful save")

	v, ok := f.latest(t).ValueAt(2)
	require.True(t, ok)
	require.Equal(t, "plays chess", v)
}

// frozenClock only moves when something sleeps on it.
type frozenClock struct{ t time.Time }

func (c *frozenClock) Now() time.Time        { return c.t }
func (c *frozenClock) Sleep(d time.Duration) { c.t = c.t.Add(d) }

func TestRun_SameSecondSavesKeepNewTrait(t *testing.T) {
	dir := t.TempDir()
	osDir, err := snapshot.NewOSDirectory(dir)
	require.NoError(t, err)
	clock := &frozenClock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)}
	store := snapshot.NewStore(osDir, snapshot.Options{Clock: clock, Sleep: clock.Sleep})
	_, err = store.Seed("root")
	require.NoError(t, err)

	out := &recordingPresenter{}
	in := ui.NewLineReader(strings.NewReader("x\nx\nx\ny\nplays chess\n"), io.Discard)
	err = New(store, in, out, Options{Clock: clock}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []bool{false, true}, out.finished)

	tr, info, err := store.LoadLatest()
	require.NoError(t, err)
	require.Equal(t, snapshot.ID("20261018120001"), info.ID)
	v, ok := tr.ValueAt(2)
	require.True(t, ok)
	require.Equal(t, "plays chess", v)
}

func TestRun_PureTraversalLeavesTreeUnchanged(t *testing.T) {
	f := newFixture(t, "root")
	seedTree := f.latest(t)

	outcome, err := f.controller("?\n?\n?\n", Options{}).RunOnce(context.Background())
	require.NoError(t, err)
	require.False(t, outcome.Result.Graceful)
	require.NotEqual(t, outcome.Loaded.ID, outcome.Saved.ID)
	require.True(t, seedTree.Equal(f.latest(t)))
}

func TestRun_NoSnapshot(t *testing.T) {
	f := newFixture(t, "")

	err := f.controller("y\n", Options{}).Run(context.Background())
	require.True(t, errors.Is(err, errors.ErrNoSnapshotFound), "got %v", err)
	require.Equal(t, 0, f.out.welcomes)
}

func TestRun_CorruptSnapshot(t *testing.T) {
	f := newFixture(t, "root")
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "99999999999999.UAS"), []byte("['root']"), 0600))

	err := f.controller("y\n", Options{}).Run(context.Background())
	require.True(t, errors.Is(err, errors.ErrCorruptSnapshot), "got %v", err)
}

func TestRun_InputClosedDoesNotSave(t *testing.T) {
	f := newFixture(t, "root")

	err := f.controller("y\n", Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.snapshotCount(t))
	require.Empty(t, f.out.finished)
}

func TestRun_Kiosk(t *testing.T) {
	f := newFixture(t, "root")

	err := f.controller("y\nlikes tea\nn\nplays chess\n", Options{Kiosk: true}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []bool{true, true}, f.out.finished)
	require.Equal(t, 3, f.out.welcomes, "third session ends when input closes")

	tr := f.latest(t)
	a, _ := tr.ValueAt(2)
	b, _ := tr.ValueAt(1)
	require.Equal(t, "likes tea", a)
	require.Equal(t, "plays chess", b)
}

func TestRun_MaxSessions(t *testing.T) {
	f := newFixture(t, "root")

	err := f.controller("x\nx\nx\nx\nx\nx\n", Options{MaxSessions: 1}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []bool{false}, f.out.finished)
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t, "root")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.controller("y\nx\n", Options{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, f.out.welcomes)
}

func TestRunOnce_RecordsJournal(t *testing.T) {
	f := newFixture(t, "root")
	rec := &memRecorder{}

	outcome, err := f.controller("n\nplays chess\n", Options{
		Recorder: rec,
		NewID:    func() string { return "session-1" },
	}).RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.entries, 1)
	e := rec.entries[0]
	require.Equal(t, "session-1", e.ID)
	require.Equal(t, "session-1", outcome.SessionID)
	require.True(t, e.Graceful)
	require.Equal(t, 1, e.Answers)
	require.NotNil(t, e.GraftedPosition)
	require.Equal(t, 1, *e.GraftedPosition)
	require.Equal(t, string(outcome.Loaded.ID), e.LoadedSnapshot)
	require.Equal(t, string(outcome.Saved.ID), e.SavedSnapshot)
	require.True(t, e.EndedAt.After(e.StartedAt))
}

func TestRunOnce_RecorderFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, "root")
	rec := &memRecorder{err: fmt.Errorf("disk full")}

	_, err := f.controller("n\nx\n", Options{Recorder: rec}).RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.entries, 1)
}

func TestRunOnce_FinishDelayAndAfterSave(t *testing.T) {
	f := newFixture(t, "root")
	var slept time.Duration
	var shown *tree.Tree

	_, err := f.controller("y\nx\n", Options{
		FinishDelay: 10 * time.Second,
		Sleep:       func(d time.Duration) { slept += d },
		AfterSave:   func(t *tree.Tree, _ snapshot.Info) { shown = t },
	}).RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, slept)
	require.NotNil(t, shown)
	require.Equal(t, 2, shown.Occupied())
}

func TestRunOnce_EngineOptions(t *testing.T) {
	f := newFixture(t, "root")

	outcome, err := f.controller("ja\nx\n", Options{
		Engine: traverse.Options{
			Vocabulary: traverse.NewVocabulary([]string{"ja"}, []string{"nein"}),
			MaxInvalid: 5,
		},
	}).RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Result.Graceful)
	require.Equal(t, 2, outcome.Result.Grafted.Position)
}
