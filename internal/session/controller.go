// Package session runs complete sessions: load the latest snapshot, walk
// it, save it, and either stop or start over.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/uas/internal/errors"
	"github.com/hpungsan/uas/internal/journal"
	"github.com/hpungsan/uas/internal/snapshot"
	"github.com/hpungsan/uas/internal/traverse"
	"github.com/hpungsan/uas/internal/tree"
)

// Store is the part of snapshot.Store a Controller needs.
type Store interface {
	LoadLatest() (*tree.Tree, snapshot.Info, error)
	Save(t *tree.Tree) (snapshot.Info, error)
}

// Recorder receives one entry per finished session.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Options configures a Controller.
type Options struct {
	Engine traverse.Options

	// Kiosk starts a new session after a graceful finish too, so the
	// process keeps serving participants until input closes.
	Kiosk bool

	// MaxSessions stops Run after this many finished sessions. 0 means
	// no limit.
	MaxSessions int

	// FinishDelay pauses after the closing notice.
	FinishDelay time.Duration

	// AfterSave is called with the saved tree, e.g. to print it.
	AfterSave func(t *tree.Tree, saved snapshot.Info)

	Recorder Recorder
	Logger   *zap.Logger
	Clock    snapshot.Clock
	Sleep    func(time.Duration)
	NewID    func() string
}

// Outcome describes one finished session.
type Outcome struct {
	SessionID string
	Loaded    snapshot.Info
	Saved     snapshot.Info
	Result    *traverse.Result
}

// Controller coordinates sessions. It owns the tree exclusively from
// load to save.
type Controller struct {
	store  Store
	in     traverse.InputSource
	out    traverse.Presenter
	opts   Options
	logger *zap.Logger
}

// New creates a Controller.
func New(store Store, in traverse.InputSource, out traverse.Presenter, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Engine.Logger == nil {
		opts.Engine.Logger = opts.Logger
	}
	if opts.Clock == nil {
		opts.Clock = snapshot.SystemClock{}
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.NewID == nil {
		opts.NewID = journal.NewSessionID
	}
	return &Controller{store: store, in: in, out: out, opts: opts, logger: opts.Logger}
}

// Run serves sessions until one finishes gracefully (or, in kiosk mode,
// until input closes). A non-graceful finish always restarts with the
// latest snapshot reloaded. Startup failures (NO_SNAPSHOT_FOUND,
// CORRUPT_SNAPSHOT) are returned before a session begins. Input closing
// mid-session stops Run without saving and without error.
func (c *Controller) Run(ctx context.Context) error {
	finished := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := c.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, errors.ErrInputClosed) {
				c.logger.Debug("input closed, stopping")
				return nil
			}
			return err
		}

		finished++
		if c.opts.MaxSessions > 0 && finished >= c.opts.MaxSessions {
			return nil
		}
		if outcome.Result.Graceful && !c.opts.Kiosk {
			return nil
		}
	}
}

// RunOnce runs a single session: load, welcome, walk, save, notify.
// The tree is saved whether the walk finished gracefully or not.
func (c *Controller) RunOnce(ctx context.Context) (*Outcome, error) {
	id := c.opts.NewID()
	log := c.logger.With(zap.String("session_id", id))
	started := c.opts.Clock.Now()

	t, loaded, err := c.store.LoadLatest()
	if err != nil {
		return nil, err
	}
	log.Debug("session started", zap.String("snapshot", loaded.Name))

	c.out.Show(traverse.Message{Kind: traverse.Welcome})

	engine := traverse.New(c.in, c.out, c.opts.Engine)
	res, err := engine.Walk(t)
	if err != nil {
		if errors.Is(err, errors.ErrSlotOccupied) {
			log.Error("graft onto occupied slot", zap.Error(err))
		}
		return nil, err
	}

	saved, err := c.store.Save(t)
	if err != nil {
		return nil, err
	}
	c.out.NotifyFinished(res.Graceful)
	log.Debug("session finished",
		zap.Bool("graceful", res.Graceful),
		zap.String("snapshot", saved.Name),
		zap.Int("invalid_inputs", res.Invalid))

	outcome := &Outcome{SessionID: id, Loaded: loaded, Saved: saved, Result: res}
	c.record(ctx, log, started, outcome)

	if c.opts.AfterSave != nil {
		c.opts.AfterSave(t, saved)
	}
	if c.opts.FinishDelay > 0 {
		c.opts.Sleep(c.opts.FinishDelay)
	}
	return outcome, nil
}

// record writes the journal entry. Journal failures are logged only.
func (c *Controller) record(ctx context.Context, log *zap.Logger, started time.Time, o *Outcome) {
	if c.opts.Recorder == nil {
		return
	}
	entry := journal.Entry{
		ID:             o.SessionID,
		StartedAt:      started,
		EndedAt:        c.opts.Clock.Now(),
		Graceful:       o.Result.Graceful,
		Answers:        len(o.Result.Path),
		InvalidInputs:  o.Result.Invalid,
		LoadedSnapshot: string(o.Loaded.ID),
		SavedSnapshot:  string(o.Saved.ID),
	}
	if o.Result.Grafted != nil {
		pos := o.Result.Grafted.Position
		entry.GraftedPosition = &pos
	}
	if err := c.opts.Recorder.Record(ctx, entry); err != nil {
		log.Warn("failed to record session", zap.Error(err))
	}
}
