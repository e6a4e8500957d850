package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/uas/internal/config"
	"github.com/hpungsan/uas/internal/errors"
	"github.com/hpungsan/uas/internal/export"
	"github.com/hpungsan/uas/internal/journal"
	"github.com/hpungsan/uas/internal/mcp"
	"github.com/hpungsan/uas/internal/session"
	"github.com/hpungsan/uas/internal/snapshot"
	"github.com/hpungsan/uas/internal/traverse"
	"github.com/hpungsan/uas/internal/tree"
	"github.com/hpungsan/uas/internal/ui"
)

// appState is filled by the global flags before any command runs.
type appState struct {
	home   string
	logger *zap.Logger
	cfg    *config.Config
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(in io.Reader, out io.Writer) *cli.App {
	st := &appState{logger: zap.NewNop()}
	app := &cli.App{
		Name:    "uas",
		Usage:   "Uniqueness Assessment System",
		Version: Version,
		Reader:  in,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "home", EnvVars: []string{"UAS_HOME"}, Usage: "Base directory for config, saves and journal (default ~/.uas)"},
			&cli.BoolFlag{Name: "debug", Usage: "Log diagnostics to stderr"},
		},
		Before: st.setup,
		After:  st.teardown,
		Commands: []*cli.Command{
			playCmd(st),
			initCmd(st),
			showCmd(st),
			snapshotsCmd(st),
			exportCmd(st),
			historyCmd(st),
			mcpCmd(st),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func (st *appState) setup(c *cli.Context) error {
	home := c.String("home")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return outputError(errors.NewInternal(fmt.Errorf("could not determine home directory: %w", err)))
		}
		home = filepath.Join(userHome, ".uas")
	}
	st.home = home

	if c.Bool("debug") {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return outputError(errors.NewInternal(err))
		}
		st.logger = logger
	}
	return nil
}

func (st *appState) teardown(_ *cli.Context) error {
	_ = st.logger.Sync()
	return nil
}

// config loads config.json from the home directory once.
func (st *appState) config() (*config.Config, error) {
	if st.cfg != nil {
		return st.cfg, nil
	}
	cfg, err := config.Load(st.home)
	if err != nil {
		return nil, err
	}
	st.logger.Debug("config loaded", zap.String("home", st.home), zap.String("saves_dir", cfg.SavesDir))
	st.cfg = cfg
	return cfg, nil
}

func (st *appState) store() (*snapshot.Store, error) {
	cfg, err := st.config()
	if err != nil {
		return nil, err
	}
	return snapshot.Open(cfg, st.logger)
}

// journal opens the session journal, or returns nil when it is disabled.
func (st *appState) journal() (*journal.Journal, error) {
	cfg, err := st.config()
	if err != nil {
		return nil, err
	}
	if cfg.DisableJournal {
		return nil, nil
	}
	j, err := journal.Open(st.home)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return j, nil
}

// playCmd creates the play command.
func playCmd(st *appState) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Run interactive sessions on the latest snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "Message language: en|fr (overrides config)"},
			&cli.BoolFlag{Name: "kiosk", Aliases: []string{"k"}, Usage: "Start a new session after every finish until input closes"},
			&cli.BoolFlag{Name: "show-tree", Aliases: []string{"t"}, Usage: "Print the tree after each save"},
			&cli.BoolFlag{Name: "plain", Usage: "Disable colors and borders"},
			&cli.IntFlag{Name: "sessions", Usage: "Stop after this many sessions (0 = no limit)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := st.config()
			if err != nil {
				return outputError(err)
			}
			lang := cfg.Language
			if c.IsSet("lang") {
				lang = strings.ToLower(c.String("lang"))
				if !slices.Contains(config.Languages, lang) {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("unknown language %q (want en or fr)", lang)))
				}
			}

			store, err := st.store()
			if err != nil {
				return outputError(err)
			}

			catalog := ui.CatalogFor(lang)
			term := ui.NewTerminal(c.App.Writer, catalog, c.Bool("plain") || !isTTY(c.App.Writer))
			in := ui.NewLineReader(c.App.Reader, c.App.Writer)

			opts := session.Options{
				Engine: traverse.Options{
					Vocabulary: traverse.NewVocabulary(cfg.PositiveAnswers, cfg.NegativeAnswers),
					MaxInvalid: cfg.MaxInvalidInputs,
					MorePrompt: catalog.More,
				},
				Kiosk:       c.Bool("kiosk"),
				MaxSessions: c.Int("sessions"),
				FinishDelay: cfg.FinishDelay(),
				Logger:      st.logger,
			}
			if c.Bool("show-tree") {
				opts.AfterSave = func(t *tree.Tree, saved snapshot.Info) {
					term.Info(saved.Name + "\n" + export.Text(t))
				}
			}

			j, err := st.journal()
			if err != nil {
				st.logger.Warn("session journal unavailable", zap.Error(err))
			}
			if j != nil {
				defer j.Close()
				opts.Recorder = j
			}

			if err := session.New(store, in, term, opts).Run(c.Context); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// initCmd creates the init command.
func initCmd(st *appState) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Seed the first snapshot with an opening prompt",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Required: true, Usage: "Opening prompt shown at the root"},
		},
		Action: func(c *cli.Context) error {
			store, err := st.store()
			if err != nil {
				return outputError(err)
			}
			info, err := store.Seed(c.String("root"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{
				"snapshot": info,
				"path":     filepath.Join(store.Dir(), info.Name),
			})
		},
	}
}

// showCmd creates the show command.
func showCmd(st *appState) *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print a snapshot as an outline",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "snapshot", Aliases: []string{"s"}, Usage: "Snapshot id (default: latest)"},
			&cli.BoolFlag{Name: "json", Usage: "Print slots and nodes as JSON"},
		},
		Action: func(c *cli.Context) error {
			t, info, err := loadSnapshot(st, c.String("snapshot"))
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]any{
					"snapshot": info,
					"slots":    t.Slots(),
					"nodes":    t.Nodes(),
					"depth":    t.Depth(),
				})
			}
			fmt.Fprintf(c.App.Writer, "%s (%d nodes, depth %d)\n\n%s", info.Name, t.Occupied(), t.Depth(), export.Text(t))
			return nil
		},
	}
}

// snapshotsCmd creates the snapshots command.
func snapshotsCmd(st *appState) *cli.Command {
	return &cli.Command{
		Name:  "snapshots",
		Usage: "List saved snapshots, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum snapshots to list (0 = all)"},
		},
		Action: func(c *cli.Context) error {
			store, err := st.store()
			if err != nil {
				return outputError(err)
			}
			infos, err := store.List()
			if err != nil {
				return outputError(err)
			}
			limit := c.Int("limit")
			if limit < 0 {
				return outputError(errors.NewInvalidRequest("limit must be >= 0"))
			}
			items := make([]snapshot.Info, 0, len(infos))
			for i := len(infos) - 1; i >= 0 && (limit == 0 || len(items) < limit); i-- {
				items = append(items, infos[i])
			}
			return outputJSON(c.App.Writer, map[string]any{
				"dir":   store.Dir(),
				"items": items,
				"total": len(infos),
			})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(st *appState) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Render a snapshot as dot, md, html, json or txt",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "dot", Usage: "Output format: dot|md|html|json|txt"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file (default: <exports_dir>/<timestamp>.<format>)"},
			&cli.StringFlag{Name: "snapshot", Aliases: []string{"s"}, Usage: "Snapshot id (default: latest)"},
			&cli.BoolFlag{Name: "stdout", Usage: "Write to stdout instead of a file"},
		},
		Action: func(c *cli.Context) error {
			format, err := export.ParseFormat(c.String("format"))
			if err != nil {
				return outputError(err)
			}
			t, _, err := loadSnapshot(st, c.String("snapshot"))
			if err != nil {
				return outputError(err)
			}

			if c.Bool("stdout") {
				data, err := export.Render(t, format)
				if err != nil {
					return outputError(err)
				}
				_, err = c.App.Writer.Write(data)
				return err
			}

			path := c.String("path")
			if path == "" {
				cfg, err := st.config()
				if err != nil {
					return outputError(err)
				}
				path = export.DefaultPath(cfg.ExportsDir, format, time.Now(), cfg.TimestampLayout)
			}
			out, err := export.Write(t, format, path)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(st *appState) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recently finished sessions from the journal",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum sessions to list (max 500)"},
		},
		Action: func(c *cli.Context) error {
			j, err := st.journal()
			if err != nil {
				return outputError(err)
			}
			if j == nil {
				return outputError(errors.NewInvalidRequest("session journal is disabled (disable_journal in config.json)"))
			}
			defer j.Close()

			if c.Int("limit") < 0 {
				return outputError(errors.NewInvalidRequest("limit must be >= 0"))
			}
			entries, err := j.Recent(c.Context, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{"items": entries})
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(st *appState) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve read-only tree inspection tools over MCP stdio",
		Action: func(c *cli.Context) error {
			store, err := st.store()
			if err != nil {
				return outputError(err)
			}
			j, err := st.journal()
			if err != nil {
				st.logger.Warn("session journal unavailable", zap.Error(err))
			}
			if j != nil {
				defer j.Close()
			}
			if err := mcp.Run(store, j, Version); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// loadSnapshot loads the snapshot with the given id, or the latest.
func loadSnapshot(st *appState, id string) (*tree.Tree, snapshot.Info, error) {
	store, err := st.store()
	if err != nil {
		return nil, snapshot.Info{}, err
	}
	if id == "" {
		return store.LoadLatest()
	}
	return store.Load(snapshot.ID(id))
}

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if uasErr, ok := err.(*errors.UasError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", uasErr.Code, uasErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// isTTY reports whether w is a character device.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
