package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// seedHome writes a seed snapshot with an old timestamp so a session
// saved during the test never collides with it.
func seedHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	saves := filepath.Join(home, "saves")
	require.NoError(t, os.MkdirAll(saves, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(saves, "20200101000000.UAS"), []byte("[\"Hello, are you unique?\"]\n"), 0600))
	return home
}

// runCLI runs the app with stdin and returns stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newCLIApp(strings.NewReader(stdin), &out)
	err := app.Run(append([]string{"uas"}, args...))
	return out.String(), err
}

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestCLIInit(t *testing.T) {
	home := t.TempDir()

	out, err := runCLI(t, "", "--home", home, "init", "--root", "Hello, are you unique?")
	require.NoError(t, err)
	result := decodeJSON(t, out)
	path := result["path"].(string)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[\"Hello, are you unique?\"]\n", string(data))

	_, err = runCLI(t, "", "--home", home, "init", "--root", "again")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[CONFLICT]")
}

func TestCLIInit_EmptyRoot(t *testing.T) {
	_, err := runCLI(t, "", "--home", t.TempDir(), "init", "--root", "   ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

func TestCLIPlay(t *testing.T) {
	home := seedHome(t)

	out, err := runCLI(t, "y\nplays chess\n", "--home", home, "play", "--plain")
	require.NoError(t, err)
	require.Contains(t, out, "Welcome to the Uniqueness Assessment System")
	require.Contains(t, out, "Hello, are you unique?")
	require.Contains(t, out, "What else makes you unique?")
	require.Contains(t, out, "Thank you.")

	out, err = runCLI(t, "", "--home", home, "show", "--json")
	require.NoError(t, err)
	shown := decodeJSON(t, out)
	require.Equal(t, []any{"Hello, are you unique?", nil, "plays chess"}, shown["slots"])

	out, err = runCLI(t, "", "--home", home, "history")
	require.NoError(t, err)
	items := decodeJSON(t, out)["items"].([]any)
	require.Len(t, items, 1)
	entry := items[0].(map[string]any)
	require.Equal(t, true, entry["graceful"])
	require.Equal(t, float64(2), entry["grafted_position"])
	require.Equal(t, "20200101000000", entry["loaded_snapshot"])
}

func TestCLIPlay_French(t *testing.T) {
	home := seedHome(t)

	out, err := runCLI(t, "oui\nle jazz\n", "--home", home, "play", "--plain", "--lang", "fr")
	require.NoError(t, err)
	require.Contains(t, out, "Quoi d'autre vous rend unique?")
}

func TestCLIPlay_ShowTree(t *testing.T) {
	home := seedHome(t)

	out, err := runCLI(t, "n\nlikes tea\n", "--home", home, "play", "--plain", "--show-tree")
	require.NoError(t, err)
	require.Contains(t, out, "[0] Hello, are you unique?")
	require.Contains(t, out, "n─ [1] likes tea")
}

func TestCLIPlay_Errors(t *testing.T) {
	t.Run("no snapshot", func(t *testing.T) {
		_, err := runCLI(t, "y\n", "--home", t.TempDir(), "play")
		require.Error(t, err)
		require.Contains(t, err.Error(), "[NO_SNAPSHOT_FOUND]")
	})

	t.Run("corrupt snapshot", func(t *testing.T) {
		home := seedHome(t)
		require.NoError(t, os.WriteFile(filepath.Join(home, "saves", "20990101000000.UAS"), []byte("{"), 0600))
		_, err := runCLI(t, "y\n", "--home", home, "play")
		require.Error(t, err)
		require.Contains(t, err.Error(), "[CORRUPT_SNAPSHOT]")
	})

	t.Run("unknown language", func(t *testing.T) {
		_, err := runCLI(t, "y\n", "--home", seedHome(t), "play", "--lang", "de")
		require.Error(t, err)
		require.Contains(t, err.Error(), "[INVALID_REQUEST]")
	})

	t.Run("input closed before answering", func(t *testing.T) {
		home := seedHome(t)
		_, err := runCLI(t, "", "--home", home, "play", "--plain")
		require.NoError(t, err)

		entries, err := os.ReadDir(filepath.Join(home, "saves"))
		require.NoError(t, err)
		require.Len(t, entries, 1, "nothing is saved when input closes mid-session")
	})
}

func TestCLISnapshots(t *testing.T) {
	home := seedHome(t)
	saves := filepath.Join(home, "saves")
	require.NoError(t, os.WriteFile(filepath.Join(saves, "20210101000000.UAS"), []byte("[\"Hello, are you unique?\",\"x\"]\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(saves, "notes.txt"), []byte("ignore me"), 0600))

	out, err := runCLI(t, "", "--home", home, "snapshots")
	require.NoError(t, err)
	result := decodeJSON(t, out)
	require.Equal(t, float64(2), result["total"])
	items := result["items"].([]any)
	require.Equal(t, "20210101000000", items[0].(map[string]any)["id"])

	out, err = runCLI(t, "", "--home", home, "show", "--snapshot", "20200101000000")
	require.NoError(t, err)
	require.Contains(t, out, "20200101000000.UAS (1 nodes, depth 1)")
}

func TestCLIExport(t *testing.T) {
	home := seedHome(t)

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tree.md")
		out, err := runCLI(t, "", "--home", home, "export", "--format", "md", "--path", path)
		require.NoError(t, err)
		require.Equal(t, path, decodeJSON(t, out)["path"])

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "# Hello, are you unique?\n\n", string(data))
	})

	t.Run("default path", func(t *testing.T) {
		out, err := runCLI(t, "", "--home", home, "export")
		require.NoError(t, err)
		path := decodeJSON(t, out)["path"].(string)
		require.Equal(t, filepath.Join(home, "exports"), filepath.Dir(path))
		require.True(t, strings.HasSuffix(path, ".dot"))
	})

	t.Run("stdout", func(t *testing.T) {
		out, err := runCLI(t, "", "--home", home, "export", "--format", "dot", "--stdout")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(out, "digraph uas {"))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := runCLI(t, "", "--home", home, "export", "--format", "svg")
		require.Error(t, err)
		require.Contains(t, err.Error(), "[INVALID_REQUEST]")
	})
}

func TestCLIHistory_Disabled(t *testing.T) {
	home := seedHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.json"), []byte(`{"disable_journal": true}`), 0600))

	_, err := runCLI(t, "y\nplays chess\n", "--home", home, "play", "--plain")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(home, "journal.db"))
	require.True(t, os.IsNotExist(err))

	_, err = runCLI(t, "", "--home", home, "history")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

func TestCLIHomeFromEnv(t *testing.T) {
	home := seedHome(t)
	t.Setenv("UAS_HOME", home)

	out, err := runCLI(t, "", "show")
	require.NoError(t, err)
	require.Contains(t, out, "20200101000000.UAS")
}
