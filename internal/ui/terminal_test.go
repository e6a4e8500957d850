package ui

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/uas/internal/traverse"
)

func TestCatalogFor(t *testing.T) {
	require.Equal(t, "What else makes you unique?", CatalogFor("en").More)
	require.Equal(t, "Quoi d'autre vous rend unique?", CatalogFor("fr").More)
	require.Equal(t, CatalogFor("en"), CatalogFor("de"))
}

func TestCatalog_Question(t *testing.T) {
	require.Equal(t, "Would you say that plays chess makes you unique?", CatalogFor("en").Question("plays chess"))
	require.Equal(t, "Diriez-vous que le jazz vous rend unique?", CatalogFor("fr").Question("le jazz"))
}

func TestTerminal_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, CatalogFor("en"), true)

	term.Show(traverse.Message{Kind: traverse.Welcome})
	term.Show(traverse.Message{Kind: traverse.Opening, Text: "Hello, are you unique?"})
	term.Show(traverse.Message{Kind: traverse.Question, Text: "plays chess", Position: 2})
	term.NotifyInvalid()
	term.NotifyFinished(false)
	term.NotifyFinished(true)

	out := buf.String()
	require.Contains(t, out, "Welcome to the Uniqueness Assessment System")
	require.Contains(t, out, "\nHello, are you unique?\n")
	require.NotContains(t, out, "Would you say that Hello")
	require.Contains(t, out, "Would you say that plays chess makes you unique?")
	require.Contains(t, out, "Invalid response.")
	require.Contains(t, out, "Too many input errors.")
	require.Contains(t, out, "Thank you.")
}

func TestTerminal_StyledKeepsText(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, CatalogFor("fr"), false)

	term.Show(traverse.Message{Kind: traverse.Question, Text: "le jazz"})
	require.Contains(t, buf.String(), "Diriez-vous que le jazz vous rend unique?")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestTerminal_WriteErrorsIgnored(t *testing.T) {
	term := NewTerminal(failingWriter{}, CatalogFor("en"), true)
	require.NotPanics(t, func() {
		term.Show(traverse.Message{Kind: traverse.Welcome})
		term.NotifyInvalid()
		term.NotifyFinished(true)
	})
}

func TestLineReader(t *testing.T) {
	var prompts bytes.Buffer
	r := NewLineReader(strings.NewReader("y\r\n  no \nplays chess\nlast"), &prompts)

	tok, err := r.ReadToken()
	require.NoError(t, err)
	require.Equal(t, "y", tok)

	tok, err = r.ReadToken()
	require.NoError(t, err)
	require.Equal(t, "  no ", tok, "classification trims, the reader does not")

	text, err := r.ReadFreeText("What else makes you unique?")
	require.NoError(t, err)
	require.Equal(t, "plays chess", text)
	require.Equal(t, "What else makes you unique? ", prompts.String())

	tok, err = r.ReadToken()
	require.NoError(t, err)
	require.Equal(t, "last", tok)

	_, err = r.ReadToken()
	require.ErrorIs(t, err, io.EOF)
}
