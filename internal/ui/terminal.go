// Package ui renders sessions on a terminal and reads the participant's
// answers line by line.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hpungsan/uas/internal/traverse"
)

// Palette - dodger blue, as on the exhibition screen.
var (
	ColorBlue  = lipgloss.Color("#1874CD")
	ColorWhite = lipgloss.Color("#FFFFFF")
	ColorWarn  = lipgloss.Color("#F4D03F")
	ColorMuted = lipgloss.Color("#8FA3B0")
)

type styles struct {
	title    lipgloss.Style
	body     lipgloss.Style
	question lipgloss.Style
	warning  lipgloss.Style
	finisher lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, width int) styles {
	return styles{
		title:    r.NewStyle().Bold(true).Foreground(ColorWhite).Background(ColorBlue).Padding(0, 1),
		body:     r.NewStyle().Width(width),
		question: r.NewStyle().Bold(true).Foreground(ColorBlue),
		warning:  r.NewStyle().Foreground(ColorWarn),
		finisher: r.NewStyle().Bold(true).Border(lipgloss.RoundedBorder()).BorderForeground(ColorBlue).Padding(0, 1),
	}
}

// Terminal is a traverse.Presenter that writes styled text to w.
// Write errors are ignored.
type Terminal struct {
	w       io.Writer
	catalog Catalog
	plain   bool
	styles  styles
}

// NewTerminal creates a presenter. With plain set, no styling is applied,
// which suits dumb terminals and log capture.
func NewTerminal(w io.Writer, catalog Catalog, plain bool) *Terminal {
	return &Terminal{
		w:       w,
		catalog: catalog,
		plain:   plain,
		styles:  newStyles(lipgloss.NewRenderer(w), 72),
	}
}

// Show implements traverse.Presenter.
func (t *Terminal) Show(msg traverse.Message) {
	switch msg.Kind {
	case traverse.Welcome:
		t.println(t.render(t.styles.title, t.catalog.Title))
		t.println("")
		t.println(t.render(t.styles.body, t.catalog.Welcome))
		t.println("")
	case traverse.Opening:
		t.println(t.render(t.styles.question, msg.Text))
	default:
		t.println(t.render(t.styles.question, t.catalog.Question(msg.Text)))
	}
}

// NotifyInvalid implements traverse.Presenter.
func (t *Terminal) NotifyInvalid() {
	t.println(t.render(t.styles.warning, t.catalog.Invalid))
}

// NotifyFinished implements traverse.Presenter.
func (t *Terminal) NotifyFinished(graceful bool) {
	if graceful {
		t.println(t.render(t.styles.finisher, t.catalog.Finisher))
		return
	}
	t.println(t.render(t.styles.warning, t.catalog.TooManyErrors))
}

// Info prints a muted line outside of a session, e.g. a tree dump.
func (t *Terminal) Info(text string) {
	t.println(t.render(t.styles.body.Foreground(ColorMuted), text))
}

func (t *Terminal) render(s lipgloss.Style, text string) string {
	if t.plain {
		return text
	}
	return s.Render(text)
}

func (t *Terminal) println(s string) {
	_, _ = fmt.Fprintln(t.w, s)
}

// LineReader is a traverse.InputSource reading one answer per line.
type LineReader struct {
	r *bufio.Reader
	w io.Writer
}

// NewLineReader reads answers from r and writes free-text prompts to w.
func NewLineReader(r io.Reader, w io.Writer) *LineReader {
	return &LineReader{r: bufio.NewReader(r), w: w}
}

// ReadToken implements traverse.InputSource.
func (l *LineReader) ReadToken() (string, error) {
	return l.readLine()
}

// ReadFreeText implements traverse.InputSource.
func (l *LineReader) ReadFreeText(prompt string) (string, error) {
	_, _ = fmt.Fprint(l.w, prompt+" ")
	return l.readLine()
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned before io.EOF.
func (l *LineReader) readLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
