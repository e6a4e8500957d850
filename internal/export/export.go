// Package export renders a tree for people and tools: Graphviz DOT,
// a Markdown outline, a standalone HTML page, JSON and a plain-text
// outline for terminals. Exporters only read the tree.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/uas/internal/errors"
	"github.com/hpungsan/uas/internal/fileio"
	"github.com/hpungsan/uas/internal/tree"
)

// Format names an export format.
type Format string

const (
	FormatDOT      Format = "dot"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatText     Format = "txt"
)

// Formats lists every supported format.
var Formats = []Format{FormatDOT, FormatMarkdown, FormatHTML, FormatJSON, FormatText}

// ParseFormat validates a format name. "markdown" is accepted for md.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "markdown" {
		return FormatMarkdown, nil
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q (want one of %v)", s, Formats))
}

// Render encodes t in the given format.
func Render(t *tree.Tree, f Format) ([]byte, error) {
	switch f {
	case FormatDOT:
		return []byte(DOT(t)), nil
	case FormatMarkdown:
		return []byte(Markdown(t)), nil
	case FormatHTML:
		return HTML(t, "")
	case FormatJSON:
		return JSON(t)
	case FormatText:
		return []byte(Text(t)), nil
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q", f))
	}
}

// Output describes a written export.
type Output struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
	Nodes  int    `json:"nodes"`
}

// Write renders t and writes it to path, replacing any file there.
func Write(t *tree.Tree, f Format, path string) (*Output, error) {
	data, err := Render(t, f)
	if err != nil {
		return nil, err
	}
	if err := fileio.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := fileio.WriteAtomic(path, data, 0600); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &Output{Path: path, Format: f, Nodes: t.Occupied()}, nil
}

// DefaultPath names an export after the time it was made, in the same
// layout as snapshots: <dir>/<timestamp>.<format>.
func DefaultPath(dir string, f Format, now time.Time, layout string) string {
	return filepath.Join(dir, now.Format(layout)+"."+string(f))
}

// DOT renders t as a Graphviz digraph. Edges are labelled with the
// answer that leads to the child.
func DOT(t *tree.Tree) string {
	var b strings.Builder
	b.WriteString("digraph uas {\n")
	b.WriteString("  node [shape=record, height=.1];\n")
	for _, n := range t.Nodes() {
		fmt.Fprintf(&b, "  n%d [label=%s];\n", n.Position, dotQuote(n.Text))
	}
	for _, n := range t.Nodes() {
		if n.Parent < 0 {
			continue
		}
		label := "no"
		if n.Side == tree.Positive.String() {
			label = "yes"
		}
		fmt.Fprintf(&b, "  n%d -> n%d [label=%q];\n", n.Parent, n.Position, label)
	}
	b.WriteString("}\n")
	return b.String()
}

// dotQuote quotes s as a DOT string, escaping record-shape specials.
func dotQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "{", `\{`, "}", `\}`, "|", `\|`, "<", `\<`, ">", `\>`)
	return `"` + r.Replace(s) + `"`
}

// Markdown renders t as a nested list, negative branch first.
func Markdown(t *tree.Tree) string {
	var b strings.Builder
	root, _ := t.ValueAt(tree.Root)
	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(root))
	walk(t, tree.Root, 0, func(n tree.Node, depth int) {
		mark := "**no**"
		if n.Side == tree.Positive.String() {
			mark = "**yes**"
		}
		fmt.Fprintf(&b, "%s- %s: %s\n", strings.Repeat("  ", depth), mark, escapeMarkdown(n.Text))
	})
	return b.String()
}

// Text renders t as an indented outline for terminals.
func Text(t *tree.Tree) string {
	var b strings.Builder
	root, _ := t.ValueAt(tree.Root)
	fmt.Fprintf(&b, "[0] %s\n", root)
	walk(t, tree.Root, 0, func(n tree.Node, depth int) {
		mark := "n"
		if n.Side == tree.Positive.String() {
			mark = "y"
		}
		fmt.Fprintf(&b, "%s%s─ [%d] %s\n", strings.Repeat("│  ", depth), mark, n.Position, n.Text)
	})
	return b.String()
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
<footer><p>{{.Nodes}} node(s), depth {{.Depth}}</p></footer>
</body>
</html>
`))

// HTML renders the Markdown outline of t as a standalone page.
func HTML(t *tree.Tree, title string) ([]byte, error) {
	if title == "" {
		title = "Uniqueness Assessment System"
	}
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(t)), &body); err != nil {
		return nil, errors.NewInternal(err)
	}

	var page bytes.Buffer
	err := pageTemplate.Execute(&page, struct {
		Title string
		Body  template.HTML
		Nodes int
		Depth int
	}{title, template.HTML(body.String()), t.Occupied(), t.Depth()})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return page.Bytes(), nil
}

// Document is the JSON export shape.
type Document struct {
	Slots []*string   `json:"slots"`
	Nodes []tree.Node `json:"nodes"`
	Depth int         `json:"depth"`
}

// JSON renders the full slot sequence plus the occupied nodes.
func JSON(t *tree.Tree) ([]byte, error) {
	data, err := json.MarshalIndent(Document{Slots: t.Slots(), Nodes: t.Nodes(), Depth: t.Depth()}, "", "  ")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return append(data, '\n'), nil
}

// walk visits the descendants of p depth-first, negative child first.
// An explicit stack keeps deep trees off the call stack.
func walk(t *tree.Tree, p int, depth int, visit func(n tree.Node, depth int)) {
	type frame struct{ pos, depth int }
	stack := []frame{{tree.Child(p, tree.Positive), depth}, {tree.Child(p, tree.Negative), depth}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		text, ok := t.ValueAt(f.pos)
		if !ok {
			continue
		}
		parent, side := tree.Parent(f.pos)
		visit(tree.Node{Position: f.pos, Text: text, Parent: parent, Side: side.String(), Depth: f.depth + 1}, f.depth)
		stack = append(stack,
			frame{tree.Child(f.pos, tree.Positive), f.depth + 1},
			frame{tree.Child(f.pos, tree.Negative), f.depth + 1})
	}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;",
)

// escapeMarkdown keeps participant text from being read as markup.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(strings.ReplaceAll(s, "\n", " "))
}
