// Package tree implements the implicit, array-addressed binary tree that
// uas grows across sessions.
//
// A node at position i has its negative-answer child at 2i+1 and its
// positive-answer child at 2i+2. Position 0 is the opening prompt. An
// absent slot is a normal "no such node yet", not an error.
//
//	         _______Question?______
//	        /                      \
//	Negative answer           Positive answer
package tree

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/uas/internal/errors"
)

// Root is the position of the opening prompt.
const Root = 0

// Side is the answer class that leads from a node to one of its children.
type Side int

const (
	Negative Side = iota
	Positive
)

// String returns "negative" or "positive".
func (s Side) String() string {
	if s == Positive {
		return "positive"
	}
	return "negative"
}

// Child returns the position of p's child on the given side.
func Child(p int, side Side) int {
	if side == Positive {
		return 2*p + 2
	}
	return 2*p + 1
}

// Parent returns the position of p's parent and the side p hangs from.
// The root has no parent: Parent(0) returns -1.
func Parent(p int) (int, Side) {
	if p <= Root {
		return -1, Negative
	}
	if p%2 == 0 {
		return (p - 2) / 2, Positive
	}
	return (p - 1) / 2, Negative
}

// Node is one occupied slot, as seen by exporters.
type Node struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
	Parent   int    `json:"parent"`         // -1 for the root
	Side     string `json:"side,omitempty"` // side of Parent this node hangs from
	Depth    int    `json:"depth"`
}

// Tree is a binary tree stored as a sequence of slots. A nil slot is absent.
// A Tree is owned by exactly one session at a time and is not safe for
// concurrent use.
type Tree struct {
	slots []*string
}

// New creates a tree holding only the opening prompt.
func New(root string) (*Tree, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.NewInvalidRequest("root prompt must not be empty")
	}
	if !utf8.ValidString(root) {
		return nil, errors.NewInvalidRequest("root prompt is not valid UTF-8")
	}
	return &Tree{slots: []*string{&root}}, nil
}

// FromSlots builds a tree from a slot sequence, copying it.
// The root must be occupied and every occupied slot must hang from an
// occupied parent.
func FromSlots(slots []*string) (*Tree, error) {
	if len(slots) == 0 || slots[Root] == nil {
		return nil, fmt.Errorf("root slot is absent")
	}
	t := &Tree{slots: make([]*string, len(slots))}
	for i, s := range slots {
		if s == nil {
			continue
		}
		if i > Root {
			if parent, _ := Parent(i); slots[parent] == nil {
				return nil, fmt.Errorf("slot %d has no parent at %d", i, parent)
			}
		}
		v := *s
		t.slots[i] = &v
	}
	return t, nil
}

// ValueAt returns the text stored at p and whether the slot is occupied.
// Out-of-range positions are absent.
func (t *Tree) ValueAt(p int) (string, bool) {
	if p < 0 || p >= len(t.slots) || t.slots[p] == nil {
		return "", false
	}
	return *t.slots[p], true
}

// Graft occupies the child of p on the given side with text and returns
// the new position. It is the tree's only mutation.
func (t *Tree) Graft(p int, side Side, text string) (int, error) {
	if !utf8.ValidString(text) {
		return 0, errors.NewInvalidRequest("trait text is not valid UTF-8")
	}
	if _, ok := t.ValueAt(p); !ok {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("cannot graft below absent slot %d", p))
	}
	child := Child(p, side)
	if _, ok := t.ValueAt(child); ok {
		return 0, errors.NewSlotOccupied(child)
	}
	if child >= len(t.slots) {
		grown := make([]*string, child+1)
		copy(grown, t.slots)
		t.slots = grown
	}
	t.slots[child] = &text
	return child, nil
}

// Len returns the length of the slot sequence, absent slots included.
func (t *Tree) Len() int {
	return len(t.slots)
}

// Occupied returns the number of occupied slots.
func (t *Tree) Occupied() int {
	n := 0
	for _, s := range t.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// Depth returns the number of levels holding at least one occupied slot.
func (t *Tree) Depth() int {
	deepest := 0
	for _, n := range t.Nodes() {
		if n.Depth+1 > deepest {
			deepest = n.Depth + 1
		}
	}
	return deepest
}

// Slots returns a copy of the full slot sequence.
func (t *Tree) Slots() []*string {
	out := make([]*string, len(t.slots))
	for i, s := range t.slots {
		if s != nil {
			v := *s
			out[i] = &v
		}
	}
	return out
}

// Nodes returns every occupied slot in position order.
func (t *Tree) Nodes() []Node {
	nodes := make([]Node, 0, len(t.slots))
	for i, s := range t.slots {
		if s == nil {
			continue
		}
		n := Node{Position: i, Text: *s, Parent: -1, Depth: depthOf(i)}
		if i > Root {
			parent, side := Parent(i)
			n.Parent = parent
			n.Side = side.String()
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	return &Tree{slots: t.Slots()}
}

// Equal reports whether t and other hold identical slot sequences.
func (t *Tree) Equal(other *Tree) bool {
	if other == nil || len(t.slots) != len(other.slots) {
		return false
	}
	for i := range t.slots {
		a, b := t.slots[i], other.slots[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}

// depthOf returns the level of position p; the root is level 0.
func depthOf(p int) int {
	d := 0
	for p > Root {
		p, _ = Parent(p)
		d++
	}
	return d
}
