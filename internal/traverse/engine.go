// Package traverse walks a tree from the root by asking yes/no questions
// and grafts a new trait where the walk runs out of questions.
//
// The walk is an explicit state machine:
//
//	Asking(p, r)      show slot p, read a token, classify it
//	Grafting(p, side) read a free-text trait, graft it below p
//	Finished(g)       terminal; g is false after too many invalid inputs
package traverse

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hpungsan/uas/internal/errors"
	"github.com/hpungsan/uas/internal/tree"
)

// DefaultMaxInvalid is the number of consecutive invalid inputs that ends
// a session.
const DefaultMaxInvalid = 3

// MessageKind tells a Presenter how to frame a message.
type MessageKind int

const (
	// Welcome is the session greeting; Text is empty.
	Welcome MessageKind = iota
	// Opening is the root prompt, shown as-is.
	Opening
	// Question is a trait phrase, to be framed as a yes/no question.
	Question
)

// Message is one thing to show the participant.
type Message struct {
	Kind     MessageKind
	Text     string
	Position int
}

// InputSource supplies the participant's input. Both reads block.
type InputSource interface {
	ReadToken() (string, error)
	ReadFreeText(prompt string) (string, error)
}

// Presenter renders session events. Implementations swallow their own
// failures; nothing they do can fail a session.
type Presenter interface {
	Show(msg Message)
	NotifyInvalid()
	NotifyFinished(graceful bool)
}

// State is one of Asking, Grafting or Finished.
type State interface {
	isState()
}

// Asking waits for an answer to the question at Pos.
type Asking struct {
	Pos     int
	Retries int
}

// Grafting waits for a trait to store below Pos on Side.
type Grafting struct {
	Pos     int
	Side    tree.Side
	Retries int
}

// Finished ends the walk.
type Finished struct {
	Graceful bool
}

func (Asking) isState()   {}
func (Grafting) isState() {}
func (Finished) isState() {}

// Step records one classified answer on the walk's path.
type Step struct {
	Position int
	Answer   Answer
}

// Result summarizes a finished walk.
type Result struct {
	Graceful bool
	Grafted  *tree.Node
	Path     []Step
	Invalid  int
}

// Options configures an Engine.
type Options struct {
	Vocabulary Vocabulary
	MaxInvalid int
	// MorePrompt is passed to InputSource.ReadFreeText when grafting.
	MorePrompt string
	Logger     *zap.Logger
}

// Engine drives walks over trees it is handed.
type Engine struct {
	in         InputSource
	out        Presenter
	vocab      Vocabulary
	maxInvalid int
	morePrompt string
	logger     *zap.Logger
}

// New creates an Engine reading from in and reporting to out.
func New(in InputSource, out Presenter, opts Options) *Engine {
	e := &Engine{
		in:         in,
		out:        out,
		vocab:      opts.Vocabulary,
		maxInvalid: opts.MaxInvalid,
		morePrompt: opts.MorePrompt,
		logger:     opts.Logger,
	}
	if e.vocab.positive == nil && e.vocab.negative == nil {
		e.vocab = DefaultVocabulary()
	}
	if e.maxInvalid < 1 {
		e.maxInvalid = DefaultMaxInvalid
	}
	if e.morePrompt == "" {
		e.morePrompt = "What else makes you unique?"
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Walk runs one walk over t from the root until Finished. It mutates t
// by at most one Graft. An input error ends the walk with INPUT_CLOSED
// and leaves t untouched.
func (e *Engine) Walk(t *tree.Tree) (*Result, error) {
	res := &Result{}
	var state State = Asking{Pos: tree.Root}
	for {
		if f, ok := state.(Finished); ok {
			res.Graceful = f.Graceful
			return res, nil
		}
		next, err := e.step(t, state, res)
		if err != nil {
			return res, err
		}
		state = next
	}
}

func (e *Engine) step(t *tree.Tree, state State, res *Result) (State, error) {
	switch s := state.(type) {
	case Asking:
		return e.ask(t, s, res)
	case Grafting:
		return e.graft(t, s, res)
	default:
		return state, nil
	}
}

func (e *Engine) ask(t *tree.Tree, s Asking, res *Result) (State, error) {
	text, ok := t.ValueAt(s.Pos)
	if !ok {
		return nil, errors.NewInvalidRequest("cannot ask at absent slot")
	}
	kind := Question
	if s.Pos == tree.Root {
		kind = Opening
	}
	e.out.Show(Message{Kind: kind, Text: text, Position: s.Pos})

	token, err := e.in.ReadToken()
	if err != nil {
		return nil, errors.NewInputClosed(err)
	}

	answer := e.vocab.Classify(token)
	if answer == Invalid {
		res.Invalid++
		if s.Retries+1 >= e.maxInvalid {
			e.logger.Debug("too many invalid inputs", zap.Int("position", s.Pos))
			return Finished{Graceful: false}, nil
		}
		e.out.NotifyInvalid()
		return Asking{Pos: s.Pos, Retries: s.Retries + 1}, nil
	}

	res.Path = append(res.Path, Step{Position: s.Pos, Answer: answer})
	child := tree.Child(s.Pos, answer.Side())
	if _, ok := t.ValueAt(child); ok {
		return Asking{Pos: child}, nil
	}
	e.logger.Debug("reached absent slot",
		zap.Int("position", s.Pos),
		zap.Stringer("side", answer.Side()))
	return Grafting{Pos: s.Pos, Side: answer.Side()}, nil
}

func (e *Engine) graft(t *tree.Tree, s Grafting, res *Result) (State, error) {
	text, err := e.in.ReadFreeText(e.morePrompt)
	if err != nil {
		return nil, errors.NewInputClosed(err)
	}

	text = strings.TrimSpace(text)
	if text == "" || !utf8.ValidString(text) {
		res.Invalid++
		if s.Retries+1 >= e.maxInvalid {
			return Finished{Graceful: false}, nil
		}
		e.out.NotifyInvalid()
		return Grafting{Pos: s.Pos, Side: s.Side, Retries: s.Retries + 1}, nil
	}

	pos, err := t.Graft(s.Pos, s.Side, text)
	if err != nil {
		return nil, err
	}
	res.Grafted = &tree.Node{
		Position: pos,
		Text:     text,
		Parent:   s.Pos,
		Side:     s.Side.String(),
		Depth:    len(res.Path),
	}
	e.logger.Debug("grafted", zap.Int("position", pos))
	return Finished{Graceful: true}, nil
}
