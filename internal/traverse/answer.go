package traverse

import (
	"strings"

	"github.com/hpungsan/uas/internal/tree"
)

// Answer is the class of a raw input token.
type Answer int

const (
	Invalid Answer = iota
	Negative
	Positive
)

// String returns the answer class name.
func (a Answer) String() string {
	switch a {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "invalid"
	}
}

// Side maps a classified answer to the child side it selects.
// Invalid maps to tree.Negative and must not be used to descend.
func (a Answer) Side() tree.Side {
	if a == Positive {
		return tree.Positive
	}
	return tree.Negative
}

// Vocabulary maps raw tokens to answers.
type Vocabulary struct {
	positive map[string]bool
	negative map[string]bool
}

// NewVocabulary builds a case-insensitive vocabulary.
func NewVocabulary(positive, negative []string) Vocabulary {
	v := Vocabulary{
		positive: make(map[string]bool, len(positive)),
		negative: make(map[string]bool, len(negative)),
	}
	for _, p := range positive {
		v.positive[strings.ToLower(strings.TrimSpace(p))] = true
	}
	for _, n := range negative {
		v.negative[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return v
}

// DefaultVocabulary accepts y/yes/o/oui and n/no/non.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary([]string{"y", "yes", "o", "oui"}, []string{"n", "no", "non"})
}

// Classify trims token and matches it case-insensitively.
// A token listed on both sides counts as Positive.
func (v Vocabulary) Classify(token string) Answer {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return Invalid
	}
	if v.positive[token] {
		return Positive
	}
	if v.negative[token] {
		return Negative
	}
	return Invalid
}
