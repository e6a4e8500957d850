package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"
)

// Marshal encodes the full slot sequence as a JSON array, position 0
// first, with null for absent slots. Trailing absent slots are kept.
// Text that is not valid UTF-8 is refused rather than silently replaced.
func Marshal(t *Tree) ([]byte, error) {
	for i, s := range t.slots {
		if s != nil && !utf8.ValidString(*s) {
			return nil, fmt.Errorf("slot %d is not valid UTF-8", i)
		}
	}
	data, err := json.Marshal(t.slots)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal parses a slot sequence produced by Marshal.
// Every element must be a string or null.
func Unmarshal(data []byte) (*Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var raw []json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode slot sequence: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after slot sequence")
	}
	if raw == nil {
		return nil, fmt.Errorf("slot sequence is not an array")
	}

	slots := make([]*string, len(raw))
	for i, r := range raw {
		if bytes.Equal(bytes.TrimSpace(r), []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return nil, fmt.Errorf("slot %d: expected string or null", i)
		}
		slots[i] = &s
	}
	return FromSlots(slots)
}
