package grammar

import (
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// Offsets maps rune indexes reported by regexp2 to byte offsets in the string
// that was searched. It has one entry per rune plus one for the end.
type Offsets []int

// NewOffsets builds the rune to byte table for s.
func NewOffsets(s string) Offsets {
	out := make(Offsets, 0, utf8.RuneCountInString(s)+1)
	for i := range s {
		out = append(out, i)
	}
	return append(out, len(s))
}

// Span returns the byte span [start, end) of a capture.
func (o Offsets) Span(c regexp2.Capture) (int, int) {
	return o[c.Index], o[c.Index+c.Length]
}
