package domain

import (
	"fmt"
	"slices"
	"unicode/utf16"
)

// MaxContentLength is counted in UTF-16 code units, the unit editor clients
// use for positions.
const MaxContentLength = 1_000_000

// DocumentContent Invariants:
// 1. Bounded: Len() <= MaxContentLength.
// 2. Immutable: InsertAt/DeleteAt return a new value, or the receiver on a no-op.
type DocumentContent struct {
	units []uint16
}

func EmptyContent() DocumentContent {
	return DocumentContent{}
}

func ContentFrom(text string) (DocumentContent, error) {
	units := utf16.Encode([]rune(text))
	if len(units) > MaxContentLength {
		return DocumentContent{}, fmt.Errorf("%w: content exceeds maximum length of %d", ErrValidation, MaxContentLength)
	}
	return DocumentContent{units: units}, nil
}

func (c DocumentContent) Text() string {
	return string(utf16.Decode(c.units))
}

func (c DocumentContent) Len() int {
	return len(c.units)
}

func (c DocumentContent) String() string {
	return c.Text()
}

func (c DocumentContent) InsertAt(position int, text string) (DocumentContent, error) {
	if position < 0 || position > len(c.units) {
		return c, fmt.Errorf("%w: insert position %d outside [0, %d]", ErrRange, position, len(c.units))
	}
	if text == "" {
		return c, nil
	}

	ins := utf16.Encode([]rune(text))
	if len(c.units)+len(ins) > MaxContentLength {
		return c, fmt.Errorf("%w: content exceeds maximum length of %d", ErrValidation, MaxContentLength)
	}

	out := make([]uint16, 0, len(c.units)+len(ins))
	out = append(out, c.units[:position]...)
	out = append(out, ins...)
	out = append(out, c.units[position:]...)
	return DocumentContent{units: out}, nil
}

// DeleteAt removes length code units starting at position, which must lie in
// [0, Len). A zero length returns c unchanged.
func (c DocumentContent) DeleteAt(position, length int) (DocumentContent, error) {
	if position < 0 || position >= len(c.units) {
		return c, fmt.Errorf("%w: delete position %d outside [0, %d)", ErrRange, position, len(c.units))
	}
	if length == 0 {
		return c, nil
	}
	if length < 0 || position+length > len(c.units) {
		return c, fmt.Errorf("%w: delete length %d at %d exceeds content length %d", ErrRange, length, position, len(c.units))
	}

	out := make([]uint16, 0, len(c.units)-length)
	out = append(out, c.units[:position]...)
	out = append(out, c.units[position+length:]...)
	return DocumentContent{units: out}, nil
}

// Equal reports whether both values hold the same text.
func (c DocumentContent) Equal(o DocumentContent) bool {
	return slices.Equal(c.units, o.units)
}

// textLen is the length of s in code units.
func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
