// Package cfi builds and orders canonical fragment identifiers.
//
// The identifiers produced here take the shape
//
//	epubcfi(/6/<step>!/4/1:<offset>)
//
// where step is the even spine step (2 for the first spine item) and offset is a
// rune offset into the item's extracted text. Only this subset of the CFI grammar is
// understood; it is enough to address any character of a Book's text.
package cfi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalid is returned when a string is not a CFI this package produced.
var ErrInvalid = errors.New("invalid cfi")

const (
	prefix = "epubcfi(/6/"
	infix  = "!/4/1:"
	suffix = ")"
)

// Position is a decoded CFI.
type Position struct {
	Section int
	Offset  int
}

// New returns the CFI for a rune offset within a section.
func New(section, offset int) string {
	return prefix + strconv.Itoa(2*(section+1)) + infix + strconv.Itoa(offset) + suffix
}

// String renders the position as a CFI.
func (p Position) String() string {
	return New(p.Section, p.Offset)
}

// Parse decodes a CFI produced by New.
func Parse(s string) (Position, error) {
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, prefix), suffix)
	stepStr, offStr, ok := strings.Cut(body, infix)
	if !ok {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	step, err := strconv.Atoi(stepStr)
	if err != nil || step < 2 || step%2 != 0 {
		return Position{}, fmt.Errorf("%w: bad spine step in %q", ErrInvalid, s)
	}
	off, err := strconv.Atoi(offStr)
	if err != nil || off < 0 {
		return Position{}, fmt.Errorf("%w: bad offset in %q", ErrInvalid, s)
	}
	return Position{Section: step/2 - 1, Offset: off}, nil
}

// Compare orders two positions in document order. It returns -1, 0 or +1.
func Compare(a, b Position) int {
	switch {
	case a.Section < b.Section:
		return -1
	case a.Section > b.Section:
		return 1
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}

// Less reports whether a precedes b in document order.
func (p Position) Less(b Position) bool {
	return Compare(p, b) < 0
}
