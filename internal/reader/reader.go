// Package reader opens books and renders them as fixed-size pages.
//
// A Rendition is the rendering engine the progress and seek layers drive: it
// navigates to CFIs, turns pages and announces every new position to its relocated
// handlers.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/metcalfc/leaf/internal/cfi"
)

// ErrOutOfRange is returned when a CFI addresses text the book does not have.
var ErrOutOfRange = errors.New("cfi out of range")

// DefaultPageSize is the page length in runes used when none is given.
const DefaultPageSize = 1500

// Location describes the page currently on display.
type Location struct {
	Start   string
	End     string
	Chapter string
	AtStart bool
	AtEnd   bool
}

// Rendition holds the paginated view of a Book.
type Rendition struct {
	mu       sync.RWMutex
	book     *Book
	runes    [][]rune
	pageSize int
	section  int
	offset   int
	handlers []func(Location)
}

// NewRendition paginates book into pages of pageSize runes.
func NewRendition(book *Book, pageSize int) *Rendition {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	runes := make([][]rune, len(book.Sections))
	for i, s := range book.Sections {
		runes[i] = []rune(s.Text)
	}
	return &Rendition{book: book, runes: runes, pageSize: pageSize}
}

// Book returns the rendered book.
func (r *Rendition) Book() *Book {
	return r.book
}

// OnRelocated registers fn to run after every navigation.
func (r *Rendition) OnRelocated(fn func(Location)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, fn)
}

// Display navigates to the page containing target. An empty target shows the start.
func (r *Rendition) Display(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	section, offset := 0, 0
	if target != "" {
		pos, err := cfi.Parse(target)
		if err != nil {
			return err
		}
		section, offset = pos.Section, pos.Offset
	}

	r.mu.Lock()
	if section >= len(r.runes) || offset > len(r.runes[section]) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrOutOfRange, target)
	}
	r.section = section
	r.offset = r.pageStart(section, offset)
	r.mu.Unlock()

	r.emit()
	return nil
}

// Next turns to the following page. At the end of the book it does nothing.
func (r *Rendition) Next(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	switch {
	case r.offset+r.pageSize < len(r.runes[r.section]):
		r.offset += r.pageSize
	case r.section+1 < len(r.runes):
		r.section++
		r.offset = 0
	default:
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	r.emit()
	return nil
}

// Prev turns to the preceding page. At the start of the book it does nothing.
func (r *Rendition) Prev(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	switch {
	case r.offset > 0:
		r.offset -= r.pageSize
	case r.section > 0:
		r.section--
		r.offset = r.pageStart(r.section, len(r.runes[r.section]))
	default:
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	r.emit()
	return nil
}

// SetPageSize changes the page length, keeping the current page start on screen.
func (r *Rendition) SetPageSize(pageSize int) {
	if pageSize <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pageSize = pageSize
	r.offset = r.pageStart(r.section, r.offset)
}

// Text returns the text of the current page.
func (r *Rendition) Text() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.runes) == 0 {
		return ""
	}
	text := r.runes[r.section]
	end := min(r.offset+r.pageSize, len(text))
	return string(text[r.offset:end])
}

// CurrentLocation describes the current page.
func (r *Rendition) CurrentLocation() Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.location()
}

func (r *Rendition) emit() {
	r.mu.RLock()
	loc := r.location()
	handlers := make([]func(Location), len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.RUnlock()

	for _, fn := range handlers {
		fn(loc)
	}
}

// location must be called with mu held.
func (r *Rendition) location() Location {
	if len(r.runes) == 0 {
		return Location{AtStart: true, AtEnd: true}
	}
	n := len(r.runes[r.section])
	end := min(r.offset+r.pageSize, n)
	return Location{
		Start:   cfi.New(r.section, r.offset),
		End:     cfi.New(r.section, end),
		Chapter: r.book.Sections[r.section].Title,
		AtStart: r.section == 0 && r.offset == 0,
		AtEnd:   r.section == len(r.runes)-1 && end >= n,
	}
}

// pageStart snaps offset to the start of its page. An offset at the very end of a
// section belongs to the last page.
func (r *Rendition) pageStart(section, offset int) int {
	n := len(r.runes[section])
	if offset >= n && n > 0 {
		offset = n - 1
	}
	if offset < 0 {
		offset = 0
	}
	return offset - offset%r.pageSize
}
