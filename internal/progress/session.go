// Package progress owns the reading position of an open book.
//
// A Tracker mirrors the position onto a Display, suppresses relocation events
// while the user drags the progress bar or a seek is settling, and persists the
// position locally and to the remote progress API.
package progress

import (
	"context"
	"sync/atomic"

	"github.com/metcalfc/leaf/internal/locations"
	"github.com/metcalfc/leaf/internal/reader"
)

// Navigator is the part of the rendering engine the tracker drives.
type Navigator interface {
	Display(ctx context.Context, cfi string) error
}

// Session is the state shared by the tracker and the seek controller for one open
// book. The Location Index arrives asynchronously and is swapped in atomically.
type Session struct {
	BookID string
	Title  string
	Book   *reader.Book
	Nav    Navigator

	index atomic.Pointer[locations.Index]
}

// NewSession creates a session for book rendered by nav.
func NewSession(bookID string, book *reader.Book, nav Navigator) *Session {
	s := &Session{BookID: bookID, Book: book, Nav: nav}
	if book != nil {
		s.Title = book.Title
	}
	return s
}

// Locations returns the index, or nil until one is set.
func (s *Session) Locations() *locations.Index {
	return s.index.Load()
}

// SetLocations installs ix as the session's index.
func (s *Session) SetLocations(ix *locations.Index) {
	s.index.Store(ix)
}

// Ready reports whether the session has a usable index.
func (s *Session) Ready() bool {
	return s.Locations().Total() > 0
}
