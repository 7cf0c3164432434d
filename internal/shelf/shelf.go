// Package shelf keeps the list of imported books.
package shelf

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/metcalfc/leaf/internal/locations"
	"github.com/metcalfc/leaf/internal/progress"
	"github.com/metcalfc/leaf/internal/reader"
)

const keyPrefix = "epub_book_"

// ErrNotFound is returned for an id that is not on the shelf.
var ErrNotFound = errors.New("book not on shelf")

// Key returns the local storage key of a shelf entry.
func Key(id string) string {
	return keyPrefix + id
}

// Store is the subset of the state store the shelf needs.
type Store interface {
	Get(key string, dest any) (bool, error)
	Set(key string, value any) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}

// Entry is a book on the shelf.
type Entry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Path       string `json:"path"`
	ImportedAt int64  `json:"importedAt"` // Unix milliseconds

	// Progress is filled in from the stored reading position; it is not persisted
	// with the entry.
	Progress float64 `json:"-"`
}

// Shelf manages shelf entries in a Store.
type Shelf struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a shelf backed by store.
func New(store Store, logger *slog.Logger) *Shelf {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shelf{store: store, logger: logger, now: time.Now}
}

// Import opens the book at path and records it. Importing a book already on the
// shelf updates its path and keeps its import time.
func (s *Shelf) Import(path string) (Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, err
	}
	if _, err := os.Stat(abs); err != nil {
		return Entry{}, err
	}

	book, err := reader.Open(abs)
	if err != nil {
		return Entry{}, fmt.Errorf("import %s: %w", path, err)
	}

	e := Entry{
		ID:         progress.BookID("", book.Title, abs),
		Title:      book.Title,
		Path:       abs,
		ImportedAt: s.now().UnixMilli(),
	}
	if prev, ok, err := s.Get(e.ID); err == nil && ok {
		e.ImportedAt = prev.ImportedAt
	}

	if err := s.store.Set(Key(e.ID), e); err != nil {
		return Entry{}, fmt.Errorf("import %s: %w", path, err)
	}
	s.logger.Info("book imported", "bookId", e.ID, "title", e.Title)
	return e, nil
}

// Get returns the entry for id.
func (s *Shelf) Get(id string) (Entry, bool, error) {
	var e Entry
	ok, err := s.store.Get(Key(id), &e)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	e.Progress = s.progressOf(id)
	return e, true, nil
}

// List returns every entry, most recently imported first.
func (s *Shelf) List() ([]Entry, error) {
	keys, err := s.store.Keys(keyPrefix)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		var e Entry
		ok, err := s.store.Get(k, &e)
		if err != nil {
			s.logger.Warn("skipping unreadable shelf entry", "key", k, "error", err)
			continue
		}
		if !ok {
			continue
		}
		e.Progress = s.progressOf(e.ID)
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ImportedAt != entries[j].ImportedAt {
			return entries[i].ImportedAt > entries[j].ImportedAt
		}
		return entries[i].Title < entries[j].Title
	})
	return entries, nil
}

// Find returns the entries whose titles fuzzily match query, best match first.
func (s *Shelf) Find(query string) ([]Entry, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return entries, nil
	}

	lowerTitles := make([]string, len(entries))
	for i, e := range entries {
		lowerTitles[i] = strings.ToLower(e.Title)
	}

	matches := fuzzy.Find(strings.ToLower(query), lowerTitles)
	out := make([]Entry, len(matches))
	for i, m := range matches {
		out[i] = entries[m.Index]
	}
	return out, nil
}

// Suggest returns the entry whose title is closest to query by edit distance.
func (s *Shelf) Suggest(query string) (Entry, bool) {
	entries, err := s.List()
	if err != nil || len(entries) == 0 {
		return Entry{}, false
	}

	query = strings.ToLower(query)
	best, bestDistance := -1, 0
	for i, e := range entries {
		d := lfuzzy.LevenshteinDistance(query, strings.ToLower(e.Title))
		if best < 0 || d < bestDistance {
			best, bestDistance = i, d
		}
	}
	return entries[best], true
}

// Remove deletes a book with its reading progress and cached locations.
func (s *Shelf) Remove(id string) error {
	if _, ok, err := s.Get(id); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	for _, key := range []string{Key(id), progress.Key(id), locations.Key(id)} {
		if err := s.store.Delete(key); err != nil {
			return fmt.Errorf("remove %s: %w", id, err)
		}
	}
	s.logger.Info("book removed", "bookId", id)
	return nil
}

func (s *Shelf) progressOf(id string) float64 {
	var rec progress.Record
	if ok, err := s.store.Get(progress.Key(id), &rec); err != nil || !ok {
		return 0
	}
	return rec.Percentage
}
