// Package locations maps between CFIs and reading progress.
//
// An Index samples a book at fixed rune intervals; each sample is one location.
// Progress through the book is the index of the location at or before a CFI
// divided by the number of locations.
package locations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/metcalfc/leaf/internal/cfi"
	"github.com/metcalfc/leaf/internal/reader"
)

// DefaultGranularity is the number of runes between two locations.
const DefaultGranularity = 1024

// ErrUnordered is returned when a serialized index is not in document order.
var ErrUnordered = errors.New("locations not in document order")

// Index is an ordered table of CFIs.
type Index struct {
	cfis      []string
	positions []cfi.Position
}

// Generate scans book and records one location every granularity runes.
func Generate(ctx context.Context, book *reader.Book, granularity int) (*Index, error) {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}

	ix := &Index{}
	for i, s := range book.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := len([]rune(s.Text))
		for off := 0; off < n; off += granularity {
			pos := cfi.Position{Section: i, Offset: off}
			ix.positions = append(ix.positions, pos)
			ix.cfis = append(ix.cfis, pos.String())
		}
	}
	return ix, nil
}

// New builds an Index from CFIs already in document order.
func New(cfis []string) (*Index, error) {
	ix := &Index{
		cfis:      make([]string, len(cfis)),
		positions: make([]cfi.Position, len(cfis)),
	}
	copy(ix.cfis, cfis)
	for i, c := range cfis {
		pos, err := cfi.Parse(c)
		if err != nil {
			return nil, err
		}
		if i > 0 && !ix.positions[i-1].Less(pos) {
			return nil, fmt.Errorf("%w at %d", ErrUnordered, i)
		}
		ix.positions[i] = pos
	}
	return ix, nil
}

// Parse restores an Index from the output of Save.
func Parse(serialized string) (*Index, error) {
	var cfis []string
	if err := json.Unmarshal([]byte(serialized), &cfis); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}
	return New(cfis)
}

// Save serializes the index.
func (ix *Index) Save() (string, error) {
	data, err := json.Marshal(ix.cfis)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Total returns the number of locations. A nil Index has none.
func (ix *Index) Total() int {
	if ix == nil {
		return 0
	}
	return len(ix.cfis)
}

// LocationFromCFI returns the index of the last location at or before c, or -1 when
// c is not a valid CFI or the index is empty. CFIs before the first location map
// to location 0.
func (ix *Index) LocationFromCFI(c string) int {
	if ix.Total() == 0 {
		return -1
	}
	pos, err := cfi.Parse(c)
	if err != nil {
		return -1
	}
	// First location strictly after pos.
	i := sort.Search(len(ix.positions), func(i int) bool {
		return pos.Less(ix.positions[i])
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// PercentageFromCFI returns the reading progress in [0,1) at c.
func (ix *Index) PercentageFromCFI(c string) float64 {
	loc := ix.LocationFromCFI(c)
	if loc < 0 {
		return 0
	}
	return ix.PercentageFromLocation(loc)
}

// PercentageFromLocation returns loc / total.
func (ix *Index) PercentageFromLocation(loc int) float64 {
	total := ix.Total()
	if total == 0 || loc < 0 {
		return 0
	}
	return float64(min(loc, total)) / float64(total)
}

// CFIFromLocation returns the CFI of location loc.
func (ix *Index) CFIFromLocation(loc int) (string, bool) {
	if loc < 0 || loc >= ix.Total() {
		return "", false
	}
	return ix.cfis[loc], true
}

// LocationFromPercentage maps a fraction onto the nearest location, clamped to the
// valid range.
func (ix *Index) LocationFromPercentage(f float64) int {
	total := ix.Total()
	if total == 0 {
		return -1
	}
	loc := int(math.Round(f * float64(total)))
	return max(0, min(loc, total-1))
}

// CFIFromPercentage returns the CFI of the location nearest fraction f.
func (ix *Index) CFIFromPercentage(f float64) (string, bool) {
	return ix.CFIFromLocation(ix.LocationFromPercentage(f))
}
