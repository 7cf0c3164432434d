package locations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/metcalfc/leaf/internal/reader"
)

// ErrGenerating is returned by Ensure while another generation is running.
var ErrGenerating = errors.New("locations generation already in progress")

const keyPrefix = "epub_locations_"

// Key returns the storage key for a book's cached locations.
func Key(bookID string) string {
	return keyPrefix + bookID
}

// Record is the cached form of an Index.
type Record struct {
	BookID    string `json:"bookId"`
	Locations string `json:"locations"`
	Total     int    `json:"total"`
	Timestamp int64  `json:"timestamp"`
}

// Storage is the local key/value store the cache writes to.
type Storage interface {
	Get(key string, dest any) (bool, error)
	Set(key string, value any) error
}

// Cache keeps generated indexes in local storage so they are built once per book.
type Cache struct {
	store       Storage
	granularity int
	logger      *slog.Logger
	generating  atomic.Bool
	now         func() time.Time
}

// NewCache creates a Cache over store.
func NewCache(store Storage, granularity int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	return &Cache{
		store:       store,
		granularity: granularity,
		logger:      logger,
		now:         time.Now,
	}
}

// Load returns the cached index for bookID. Unreadable records count as absent.
func (c *Cache) Load(bookID string) (*Index, bool) {
	var rec Record
	ok, err := c.store.Get(Key(bookID), &rec)
	if err != nil {
		c.logger.Warn("cached locations unreadable", "bookId", bookID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	ix, err := Parse(rec.Locations)
	if err != nil {
		c.logger.Warn("cached locations invalid", "bookId", bookID, "error", err)
		return nil, false
	}
	if ix.Total() != rec.Total {
		c.logger.Warn("cached locations total mismatch", "bookId", bookID, "want", rec.Total, "got", ix.Total())
		return nil, false
	}
	return ix, true
}

// Save writes ix to local storage under bookID.
func (c *Cache) Save(bookID string, ix *Index) error {
	serialized, err := ix.Save()
	if err != nil {
		return fmt.Errorf("serialize locations: %w", err)
	}
	rec := Record{
		BookID:    bookID,
		Locations: serialized,
		Total:     ix.Total(),
		Timestamp: c.now().UnixMilli(),
	}
	if err := c.store.Set(Key(bookID), rec); err != nil {
		return fmt.Errorf("save locations: %w", err)
	}
	return nil
}

// Generating reports whether a generation is in flight.
func (c *Cache) Generating() bool {
	return c.generating.Load()
}

// Ensure returns the cached index for bookID, generating and caching it when absent.
// Only one generation runs at a time; overlapping calls get ErrGenerating.
func (c *Cache) Ensure(ctx context.Context, bookID string, book *reader.Book) (*Index, error) {
	if ix, ok := c.Load(bookID); ok {
		c.logger.Debug("locations loaded from cache", "bookId", bookID, "total", ix.Total())
		return ix, nil
	}

	if !c.generating.CompareAndSwap(false, true) {
		return nil, ErrGenerating
	}
	defer c.generating.Store(false)

	start := time.Now()
	ix, err := Generate(ctx, book, c.granularity)
	if err != nil {
		return nil, fmt.Errorf("generate locations: %w", err)
	}
	c.logger.Info("locations generated", "bookId", bookID, "total", ix.Total(), "elapsed", time.Since(start))

	if err := c.Save(bookID, ix); err != nil {
		c.logger.Warn("locations not cached", "bookId", bookID, "error", err)
	}
	return ix, nil
}
