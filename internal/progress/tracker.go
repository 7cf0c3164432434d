package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/metcalfc/leaf/internal/cfi"
	"github.com/metcalfc/leaf/internal/debounce"
	"github.com/metcalfc/leaf/internal/remote"
)

// ErrNotReady is returned when the book, navigator or position is not available yet.
var ErrNotReady = errors.New("reader not ready")

// JumpMode selects how long a seek is allowed to settle.
type JumpMode int

const (
	// Preview jumps follow the pointer during a drag.
	Preview JumpMode = iota
	// Confirm jumps land on the final position of a seek or restore.
	Confirm
)

func (m JumpMode) String() string {
	if m == Preview {
		return "preview"
	}
	return "confirm"
}

// LocalStore is the synchronous local storage progress is written to first.
type LocalStore interface {
	Get(key string, dest any) (bool, error)
	Set(key string, value any) error
}

// RemoteStore is the progress API.
type RemoteStore interface {
	SaveProgress(ctx context.Context, bookID string, p remote.Progress) (int64, error)
	GetProgress(ctx context.Context, bookID string) (*remote.Progress, error)
}

// Options tunes the tracker's timing.
type Options struct {
	// PreviewSettle and ConfirmSettle keep relocation events suppressed for a while
	// after a jump lands.
	PreviewSettle time.Duration
	ConfirmSettle time.Duration
	// RestoreDelay is waited before restoring so the renderer can finish its first
	// layout.
	RestoreDelay time.Duration
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		PreviewSettle: 150 * time.Millisecond,
		ConfirmSettle: 500 * time.Millisecond,
		RestoreDelay:  500 * time.Millisecond,
	}
}

// Tracker owns the reading position of a session.
type Tracker struct {
	session *Session
	display Display
	local   LocalStore
	remote  RemoteStore
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	// LoadIndex, when set, is called by UpdatePosition while the session has no
	// Location Index. It must not block; it may be called repeatedly.
	LoadIndex func()

	mu       sync.Mutex
	position string
	chapter  string
	dragging bool
	jumping  bool
	jumpGen  uint64
	settle   debounce.Task
}

// NewTracker creates a tracker. remote may be nil to disable sync.
func NewTracker(session *Session, display Display, local LocalStore, remote RemoteStore, opts Options, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		session: session,
		display: display,
		local:   local,
		remote:  remote,
		opts:    opts,
		logger:  logger.With("bookId", session.BookID),
		now:     time.Now,
	}
}

// Session returns the session the tracker follows.
func (t *Tracker) Session() *Session {
	return t.session
}

// Position returns the current reading position.
func (t *Tracker) Position() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// Chapter returns the title of the chapter holding the reading position.
func (t *Tracker) Chapter() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chapter
}

// Dragging reports whether a progress-bar drag is in progress.
func (t *Tracker) Dragging() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dragging
}

// Jumping reports whether a seek is navigating or settling.
func (t *Tracker) Jumping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.jumping
}

// UpdatePosition handles a relocation event from the renderer. Events arriving
// during a drag or a jump are dropped so they cannot overwrite the seek target.
func (t *Tracker) UpdatePosition(position, chapter string) {
	t.mu.Lock()
	if t.dragging || t.jumping {
		t.mu.Unlock()
		t.logger.Debug("relocation suppressed", "cfi", position)
		return
	}
	t.position = position
	t.chapter = chapter
	t.mu.Unlock()

	if !t.session.Ready() && t.LoadIndex != nil {
		t.LoadIndex()
	}
	t.RefreshDisplay()
}

// RefreshDisplay pushes the fraction of the current position to the display.
func (t *Tracker) RefreshDisplay() {
	ix := t.session.Locations()
	position := t.Position()
	if position == "" || ix.Total() == 0 {
		return
	}
	t.display.SetProgress(ix.PercentageFromCFI(position))
}

// BeginDrag enters the dragging state. It refuses without a Location Index.
func (t *Tracker) BeginDrag() bool {
	if !t.session.Ready() {
		t.logger.Warn("drag ignored: locations not ready")
		return false
	}
	t.mu.Lock()
	t.dragging = true
	t.mu.Unlock()
	return true
}

// EndDrag leaves the dragging state.
func (t *Tracker) EndDrag() {
	t.mu.Lock()
	t.dragging = false
	t.mu.Unlock()
}

// Jump navigates to target without blocking. The position becomes target at once;
// relocation events stay suppressed until the navigation finishes and its settle
// delay passes. A later Jump supersedes an earlier one. The returned channel yields
// the navigation result.
func (t *Tracker) Jump(ctx context.Context, target string, mode JumpMode) <-chan error {
	done := make(chan error, 1)
	nav := t.session.Nav
	if nav == nil {
		t.logger.Warn("jump ignored: no renderer", "cfi", target)
		done <- ErrNotReady
		close(done)
		return done
	}

	t.mu.Lock()
	t.jumpGen++
	gen := t.jumpGen
	prevPosition, prevChapter := t.position, t.chapter
	t.jumping = true
	t.position = target
	t.chapter = t.chapterFor(target)
	t.settle.Stop()
	t.mu.Unlock()

	go func() {
		err := nav.Display(ctx, target)
		if err != nil {
			t.logger.Warn("navigation failed", "cfi", target, "mode", mode.String(), "error", err)
		}

		t.mu.Lock()
		if gen == t.jumpGen {
			if err != nil {
				t.position, t.chapter = prevPosition, prevChapter
			}
			t.settle.Schedule(t.settleFor(mode), func() { t.finishJump(gen) })
		}
		t.mu.Unlock()

		done <- err
		close(done)
	}()
	return done
}

func (t *Tracker) settleFor(mode JumpMode) time.Duration {
	if mode == Preview {
		return t.opts.PreviewSettle
	}
	return t.opts.ConfirmSettle
}

func (t *Tracker) finishJump(gen uint64) {
	t.mu.Lock()
	if gen != t.jumpGen {
		t.mu.Unlock()
		return
	}
	t.jumping = false
	dragging := t.dragging
	t.mu.Unlock()

	if !dragging {
		t.RefreshDisplay()
	}
}

// chapterFor must be called with mu held.
func (t *Tracker) chapterFor(target string) string {
	pos, err := cfi.Parse(target)
	book := t.session.Book
	if err != nil || book == nil || pos.Section >= len(book.Sections) {
		return t.chapter
	}
	return book.Sections[pos.Section].Title
}

// Save persists the current position: local storage first, then the remote API on a
// best-effort basis. Only a local write failure is returned.
func (t *Tracker) Save(ctx context.Context) (Record, error) {
	t.mu.Lock()
	position, chapter := t.position, t.chapter
	t.mu.Unlock()

	if position == "" {
		t.logger.Warn("save skipped: no reading position")
		return Record{}, ErrNotReady
	}

	rec := Record{
		BookID:       t.session.BookID,
		CFI:          position,
		Percentage:   t.session.Locations().PercentageFromCFI(position),
		ChapterTitle: chapter,
		Timestamp:    t.now().UnixMilli(),
	}

	var localErr error
	if t.local != nil {
		if err := t.local.Set(Key(rec.BookID), rec); err != nil {
			localErr = fmt.Errorf("save progress locally: %w", err)
			t.logger.Error("local progress write failed", "error", err)
		}
	}

	if t.remote != nil {
		ts, err := t.remote.SaveProgress(ctx, rec.BookID, remote.Progress{
			CFI:          rec.CFI,
			Percentage:   rec.Percentage,
			ChapterTitle: rec.ChapterTitle,
		})
		if err != nil {
			t.logger.Warn("remote progress sync failed", "error", err)
		} else {
			t.logger.Info("progress synced", "cfi", rec.CFI, "timestamp", ts)
		}
	}

	return rec, localErr
}

// Restore waits for the restore delay, looks up the stored position (remote first,
// local storage as fallback) and navigates to it. It returns nil, nil when nothing is
// stored or nothing can be reached.
func (t *Tracker) Restore(ctx context.Context) (*Record, error) {
	if t.session.Nav == nil {
		t.logger.Warn("restore skipped: no renderer")
		return nil, ErrNotReady
	}

	if d := t.opts.RestoreDelay; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	rec := t.fetch(ctx)
	if rec == nil || rec.CFI == "" {
		t.logger.Info("no saved progress")
		return nil, nil
	}

	if err := <-t.Jump(ctx, rec.CFI, Confirm); err != nil {
		return nil, fmt.Errorf("restore %s: %w", rec.CFI, err)
	}
	t.logger.Info("progress restored", "cfi", rec.CFI, "percentage", rec.Percentage)
	return rec, nil
}

func (t *Tracker) fetch(ctx context.Context) *Record {
	id := t.session.BookID

	if t.remote != nil {
		p, err := t.remote.GetProgress(ctx, id)
		switch {
		case err != nil:
			t.logger.Warn("remote progress unavailable, using local", "error", err)
		case p != nil:
			return &Record{
				BookID:       id,
				CFI:          p.CFI,
				Percentage:   p.Percentage,
				ChapterTitle: p.ChapterTitle,
				Timestamp:    p.Timestamp,
			}
		}
	}

	if t.local == nil {
		return nil
	}
	var rec Record
	ok, err := t.local.Get(Key(id), &rec)
	if err != nil {
		t.logger.Warn("local progress unreadable", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &rec
}
