// Package seek turns pointer gestures on the progress bar into navigation.
//
// While the pointer is down the bar follows it on every move. A preview jump is
// issued once the pointer has travelled Threshold since the last preview and no
// other jump is still in flight; resting for Quiet issues a confirm jump. Releasing
// always confirms the exact release position.
package seek

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/metcalfc/leaf/internal/debounce"
	"github.com/metcalfc/leaf/internal/progress"
)

// Options tunes the drag debounce.
type Options struct {
	Threshold float64
	Quiet     time.Duration
}

// DefaultOptions returns the stock debounce.
func DefaultOptions() Options {
	return Options{Threshold: 0.05, Quiet: 300 * time.Millisecond}
}

// Fraction maps a pointer x coordinate onto a bar starting at left and width wide.
func Fraction(x, left, width float64) float64 {
	if width <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, (x-left)/width))
}

// Controller drives a Tracker from progress-bar pointer events.
type Controller struct {
	tracker *progress.Tracker
	display progress.Display
	opts    Options
	logger  *slog.Logger

	mu          sync.Mutex
	current     float64
	lastPreview float64
	quiet       debounce.Task
}

// New creates a controller showing drag feedback on display.
func New(tracker *progress.Tracker, display progress.Display, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		tracker: tracker,
		display: display,
		opts:    opts,
		logger:  logger,
	}
}

// Press starts a drag at x. It reports false when seeking is not possible yet.
func (c *Controller) Press(x, left, width float64) bool {
	if !c.tracker.BeginDrag() {
		return false
	}
	f := Fraction(x, left, width)
	c.mu.Lock()
	c.current = f
	c.lastPreview = f
	c.mu.Unlock()

	c.display.SetProgress(f)
	return true
}

// Move follows the pointer during a drag.
func (c *Controller) Move(ctx context.Context, x, left, width float64) {
	if !c.tracker.Dragging() {
		return
	}
	f := Fraction(x, left, width)
	c.display.SetProgress(f)

	c.mu.Lock()
	c.current = f
	preview := math.Abs(f-c.lastPreview) >= c.opts.Threshold && !c.tracker.Jumping()
	if preview {
		c.lastPreview = f
	}
	c.mu.Unlock()

	if preview {
		c.jump(ctx, f, progress.Preview)
	}
	c.quiet.Schedule(c.opts.Quiet, func() { c.rest(ctx) })
}

// Release ends a drag at x, confirming the seek. It reports false when no drag was
// in progress.
func (c *Controller) Release(ctx context.Context, x, left, width float64) bool {
	if !c.tracker.Dragging() {
		return false
	}
	c.quiet.Stop()

	f := Fraction(x, left, width)
	c.mu.Lock()
	c.current = f
	c.lastPreview = f
	c.mu.Unlock()

	c.display.SetProgress(f)
	c.jump(ctx, f, progress.Confirm)
	c.tracker.EndDrag()
	return true
}

// rest confirms the position the pointer has come to rest on.
func (c *Controller) rest(ctx context.Context) {
	if !c.tracker.Dragging() {
		return
	}
	c.mu.Lock()
	f := c.current
	c.lastPreview = f
	c.mu.Unlock()

	c.jump(ctx, f, progress.Confirm)
}

func (c *Controller) jump(ctx context.Context, f float64, mode progress.JumpMode) {
	target, ok := c.tracker.Session().Locations().CFIFromPercentage(f)
	if !ok {
		c.logger.Warn("seek ignored: locations not ready", "fraction", f)
		return
	}
	c.logger.Debug("seek", "fraction", f, "cfi", target, "mode", mode.String())
	c.tracker.Jump(ctx, target, mode)
}
