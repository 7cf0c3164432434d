package progress

import (
	"fmt"
	"math"
	"sync"
)

// Display shows reading progress.
type Display interface {
	SetProgress(fraction float64)
}

// Bar is a Display holding the fill width and label of a progress bar.
type Bar struct {
	mu       sync.RWMutex
	fraction float64
	set      bool

	// OnChange, when set, runs after every update. Hosts use it to redraw.
	OnChange func(fraction float64)
}

// SetProgress clamps fraction into [0,1] and stores it.
func (b *Bar) SetProgress(fraction float64) {
	fraction = math.Max(0, math.Min(1, fraction))
	b.mu.Lock()
	b.fraction = fraction
	b.set = true
	onChange := b.OnChange
	b.mu.Unlock()

	if onChange != nil {
		onChange(fraction)
	}
}

// Fraction returns the displayed fraction.
func (b *Bar) Fraction() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fraction
}

// Width returns the fill width as a CSS-style percentage, e.g. "37.5%".
func (b *Bar) Width() string {
	return fmt.Sprintf("%g%%", b.Fraction()*100)
}

// Label returns the rounded percentage text, e.g. "38%". It is empty until the bar
// has been set once.
func (b *Bar) Label() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.set {
		return ""
	}
	return FormatPercent(b.fraction)
}

// FormatPercent renders a fraction as a whole percentage.
func FormatPercent(fraction float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(fraction*100)))
}
