package reader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/metcalfc/leaf/internal/cfi"
)

func testBook() *Book {
	return &Book{
		Title: "Test",
		Sections: []Section{
			{Title: "One", Text: strings.Repeat("a", 25)},
			{Title: "Two", Text: strings.Repeat("b", 10)},
		},
	}
}

func TestRenditionDisplay(t *testing.T) {
	ctx := context.Background()
	r := NewRendition(testBook(), 10)

	var got []Location
	r.OnRelocated(func(loc Location) { got = append(got, loc) })

	if err := r.Display(ctx, ""); err != nil {
		t.Fatalf("Display start: %v", err)
	}
	if err := r.Display(ctx, cfi.New(0, 17)); err != nil {
		t.Fatalf("Display mid: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 relocated events, got %d", len(got))
	}
	if !got[0].AtStart || got[0].Start != cfi.New(0, 0) {
		t.Errorf("first location = %+v", got[0])
	}
	// Offsets snap to the start of their page.
	if got[1].Start != cfi.New(0, 10) || got[1].End != cfi.New(0, 20) {
		t.Errorf("second location = %+v", got[1])
	}
	if got[1].Chapter != "One" {
		t.Errorf("chapter = %q, want One", got[1].Chapter)
	}
	if r.Text() != strings.Repeat("a", 10) {
		t.Errorf("Text() = %q", r.Text())
	}
}

func TestRenditionDisplayErrors(t *testing.T) {
	r := NewRendition(testBook(), 10)
	ctx := context.Background()

	if err := r.Display(ctx, cfi.New(5, 0)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("section out of range: err = %v", err)
	}
	if err := r.Display(ctx, cfi.New(0, 26)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("offset out of range: err = %v", err)
	}
	if err := r.Display(ctx, "garbage"); !errors.Is(err, cfi.ErrInvalid) {
		t.Errorf("invalid cfi: err = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := r.Display(cancelled, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx: err = %v", err)
	}
}

func TestRenditionPaging(t *testing.T) {
	ctx := context.Background()
	r := NewRendition(testBook(), 10)
	r.Display(ctx, "")

	var starts []string
	for i := 0; i < 5; i++ {
		r.Next(ctx)
		starts = append(starts, r.CurrentLocation().Start)
	}
	want := []string{cfi.New(0, 10), cfi.New(0, 20), cfi.New(1, 0), cfi.New(1, 0), cfi.New(1, 0)}
	for i := range want {
		if starts[i] != want[i] {
			t.Errorf("Next #%d start = %s, want %s", i, starts[i], want[i])
		}
	}
	if !r.CurrentLocation().AtEnd {
		t.Error("expected AtEnd on last page")
	}

	r.Prev(ctx)
	if got := r.CurrentLocation().Start; got != cfi.New(0, 20) {
		t.Errorf("Prev across section = %s, want %s", got, cfi.New(0, 20))
	}
	if r.Text() != strings.Repeat("a", 5) {
		t.Errorf("last page text = %q", r.Text())
	}
}

func TestRenditionSetPageSize(t *testing.T) {
	ctx := context.Background()
	r := NewRendition(testBook(), 10)
	r.Display(ctx, cfi.New(0, 20))

	r.SetPageSize(8)
	if got := r.CurrentLocation().Start; got != cfi.New(0, 16) {
		t.Errorf("start after resize = %s, want %s", got, cfi.New(0, 16))
	}
}
