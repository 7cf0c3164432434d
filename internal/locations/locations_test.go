package locations

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/metcalfc/leaf/internal/cfi"
	"github.com/metcalfc/leaf/internal/reader"
)

// bookWithLocations returns a single-section book that yields n locations at the
// default granularity.
func bookWithLocations(n int) *reader.Book {
	return &reader.Book{
		Title:    "Big",
		Sections: []reader.Section{{Title: "All", Text: strings.Repeat("x", n*DefaultGranularity)}},
	}
}

func TestGenerate(t *testing.T) {
	book := &reader.Book{Sections: []reader.Section{
		{Text: strings.Repeat("a", 2500)},
		{Text: "short"},
		{Text: strings.Repeat("é", 1024)},
	}}

	ix, err := Generate(context.Background(), book, 1024)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{
		cfi.New(0, 0), cfi.New(0, 1024), cfi.New(0, 2048),
		cfi.New(1, 0),
		cfi.New(2, 0),
	}
	if ix.Total() != len(want) {
		t.Fatalf("Total() = %d, want %d", ix.Total(), len(want))
	}
	for i, w := range want {
		if got, _ := ix.CFIFromLocation(i); got != w {
			t.Errorf("location %d = %s, want %s", i, got, w)
		}
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Generate(ctx, bookWithLocations(3), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPercentageScenario(t *testing.T) {
	ix, err := Generate(context.Background(), bookWithLocations(200), DefaultGranularity)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if ix.Total() != 200 {
		t.Fatalf("Total() = %d, want 200", ix.Total())
	}

	tests := []struct {
		fraction float64
		location int
	}{
		{0, 0},
		{0.5, 100},
		{0.75, 150},
		{1, 199},
		{-0.2, 0},
		{1.5, 199},
	}
	for _, tt := range tests {
		if got := ix.LocationFromPercentage(tt.fraction); got != tt.location {
			t.Errorf("LocationFromPercentage(%v) = %d, want %d", tt.fraction, got, tt.location)
		}
	}

	c, _ := ix.CFIFromLocation(100)
	if got := ix.PercentageFromCFI(c); got != 0.5 {
		t.Errorf("PercentageFromCFI(location 100) = %v, want 0.5", got)
	}
	// A CFI between two locations belongs to the earlier one.
	mid := cfi.New(0, 100*DefaultGranularity+300)
	if got := ix.LocationFromCFI(mid); got != 100 {
		t.Errorf("LocationFromCFI(mid) = %d, want 100", got)
	}
}

func TestPercentageMonotonic(t *testing.T) {
	book := &reader.Book{Sections: []reader.Section{
		{Text: strings.Repeat("a", 5000)},
		{Text: strings.Repeat("b", 3000)},
	}}
	ix, _ := Generate(context.Background(), book, 512)

	var points []string
	for s, sec := range book.Sections {
		for off := 0; off < len(sec.Text); off += 97 {
			points = append(points, cfi.New(s, off))
		}
	}

	prev := -1.0
	for _, p := range points {
		got := ix.PercentageFromCFI(p)
		if got < prev {
			t.Fatalf("percentage decreased at %s: %v < %v", p, got, prev)
		}
		if got < 0 || got >= 1 {
			t.Fatalf("percentage %v out of [0,1) at %s", got, p)
		}
		prev = got
	}
}

func TestRoundTrip(t *testing.T) {
	ix, _ := Generate(context.Background(), bookWithLocations(50), DefaultGranularity)
	step := 1.0 / float64(ix.Total())

	for off := 0; off < 50*DefaultGranularity; off += 777 {
		c := cfi.New(0, off)
		back, ok := ix.CFIFromLocation(ix.LocationFromCFI(c))
		if !ok {
			t.Fatalf("no cfi for location of %s", c)
		}
		if diff := math.Abs(ix.PercentageFromCFI(back) - ix.PercentageFromCFI(c)); diff > step {
			t.Errorf("round trip of %s drifted by %v (> %v)", c, diff, step)
		}
	}
}

func TestEmptyIndex(t *testing.T) {
	var ix *Index
	if ix.Total() != 0 {
		t.Error("nil index should have no locations")
	}
	if ix.LocationFromCFI(cfi.New(0, 0)) != -1 {
		t.Error("nil index should not resolve locations")
	}
	if ix.PercentageFromCFI(cfi.New(0, 0)) != 0 {
		t.Error("nil index percentage should be 0")
	}
	if _, ok := ix.CFIFromPercentage(0.5); ok {
		t.Error("nil index should not resolve cfis")
	}
}

func TestSaveParse(t *testing.T) {
	ix, _ := Generate(context.Background(), bookWithLocations(3), DefaultGranularity)
	s, err := ix.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	back, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if back.Total() != 3 {
		t.Errorf("Total() = %d, want 3", back.Total())
	}

	if _, err := Parse(`["epubcfi(/6/2!/4/1:10)","epubcfi(/6/2!/4/1:5)"]`); !errors.Is(err, ErrUnordered) {
		t.Errorf("unordered err = %v", err)
	}
	if _, err := Parse(`not json`); err == nil {
		t.Error("expected error for garbage")
	}
}
