package cfi

import (
	"errors"
	"testing"
)

func TestNewParse(t *testing.T) {
	tests := []struct {
		section, offset int
		want            string
	}{
		{0, 0, "epubcfi(/6/2!/4/1:0)"},
		{0, 1024, "epubcfi(/6/2!/4/1:1024)"},
		{4, 17, "epubcfi(/6/10!/4/1:17)"},
	}

	for _, tt := range tests {
		got := New(tt.section, tt.offset)
		if got != tt.want {
			t.Errorf("New(%d, %d) = %q, want %q", tt.section, tt.offset, got, tt.want)
		}
		pos, err := Parse(got)
		if err != nil {
			t.Fatalf("Parse(%q): %v", got, err)
		}
		if pos.Section != tt.section || pos.Offset != tt.offset {
			t.Errorf("Parse(%q) = %+v, want section %d offset %d", got, pos, tt.section, tt.offset)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	inputs := []string{
		"",
		"chapter1.xhtml",
		"epubcfi(/6/3!/4/1:0)",
		"epubcfi(/6/0!/4/1:0)",
		"epubcfi(/6/2!/4/1:-5)",
		"epubcfi(/6/2!/4/1:abc)",
		"epubcfi(/6/2/4/1:0)",
	}
	for _, in := range inputs {
		if _, err := Parse(in); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalid", in, err)
		}
	}
}

func TestCompare(t *testing.T) {
	a := Position{Section: 0, Offset: 500}
	b := Position{Section: 1, Offset: 0}
	c := Position{Section: 1, Offset: 10}

	if Compare(a, b) != -1 || Compare(b, a) != 1 {
		t.Error("section order not respected")
	}
	if Compare(b, c) != -1 || Compare(c, b) != 1 {
		t.Error("offset order not respected")
	}
	if Compare(c, c) != 0 {
		t.Error("position should equal itself")
	}
	if !a.Less(c) || c.Less(a) {
		t.Error("Less disagrees with Compare")
	}
}
