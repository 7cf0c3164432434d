package reader

import "github.com/metcalfc/leaf/internal/cfi"

// TOCEntry represents a single entry in a table of contents
type TOCEntry struct {
	Title string
	CFI   string
	Level int
}

// Section is one spine item (or header-delimited chunk) of extracted text.
type Section struct {
	Href  string
	Title string
	Text  string
}

// Book is a document opened by one of the registered formats.
type Book struct {
	Title    string
	Path     string
	Sections []Section
	Entries  []TOCEntry
}

// TOC returns the table of contents, synthesizing one entry per section when the
// format did not provide any.
func (b *Book) TOC() []TOCEntry {
	if len(b.Entries) > 0 {
		return b.Entries
	}
	entries := make([]TOCEntry, 0, len(b.Sections))
	for i, s := range b.Sections {
		entries = append(entries, TOCEntry{Title: s.Title, CFI: cfi.New(i, 0)})
	}
	return entries
}

// Len returns the total number of runes across all sections.
func (b *Book) Len() int {
	n := 0
	for _, s := range b.Sections {
		n += len([]rune(s.Text))
	}
	return n
}
