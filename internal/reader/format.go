package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format defines a file format reader that turns a file into a Book.
type Format interface {
	Name() string
	Extensions() []string
	Open(filename string) (*Book, error)
}

var registry []Format

// Register adds a format reader to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

func lookup(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f
			}
		}
	}
	return nil
}

// Supported reports whether a registered format handles filename's extension.
func Supported(filename string) bool {
	return lookup(filename) != nil
}

// Open opens a file as a Book, using a registered format or plain text fallback.
func Open(filename string) (*Book, error) {
	if f := lookup(filename); f != nil {
		return f.Open(filename)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewTextBook(filename, string(data))
}

// NewTextBook wraps plain text as a single-section Book.
func NewTextBook(filename, text string) (*Book, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text to read in %s", filename)
	}
	title := TitleFromFilename(filename)
	return &Book{
		Title:    title,
		Path:     filename,
		Sections: []Section{{Title: title, Text: text}},
	}, nil
}

// TitleFromFilename derives a display title from a path.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}
