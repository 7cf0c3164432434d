package reader

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/metcalfc/leaf/internal/cfi"
)

// MarkdownFormat implements Format for Markdown files.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

// headerRegex matches markdown headers (# to ######)
var headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Open splits a Markdown file into one section per header.
func (f *MarkdownFormat) Open(filename string) (*Book, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	book := &Book{Path: filename}
	var current *Section
	var lines []string

	closeSection := func() {
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		if current != nil && text != "" {
			current.Text = text
			book.Sections = append(book.Sections, *current)
		}
		lines = nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if match := headerRegex.FindStringSubmatch(line); match != nil {
			closeSection()
			level := len(match[1]) - 1 // h1 = level 0, h2 = level 1, etc.
			title := strings.TrimSpace(match[2])
			if book.Title == "" && level == 0 {
				book.Title = title
			}
			current = &Section{Title: title}
			book.Entries = append(book.Entries, TOCEntry{
				Title: title,
				CFI:   cfi.New(len(book.Sections), 0),
				Level: level,
			})
		} else if current == nil {
			current = &Section{Title: "Document"}
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	closeSection()

	if len(book.Sections) == 0 {
		return nil, fmt.Errorf("no text to read in %s", filename)
	}
	if book.Title == "" {
		book.Title = TitleFromFilename(filename)
	}
	return book, nil
}
