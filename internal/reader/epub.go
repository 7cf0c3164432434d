package reader

import (
	"fmt"
	"io"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EPUBFormat implements Format for EPUB files.
type EPUBFormat struct{}

func init() {
	Register(&EPUBFormat{})
}

func (f *EPUBFormat) Name() string         { return "EPUB" }
func (f *EPUBFormat) Extensions() []string { return []string{".epub"} }

// Open reads the spine of an EPUB into sections, titled from the NCX when present.
func (f *EPUBFormat) Open(filename string) (*Book, error) {
	rc, err := epub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}

	root := rc.Rootfiles[0]
	tocByHref := buildTOCHrefMap(filename, root)

	book := &Book{
		Title: strings.TrimSpace(root.Metadata.Title),
		Path:  filename,
	}
	sectionByHref := make(map[string]int)

	for i, ref := range root.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		r, err := ref.Item.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			continue
		}

		text := extractTextFromHTML(string(data))
		if strings.TrimSpace(text) == "" {
			continue
		}

		title := lookupTitle(tocByHref, ref.Item.HREF)
		if title == "" {
			title = fmt.Sprintf("Section %d", i+1)
		}
		sectionByHref[ref.Item.HREF] = len(book.Sections)
		book.Sections = append(book.Sections, Section{
			Href:  ref.Item.HREF,
			Title: title,
			Text:  text,
		})
	}

	if len(book.Sections) == 0 {
		return nil, fmt.Errorf("no readable content in %s", filename)
	}
	if book.Title == "" {
		book.Title = TitleFromFilename(filename)
	}
	book.Entries = buildEntries(filename, root, sectionByHref)

	return book, nil
}

// blockAtoms end a line of extracted text.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Tr: true, atom.Section: true,
}

func extractTextFromHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return ""
	}

	var lines []string
	var line []string
	flush := func() {
		if len(line) > 0 {
			lines = append(lines, strings.Join(line, " "))
			line = line[:0]
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			line = append(line, strings.Fields(n.Data)...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockAtoms[n.DataAtom] {
			flush()
		}
	}
	walk(doc)
	flush()
	return strings.Join(lines, "\n")
}
