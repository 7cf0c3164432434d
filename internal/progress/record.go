package progress

import (
	"strings"
	"unicode"

	"github.com/metcalfc/leaf/internal/state"
)

const keyPrefix = "epub_progress_"

// Key returns the local storage key of a book's progress record.
func Key(bookID string) string {
	return keyPrefix + bookID
}

// Record is a persisted reading position.
type Record struct {
	BookID       string  `json:"bookId"`
	CFI          string  `json:"cfi"`
	Percentage   float64 `json:"percentage"`
	ChapterTitle string  `json:"chapterTitle"`
	Timestamp    int64   `json:"timestamp"` // Unix milliseconds
}

// BookID picks the identifier a book's progress is stored under: an explicit
// parameter, else the sanitized title, else a hash of the file's content.
func BookID(param, title, path string) string {
	if id := strings.TrimSpace(param); id != "" {
		return id
	}
	if id := SanitizeTitle(title); id != "" {
		return id
	}
	if path != "" {
		if hash, err := state.ComputeHash(path); err == nil {
			return hash
		}
	}
	return "untitled"
}

// SanitizeTitle lowercases title and collapses every run of characters that are not
// letters or digits into a single underscore.
func SanitizeTitle(title string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
