package shelf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metcalfc/leaf/internal/locations"
	"github.com/metcalfc/leaf/internal/logging"
	"github.com/metcalfc/leaf/internal/progress"
	"github.com/metcalfc/leaf/internal/state"
)

func newTestShelf(t *testing.T) (*Shelf, *state.Store) {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "leaf.db"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s := New(store, logging.NullLogger())
	clock := int64(1700000000000)
	s.now = func() time.Time {
		clock += 1000
		return time.UnixMilli(clock)
	}
	return s, store
}

func writeBook(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportAndList(t *testing.T) {
	s, _ := newTestShelf(t)

	first, err := s.Import(writeBook(t, "wood.md", "# Norwegian Wood\n\nI was thirty-seven then."))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if first.ID != "norwegian_wood" || first.Title != "Norwegian Wood" {
		t.Errorf("entry = %+v", first)
	}
	if !filepath.IsAbs(first.Path) {
		t.Errorf("path %q is not absolute", first.Path)
	}

	if _, err := s.Import(writeBook(t, "kafka.md", "# Kafka on the Shore\n\nCrow.")); err != nil {
		t.Fatalf("Import: %v", err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "kafka_on_the_shore" || list[1].ID != "norwegian_wood" {
		t.Errorf("List() = %+v, want newest first", list)
	}
}

func TestImportKeepsImportTime(t *testing.T) {
	s, _ := newTestShelf(t)
	path := writeBook(t, "wood.md", "# Norwegian Wood\n\ntext")

	first, _ := s.Import(path)
	again, err := s.Import(path)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if again.ImportedAt != first.ImportedAt {
		t.Errorf("ImportedAt changed from %d to %d", first.ImportedAt, again.ImportedAt)
	}
}

func TestImportErrors(t *testing.T) {
	s, _ := newTestShelf(t)

	if _, err := s.Import(filepath.Join(t.TempDir(), "missing.epub")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := s.Import(writeBook(t, "blank.txt", "   \n")); err == nil {
		t.Error("expected error for a file with no text")
	}
}

func TestListProgress(t *testing.T) {
	s, store := newTestShelf(t)
	e, _ := s.Import(writeBook(t, "wood.md", "# Norwegian Wood\n\ntext"))
	store.Set(progress.Key(e.ID), progress.Record{BookID: e.ID, Percentage: 0.42})

	list, _ := s.List()
	if len(list) != 1 || list[0].Progress != 0.42 {
		t.Errorf("List() = %+v", list)
	}
}

func TestFind(t *testing.T) {
	s, _ := newTestShelf(t)
	s.Import(writeBook(t, "wood.md", "# Norwegian Wood\n\ntext"))
	s.Import(writeBook(t, "kafka.md", "# Kafka on the Shore\n\ntext"))
	s.Import(writeBook(t, "bird.md", "# The Wind-Up Bird Chronicle\n\ntext"))

	got, err := s.Find("nrwood")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0].ID != "norwegian_wood" {
		t.Errorf("Find(nrwood) = %+v", got)
	}

	all, _ := s.Find("  ")
	if len(all) != 3 {
		t.Errorf("blank query returned %d entries, want all 3", len(all))
	}

	if none, _ := s.Find("zzz"); len(none) != 0 {
		t.Errorf("Find(zzz) = %+v", none)
	}
}

func TestSuggest(t *testing.T) {
	s, _ := newTestShelf(t)
	if _, ok := s.Suggest("anything"); ok {
		t.Error("empty shelf should have no suggestion")
	}

	s.Import(writeBook(t, "wood.md", "# Norwegian Wood\n\ntext"))
	s.Import(writeBook(t, "kafka.md", "# Kafka on the Shore\n\ntext"))

	got, ok := s.Suggest("Kafka on the Shroe")
	if !ok || got.ID != "kafka_on_the_shore" {
		t.Errorf("Suggest() = %+v, %v", got, ok)
	}
}

func TestRemove(t *testing.T) {
	s, store := newTestShelf(t)
	e, _ := s.Import(writeBook(t, "wood.md", "# Norwegian Wood\n\ntext"))
	store.Set(progress.Key(e.ID), progress.Record{BookID: e.ID})
	store.Set(locations.Key(e.ID), locations.Record{BookID: e.ID})

	if err := s.Remove(e.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	for _, key := range []string{Key(e.ID), progress.Key(e.ID), locations.Key(e.ID)} {
		var v map[string]any
		if ok, _ := store.Get(key, &v); ok {
			t.Errorf("%s still stored", key)
		}
	}

	if err := s.Remove(e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove err = %v, want ErrNotFound", err)
	}
}
