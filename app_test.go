package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/metcalfc/leaf/internal/cfi"
	"github.com/metcalfc/leaf/internal/config"
	"github.com/metcalfc/leaf/internal/logging"
	"github.com/metcalfc/leaf/internal/progress"
	"github.com/metcalfc/leaf/internal/shelf"
	"github.com/metcalfc/leaf/internal/state"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Reader.RestoreDelay = 0
	cfg.Seek.PreviewSettle = 5 * time.Millisecond
	cfg.Seek.ConfirmSettle = 5 * time.Millisecond
	return cfg
}

func writeTestBook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wood.md")
	text := "# Norwegian Wood\n\n" + strings.Repeat("word ", 2000)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func memStore(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.Open("")
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	return store
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	opts, args, err := parseFlags("leaf", []string{"-id", "custom", "-fresh", "book.epub"}, &stderr)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.bookID != "custom" || !opts.fresh {
		t.Errorf("opts = %+v", opts)
	}
	if len(args) != 1 || args[0] != "book.epub" {
		t.Errorf("args = %v", args)
	}

	if _, _, err := parseFlags("leaf", []string{"-nope"}, &stderr); err == nil {
		t.Error("expected error for an unknown flag")
	}
}

func TestBootstrapVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	e, code := bootstrap("leaf", []string{"-version"}, &stdout, &stderr)
	if e != nil || code != 0 {
		t.Errorf("bootstrap() = %v, %d", e, code)
	}
	if !strings.HasPrefix(stdout.String(), "leaf dev") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestSelectBook(t *testing.T) {
	sh := shelf.New(memStore(t), logging.NullLogger())
	var out bytes.Buffer

	path, err := selectBook(options{}, nil, sh, &out)
	if err != nil || path != "" {
		t.Fatalf("empty shelf: %q, %v", path, err)
	}
	if !strings.Contains(out.String(), "shelf is empty") {
		t.Errorf("output = %q", out.String())
	}

	book := writeTestBook(t)
	path, err = selectBook(options{}, []string{book}, sh, &out)
	if err != nil || path != book {
		t.Fatalf("import: %q, %v", path, err)
	}

	path, err = selectBook(options{find: "norw"}, nil, sh, &out)
	if err != nil || path != book {
		t.Errorf("find: %q, %v", path, err)
	}

	_, err = selectBook(options{find: "Norwegain Wood"}, nil, sh, &out)
	if err == nil || !strings.Contains(err.Error(), `did you mean "Norwegian Wood"`) {
		t.Errorf("find miss err = %v", err)
	}

	out.Reset()
	if _, err := selectBook(options{}, nil, sh, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Norwegian Wood") || !strings.Contains(out.String(), "0%") {
		t.Errorf("listing = %q", out.String())
	}

	if _, err := selectBook(options{remove: "norwegian_wood"}, nil, sh, &out); err != nil {
		t.Errorf("remove: %v", err)
	}
	if list, _ := sh.List(); len(list) != 0 {
		t.Errorf("shelf after remove = %+v", list)
	}
}

func TestAppRestoreAndSave(t *testing.T) {
	store := memStore(t)
	store.Set(progress.Key("norwegian_wood"), progress.Record{BookID: "norwegian_wood", CFI: cfi.New(0, 3000)})

	a, err := newApp(testConfig(), logging.NullLogger(), store, writeTestBook(t), "")
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	if err := a.start(false); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, "locations", a.session.Ready)
	waitFor(t, "restore", func() bool {
		return a.rendition.CurrentLocation().Start == cfi.New(0, 3000) && !a.tracker.Jumping()
	})

	a.next()
	if got := a.tracker.Position(); got != cfi.New(0, 4500) {
		t.Errorf("Position() after page turn = %q", got)
	}

	a.close()
	a.close()
	var rec progress.Record
	if ok, err := store.Get(progress.Key("norwegian_wood"), &rec); !ok || err != nil {
		t.Fatalf("progress not saved: %v", err)
	}
	if rec.CFI != cfi.New(0, 4500) || rec.Percentage <= 0 || rec.ChapterTitle != "Norwegian Wood" {
		t.Errorf("saved record = %+v", rec)
	}
}

func TestAppFreshStart(t *testing.T) {
	store := memStore(t)
	store.Set(progress.Key("norwegian_wood"), progress.Record{CFI: cfi.New(0, 3000)})

	a, err := newApp(testConfig(), logging.NullLogger(), store, writeTestBook(t), "")
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()
	if err := a.start(true); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if got := a.tracker.Position(); got != cfi.New(0, 0) {
		t.Errorf("fresh start position = %q", got)
	}
}

