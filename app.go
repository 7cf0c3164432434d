package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/metcalfc/leaf/internal/config"
	"github.com/metcalfc/leaf/internal/locations"
	"github.com/metcalfc/leaf/internal/logging"
	"github.com/metcalfc/leaf/internal/progress"
	"github.com/metcalfc/leaf/internal/reader"
	"github.com/metcalfc/leaf/internal/remote"
	"github.com/metcalfc/leaf/internal/seek"
	"github.com/metcalfc/leaf/internal/shelf"
	"github.com/metcalfc/leaf/internal/state"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type options struct {
	configPath  string
	bookID      string
	find        string
	remove      string
	fresh       bool
	showVersion bool
}

func parseFlags(name string, args []string, stderr io.Writer) (options, []string, error) {
	var opts options
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to config.yaml")
	fs.StringVar(&opts.bookID, "id", "", "Store progress under this book id")
	fs.StringVar(&opts.find, "find", "", "Open the shelf book best matching a title")
	fs.StringVar(&opts.remove, "remove", "", "Remove a book and its progress from the shelf")
	fs.BoolVar(&opts.fresh, "fresh", false, "Ignore saved reading position")
	fs.BoolVar(&opts.showVersion, "v", false, "Show version information")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "%s - EPUB reader with synced progress\n\n", name)
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  %s [options] [file]\n\n", name)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  %s book.epub           Import and read a book\n", name)
		fmt.Fprintf(stderr, "  %s                     List the shelf\n", name)
		fmt.Fprintf(stderr, "  %s -find wood          Open the best title match\n", name)
		fmt.Fprintf(stderr, "\nSupported formats: %v (anything else is read as plain text)\n", reader.SupportedFormats())
	}
	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, fs.Args(), nil
}

var (
	shelfTitleStyle = lipgloss.NewStyle().Bold(true)
	shelfDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// selectBook handles shelf commands and returns the path of the book to open, or ""
// when there is nothing to read.
func selectBook(opts options, args []string, sh *shelf.Shelf, out io.Writer) (string, error) {
	switch {
	case opts.remove != "":
		if err := sh.Remove(opts.remove); err != nil {
			return "", err
		}
		fmt.Fprintf(out, "Removed %s\n", opts.remove)
		return "", nil

	case len(args) > 0:
		e, err := sh.Import(args[0])
		if err != nil {
			return "", err
		}
		return e.Path, nil

	case opts.find != "":
		matches, err := sh.Find(opts.find)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			if s, ok := sh.Suggest(opts.find); ok {
				return "", fmt.Errorf("no book matches %q (did you mean %q?)", opts.find, s.Title)
			}
			return "", fmt.Errorf("no book matches %q", opts.find)
		}
		return matches[0].Path, nil
	}

	entries, err := sh.List()
	if err != nil {
		return "", err
	}
	printShelf(out, entries)
	return "", nil
}

func printShelf(out io.Writer, entries []shelf.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "The shelf is empty. Open a book to add it: leaf book.epub")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s  %s\n",
			shelfTitleStyle.Render(e.Title),
			shelfDimStyle.Render(progress.FormatPercent(e.Progress)),
			shelfDimStyle.Render(e.ID))
	}
}

// app wires one open book to its tracker, seek controller and storage.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *state.Store

	book      *reader.Book
	rendition *reader.Rendition
	session   *progress.Session
	bar       *progress.Bar
	tracker   *progress.Tracker
	seek      *seek.Controller
	cache     *locations.Cache

	ctx      context.Context
	cancel   context.CancelFunc
	saveOnce sync.Once
}

func newApp(cfg *config.Config, logger *slog.Logger, store *state.Store, path, bookID string) (*app, error) {
	book, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	rendition := reader.NewRendition(book, cfg.Reader.PageSize)
	session := progress.NewSession(progress.BookID(bookID, book.Title, path), book, rendition)
	bar := &progress.Bar{}

	// A nil *remote.Client must not reach the tracker as a non-nil interface.
	var rs progress.RemoteStore
	if cfg.Sync.URL != "" {
		rs = remote.NewClient(cfg.Sync.URL, cfg.Sync.Timeout, logger)
	}

	tracker := progress.NewTracker(session, bar, store, rs, progress.Options{
		PreviewSettle: cfg.Seek.PreviewSettle,
		ConfirmSettle: cfg.Seek.ConfirmSettle,
		RestoreDelay:  cfg.Reader.RestoreDelay,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	a := &app{
		cfg:       cfg,
		logger:    logger.With("bookId", session.BookID),
		store:     store,
		book:      book,
		rendition: rendition,
		session:   session,
		bar:       bar,
		tracker:   tracker,
		seek: seek.New(tracker, bar, seek.Options{
			Threshold: cfg.Seek.Threshold,
			Quiet:     cfg.Seek.Quiet,
		}, logger),
		cache:  locations.NewCache(store, cfg.Reader.Granularity, logger),
		ctx:    ctx,
		cancel: cancel,
	}

	tracker.LoadIndex = a.loadLocations
	rendition.OnRelocated(func(loc reader.Location) {
		tracker.UpdatePosition(loc.Start, loc.Chapter)
	})
	return a, nil
}

// loadLocations fetches or generates the Location Index in the background.
func (a *app) loadLocations() {
	if a.cache.Generating() {
		return
	}
	go func() {
		ix, err := a.cache.Ensure(a.ctx, a.session.BookID, a.book)
		if err != nil {
			if !errors.Is(err, locations.ErrGenerating) && !errors.Is(err, context.Canceled) {
				a.logger.Warn("locations unavailable", "error", err)
			}
			return
		}
		a.session.SetLocations(ix)
		a.tracker.RefreshDisplay()
	}()
}

// start shows the first page, starts loading locations and, unless fresh, restores
// the saved position.
func (a *app) start(fresh bool) error {
	a.loadLocations()
	if err := a.rendition.Display(a.ctx, ""); err != nil {
		return err
	}
	if fresh {
		return nil
	}
	go func() {
		if _, err := a.tracker.Restore(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("restore failed", "error", err)
		}
	}()
	return nil
}

func (a *app) next() {
	if err := a.rendition.Next(a.ctx); err != nil {
		a.logger.Warn("page turn failed", "error", err)
	}
}

func (a *app) prev() {
	if err := a.rendition.Prev(a.ctx); err != nil {
		a.logger.Warn("page turn failed", "error", err)
	}
}

func (a *app) jumpTo(entry reader.TOCEntry) {
	a.tracker.Jump(a.ctx, entry.CFI, progress.Confirm)
}

// save persists the position once; later calls do nothing.
func (a *app) save() {
	a.saveOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Sync.Timeout)
		defer cancel()
		if _, err := a.tracker.Save(ctx); err != nil && !errors.Is(err, progress.ErrNotReady) {
			a.logger.Error("progress not saved", "error", err)
		}
	})
}

func (a *app) close() {
	a.save()
	a.cancel()
}

// env is everything a host needs before it opens a book.
type env struct {
	opts   options
	cfg    *config.Config
	logger *slog.Logger
	store  *state.Store
	path   string
}

// bootstrap parses flags, loads config, logging and storage and handles shelf
// commands. It returns a nil env with an exit code when there is no book to open.
func bootstrap(name string, args []string, stdout, stderr io.Writer) (*env, int) {
	opts, rest, err := parseFlags(name, args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, 0
		}
		return nil, 2
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "%s %s (commit: %s, built: %s)\n", name, version, commit, date)
		return nil, 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}

	logger, err := logging.SetupLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: logging disabled: %v\n", err)
		logger = logging.NullLogger()
	}
	slog.SetDefault(logger)

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to open local storage: %v\n", err)
		return nil, 1
	}

	path, err := selectBook(opts, rest, shelf.New(store, logger), stdout)
	if err != nil {
		store.Close()
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}
	if path == "" {
		store.Close()
		return nil, 0
	}

	return &env{opts: opts, cfg: cfg, logger: logger, store: store, path: path}, 0
}

func openStore(cfg *config.Config) (*state.Store, error) {
	if cfg.State.Path != "" {
		return state.Open(cfg.State.Path)
	}
	return state.NewStateStore()
}
