//go:build gui

package main

import (
	"fmt"
	"image/color"
	"os"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/metcalfc/leaf/internal/reader"
)

// variantTheme forces the default theme into one variant.
type variantTheme struct {
	fyne.Theme
	variant fyne.ThemeVariant
}

func (t *variantTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	return t.Theme.Color(name, t.variant)
}

func themeFor(name string) *variantTheme {
	v := theme.VariantDark
	if name == "light" {
		v = theme.VariantLight
	}
	return &variantTheme{Theme: theme.DefaultTheme(), variant: v}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	e, code := bootstrap("leaf-gui", args, os.Stdout, os.Stderr)
	if e == nil {
		return code
	}
	defer e.store.Close()

	a, err := newApp(e.cfg, e.logger, e.store, e.path, e.opts.bookID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	themeName := e.cfg.UI.Theme
	fa := fyneapp.New()
	fa.Settings().SetTheme(themeFor(themeName))
	w := fa.NewWindow("leaf - " + a.book.Title)

	headerLabel := widget.NewLabel(a.book.Title)
	headerLabel.TextStyle.Bold = true

	pageLabel := widget.NewLabel("")
	pageLabel.Wrapping = fyne.TextWrapWord

	percentLabel := widget.NewLabel("--")

	controlsLabel := widget.NewLabel("←/→: page  T: contents  D: light/dark  drag slider: seek  F: fullscreen  Q: quit")
	controlsLabel.Alignment = fyne.TextAlignCenter

	// syncing is set while the slider is moved from code so OnChanged can tell a
	// user drag from a display update. Only touched on the fyne goroutine.
	var syncing bool
	slider := widget.NewSlider(0, 1)
	slider.Step = 0.001
	slider.OnChanged = func(v float64) {
		if syncing {
			return
		}
		if !a.tracker.Dragging() && !a.seek.Press(v, 0, 1) {
			return
		}
		a.seek.Move(a.ctx, v, 0, 1)
	}
	slider.OnChangeEnded = func(v float64) {
		if syncing {
			return
		}
		a.seek.Release(a.ctx, v, 0, 1)
	}

	updateProgress := func() {
		syncing = true
		slider.SetValue(a.bar.Fraction())
		syncing = false
		if label := a.bar.Label(); label != "" {
			percentLabel.SetText(label)
		}
	}

	updatePage := func() {
		loc := a.rendition.CurrentLocation()
		header := a.book.Title
		if loc.Chapter != "" && loc.Chapter != a.book.Title {
			header += " · " + loc.Chapter
		}
		headerLabel.SetText(header)
		pageLabel.SetText(a.rendition.Text())
	}

	a.bar.OnChange = func(float64) { fyne.Do(updateProgress) }
	a.rendition.OnRelocated(func(reader.Location) { fyne.Do(updatePage) })

	toc := a.book.TOC()
	tocList := widget.NewList(
		func() int { return len(toc) },
		func() fyne.CanvasObject { return widget.NewLabel("Title") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			entry := toc[id]
			obj.(*widget.Label).SetText(strings.Repeat("  ", entry.Level) + entry.Title)
		},
	)

	bottom := container.NewVBox(
		container.NewBorder(nil, nil, nil, percentLabel, slider),
		controlsLabel,
	)
	readingContent := container.NewBorder(headerLabel, bottom, nil, nil, container.NewVScroll(pageLabel))

	tocContainer := container.NewBorder(
		widget.NewLabel("Table of Contents"),
		widget.NewLabel("Click to jump • T to close"),
		nil, nil,
		tocList,
	)
	tocPanel := container.NewHSplit(tocContainer, readingContent)
	tocPanel.Offset = 0.33
	tocContainer.Hide()

	tocList.OnSelected = func(id widget.ListItemID) {
		if id < len(toc) {
			a.jumpTo(toc[id])
		}
		tocList.UnselectAll()
		tocContainer.Hide()
		tocPanel.Refresh()
	}

	var closeOnce sync.Once
	quit := func() {
		closeOnce.Do(a.close)
		fa.Quit()
	}

	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		switch key.Name {
		case fyne.KeyRight, fyne.KeyPageDown, fyne.KeySpace:
			a.next()
		case fyne.KeyLeft, fyne.KeyPageUp:
			a.prev()
		case fyne.KeyF:
			w.SetFullScreen(!w.FullScreen())
		case fyne.KeyQ:
			quit()
		}
	})

	w.Canvas().SetOnTypedRune(func(r rune) {
		switch r {
		case 't', 'T':
			if len(toc) == 0 {
				return
			}
			if tocContainer.Visible() {
				tocContainer.Hide()
			} else {
				tocContainer.Show()
			}
			tocPanel.Refresh()
		case 'd', 'D':
			if themeName == "dark" {
				themeName = "light"
			} else {
				themeName = "dark"
			}
			fa.Settings().SetTheme(themeFor(themeName))
		}
	})

	w.SetOnClosed(func() {
		closeOnce.Do(a.close)
	})

	w.Resize(fyne.NewSize(800, 600))
	w.SetContent(tocPanel)

	// Show the first page after the window is up.
	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := a.start(e.opts.fresh); err != nil {
			a.logger.Error("failed to display book", "error", err)
		}
	}()

	w.ShowAndRun()
	return 0
}
