//go:build !gui

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	pbar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/metcalfc/leaf/internal/reader"
)

type theme struct {
	text    lipgloss.Style
	header  lipgloss.Style
	status  lipgloss.Style
	help    lipgloss.Style
	cursor  lipgloss.Style
	barFill string
}

var themes = map[string]theme{
	"dark": {
		text:    lipgloss.NewStyle().Foreground(lipgloss.Color("#E8E6E3")),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAA00")).Bold(true),
		status:  lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Italic(true),
		cursor:  lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true),
		barFill: "#7D56F4",
	},
	"light": {
		text:    lipgloss.NewStyle().Foreground(lipgloss.Color("#222222")),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("#8A4B00")).Bold(true),
		status:  lipgloss.NewStyle().Foreground(lipgloss.Color("#555555")),
		help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#777777")).Italic(true),
		cursor:  lipgloss.NewStyle().Foreground(lipgloss.Color("#006400")).Bold(true),
		barFill: "#3D2A99",
	},
}

type keyMap struct {
	Next  key.Binding
	Prev  key.Binding
	TOC   key.Binding
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Theme key.Binding
	Quit  key.Binding
}

var keys = keyMap{
	Next:  key.NewBinding(key.WithKeys("right", "l", " ", "pgdown"), key.WithHelp("→", "next page")),
	Prev:  key.NewBinding(key.WithKeys("left", "h", "pgup"), key.WithHelp("←", "prev page")),
	TOC:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "contents")),
	Up:    key.NewBinding(key.WithKeys("up", "k")),
	Down:  key.NewBinding(key.WithKeys("down", "j")),
	Enter: key.NewBinding(key.WithKeys("enter")),
	Theme: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "light/dark")),
	Quit:  key.NewBinding(key.WithKeys("q", "Q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// barLeft is the column the progress bar starts at.
const barLeft = 1

type redrawMsg struct{}

type model struct {
	app        *app
	bar        pbar.Model
	themeName  string
	tocVisible bool
	tocCursor  int
	quitting   bool
	width      int
	height     int
}

func newModel(a *app, themeName string) model {
	if _, ok := themes[themeName]; !ok {
		themeName = "dark"
	}
	m := model{
		app:       a,
		themeName: themeName,
		width:     80,
		height:    24,
	}
	m.bar = newBar(themes[themeName], m.barWidth())
	return m
}

func newBar(t theme, width int) pbar.Model {
	b := pbar.New(pbar.WithSolidFill(t.barFill), pbar.WithoutPercentage())
	b.Width = width
	return b
}

func (m model) theme() theme {
	return themes[m.themeName]
}

// barWidth leaves room for the percentage label after the bar.
func (m model) barWidth() int {
	return max(10, m.width-barLeft-8)
}

// barRow is the screen row the progress bar is drawn on.
func (m model) barRow() int {
	return m.height - 2
}

// pageSize fits a page into the text area, capped at the configured size.
func pageSize(width, height, limit int) int {
	lines := max(1, height-4)
	cols := max(20, width-4)
	return max(200, min(limit, lines*cols*3/4))
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			m.app.close()
			return m, tea.Quit
		}
		if m.tocVisible {
			return m.updateTOC(msg), nil
		}
		switch {
		case key.Matches(msg, keys.Next):
			m.app.next()
		case key.Matches(msg, keys.Prev):
			m.app.prev()
		case key.Matches(msg, keys.TOC):
			if len(m.app.book.TOC()) > 0 {
				m.tocVisible = true
			}
		case key.Matches(msg, keys.Theme):
			if m.themeName == "dark" {
				m.themeName = "light"
			} else {
				m.themeName = "dark"
			}
			m.bar = newBar(m.theme(), m.barWidth())
		}
		return m, nil

	case tea.MouseMsg:
		return m.updateMouse(msg), nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = m.barWidth()
		m.app.rendition.SetPageSize(pageSize(m.width, m.height, m.app.cfg.Reader.PageSize))
		return m, nil

	case redrawMsg:
		return m, nil
	}

	return m, nil
}

func (m model) updateTOC(msg tea.KeyMsg) model {
	toc := m.app.book.TOC()
	switch {
	case key.Matches(msg, keys.Up):
		if m.tocCursor > 0 {
			m.tocCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.tocCursor < len(toc)-1 {
			m.tocCursor++
		}
	case key.Matches(msg, keys.Enter):
		if m.tocCursor < len(toc) {
			m.app.jumpTo(toc[m.tocCursor])
		}
		m.tocVisible = false
	case key.Matches(msg, keys.TOC):
		m.tocVisible = false
	}
	return m
}

func (m model) updateMouse(msg tea.MouseMsg) model {
	x := float64(msg.X)
	left, width := float64(barLeft), float64(m.barWidth())

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft && msg.Y == m.barRow() {
			m.app.seek.Press(x, left, width)
		}
	case tea.MouseActionMotion:
		m.app.seek.Move(m.app.ctx, x, left, width)
	case tea.MouseActionRelease:
		m.app.seek.Release(m.app.ctx, x, left, width)
	}
	return m
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	t := m.theme()

	var sb strings.Builder
	loc := m.app.rendition.CurrentLocation()
	sb.WriteString(t.header.Render(" " + m.app.book.Title))
	if loc.Chapter != "" && loc.Chapter != m.app.book.Title {
		sb.WriteString(t.status.Render(" · " + loc.Chapter))
	}
	sb.WriteString("\n\n")

	avail := max(1, m.height-5)
	if m.tocVisible {
		sb.WriteString(m.viewTOC(avail))
	} else {
		lines := strings.Split(wordwrap.String(m.app.rendition.Text(), max(20, m.width-4)), "\n")
		if len(lines) > avail {
			lines = lines[:avail]
		}
		for _, l := range lines {
			sb.WriteString("  " + t.text.Render(l) + "\n")
		}
		sb.WriteString(strings.Repeat("\n", avail-len(lines)))
	}
	sb.WriteString("\n")

	label := m.app.bar.Label()
	if label == "" {
		label = "--"
	}
	sb.WriteString(strings.Repeat(" ", barLeft))
	sb.WriteString(m.bar.ViewAs(m.app.bar.Fraction()))
	sb.WriteString(t.status.Render(fmt.Sprintf(" %4s", label)))
	sb.WriteString("\n")

	sb.WriteString(t.help.Render(" ←/→: page  t: contents  d: light/dark  drag bar: seek  q: quit"))
	return sb.String()
}

func (m model) viewTOC(avail int) string {
	t := m.theme()
	toc := m.app.book.TOC()
	start := 0
	if m.tocCursor >= avail {
		start = m.tocCursor - avail + 1
	}

	var sb strings.Builder
	n := 0
	for i := start; i < len(toc) && n < avail; i++ {
		line := strings.Repeat("  ", toc[i].Level) + toc[i].Title
		if i == m.tocCursor {
			sb.WriteString(t.cursor.Render("> " + line))
		} else {
			sb.WriteString(t.text.Render("  " + line))
		}
		sb.WriteString("\n")
		n++
	}
	sb.WriteString(strings.Repeat("\n", avail-n))
	return sb.String()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	e, code := bootstrap("leaf", args, os.Stdout, os.Stderr)
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

	p := tea.NewProgram(newModel(a, e.cfg.UI.Theme), tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Send from a fresh goroutine: these fire inside Update too.
	a.bar.OnChange = func(float64) { go p.Send(redrawMsg{}) }
	a.rendition.OnRelocated(func(reader.Location) { go p.Send(redrawMsg{}) })

	if err := a.start(e.opts.fresh); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
