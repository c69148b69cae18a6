package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/reglet-dev/membrane/host"
	"golang.org/x/term"
)

var (
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))
)

// styler renders with lipgloss only when writing to a color terminal.
type styler struct {
	color bool
}

func newStyler(w io.Writer, noColor bool) styler {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return styler{}
	}
	f, ok := w.(*os.File)
	if !ok {
		return styler{}
	}
	return styler{color: term.IsTerminal(int(f.Fd()))} //nolint:gosec // G115: fd fits int
}

func (s styler) render(st lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return st.Render(text)
}

func (s styler) title(text string) string {
	if !s.color {
		return "== " + text + " =="
	}
	return titleStyle.Render(text)
}

func (s styler) status(st host.Status) string {
	switch st {
	case host.StatusVerified, host.StatusPassed:
		return s.render(okStyle, string(st))
	case host.StatusFailed:
		return s.render(failStyle, string(st))
	default:
		return s.render(skipStyle, string(st))
	}
}
