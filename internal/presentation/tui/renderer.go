// Package tui renders run output for the terminal.
package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown for the terminal.
// On a TTY the output is styled with glamour at the terminal's width; when
// stdout is piped the markdown passes through untouched.
func NewRenderer() func(string) (string, error) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}

	width := 100
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		width = w
	}

	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}
