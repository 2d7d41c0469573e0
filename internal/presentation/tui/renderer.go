package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or fallback when unknown.
func Width(f *os.File, fallback int) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// NewRenderer returns a function that renders markdown using glamour.
// Output going to a terminal is styled and wrapped to its width; anything
// else gets the raw markdown back.
func NewRenderer(f *os.File) func(string) (string, error) {
	if !IsTerminal(f) {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(Width(f, 80)),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}
