package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the desops banner with the version underneath.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	// Teal to blue, one shade per line
	lines := []struct{ text, color string }{
		{"      _                           ", "#2dd4bf"},
		{"   __| | ___  ___  ___  _ __  ___ ", "#22d3ee"},
		{"  / _` |/ _ \\/ __|/ _ \\| '_ \\/ __|", "#38bdf8"},
		{" | (_| |  __/\\__ \\ (_) | |_) \\__ \\", "#60a5fa"},
		{"  \\__,_|\\___||___/\\___/| .__/|___/", "#818cf8"},
		{"                       |_|        ", "#a78bfa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  discrete-event systems toolkit "+version).Faint())
	fmt.Fprintln(w)
}
