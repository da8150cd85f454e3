package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the scalux ASCII banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{"  ___  ___ __ _| |_   ___  __", "#818cf8"},
		{" / __|/ __/ _` | | | | \\ \\/ /", "#a78bfa"},
		{" \\__ \\ (_| (_| | | |_| |>  < ", "#c084fc"},
		{" |___/\\___\\__,_|_|\\__,_/_/\\_\\", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Highlight renders s in bold accent color when w supports it.
func Highlight(w io.Writer, s string) string {
	out := termenv.NewOutput(w)
	return out.String(s).Bold().Foreground(out.Color("#fbbf24")).String()
}
