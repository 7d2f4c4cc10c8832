// Package renders prints review text in the terminal.
package renders

import (
	"io"
	"os"

	markdown "github.com/MichaelMure/go-term-markdown"
	"golang.org/x/term"
)

const (
	defaultWidth = 100
	leftPad      = 2
)

// RenderMarkdown renders content for a terminal of the current width.
func RenderMarkdown(content string) string {
	return string(markdown.Render(content, terminalWidth(), leftPad))
}

// Write prints content to w. Terminals get rendered markdown; pipes and
// files get the raw text so it can be pasted back into a merge request.
func Write(w io.Writer, content string) error {
	if isTerminal(w) {
		content = RenderMarkdown(content)
	}
	if _, err := io.WriteString(w, content); err != nil {
		return err
	}
	if content == "" || content[len(content)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= leftPad*2 {
		return defaultWidth
	}
	return w - leftPad
}
