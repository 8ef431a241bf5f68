package cli

import (
	"os"

	"golang.org/x/term"
)

// terminalWidth returns the current terminal's column width, falling
// back to 80 when stdout isn't a terminal (piped output, CI logs).
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
