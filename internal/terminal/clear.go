// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal provides prompts and line clearing for interactive commands.
package terminal

import (
	"fmt"
	"math"
	"os"

	"golang.org/x/term"
)

// ClearPreviousLines erases the last textLength characters of output plus the
// line the cursor moved to after Enter, accounting for wrapping at the
// current terminal width. It does nothing when stdout is not a terminal.
func ClearPreviousLines(textLength int) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	fmt.Print(clearSequence(textLength, width(fd)))
}

func width(fd int) int {
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		return w
	}
	return 80
}

// clearSequence builds the ANSI escapes that clear the wrapped lines.
func clearSequence(textLength, termWidth int) string {
	lines := max(int(math.Ceil(float64(textLength)/float64(termWidth))), 1) + 1

	var out []byte
	for i := range lines {
		out = append(out, "\r\x1b[2K"...)
		if i < lines-1 {
			out = append(out, "\x1b[1A"...)
		}
	}
	return string(out)
}
