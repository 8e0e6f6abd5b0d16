// Package gate implements the optional interactive confirmation that stands
// between an extracted command and its execution.
package gate

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Gate asks the user before a command runs. A disabled gate always proceeds
// without blocking.
type Gate struct {
	enabled bool
	in      *bufio.Reader
	out     io.Writer
}

// New creates a gate reading confirmations from in and writing prompts to
// out.
func New(enabled bool, in io.Reader, out io.Writer) *Gate {
	return &Gate{
		enabled: enabled,
		in:      bufio.NewReader(in),
		out:     out,
	}
}

// Confirm presents the pending command and blocks for one line of input.
// Only a case-insensitive "y" proceeds; anything else, including read
// failure, cancels.
func (g *Gate) Confirm(command string) bool {
	if !g.enabled {
		return true
	}

	fmt.Fprintf(g.out, "Execute %q? [y/N]: ", command)
	line, err := g.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
