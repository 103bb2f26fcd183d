// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// fileDescriptor returns the descriptor behind v when it is a terminal.
func fileDescriptor(v any) (int, bool) {
	f, ok := v.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// IsTTY reports whether v is an *os.File attached to a terminal.
func IsTTY(v any) bool {
	_, ok := fileDescriptor(v)
	return ok
}

// colorProfile picks the colour profile for w. Non-terminals and NO_COLOR
// get plain ASCII.
func colorProfile(w io.Writer) termenv.Profile {
	if !IsTTY(w) {
		return termenv.Ascii
	}
	return termenv.NewOutput(w).EnvColorProfile()
}

// =============================================================================
// INTERACTIVE INPUT
// =============================================================================

// prompter reads answers from in and writes prompts to out. A single
// buffered reader serves every prompt so piped input is not lost between
// calls.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

// line prints label and reads one trimmed line.
func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(s), nil
}

// secret reads a password without echo on a terminal. Piped input is read
// as a plain line with only the line ending removed.
func (p *prompter) secret(label string) (string, error) {
	fd, ok := fileDescriptor(p.in)
	if !ok {
		fmt.Fprint(p.out, label)
		s, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || s == "") {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(s, "\r\n"), nil
	}

	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
