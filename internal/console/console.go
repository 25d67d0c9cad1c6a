// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package console prints user-facing launcher messages and implements the
// end-of-run pause that keeps a double-clicked console window open.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// PausePrompt is printed before waiting for a keypress.
const PausePrompt = "Press any key to continue . . . "

// Console writes messages for the operator. Errors and warnings are colored
// when the output is a terminal.
type Console struct {
	out io.Writer
	in  io.Reader

	errColor  *color.Color
	warnColor *color.Color
}

// New returns a Console writing to out and reading keypresses from in.
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{
		out:       out,
		in:        in,
		errColor:  color.New(color.FgRed, color.Bold),
		warnColor: color.New(color.FgYellow),
	}
	if !isTerminal(out) {
		c.errColor.DisableColor()
		c.warnColor.DisableColor()
	}
	return c
}

// Std returns a Console bound to the process's stdin and stdout.
func Std() *Console {
	return New(os.Stdin, os.Stdout)
}

// Infof prints an uncolored line.
func (c *Console) Infof(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Warnf prints a warning line.
func (c *Console) Warnf(format string, args ...any) {
	c.warnColor.Fprintf(c.out, format+"\n", args...)
}

// Errorf prints an error line.
func (c *Console) Errorf(format string, args ...any) {
	c.errColor.Fprintf(c.out, format+"\n", args...)
}

// Pause prints PausePrompt and blocks until a key is pressed. When the input
// is not a terminal it waits for a newline or end of input instead.
func (c *Console) Pause() error {
	fmt.Fprint(c.out, PausePrompt)
	defer fmt.Fprintln(c.out)

	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return readKey(f)
	}

	_, err := bufio.NewReader(c.in).ReadString('\n')
	if err == io.EOF {
		return nil
	}
	return err
}

// readKey switches f into raw mode long enough to read a single keypress.
func readKey(f *os.File) error {
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		// Fall back to line input if raw mode is refused.
		_, err = bufio.NewReader(f).ReadString('\n')
		return err
	}
	defer term.Restore(fd, state)

	buf := make([]byte, 1)
	_, err = f.Read(buf)
	if err == io.EOF {
		return nil
	}
	return err
}

func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
