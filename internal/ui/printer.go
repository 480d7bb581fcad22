// Package ui handles terminal output: status lines for the CLI and the
// streamed toolchain log. Color is applied only when the stream is a TTY.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// Printer writes styled status lines. Errors go to stderr, everything
// else to stdout, so generated source piped to a file stays clean.
type Printer struct {
	out     io.Writer
	err     io.Writer
	color   bool
	Verbose bool
}

// NewPrinter creates a printer bound to the process streams.
func NewPrinter() *Printer {
	return &Printer{
		out:   os.Stdout,
		err:   os.Stderr,
		color: isTerminal(os.Stdout) && isTerminal(os.Stderr),
	}
}

// NewTestPrinter creates an uncolored printer bound to the given writers.
func NewTestPrinter(out, err io.Writer) *Printer {
	return &Printer{out: out, err: err}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

func (p *Printer) Headerf(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(ansiBold+ansiCyan, fmt.Sprintf(format, args...)))
}

func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintln(p.out, fmt.Sprintf(format, args...))
}

func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(ansiBold+ansiGreen, "✓ ")+fmt.Sprintf(format, args...))
}

func (p *Printer) Warningf(format string, args ...any) {
	fmt.Fprintln(p.err, p.paint(ansiYellow, "warning: ")+fmt.Sprintf(format, args...))
}

func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.err, p.paint(ansiBold+ansiRed, "error: ")+fmt.Sprintf(format, args...))
}

// Debugf prints only in verbose mode.
func (p *Printer) Debugf(format string, args ...any) {
	if !p.Verbose {
		return
	}
	fmt.Fprintln(p.err, p.paint(ansiDim, fmt.Sprintf(format, args...)))
}

// Stdout and Stderr stream toolchain output, dimmed to keep the build
// log distinguishable from the tool's own lines. They satisfy the
// builder's output sink.
func (p *Printer) Stdout(line string) {
	fmt.Fprintln(p.out, p.paint(ansiDim, line))
}

func (p *Printer) Stderr(line string) {
	fmt.Fprintln(p.err, p.paint(ansiDim, line))
}
