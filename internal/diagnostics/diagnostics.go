// Package diagnostics defines the structured errors reported by the
// transpilation pipeline. Every failure carries a stable code plus the
// file and symbol it originates from, so callers (CLI, tests) can match
// on causes instead of message text.
package diagnostics

import (
	"fmt"
	"strings"
)

// Code identifies a diagnostic category.
type Code string

// Scan-time diagnostics. All of these halt the pipeline before any
// code generation occurs.
const (
	ErrSParse     Code = "S001" // unparsable Python source
	ErrSType      Code = "S002" // annotation outside the marshalable type set
	ErrSAnnot     Code = "S003" // missing parameter or return annotation
	ErrSDuplicate Code = "S004" // two exports share a name
	ErrSLayout    Code = "S005" // project layout or metadata problem
)

// Generation diagnostics.
const (
	ErrGRender Code = "G001" // template or code rendering failure
)

// Build diagnostics.
const (
	ErrBToolchain Code = "B001" // toolchain not installed
	ErrBTarget    Code = "B002" // sandbox target not installed
	ErrBCompile   Code = "B003" // toolchain exited non-zero
	ErrBInstall   Code = "B004" // artifact could not be placed
)

// Diagnostic is a structured pipeline error.
type Diagnostic struct {
	Code    Code
	File    string // offending source file, if known
	Symbol  string // offending function or class, if known
	Message string
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", d.Code, d.Message)
	if d.File != "" {
		fmt.Fprintf(&b, " (%s", d.File)
		if d.Symbol != "" {
			fmt.Fprintf(&b, ": %s", d.Symbol)
		}
		b.WriteString(")")
	} else if d.Symbol != "" {
		fmt.Fprintf(&b, " (%s)", d.Symbol)
	}
	return b.String()
}

// NewError creates a diagnostic without source context.
func NewError(code Code, format string, args ...any) *Diagnostic {
	return &Diagnostic{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewFileError creates a diagnostic attached to a file and symbol.
// Either may be empty.
func NewFileError(code Code, file, symbol, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Code:    code,
		File:    file,
		Symbol:  symbol,
		Message: fmt.Sprintf(format, args...),
	}
}

// Is lets errors.Is match diagnostics by code.
func (d *Diagnostic) Is(target error) bool {
	t, ok := target.(*Diagnostic)
	return ok && t.Code == d.Code
}
