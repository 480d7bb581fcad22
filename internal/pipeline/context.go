// Package pipeline wires the transpilation stages together. Each stage is
// a Processor over a shared Context owned by a single invocation; no state
// crosses invocations, and data flows strictly forward.
package pipeline

import (
	"context"

	"github.com/binmodlabs/py2binmod/internal/diagnostics"
	"github.com/binmodlabs/py2binmod/internal/project"
)

// Processor is a single pipeline stage.
type Processor interface {
	Process(ctx *Context) *Context
}

// Options are the caller-supplied knobs for one invocation.
type Options struct {
	ProjectDir string
	OutDir     string // empty in generate-only mode means "print to stream"
	Release    bool
	Stdout     bool // generate-only: force printing even with an out dir
	Verbose    bool

	// Layout overrides (CLI flags win over pyproject configuration).
	Venv       string
	ModuleRoot string
	Module     string
}

// Context carries the state of one pipeline run. Stages fill in their
// output field and never touch fields owned by later stages.
type Context struct {
	Ctx     context.Context
	Options Options

	Project  *project.Project  // set by the scan stage
	Unit     *project.Unit     // set by the generate stage
	Artifact *project.Artifact // set by the build stage

	Errors []*diagnostics.Diagnostic
}

// NewContext creates the context for a single invocation.
func NewContext(ctx context.Context, opts Options) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{Ctx: ctx, Options: opts}
}

// Failed reports whether any stage recorded an error.
func (c *Context) Failed() bool { return len(c.Errors) > 0 }

// AddError records a stage diagnostic.
func (c *Context) AddError(d *diagnostics.Diagnostic) {
	c.Errors = append(c.Errors, d)
}
