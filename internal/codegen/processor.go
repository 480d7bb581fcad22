package codegen

import (
	"github.com/binmodlabs/py2binmod/internal/diagnostics"
	"github.com/binmodlabs/py2binmod/internal/pipeline"
)

// Processor is the generation stage of the pipeline. It turns the scanned
// project into the rendered unit; writing it out is the orchestrator's job.
type Processor struct{}

func (gp *Processor) Process(ctx *pipeline.Context) *pipeline.Context {
	if ctx.Failed() {
		return ctx
	}
	if ctx.Project == nil {
		ctx.AddError(diagnostics.NewError(diagnostics.ErrGRender, "no project context; scan must run first"))
		return ctx
	}
	unit, err := New(ctx.Project).Render()
	if err != nil {
		if diag, ok := err.(*diagnostics.Diagnostic); ok {
			ctx.AddError(diag)
		} else {
			ctx.AddError(diagnostics.NewError(diagnostics.ErrGRender, "%v", err))
		}
		return ctx
	}
	ctx.Unit = unit
	return ctx
}
