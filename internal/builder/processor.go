package builder

import (
	"path/filepath"

	"github.com/binmodlabs/py2binmod/internal/diagnostics"
	"github.com/binmodlabs/py2binmod/internal/pipeline"
	"github.com/binmodlabs/py2binmod/internal/project"
)

// Processor is the compile stage of the pipeline. Pipelines that only
// generate source simply omit it; the toolchain is never consulted then.
type Processor struct {
	Toolchain Toolchain
	Sink      OutputSink
}

func (bp *Processor) Process(ctx *pipeline.Context) *pipeline.Context {
	if ctx.Failed() {
		return ctx
	}
	if ctx.Unit == nil {
		ctx.AddError(diagnostics.NewError(diagnostics.ErrBCompile, "no generated unit; generation must run first"))
		return ctx
	}

	outDir := ctx.Options.OutDir
	if outDir == "" {
		outDir = filepath.Join(ctx.Project.Dir, "artifacts")
	}
	profile := project.Profile{Release: ctx.Options.Release, OutDir: outDir}

	opts := []Option{}
	if bp.Toolchain != nil {
		opts = append(opts, WithToolchain(bp.Toolchain))
	}
	if bp.Sink != nil {
		opts = append(opts, WithSink(bp.Sink))
	}
	if ledger, err := OpenLedger(ctx.Project.Dir); err == nil {
		defer ledger.Close()
		opts = append(opts, WithLedger(ledger))
	}

	artifact, err := New(opts...).Build(ctx.Ctx, ctx.Project, ctx.Unit, profile)
	if err != nil {
		if diag, ok := err.(*diagnostics.Diagnostic); ok {
			ctx.AddError(diag)
		} else {
			ctx.AddError(diagnostics.NewError(diagnostics.ErrBCompile, "%v", err))
		}
		return ctx
	}
	ctx.Artifact = artifact
	return ctx
}
