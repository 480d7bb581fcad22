// Package scanner discovers a Python project's exported plugin surface.
// It walks the tree, reads the PEP 621 metadata, resolves the module
// layout, and statically parses every source file for functions carrying
// the MDK markers — producing the interface model the generator consumes.
// No user code runs during scanning, and nothing is written to disk.
package scanner

import (
	"fmt"
	"os"

	"github.com/binmodlabs/py2binmod/internal/config"
	"github.com/binmodlabs/py2binmod/internal/diagnostics"
	"github.com/binmodlabs/py2binmod/internal/iface"
	"github.com/binmodlabs/py2binmod/internal/pipeline"
	"github.com/binmodlabs/py2binmod/internal/project"
	"github.com/binmodlabs/py2binmod/internal/pysrc"
)

// Scanner builds a project context from a directory on disk.
type Scanner struct {
	hints LayoutHints
}

// New creates a scanner with the given layout overrides; empty fields fall
// back to the pyproject tool table, then to discovery.
func New(hints LayoutHints) *Scanner {
	return &Scanner{hints: hints}
}

// Scan produces a validated project context or a structured diagnostic
// identifying the offending file and symbol.
func (s *Scanner) Scan(projectDir string) (*project.Project, *diagnostics.Diagnostic) {
	info, err := os.Stat(projectDir)
	if err != nil || !info.IsDir() {
		return nil, diagnostics.NewError(diagnostics.ErrSLayout, "not a project directory: %s", projectDir)
	}

	meta, err := ReadMetadata(projectDir)
	if err != nil {
		return nil, diagnostics.NewError(diagnostics.ErrSLayout, "%v", err)
	}

	files, err := WalkSources(projectDir)
	if err != nil {
		return nil, diagnostics.NewError(diagnostics.ErrSLayout, "walking %s: %v", projectDir, err)
	}

	hints := s.hints
	if hints.Venv == "" {
		hints.Venv = meta.Tool.Venv
	}
	if hints.ModuleRoot == "" {
		hints.ModuleRoot = meta.Tool.ModuleRoot
	}
	if hints.Module == "" {
		hints.Module = meta.Tool.Module
	}

	layout, err := ResolveLayout(projectDir, files, hints)
	if err != nil {
		return nil, diagnostics.NewError(diagnostics.ErrSLayout, "%v", err)
	}

	model := iface.NewModel()
	model.HostNamespace = config.DefaultHostNamespace

	hostClassSeen := ""
	for _, file := range pythonSources(files, layout.ModuleRoot) {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, diagnostics.NewFileError(diagnostics.ErrSParse, file, "", "reading source: %v", err)
		}
		mod, err := pysrc.Parse(string(src), file)
		if err != nil {
			return nil, diagnostics.NewFileError(diagnostics.ErrSParse, file, "", "%v", err)
		}

		importPath := fullImportPath(layout, file)
		for _, fn := range mod.Functions {
			if !fn.HasDecorator(config.ModFnDecorator) {
				continue
			}
			sig, diag := s.exportSignature(fn, file, importPath)
			if diag != nil {
				return nil, diag
			}
			if err := model.AddExport(sig); err != nil {
				return nil, diagnostics.NewFileError(diagnostics.ErrSDuplicate, file, fn.Name, "%v", err)
			}
		}

		for _, cls := range mod.Classes {
			if !cls.HasDecorator(config.HostFnsDecorator) {
				continue
			}
			if hostClassSeen != "" {
				return nil, diagnostics.NewFileError(diagnostics.ErrSDuplicate, file, cls.Name,
					"multiple host_fns classes (already declared by %s); a plugin imports one host namespace", hostClassSeen)
			}
			hostClassSeen = cls.Name
			if diag := s.hostFunctions(model, cls, file); diag != nil {
				return nil, diag
			}
		}
	}

	return &project.Project{
		Dir:          projectDir,
		ModuleRoot:   layout.ModuleRoot,
		ModuleName:   layout.ModuleName,
		VenvDir:      layout.VenvDir,
		SitePackages: layout.SitePackages,
		Metadata:     meta,
		Model:        model,
	}, nil
}

func (s *Scanner) exportSignature(fn *pysrc.FuncDef, file, importPath string) (iface.ExportSignature, *diagnostics.Diagnostic) {
	if fn.HasVarArgs {
		return iface.ExportSignature{}, diagnostics.NewFileError(diagnostics.ErrSType, file, fn.Name,
			"variadic parameters cannot cross the plugin ABI; the calling convention is positional")
	}

	sig := iface.ExportSignature{
		Name:       fn.Name,
		Doc:        fn.Docstring,
		ImportPath: importPath,
		File:       file,
	}

	for _, p := range fn.Params {
		if p.Annotation == nil {
			return iface.ExportSignature{}, diagnostics.NewFileError(diagnostics.ErrSAnnot, file, fn.Name,
				"parameter %q is missing a type annotation", p.Name)
		}
		t, err := iface.FromAnnotation(p.Annotation)
		if err == nil {
			err = t.Validate(false)
		}
		if err != nil {
			return iface.ExportSignature{}, diagnostics.NewFileError(diagnostics.ErrSType, file, fn.Name,
				"parameter %q: %v", p.Name, err)
		}
		sig.Params = append(sig.Params, iface.Param{Name: p.Name, Type: t})
	}

	if fn.Returns == nil {
		return iface.ExportSignature{}, diagnostics.NewFileError(diagnostics.ErrSAnnot, file, fn.Name,
			"missing return type annotation")
	}
	ret, err := iface.FromAnnotation(fn.Returns)
	if err == nil {
		err = ret.Validate(true)
	}
	if err != nil {
		return iface.ExportSignature{}, diagnostics.NewFileError(diagnostics.ErrSType, file, fn.Name,
			"return type: %v", err)
	}
	sig.Return = ret
	return sig, nil
}

func (s *Scanner) hostFunctions(model *iface.Model, cls *pysrc.ClassDef, file string) *diagnostics.Diagnostic {
	dec, _ := cls.FindDecorator(config.HostFnsDecorator)
	namespace, ok := dec.StringArg("namespace", 0)
	if !ok {
		return diagnostics.NewFileError(diagnostics.ErrSParse, file, cls.Name,
			"host_fns requires a namespace argument, e.g. @host_fns(namespace=%q)", config.DefaultHostNamespace)
	}
	model.HostNamespace = namespace

	for _, m := range cls.Methods {
		if !m.HasDecorator(config.HostFnDecorator) {
			continue
		}
		hf := iface.HostFunc{Name: m.Name}
		params := m.Params
		// a declaration written as an instance method carries self
		if len(params) > 0 && params[0].Name == "self" && params[0].Annotation == nil {
			params = params[1:]
		}
		for _, p := range params {
			if p.Annotation == nil {
				return diagnostics.NewFileError(diagnostics.ErrSAnnot, file, cls.Name+"."+m.Name,
					"parameter %q is missing a type annotation", p.Name)
			}
			t, err := iface.FromAnnotation(p.Annotation)
			if err != nil {
				return diagnostics.NewFileError(diagnostics.ErrSType, file, cls.Name+"."+m.Name,
					"parameter %q: %v", p.Name, err)
			}
			if err := t.Validate(false); err != nil {
				return diagnostics.NewFileError(diagnostics.ErrSType, file, cls.Name+"."+m.Name,
					"parameter %q: %v", p.Name, err)
			}
			hf.Params = append(hf.Params, iface.Param{Name: p.Name, Type: t})
		}
		if m.Returns == nil {
			return diagnostics.NewFileError(diagnostics.ErrSAnnot, file, cls.Name+"."+m.Name,
				"missing return type annotation")
		}
		ret, err := iface.FromAnnotation(m.Returns)
		if err != nil {
			return diagnostics.NewFileError(diagnostics.ErrSType, file, cls.Name+"."+m.Name,
				"return type: %v", err)
		}
		if err := ret.Validate(true); err != nil {
			return diagnostics.NewFileError(diagnostics.ErrSType, file, cls.Name+"."+m.Name,
				"return type: %v", err)
		}
		hf.Return = ret
		model.HostFuncs = append(model.HostFuncs, hf)
	}
	return nil
}

// fullImportPath resolves the Python import path the generated glue uses
// to reach a file's exports.
func fullImportPath(layout Layout, file string) string {
	rel := ImportPath(layout.ModuleRoot, file)
	switch rel {
	case "", layout.ModuleName:
		return layout.ModuleName
	}
	return fmt.Sprintf("%s.%s", layout.ModuleName, rel)
}

// Processor is the scan stage of the pipeline.
type Processor struct{}

func (sp *Processor) Process(ctx *pipeline.Context) *pipeline.Context {
	if ctx.Failed() {
		return ctx
	}
	sc := New(LayoutHints{
		Venv:       ctx.Options.Venv,
		ModuleRoot: ctx.Options.ModuleRoot,
		Module:     ctx.Options.Module,
	})
	proj, diag := sc.Scan(ctx.Options.ProjectDir)
	if diag != nil {
		ctx.AddError(diag)
		return ctx
	}
	ctx.Project = proj
	return ctx
}
