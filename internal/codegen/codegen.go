// Package codegen renders the glue crate for a scanned project: the Rust
// source embedding the interpreter, the crate manifest and toolchain
// pins, and a machine-readable manifest of the exported interface. The
// same project context always renders byte-identical output; generation
// touches neither the network nor the toolchain.
package codegen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/binmodlabs/py2binmod/internal/diagnostics"
	"github.com/binmodlabs/py2binmod/internal/project"
)

// Generator renders the complete generated unit for one project.
type Generator struct {
	proj *project.Project
}

// New creates a generator for the given scanned project.
func New(proj *project.Project) *Generator {
	return &Generator{proj: proj}
}

// Render produces every file of the generated unit, paths relative to the
// unit root, in a fixed order.
func (g *Generator) Render() (*project.Unit, error) {
	meta := g.proj.Metadata
	unit := &project.Unit{}

	templated := []struct {
		path string
		tmpl string
		data any
	}{
		{"README.md", readmeTemplate, map[string]string{
			"Name":        meta.Name,
			"Description": meta.Description,
		}},
		{"Cargo.toml", cargoTemplate, map[string]any{
			"Name":        g.proj.CrateName(),
			"Version":     meta.Version,
			"Description": meta.Description,
			"Authors":     meta.Authors,
			"License":     meta.License,
		}},
		{".cargo/config.toml", cargoConfigTemplate, nil},
		{"rust-toolchain.toml", toolchainTemplate, nil},
	}

	for _, t := range templated {
		content, err := renderTemplate(t.path, t.tmpl, t.data)
		if err != nil {
			return nil, diagnostics.NewError(diagnostics.ErrGRender, "rendering %s: %v", t.path, err)
		}
		unit.Files = append(unit.Files, project.RenderedFile{Path: t.path, Content: content})
	}

	manifest, err := renderManifest(g.proj)
	if err != nil {
		return nil, diagnostics.NewError(diagnostics.ErrGRender, "rendering manifest.yaml: %v", err)
	}
	unit.Files = append(unit.Files, project.RenderedFile{Path: "manifest.yaml", Content: manifest})

	libRS := renderLibRS(g.proj)
	unit.Files = append(unit.Files, project.RenderedFile{Path: "src/lib.rs", Content: []byte(libRS)})

	return unit, nil
}

func renderTemplate(name, text string, data any) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"tomlStr": tomlStr,
	}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	return []byte(buf.String()), nil
}

// tomlStr renders a TOML basic string literal.
func tomlStr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

// WriteUnit materializes a rendered unit under dir, creating parent
// directories as needed.
func WriteUnit(unit *project.Unit, dir string) error {
	for _, f := range unit.Files {
		dst := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, f.Content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
	}
	return nil
}

// Templates

const readmeTemplate = `# {{.Name}}

{{if .Description}}{{.Description}}

{{end}}This crate was generated by py2binmod. It embeds a Python
interpreter together with the plugin's frozen sources and exposes the
plugin's exported functions over the module ABI. Edit the Python project
and regenerate instead of editing this crate.
`

const cargoTemplate = `[package]
name = {{tomlStr .Name}}
version = {{tomlStr .Version}}
{{- if .Description}}
description = {{tomlStr .Description}}
{{- end}}
{{- if .Authors}}
authors = [{{range $i, $a := .Authors}}{{if $i}}, {{end}}{{tomlStr $a}}{{end}}]
{{- end}}
{{- if .License}}
license = {{tomlStr .License}}
{{- end}}
edition = "2021"

[lib]
crate-type = ["cdylib"]

[dependencies]
binmod_mdk = "0.2"
serde = { version = "1", features = ["derive"] }
serde_json = "1"
rustpython-vm = { version = "0.4", default-features = false, features = ["compiler", "serde", "freeze-stdlib"] }
rustpython-stdlib = { version = "0.4", default-features = false }
rustpython-pylib = { version = "0.4", features = ["freeze-stdlib"] }

[profile.release]
opt-level = "s"
lto = true
strip = true
`

const cargoConfigTemplate = `[build]
target = "wasm32-wasip1"
`

const toolchainTemplate = `[toolchain]
channel = "stable"
targets = ["wasm32-wasip1"]
`
