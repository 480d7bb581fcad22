// Package project defines the data model shared across pipeline stages:
// the scanned project context, the generated unit, the build profile and
// the final artifact. Stages communicate exclusively through these values.
package project

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/binmodlabs/py2binmod/internal/iface"
)

// Metadata is the PEP 621 project metadata read from pyproject.toml.
type Metadata struct {
	Name           string
	Version        string
	Description    string
	Authors        []string
	License        string
	RequiresPython string
	Tool           ToolConfig
}

// ToolConfig is the [tool.py2binmod] table: optional layout overrides.
type ToolConfig struct {
	Venv       string
	ModuleRoot string
	Module     string
}

// Project is the scanned, validated context for one build invocation.
// It is built once by the scanner and read-only afterwards.
type Project struct {
	Dir          string // project root
	ModuleRoot   string // directory containing the Python package
	ModuleName   string // top-level import name
	VenvDir      string
	SitePackages string
	Metadata     Metadata
	Model        *iface.Model
}

// CrateName is the generated crate's package name: the project name with
// separators the build toolchain rejects replaced.
func (p *Project) CrateName() string {
	name := strings.ReplaceAll(p.Metadata.Name, "-", "_")
	return strings.ReplaceAll(name, ".", "_")
}

// RenderedFile is one generated source file, path relative to the unit root.
type RenderedFile struct {
	Path    string
	Content []byte
}

// Unit is the tree of generated files produced by the code generator.
// File order is deterministic. It is consumed (written out or printed)
// by the build orchestrator.
type Unit struct {
	Files []RenderedFile
}

// File returns the content of the file at the given relative path.
func (u *Unit) File(path string) ([]byte, bool) {
	for _, f := range u.Files {
		if f.Path == path {
			return f.Content, true
		}
	}
	return nil, false
}

// Profile selects the toolchain build profile. Supplied by the caller,
// never inferred.
type Profile struct {
	Release bool
	OutDir  string
}

// Name is the profile path component used by the toolchain and in the
// deterministic artifact path.
func (p Profile) Name() string {
	if p.Release {
		return "release"
	}
	return "debug"
}

// ArtifactPath is the deterministic final location of the plugin binary:
// <out>/<target-triple>/<profile>/<crate>.<ext>.
func (p Profile) ArtifactPath(triple, crateName, ext string) string {
	return filepath.Join(p.OutDir, triple, p.Name(), crateName+ext)
}

// Artifact is the terminal output of the pipeline.
type Artifact struct {
	Path     string
	BuildID  string
	Cached   bool
	Duration time.Duration
}
