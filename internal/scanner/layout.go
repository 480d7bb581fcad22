package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/binmodlabs/py2binmod/internal/config"
)

// Layout is the resolved on-disk shape of a Python project.
type Layout struct {
	ModuleRoot   string // directory the import paths are rooted at
	ModuleName   string // top-level import name
	VenvDir      string
	SitePackages string
}

// LayoutHints are caller overrides: CLI flags first, then the pyproject
// tool table, then discovery.
type LayoutHints struct {
	Venv       string
	ModuleRoot string
	Module     string
}

// ResolveLayout locates the module root, the module name, the virtualenv
// and its site-packages. Discovery rules: module root is the hint, else
// <project>/src when present, else the project root; the module is the
// hint, else the single top-level package containing __init__.py.
func ResolveLayout(projectDir string, files []string, hints LayoutHints) (Layout, error) {
	importRoot := hints.ModuleRoot
	switch {
	case importRoot == "":
		src := filepath.Join(projectDir, "src")
		if isDir(src) {
			importRoot = src
		} else {
			importRoot = projectDir
		}
	case !filepath.IsAbs(importRoot):
		importRoot = filepath.Join(projectDir, importRoot)
	}

	venvDir := hints.Venv
	switch {
	case venvDir == "":
		venvDir = findVenv(projectDir)
		if venvDir == "" {
			return Layout{}, fmt.Errorf("no virtualenv found in %s (looked for %s); create one or set tool.py2binmod.venv", projectDir, strings.Join(config.VenvCandidates, ", "))
		}
	case !filepath.IsAbs(venvDir):
		venvDir = filepath.Join(projectDir, venvDir)
	}

	sitePackages := findSitePackages(venvDir)
	if sitePackages == "" {
		return Layout{}, fmt.Errorf("no site-packages directory under %s", venvDir)
	}

	if name := strings.TrimSuffix(hints.Module, config.SourceFileExt); name != "" {
		// single-file module: <importRoot>/<name>.py
		if isFile(filepath.Join(importRoot, name+config.SourceFileExt)) {
			return Layout{
				ModuleRoot:   importRoot,
				ModuleName:   name,
				VenvDir:      venvDir,
				SitePackages: sitePackages,
			}, nil
		}
		// package module: <importRoot>/<name>/__init__.py
		pkgRoot := filepath.Join(importRoot, name)
		if isFile(filepath.Join(pkgRoot, "__init__.py")) {
			return Layout{
				ModuleRoot:   pkgRoot,
				ModuleName:   name,
				VenvDir:      venvDir,
				SitePackages: sitePackages,
			}, nil
		}
		return Layout{}, fmt.Errorf("module %q not found under %s", name, importRoot)
	}

	// Discovery: exactly one top-level package with an __init__.py.
	candidates := make(map[string]bool)
	for _, f := range files {
		if filepath.Base(f) != "__init__.py" {
			continue
		}
		rel, err := filepath.Rel(importRoot, f)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) > 0 {
			candidates[parts[0]] = true
		}
	}
	if len(candidates) != 1 {
		return Layout{}, fmt.Errorf("cannot determine the plugin module under %s: found %d top-level packages; set tool.py2binmod.module", importRoot, len(candidates))
	}

	var moduleName string
	for name := range candidates {
		moduleName = name
	}
	moduleRoot := filepath.Join(importRoot, moduleName)
	if !isFile(filepath.Join(moduleRoot, "__init__.py")) {
		return Layout{}, fmt.Errorf("module %q under %s has no __init__.py", moduleName, importRoot)
	}

	return Layout{
		ModuleRoot:   moduleRoot,
		ModuleName:   moduleName,
		VenvDir:      venvDir,
		SitePackages: sitePackages,
	}, nil
}

func findVenv(projectDir string) string {
	for _, name := range config.VenvCandidates {
		p := filepath.Join(projectDir, name)
		if isDir(p) {
			return p
		}
	}
	return ""
}

// findSitePackages locates <venv>/lib/python*/site-packages.
func findSitePackages(venvDir string) string {
	libDir := filepath.Join(venvDir, "lib")
	entries, err := os.ReadDir(libDir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "python") {
			continue
		}
		sp := filepath.Join(libDir, e.Name(), "site-packages")
		if isDir(sp) {
			return sp
		}
	}
	return ""
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ImportPath converts a source file path into a Python import path rooted
// at the module. Returns the empty string for the package __init__ itself.
func ImportPath(moduleRoot, file string) string {
	rel, err := filepath.Rel(moduleRoot, file)
	if err != nil {
		return ""
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), config.SourceFileExt)
	parts := strings.Split(rel, "/")
	if len(parts) > 0 && parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}
