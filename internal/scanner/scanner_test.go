package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/binmodlabs/py2binmod/internal/diagnostics"
	"github.com/binmodlabs/py2binmod/internal/iface"
)

// writeProject materializes a txtar archive into a temp directory and
// returns its path.
func writeProject(t *testing.T, archive string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range txtar.Parse([]byte(archive)).Files {
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const projectBoilerplate = `
-- pyproject.toml --
[project]
name = "calc-plugin"
version = "1.2.3"
description = "arithmetic for hosts"

-- venv/lib/python3.12/site-packages/binmod_mdk/__init__.py --
-- src/plugin/__init__.py --
`

func TestScanHappyPath(t *testing.T) {
	dir := writeProject(t, projectBoilerplate+`
-- src/plugin/calc.py --
from binmod_mdk import mod_fn

@mod_fn
def add(a: int, b: int) -> int:
    """Add two integers."""
    return a + b

def helper(x):
    return x
`)
	proj, diag := New(LayoutHints{}).Scan(dir)
	if diag != nil {
		t.Fatalf("Scan: %v", diag)
	}

	if proj.ModuleName != "plugin" {
		t.Errorf("ModuleName = %q, want plugin", proj.ModuleName)
	}
	if proj.Metadata.Name != "calc-plugin" || proj.Metadata.Version != "1.2.3" {
		t.Errorf("metadata = %+v", proj.Metadata)
	}
	if !strings.HasSuffix(proj.SitePackages, filepath.FromSlash("lib/python3.12/site-packages")) {
		t.Errorf("SitePackages = %q", proj.SitePackages)
	}

	if proj.Model.Len() != 1 {
		t.Fatalf("exports = %v, want just add", proj.Model.Names())
	}
	sig, ok := proj.Model.Export("add")
	if !ok {
		t.Fatal("add not exported")
	}
	if sig.ImportPath != "plugin.calc" {
		t.Errorf("ImportPath = %q, want plugin.calc", sig.ImportPath)
	}
	if sig.Doc != "Add two integers." {
		t.Errorf("Doc = %q", sig.Doc)
	}
	if len(sig.Params) != 2 || !sig.Params[0].Type.Equal(iface.Int) || !sig.Params[1].Type.Equal(iface.Int) {
		t.Errorf("params = %+v", sig.Params)
	}
	if !sig.Return.Equal(iface.Int) {
		t.Errorf("return = %s", sig.Return)
	}
}

func TestScanExportInPackageInit(t *testing.T) {
	dir := writeProject(t, `
-- pyproject.toml --
[project]
name = "p"
version = "0.1.0"

-- venv/lib/python3.12/site-packages/.keep --
-- src/plugin/__init__.py --
from binmod_mdk import mod_fn

@mod_fn
def ping() -> str:
    return "pong"
`)
	proj, diag := New(LayoutHints{}).Scan(dir)
	if diag != nil {
		t.Fatalf("Scan: %v", diag)
	}
	sig, ok := proj.Model.Export("ping")
	if !ok {
		t.Fatal("ping not exported")
	}
	if sig.ImportPath != "plugin" {
		t.Errorf("ImportPath = %q, want plugin", sig.ImportPath)
	}
}

func TestScanDuplicateExport(t *testing.T) {
	dir := writeProject(t, projectBoilerplate+`
-- src/plugin/a.py --
from binmod_mdk import mod_fn

@mod_fn
def add(a: int, b: int) -> int: ...
-- src/plugin/b.py --
from binmod_mdk import mod_fn

@mod_fn
def add(a: int, b: int) -> int: ...
`)
	_, diag := New(LayoutHints{}).Scan(dir)
	if diag == nil || diag.Code != diagnostics.ErrSDuplicate {
		t.Fatalf("diag = %v, want %s", diag, diagnostics.ErrSDuplicate)
	}
	if !strings.Contains(diag.Message, "a.py") {
		t.Errorf("diagnostic should name the prior file: %v", diag)
	}
}

func TestScanDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   diagnostics.Code
		symbol string
	}{
		{
			name: "unmappable parameter type",
			source: `
@mod_fn
def f(x: object) -> int: ...
`,
			code:   diagnostics.ErrSType,
			symbol: "f",
		},
		{
			name: "unmappable return type",
			source: `
@mod_fn
def f(x: int) -> MyThing: ...
`,
			code:   diagnostics.ErrSType,
			symbol: "f",
		},
		{
			name: "missing parameter annotation",
			source: `
@mod_fn
def f(x) -> int: ...
`,
			code:   diagnostics.ErrSAnnot,
			symbol: "f",
		},
		{
			name: "missing return annotation",
			source: `
@mod_fn
def f(x: int): ...
`,
			code:   diagnostics.ErrSAnnot,
			symbol: "f",
		},
		{
			name: "variadic parameters",
			source: `
@mod_fn
def f(*args: int) -> int: ...
`,
			code:   diagnostics.ErrSType,
			symbol: "f",
		},
		{
			name: "None parameter",
			source: `
@mod_fn
def f(x: None) -> int: ...
`,
			code:   diagnostics.ErrSType,
			symbol: "f",
		},
		{
			name: "syntax error",
			source: `
@mod_fn
def f(x: int -> int: ...
`,
			code: diagnostics.ErrSParse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeProject(t, projectBoilerplate+"\n-- src/plugin/mod.py --\nfrom binmod_mdk import mod_fn\n"+tt.source)
			_, diag := New(LayoutHints{}).Scan(dir)
			if diag == nil {
				t.Fatal("expected a diagnostic")
			}
			if diag.Code != tt.code {
				t.Errorf("code = %s, want %s (%v)", diag.Code, tt.code, diag)
			}
			if tt.symbol != "" && diag.Symbol != tt.symbol {
				t.Errorf("symbol = %q, want %q", diag.Symbol, tt.symbol)
			}
		})
	}
}

func TestScanLayoutErrors(t *testing.T) {
	t.Run("not a directory", func(t *testing.T) {
		_, diag := New(LayoutHints{}).Scan(filepath.Join(t.TempDir(), "nope"))
		if diag == nil || diag.Code != diagnostics.ErrSLayout {
			t.Fatalf("diag = %v, want %s", diag, diagnostics.ErrSLayout)
		}
	})
	t.Run("missing pyproject", func(t *testing.T) {
		_, diag := New(LayoutHints{}).Scan(t.TempDir())
		if diag == nil || diag.Code != diagnostics.ErrSLayout {
			t.Fatalf("diag = %v, want %s", diag, diagnostics.ErrSLayout)
		}
	})
	t.Run("missing virtualenv", func(t *testing.T) {
		dir := writeProject(t, `
-- pyproject.toml --
[project]
name = "p"
version = "0.1.0"

-- src/plugin/__init__.py --
`)
		_, diag := New(LayoutHints{}).Scan(dir)
		if diag == nil || diag.Code != diagnostics.ErrSLayout {
			t.Fatalf("diag = %v, want %s", diag, diagnostics.ErrSLayout)
		}
	})
	t.Run("ambiguous module", func(t *testing.T) {
		dir := writeProject(t, `
-- pyproject.toml --
[project]
name = "p"
version = "0.1.0"

-- venv/lib/python3.12/site-packages/.keep --
-- src/one/__init__.py --
-- src/two/__init__.py --
`)
		_, diag := New(LayoutHints{}).Scan(dir)
		if diag == nil || diag.Code != diagnostics.ErrSLayout {
			t.Fatalf("diag = %v, want %s", diag, diagnostics.ErrSLayout)
		}
	})
}

func TestScanHostFunctions(t *testing.T) {
	dir := writeProject(t, projectBoilerplate+`
-- src/plugin/hosts.py --
from binmod_mdk import host_fns, host_fn

@host_fns(namespace="kv")
class Host:
    @host_fn
    def get(self, key: str) -> bytes | None: ...

    @host_fn
    def put(self, key: str, value: bytes) -> None: ...

    def not_imported(self, x): ...
`)
	proj, diag := New(LayoutHints{}).Scan(dir)
	if diag != nil {
		t.Fatalf("Scan: %v", diag)
	}
	if proj.Model.HostNamespace != "kv" {
		t.Errorf("HostNamespace = %q, want kv", proj.Model.HostNamespace)
	}
	if len(proj.Model.HostFuncs) != 2 {
		t.Fatalf("HostFuncs = %+v, want get and put", proj.Model.HostFuncs)
	}
	get := proj.Model.HostFuncs[0]
	if get.Name != "get" {
		t.Fatalf("first host func = %q", get.Name)
	}
	// self never crosses the ABI
	if len(get.Params) != 1 || get.Params[0].Name != "key" {
		t.Errorf("get params = %+v", get.Params)
	}
	if !get.Return.Equal(iface.OptionalOf(iface.Bytes)) {
		t.Errorf("get return = %s", get.Return)
	}
}

func TestScanSecondHostClassRejected(t *testing.T) {
	dir := writeProject(t, projectBoilerplate+`
-- src/plugin/hosts.py --
from binmod_mdk import host_fns, host_fn

@host_fns(namespace="kv")
class A:
    @host_fn
    def get(self, key: str) -> str: ...

@host_fns(namespace="log")
class B:
    @host_fn
    def emit(self, line: str) -> None: ...
`)
	_, diag := New(LayoutHints{}).Scan(dir)
	if diag == nil || diag.Code != diagnostics.ErrSDuplicate {
		t.Fatalf("diag = %v, want %s", diag, diagnostics.ErrSDuplicate)
	}
	if !strings.Contains(diag.Message, "A") {
		t.Errorf("diagnostic should name the prior class: %v", diag)
	}
}

func TestScanHostFnsWithoutNamespace(t *testing.T) {
	dir := writeProject(t, projectBoilerplate+`
-- src/plugin/hosts.py --
from binmod_mdk import host_fns, host_fn

@host_fns
class Host:
    @host_fn
    def get(self, key: str) -> str: ...
`)
	_, diag := New(LayoutHints{}).Scan(dir)
	if diag == nil || diag.Code != diagnostics.ErrSParse {
		t.Fatalf("diag = %v, want %s", diag, diagnostics.ErrSParse)
	}
}

func TestScanSingleFileModule(t *testing.T) {
	dir := writeProject(t, `
-- pyproject.toml --
[project]
name = "mini"
version = "0.1.0"

[tool.py2binmod]
module = "mini"

-- venv/lib/python3.12/site-packages/.keep --
-- mini.py --
from binmod_mdk import mod_fn

@mod_fn
def greet(name: str) -> str:
    return "hi " + name
`)
	proj, diag := New(LayoutHints{}).Scan(dir)
	if diag != nil {
		t.Fatalf("Scan: %v", diag)
	}
	if proj.ModuleName != "mini" {
		t.Errorf("ModuleName = %q, want mini", proj.ModuleName)
	}
	sig, ok := proj.Model.Export("greet")
	if !ok {
		t.Fatal("greet not exported")
	}
	if sig.ImportPath != "mini" {
		t.Errorf("ImportPath = %q, want mini", sig.ImportPath)
	}
}

func TestScanHintsOverrideToolTable(t *testing.T) {
	dir := writeProject(t, `
-- pyproject.toml --
[project]
name = "p"
version = "0.1.0"

[tool.py2binmod]
venv = "does-not-exist"

-- custom-venv/lib/python3.11/site-packages/.keep --
-- src/plugin/__init__.py --
`)
	proj, diag := New(LayoutHints{Venv: "custom-venv"}).Scan(dir)
	if diag != nil {
		t.Fatalf("Scan: %v", diag)
	}
	if !strings.Contains(proj.VenvDir, "custom-venv") {
		t.Errorf("VenvDir = %q, want the CLI override", proj.VenvDir)
	}
}
