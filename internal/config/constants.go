package config

// Version is the tool version reported by --version.
const Version = "0.2.0"

const SourceFileExt = ".py"

// ModFnDecorator marks a Python function exported across the plugin ABI.
const ModFnDecorator = "mod_fn"

// HostFnsDecorator marks a class declaring imported host functions.
const HostFnsDecorator = "host_fns"

// HostFnDecorator marks a method inside a host_fns class.
const HostFnDecorator = "host_fn"

// MDKModule is the Python-side development kit package name. Decorators may
// appear bare or qualified with this module (binmod_mdk.mod_fn).
const MDKModule = "binmod_mdk"

// TargetTriple is the sandboxed binary target the toolchain builds for.
const TargetTriple = "wasm32-wasip1"

// ArtifactExt is the file extension of the final plugin binary.
const ArtifactExt = ".wasm"

// DefaultHostNamespace is used when no host_fns class declares one.
const DefaultHostNamespace = "env"

// WorkDirName is the per-project state directory (cache, build ledger).
const WorkDirName = ".py2binmod"

// IgnoredDirs are directory names skipped during project traversal.
var IgnoredDirs = []string{
	"venv", ".venv", "env", ".env",
	"__pycache__", ".git", ".hg", ".svn",
	"node_modules", "dist", "build",
	".mypy_cache", ".ruff_cache", ".pytest_cache", ".tox",
}

// VenvCandidates are directory names probed when no virtualenv is configured.
var VenvCandidates = []string{"venv", ".venv", "env", ".env"}
