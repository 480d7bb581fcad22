// Package builder drives the external toolchain: it materializes the
// generated unit into a scratch directory, compiles it for the sandbox
// target, and installs the artifact at its deterministic path. The
// output directory is only ever touched by an atomic rename, so a failed
// or cancelled build leaves no partial artifact behind.
package builder

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/binmodlabs/py2binmod/internal/config"
	"github.com/binmodlabs/py2binmod/internal/diagnostics"
)

// OutputSink receives the toolchain's output line by line while the
// build runs.
type OutputSink interface {
	Stdout(line string)
	Stderr(line string)
}

// NullSink discards all toolchain output.
type NullSink struct{}

func (NullSink) Stdout(string) {}
func (NullSink) Stderr(string) {}

// Toolchain compiles a materialized unit. The production implementation
// shells out to cargo; tests substitute their own.
type Toolchain interface {
	// Check verifies the toolchain is installed and can produce the
	// sandbox target.
	Check(ctx context.Context) error

	// Build compiles the crate at dir into targetDir. Cancelling ctx
	// kills the toolchain process.
	Build(ctx context.Context, dir string, release bool, targetDir string, sink OutputSink) error
}

// Cargo is the rustc/cargo toolchain.
type Cargo struct{}

func (Cargo) Check(ctx context.Context) error {
	if _, err := exec.LookPath("cargo"); err != nil {
		return diagnostics.NewError(diagnostics.ErrBToolchain,
			"cargo not found in PATH; install Rust from https://www.rust-lang.org/tools/install")
	}

	out, err := exec.CommandContext(ctx, "rustup", "target", "list", "--installed").Output()
	if err != nil {
		return diagnostics.NewError(diagnostics.ErrBTarget, "querying installed targets: %v", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == config.TargetTriple {
			return nil
		}
	}
	return diagnostics.NewError(diagnostics.ErrBTarget,
		"target %s is not installed; run: rustup target add %s", config.TargetTriple, config.TargetTriple)
}

func (Cargo) Build(ctx context.Context, dir string, release bool, targetDir string, sink OutputSink) error {
	args := []string{"build", "--target", config.TargetTriple, "--target-dir", targetDir, "--message-format=short"}
	if release {
		args = append(args, "--release")
	}

	cmd := exec.CommandContext(ctx, "cargo", args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return diagnostics.NewError(diagnostics.ErrBCompile, "attaching to cargo stdout: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return diagnostics.NewError(diagnostics.ErrBCompile, "attaching to cargo stderr: %v", err)
	}

	if err := cmd.Start(); err != nil {
		return diagnostics.NewError(diagnostics.ErrBCompile, "starting cargo: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(&wg, stdout, sink.Stdout)
	go streamLines(&wg, stderr, sink.Stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return diagnostics.NewError(diagnostics.ErrBCompile, "build cancelled: %v", ctx.Err())
		}
		return diagnostics.NewError(diagnostics.ErrBCompile, "cargo failed: %v", err)
	}
	return nil
}

func streamLines(wg *sync.WaitGroup, r io.Reader, emit func(string)) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		emit(scanner.Text())
	}
}
