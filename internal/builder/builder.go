package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/binmodlabs/py2binmod/internal/codegen"
	"github.com/binmodlabs/py2binmod/internal/config"
	"github.com/binmodlabs/py2binmod/internal/diagnostics"
	"github.com/binmodlabs/py2binmod/internal/project"
)

// Builder orchestrates one compilation: cache lookup, toolchain check,
// scratch-dir build, atomic install, ledger entry.
type Builder struct {
	toolchain Toolchain
	sink      OutputSink
	ledger    *Ledger
}

// Option configures a Builder.
type Option func(*Builder)

// WithToolchain substitutes the toolchain implementation.
func WithToolchain(t Toolchain) Option {
	return func(b *Builder) { b.toolchain = t }
}

// WithSink streams toolchain output to the given sink.
func WithSink(s OutputSink) Option {
	return func(b *Builder) { b.sink = s }
}

// WithLedger records builds in the given ledger.
func WithLedger(l *Ledger) Option {
	return func(b *Builder) { b.ledger = l }
}

// New creates a builder. Defaults: the cargo toolchain, discarded output,
// no ledger.
func New(opts ...Option) *Builder {
	b := &Builder{
		toolchain: Cargo{},
		sink:      NullSink{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build compiles the rendered unit and installs the artifact at the
// profile's deterministic path. The output directory is never observed
// in a partial state: the binary lands via rename from a sibling temp
// file, and a cancelled or failed build leaves it untouched.
func (b *Builder) Build(ctx context.Context, proj *project.Project, unit *project.Unit, profile project.Profile) (*project.Artifact, error) {
	started := time.Now()
	buildID := uuid.NewString()
	crate := proj.CrateName()
	finalPath := profile.ArtifactPath(config.TargetTriple, crate, config.ArtifactExt)

	cache := NewCache(proj.Dir)
	key := cache.Key(unit, profile)

	if cached := cache.Lookup(key); cached != "" {
		if err := installArtifact(cached, finalPath); err != nil {
			return nil, err
		}
		artifact := &project.Artifact{
			Path:     finalPath,
			BuildID:  buildID,
			Cached:   true,
			Duration: time.Since(started),
		}
		b.record(buildID, proj, profile, key, artifact)
		return artifact, nil
	}

	if err := b.toolchain.Check(ctx); err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp("", "py2binmod-build-*")
	if err != nil {
		return nil, diagnostics.NewError(diagnostics.ErrBCompile, "creating scratch dir: %v", err)
	}
	defer os.RemoveAll(scratch)

	if err := codegen.WriteUnit(unit, scratch); err != nil {
		return nil, diagnostics.NewError(diagnostics.ErrBCompile, "materializing unit: %v", err)
	}

	targetDir := filepath.Join(scratch, "target")
	if err := b.toolchain.Build(ctx, scratch, profile.Release, targetDir, b.sink); err != nil {
		return nil, err
	}

	produced := filepath.Join(targetDir, config.TargetTriple, profile.Name(), crate+config.ArtifactExt)
	if _, err := os.Stat(produced); err != nil {
		return nil, diagnostics.NewError(diagnostics.ErrBCompile, "toolchain produced no artifact at %s", produced)
	}

	if err := installArtifact(produced, finalPath); err != nil {
		return nil, err
	}
	if err := cache.Store(key, finalPath); err != nil {
		// cache trouble never fails a build that already installed
		b.sink.Stderr(fmt.Sprintf("cache store failed: %v", err))
	}

	artifact := &project.Artifact{
		Path:     finalPath,
		BuildID:  buildID,
		Duration: time.Since(started),
	}
	b.record(buildID, proj, profile, key, artifact)
	return artifact, nil
}

func (b *Builder) record(buildID string, proj *project.Project, profile project.Profile, key string, artifact *project.Artifact) {
	if b.ledger == nil {
		return
	}
	err := b.ledger.Record(BuildRecord{
		ID:        buildID,
		Project:   proj.Metadata.Name,
		Profile:   profile.Name(),
		CacheKey:  key,
		Artifact:  artifact.Path,
		Cached:    artifact.Cached,
		Duration:  artifact.Duration,
		CreatedAt: time.Now(),
	})
	if err != nil {
		b.sink.Stderr(fmt.Sprintf("ledger write failed: %v", err))
	}
}

// installArtifact places src at dst atomically: copy into a temp file in
// dst's directory, then rename over the final name.
func installArtifact(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return diagnostics.NewError(diagnostics.ErrBInstall, "creating %s: %v", filepath.Dir(dst), err)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return diagnostics.NewError(diagnostics.ErrBInstall, "reading artifact: %v", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return diagnostics.NewError(diagnostics.ErrBInstall, "staging artifact: %v", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return diagnostics.NewError(diagnostics.ErrBInstall, "staging artifact: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return diagnostics.NewError(diagnostics.ErrBInstall, "staging artifact: %v", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return diagnostics.NewError(diagnostics.ErrBInstall, "installing artifact: %v", err)
	}
	return nil
}
