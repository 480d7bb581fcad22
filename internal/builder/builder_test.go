package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/binmodlabs/py2binmod/internal/diagnostics"
	"github.com/binmodlabs/py2binmod/internal/iface"
	"github.com/binmodlabs/py2binmod/internal/project"
)

// fakeToolchain stands in for cargo: it drops a fixed payload where a
// real build would leave the compiled binary.
type fakeToolchain struct {
	checkErr error
	buildErr error
	payload  []byte
	silent   bool // produce no artifact at all
	builds   int
}

func (f *fakeToolchain) Check(ctx context.Context) error { return f.checkErr }

func (f *fakeToolchain) Build(ctx context.Context, dir string, release bool, targetDir string, sink OutputSink) error {
	f.builds++
	if f.buildErr != nil {
		return f.buildErr
	}
	// the unit must be materialized before the toolchain runs
	if _, err := os.Stat(filepath.Join(dir, "Cargo.toml")); err != nil {
		return err
	}
	if f.silent {
		return nil
	}
	profile := "debug"
	if release {
		profile = "release"
	}
	out := filepath.Join(targetDir, "wasm32-wasip1", profile, "calc_plugin.wasm")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return os.WriteFile(out, f.payload, 0o644)
}

func testProject(t *testing.T) *project.Project {
	t.Helper()
	return &project.Project{
		Dir:      t.TempDir(),
		Metadata: project.Metadata{Name: "calc-plugin", Version: "1.0.0"},
		Model:    iface.NewModel(),
	}
}

func testUnit(content string) *project.Unit {
	return &project.Unit{Files: []project.RenderedFile{
		{Path: "Cargo.toml", Content: []byte("[package]\n")},
		{Path: "src/lib.rs", Content: []byte(content)},
	}}
}

func diagCode(t *testing.T, err error) diagnostics.Code {
	t.Helper()
	var diag *diagnostics.Diagnostic
	if !errors.As(err, &diag) {
		t.Fatalf("want a diagnostic, got %T: %v", err, err)
	}
	return diag.Code
}

func TestBuildInstallsAtDeterministicPath(t *testing.T) {
	proj := testProject(t)
	fake := &fakeToolchain{payload: []byte("\x00asm")}
	outDir := filepath.Join(proj.Dir, "artifacts")
	profile := project.Profile{OutDir: outDir}

	artifact, err := New(WithToolchain(fake)).Build(context.Background(), proj, testUnit("v1"), profile)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := filepath.Join(outDir, "wasm32-wasip1", "debug", "calc_plugin.wasm")
	if artifact.Path != want {
		t.Errorf("Path = %q, want %q", artifact.Path, want)
	}
	if artifact.Cached {
		t.Error("fresh build reported as cached")
	}
	if artifact.BuildID == "" {
		t.Error("missing build ID")
	}
	data, err := os.ReadFile(artifact.Path)
	if err != nil || string(data) != "\x00asm" {
		t.Errorf("installed artifact = %q, %v", data, err)
	}

	// nothing but the binary in the output directory
	entries, err := os.ReadDir(filepath.Dir(artifact.Path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("staging file left behind: %s", e.Name())
		}
	}
}

func TestBuildReusesCache(t *testing.T) {
	proj := testProject(t)
	fake := &fakeToolchain{payload: []byte("cached-bytes")}
	profile := project.Profile{OutDir: filepath.Join(proj.Dir, "artifacts")}
	b := New(WithToolchain(fake))

	first, err := b.Build(context.Background(), proj, testUnit("v1"), profile)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if err := os.Remove(first.Path); err != nil {
		t.Fatal(err)
	}

	second, err := b.Build(context.Background(), proj, testUnit("v1"), profile)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !second.Cached {
		t.Error("identical unit not served from cache")
	}
	if fake.builds != 1 {
		t.Errorf("toolchain ran %d times, want 1", fake.builds)
	}
	data, err := os.ReadFile(second.Path)
	if err != nil || string(data) != "cached-bytes" {
		t.Errorf("reinstalled artifact = %q, %v", data, err)
	}
	if second.BuildID == first.BuildID {
		t.Error("cache hits must still get their own build ID")
	}
}

func TestBuildCacheKeyedByUnitAndProfile(t *testing.T) {
	proj := testProject(t)
	fake := &fakeToolchain{payload: []byte("x")}
	outDir := filepath.Join(proj.Dir, "artifacts")
	b := New(WithToolchain(fake))

	if _, err := b.Build(context.Background(), proj, testUnit("v1"), project.Profile{OutDir: outDir}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(context.Background(), proj, testUnit("v2"), project.Profile{OutDir: outDir}); err != nil {
		t.Fatal(err)
	}
	rel, err := b.Build(context.Background(), proj, testUnit("v1"), project.Profile{Release: true, OutDir: outDir})
	if err != nil {
		t.Fatal(err)
	}
	if fake.builds != 3 {
		t.Errorf("toolchain ran %d times, want 3 (changed unit and profile both miss)", fake.builds)
	}
	if !strings.Contains(rel.Path, filepath.Join("wasm32-wasip1", "release")) {
		t.Errorf("release artifact at %q", rel.Path)
	}
}

func TestBuildFailureLeavesOutputUntouched(t *testing.T) {
	proj := testProject(t)
	fake := &fakeToolchain{
		buildErr: diagnostics.NewError(diagnostics.ErrBCompile, "error[E0308]: mismatched types"),
	}
	outDir := filepath.Join(proj.Dir, "artifacts")

	_, err := New(WithToolchain(fake)).Build(context.Background(), proj, testUnit("v1"), project.Profile{OutDir: outDir})
	if err == nil {
		t.Fatal("expected a compile failure")
	}
	if diagCode(t, err) != diagnostics.ErrBCompile {
		t.Errorf("code = %v", err)
	}
	if _, statErr := os.Stat(outDir); !os.IsNotExist(statErr) {
		t.Error("failed build touched the output directory")
	}
}

func TestBuildToolchainMissing(t *testing.T) {
	proj := testProject(t)
	fake := &fakeToolchain{
		checkErr: diagnostics.NewError(diagnostics.ErrBToolchain, "cargo not found in PATH"),
	}
	_, err := New(WithToolchain(fake)).Build(context.Background(), proj, testUnit("v1"),
		project.Profile{OutDir: filepath.Join(proj.Dir, "artifacts")})
	if err == nil || diagCode(t, err) != diagnostics.ErrBToolchain {
		t.Errorf("err = %v, want %s", err, diagnostics.ErrBToolchain)
	}
}

func TestBuildNoArtifactProduced(t *testing.T) {
	proj := testProject(t)
	fake := &fakeToolchain{silent: true}
	_, err := New(WithToolchain(fake)).Build(context.Background(), proj, testUnit("v1"),
		project.Profile{OutDir: filepath.Join(proj.Dir, "artifacts")})
	if err == nil || diagCode(t, err) != diagnostics.ErrBCompile {
		t.Errorf("err = %v, want %s", err, diagnostics.ErrBCompile)
	}
}

func TestBuildRecordsLedger(t *testing.T) {
	proj := testProject(t)
	ledger, err := OpenLedger(proj.Dir)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer ledger.Close()

	fake := &fakeToolchain{payload: []byte("x")}
	b := New(WithToolchain(fake), WithLedger(ledger))
	profile := project.Profile{OutDir: filepath.Join(proj.Dir, "artifacts")}

	if _, err := b.Build(context.Background(), proj, testUnit("v1"), profile); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(context.Background(), proj, testUnit("v1"), profile); err != nil {
		t.Fatal(err)
	}

	recs, err := ledger.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if !recs[0].Cached && !recs[1].Cached {
		t.Error("cache hit not recorded")
	}
	for _, rec := range recs {
		if rec.Project != "calc-plugin" || rec.Profile != "debug" || rec.CacheKey == "" {
			t.Errorf("record = %+v", rec)
		}
	}
}
