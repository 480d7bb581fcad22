package iface

import (
	"strings"
	"testing"
)

func sig(name, file string) ExportSignature {
	return ExportSignature{
		Name:       name,
		Params:     []Param{{Name: "x", Type: Int}},
		Return:     Int,
		ImportPath: "plugin",
		File:       file,
	}
}

func TestModelAddExport(t *testing.T) {
	m := NewModel()
	if err := m.AddExport(sig("add", "plugin/math.py")); err != nil {
		t.Fatalf("AddExport: %v", err)
	}
	got, ok := m.Export("add")
	if !ok {
		t.Fatal("export not found after insert")
	}
	if got.ImportPath != "plugin" || got.File != "plugin/math.py" {
		t.Errorf("stored signature mangled: %+v", got)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestModelDuplicateExportNamesPriorFile(t *testing.T) {
	m := NewModel()
	if err := m.AddExport(sig("add", "plugin/a.py")); err != nil {
		t.Fatal(err)
	}
	err := m.AddExport(sig("add", "plugin/b.py"))
	if err == nil {
		t.Fatal("duplicate export must be rejected")
	}
	if !strings.Contains(err.Error(), "plugin/a.py") {
		t.Errorf("error should name the prior file: %v", err)
	}
}

func TestModelRejectsInvalidTypes(t *testing.T) {
	m := NewModel()

	s := sig("f", "f.py")
	s.Params[0].Type = Unit
	if err := m.AddExport(s); err == nil {
		t.Error("None parameter must be rejected")
	}

	s = sig("g", "g.py")
	s.Return = ListOf(Unit)
	if err := m.AddExport(s); err == nil {
		t.Error("list[None] return must be rejected")
	}

	s = sig("h", "h.py")
	s.Return = Unit
	if err := m.AddExport(s); err != nil {
		t.Errorf("None return is valid: %v", err)
	}
}

func TestModelNamesSorted(t *testing.T) {
	m := NewModel()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := m.AddExport(sig(name, name+".py")); err != nil {
			t.Fatal(err)
		}
	}
	got := m.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names = %v, want %v", got, want)
		}
	}
}
