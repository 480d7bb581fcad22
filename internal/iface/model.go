package iface

import (
	"fmt"
	"sort"
)

// Param is a typed, named parameter. Order is call order and must be
// preserved end to end — the host ABI is positional.
type Param struct {
	Name string
	Type ScriptType
}

// ExportSignature is the typed contract of one exported function.
type ExportSignature struct {
	Name       string
	Doc        string
	Params     []Param
	Return     ScriptType
	ImportPath string // Python module path the call is dispatched to
	File       string // source file, for diagnostics
}

// HostFunc is a host-provided function the plugin imports.
type HostFunc struct {
	Name   string
	Params []Param
	Return ScriptType
}

// Model is the immutable interface model of a project: every export keyed
// by name, plus the host function declarations. Built once per invocation
// and consumed by the code generator; exports are order-independent, so
// Names() provides the canonical (sorted) iteration order.
type Model struct {
	exports map[string]ExportSignature

	// HostNamespace is the import namespace for host functions.
	HostNamespace string
	HostFuncs     []HostFunc
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{exports: make(map[string]ExportSignature)}
}

// AddExport validates and inserts a signature. A second export with the
// same name is rejected — the ABI has a single flat symbol namespace.
func (m *Model) AddExport(sig ExportSignature) error {
	if prev, ok := m.exports[sig.Name]; ok {
		return fmt.Errorf("duplicate export %q (already declared in %s)", sig.Name, prev.File)
	}
	for _, p := range sig.Params {
		if err := p.Type.Validate(false); err != nil {
			return fmt.Errorf("export %q, parameter %q: %w", sig.Name, p.Name, err)
		}
	}
	if err := sig.Return.Validate(true); err != nil {
		return fmt.Errorf("export %q return type: %w", sig.Name, err)
	}
	m.exports[sig.Name] = sig
	return nil
}

// Export returns the signature for the given name.
func (m *Model) Export(name string) (ExportSignature, bool) {
	sig, ok := m.exports[name]
	return sig, ok
}

// Names returns export names in sorted order. Code generation iterates in
// this order so identical models always render identical source.
func (m *Model) Names() []string {
	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of exports.
func (m *Model) Len() int { return len(m.exports) }
