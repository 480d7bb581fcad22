// Package iface holds the interface model extracted from a Python project:
// the typed contract every export must satisfy, and the single marshalling
// table consulted by both the scanner (to reject unmappable annotations
// early) and the code generator (to emit bridge code). The two must never
// disagree, so the table lives here and nowhere else.
package iface

import (
	"fmt"
	"strings"
)

// Kind enumerates the closed set of marshalable type kinds.
type Kind int

const (
	KindInvalid Kind = iota

	// Scalar kinds, mapped to fixed-width ABI slots.
	KindInt   // Python int, i64 slot
	KindFloat // Python float, f64 slot
	KindBool  // Python bool, i32 slot

	// Buffer kinds, mapped to a (pointer, length) pair in linear memory.
	KindText  // Python str, UTF-8
	KindBytes // Python bytes / bytearray

	// KindHandle is an opaque integer identifier passed through untouched.
	// Generated code never dereferences or validates it.
	KindHandle

	// KindUnit is the absent value (None). Valid only in return position.
	KindUnit

	// Composite kinds, marshalled as JSON text over the buffer rule.
	KindList     // list[T]
	KindTuple    // tuple[T1, T2, ...]
	KindMap      // dict[K, V]; K must be a text or integer kind
	KindOptional // T | None, Optional[T]
)

// ScriptType is a type from the closed marshalable set. Composite kinds
// carry their element types in Elems: one for List and Optional, two for
// Map (key then value), and one per position for Tuple.
type ScriptType struct {
	Kind  Kind
	Elems []ScriptType
}

// Convenience constructors for the scalar kinds.
var (
	Int    = ScriptType{Kind: KindInt}
	Float  = ScriptType{Kind: KindFloat}
	Bool   = ScriptType{Kind: KindBool}
	Text   = ScriptType{Kind: KindText}
	Bytes  = ScriptType{Kind: KindBytes}
	Handle = ScriptType{Kind: KindHandle}
	Unit   = ScriptType{Kind: KindUnit}
)

func ListOf(elem ScriptType) ScriptType {
	return ScriptType{Kind: KindList, Elems: []ScriptType{elem}}
}

func MapOf(key, value ScriptType) ScriptType {
	return ScriptType{Kind: KindMap, Elems: []ScriptType{key, value}}
}

func OptionalOf(elem ScriptType) ScriptType {
	return ScriptType{Kind: KindOptional, Elems: []ScriptType{elem}}
}

func TupleOf(elems ...ScriptType) ScriptType {
	return ScriptType{Kind: KindTuple, Elems: elems}
}

// String renders the type in Python annotation syntax, used in diagnostics.
func (t ScriptType) String() string {
	switch t.Kind {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindText:
		return "str"
	case KindBytes:
		return "bytes"
	case KindHandle:
		return "Handle"
	case KindUnit:
		return "None"
	case KindList:
		return "list[" + t.Elems[0].String() + "]"
	case KindMap:
		return "dict[" + t.Elems[0].String() + ", " + t.Elems[1].String() + "]"
	case KindOptional:
		return t.Elems[0].String() + " | None"
	case KindTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.String()
		}
		return "tuple[" + strings.Join(parts, ", ") + "]"
	}
	return "<invalid>"
}

// Equal reports structural equality.
func (t ScriptType) Equal(o ScriptType) bool {
	if t.Kind != o.Kind || len(t.Elems) != len(o.Elems) {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

// Validate checks that the type (and every element type reachable from it)
// has a defined marshalling rule in the given position.
func (t ScriptType) Validate(ret bool) error {
	switch t.Kind {
	case KindInt, KindFloat, KindBool, KindText, KindBytes, KindHandle:
	case KindUnit:
		if !ret {
			return fmt.Errorf("None is only valid as a return type")
		}
		return nil
	case KindList, KindOptional:
		if len(t.Elems) != 1 {
			return fmt.Errorf("%s requires exactly one element type", t)
		}
	case KindMap:
		if len(t.Elems) != 2 {
			return fmt.Errorf("dict requires a key and a value type")
		}
		switch t.Elems[0].Kind {
		case KindText, KindInt:
		default:
			return fmt.Errorf("dict key must be str or int, got %s", t.Elems[0])
		}
	case KindTuple:
		if len(t.Elems) == 0 {
			return fmt.Errorf("tuple requires at least one element type")
		}
	default:
		return fmt.Errorf("no marshalling rule for this type")
	}
	for _, e := range t.Elems {
		if e.Kind == KindUnit {
			return fmt.Errorf("None is not a valid element type in %s", t)
		}
		if err := e.Validate(false); err != nil {
			return err
		}
	}
	return nil
}
