package iface

import (
	"fmt"
	"strings"

	"github.com/binmodlabs/py2binmod/internal/pysrc"
)

// FromAnnotation maps a parsed Python annotation onto the closed ScriptType
// set. An annotation with no defined marshalling rule is an error — types
// are never coerced on a best-effort basis.
func FromAnnotation(expr pysrc.TypeExpr) (ScriptType, error) {
	switch e := expr.(type) {
	case *pysrc.TypeName:
		return fromName(e.Name)

	case *pysrc.TypeUnion:
		left, lerr := FromAnnotation(e.Left)
		right, rerr := FromAnnotation(e.Right)
		if lerr == nil && right.Kind == KindUnit {
			return OptionalOf(left), nil
		}
		if rerr == nil && left.Kind == KindUnit {
			return OptionalOf(right), nil
		}
		if lerr != nil {
			return ScriptType{}, lerr
		}
		if rerr != nil {
			return ScriptType{}, rerr
		}
		return ScriptType{}, fmt.Errorf("only optional unions are marshalable (T | None), got %s", expr)

	case *pysrc.TypeSubscript:
		return fromSubscript(e)
	}
	return ScriptType{}, fmt.Errorf("unsupported type annotation %s", expr)
}

func fromName(name string) (ScriptType, error) {
	switch normalizeName(name) {
	case "int":
		return Int, nil
	case "float":
		return Float, nil
	case "bool":
		return Bool, nil
	case "str":
		return Text, nil
	case "bytes", "bytearray":
		return Bytes, nil
	case "Handle":
		return Handle, nil
	case "None":
		return Unit, nil
	}
	return ScriptType{}, fmt.Errorf("type %q has no marshalling rule", name)
}

func fromSubscript(e *pysrc.TypeSubscript) (ScriptType, error) {
	base := normalizeName(e.Base)
	switch base {
	case "list", "List", "Sequence":
		if len(e.Args) != 1 {
			return ScriptType{}, fmt.Errorf("list requires one type argument, got %s", e)
		}
		elem, err := FromAnnotation(e.Args[0])
		if err != nil {
			return ScriptType{}, err
		}
		return ListOf(elem), nil

	case "dict", "Dict", "Mapping":
		if len(e.Args) != 2 {
			return ScriptType{}, fmt.Errorf("dict requires two type arguments, got %s", e)
		}
		key, err := FromAnnotation(e.Args[0])
		if err != nil {
			return ScriptType{}, err
		}
		value, err := FromAnnotation(e.Args[1])
		if err != nil {
			return ScriptType{}, err
		}
		return MapOf(key, value), nil

	case "tuple", "Tuple":
		if len(e.Args) == 0 {
			return ScriptType{}, fmt.Errorf("tuple requires type arguments, got %s", e)
		}
		elems := make([]ScriptType, 0, len(e.Args))
		for _, a := range e.Args {
			elem, err := FromAnnotation(a)
			if err != nil {
				return ScriptType{}, err
			}
			elems = append(elems, elem)
		}
		return TupleOf(elems...), nil

	case "Optional":
		if len(e.Args) != 1 {
			return ScriptType{}, fmt.Errorf("Optional requires one type argument, got %s", e)
		}
		elem, err := FromAnnotation(e.Args[0])
		if err != nil {
			return ScriptType{}, err
		}
		return OptionalOf(elem), nil
	}
	return ScriptType{}, fmt.Errorf("type %q has no marshalling rule", e.Base)
}

// normalizeName strips builtin/typing qualifiers and recognizes the MDK
// handle alias regardless of import style.
func normalizeName(name string) string {
	name = strings.TrimPrefix(name, "builtins.")
	name = strings.TrimPrefix(name, "typing.")
	name = strings.TrimPrefix(name, "collections.abc.")
	if name == "NoneType" {
		return "None"
	}
	// binmod_mdk.Handle, mdk.Handle, Handle
	if name == "Handle" || strings.HasSuffix(name, ".Handle") {
		return "Handle"
	}
	return name
}

// RustType renders the glue-side type an ABI value of this ScriptType
// marshals to. Scalars occupy fixed-width slots; buffers and composites
// travel through the serde bridge as owned values.
func (t ScriptType) RustType() string {
	switch t.Kind {
	case KindInt:
		return "i64"
	case KindFloat:
		return "f64"
	case KindBool:
		return "bool"
	case KindText:
		return "String"
	case KindBytes:
		return "Vec<u8>"
	case KindHandle:
		return "i64"
	case KindUnit:
		return "()"
	case KindList:
		return "Vec<" + t.Elems[0].RustType() + ">"
	case KindMap:
		return "std::collections::HashMap<" + t.Elems[0].RustType() + ", " + t.Elems[1].RustType() + ">"
	case KindOptional:
		return "Option<" + t.Elems[0].RustType() + ">"
	case KindTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.RustType()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return "()"
}

// ABISlot names the host-side wire representation for documentation and
// the generated manifest: fixed-width scalar slots or a (ptr, len) buffer.
func (t ScriptType) ABISlot() string {
	switch t.Kind {
	case KindInt, KindHandle:
		return "i64"
	case KindFloat:
		return "f64"
	case KindBool:
		return "i32"
	case KindUnit:
		return "void"
	default:
		// Text, Bytes and composites cross as a pointer/length pair into
		// linear memory. Inbound buffers are borrowed from the host for
		// the duration of the call; outbound buffers are allocated by the
		// glue and ownership transfers to the host.
		return "ptr+len"
	}
}
