// Package pysrc statically parses Python source for the declarations the
// transpiler needs: decorated function and class definitions with their
// annotations and docstrings. It is a signature scanner, not a full Python
// parser — statement bodies are skipped, and no user code is ever executed.
package pysrc

import "strings"

// Module is the parsed declaration surface of one Python file.
type Module struct {
	Functions []*FuncDef
	Classes   []*ClassDef
}

// FuncDef is a module-level or class-level function definition.
type FuncDef struct {
	Name       string
	Docstring  string
	Decorators []Decorator
	Params     []Param
	Returns    TypeExpr // nil when no return annotation is present
	HasVarArgs bool     // *args or **kwargs appeared in the signature
	Line       int
}

// ClassDef is a class definition with its decorated methods.
type ClassDef struct {
	Name       string
	Decorators []Decorator
	Methods    []*FuncDef
	Line       int
}

// Param is a single formal parameter.
type Param struct {
	Name       string
	Annotation TypeExpr // nil when unannotated
}

// Decorator is one @-line attached to a definition. Name is the final
// dotted component, so @mod_fn, @mdk.mod_fn and @mod_fn() all match "mod_fn".
type Decorator struct {
	Name   string
	Full   string // complete dotted path
	IsCall bool   // decorator was invoked with arguments
	Args   []DecoratorArg
}

// DecoratorArg is a decorator call argument. Only string literals are
// captured; anything else is recorded with an empty Value.
type DecoratorArg struct {
	Keyword string // empty for positional arguments
	Value   string
	IsStr   bool
}

// StringArg returns the value of the named keyword argument, falling back
// to the positional argument at index pos. The second result reports
// whether a string value was found.
func (d Decorator) StringArg(keyword string, pos int) (string, bool) {
	for _, a := range d.Args {
		if a.Keyword == keyword && a.IsStr {
			return a.Value, true
		}
	}
	n := 0
	for _, a := range d.Args {
		if a.Keyword != "" {
			continue
		}
		if n == pos {
			if a.IsStr {
				return a.Value, true
			}
			return "", false
		}
		n++
	}
	return "", false
}

// HasDecorator reports whether the definition carries a decorator with the
// given final name component.
func (f *FuncDef) HasDecorator(name string) bool {
	return hasDecorator(f.Decorators, name)
}

func (c *ClassDef) HasDecorator(name string) bool {
	return hasDecorator(c.Decorators, name)
}

// FindDecorator returns the first decorator with the given name.
func (c *ClassDef) FindDecorator(name string) (Decorator, bool) {
	for _, d := range c.Decorators {
		if d.Name == name {
			return d, true
		}
	}
	return Decorator{}, false
}

func hasDecorator(decs []Decorator, name string) bool {
	for _, d := range decs {
		if d.Name == name {
			return true
		}
	}
	return false
}

// TypeExpr is a parsed type annotation.
type TypeExpr interface {
	String() string
	typeExpr()
}

// TypeName is a plain or dotted name: int, typing.Any, binmod_mdk.Handle.
type TypeName struct {
	Name string
}

// TypeSubscript is a subscripted generic: list[int], dict[str, float].
type TypeSubscript struct {
	Base string
	Args []TypeExpr
}

// TypeUnion is a PEP 604 union: T | None.
type TypeUnion struct {
	Left, Right TypeExpr
}

func (t *TypeName) typeExpr()      {}
func (t *TypeSubscript) typeExpr() {}
func (t *TypeUnion) typeExpr()     {}

func (t *TypeName) String() string { return t.Name }

func (t *TypeSubscript) String() string {
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Base + "[" + strings.Join(parts, ", ") + "]"
}

func (t *TypeUnion) String() string {
	return t.Left.String() + " | " + t.Right.String()
}
