package pysrc

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, source string) *Module {
	t.Helper()
	mod, err := Parse(source, "test.py")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return mod
}

func TestParseDecoratedFunction(t *testing.T) {
	mod := mustParse(t, `
from binmod_mdk import mod_fn


@mod_fn
def add(a: int, b: int) -> int:
    """Add two integers."""
    return a + b
`)

	if len(mod.Functions) != 1 {
		t.Fatalf("functions: got %d, want 1", len(mod.Functions))
	}
	fn := mod.Functions[0]
	if fn.Name != "add" {
		t.Errorf("name: got %q", fn.Name)
	}
	if !fn.HasDecorator("mod_fn") {
		t.Error("missing mod_fn decorator")
	}
	if fn.Docstring != "Add two integers." {
		t.Errorf("docstring: got %q", fn.Docstring)
	}
	if len(fn.Params) != 2 {
		t.Fatalf("params: got %d, want 2", len(fn.Params))
	}
	for i, want := range []string{"a", "b"} {
		if fn.Params[i].Name != want {
			t.Errorf("param %d: got %q, want %q", i, fn.Params[i].Name, want)
		}
		if got := fn.Params[i].Annotation.String(); got != "int" {
			t.Errorf("param %d annotation: got %q, want int", i, got)
		}
	}
	if fn.Returns == nil || fn.Returns.String() != "int" {
		t.Errorf("return annotation: got %v", fn.Returns)
	}
}

func TestParseQualifiedDecorator(t *testing.T) {
	mod := mustParse(t, `
import binmod_mdk


@binmod_mdk.mod_fn
def ping() -> str:
    return "pong"
`)
	fn := mod.Functions[0]
	if !fn.HasDecorator("mod_fn") {
		t.Error("qualified decorator not matched by final component")
	}
	if dec := fn.Decorators[0]; dec.Full != "binmod_mdk.mod_fn" {
		t.Errorf("full path: got %q", dec.Full)
	}
	if len(fn.Params) != 0 {
		t.Errorf("params: got %d, want 0", len(fn.Params))
	}
}

func TestParseDecoratorArguments(t *testing.T) {
	mod := mustParse(t, `
@host_fns(namespace="host", timeout=30)
class HostAPI:
    @host_fn
    def log(self, message: str) -> None:
        ...
`)

	if len(mod.Classes) != 1 {
		t.Fatalf("classes: got %d, want 1", len(mod.Classes))
	}
	cls := mod.Classes[0]
	dec, ok := cls.FindDecorator("host_fns")
	if !ok {
		t.Fatal("host_fns decorator not found")
	}
	ns, ok := dec.StringArg("namespace", 0)
	if !ok || ns != "host" {
		t.Errorf("namespace: got %q/%v", ns, ok)
	}
	if len(cls.Methods) != 1 || cls.Methods[0].Name != "log" {
		t.Fatalf("methods: got %v", cls.Methods)
	}
	m := cls.Methods[0]
	if !m.HasDecorator("host_fn") {
		t.Error("method missing host_fn decorator")
	}
	if m.Returns == nil || m.Returns.String() != "None" {
		t.Errorf("method return: got %v", m.Returns)
	}
}

func TestParsePositionalDecoratorArg(t *testing.T) {
	mod := mustParse(t, `
@host_fns("env")
class API:
    pass
`)
	dec, _ := mod.Classes[0].FindDecorator("host_fns")
	ns, ok := dec.StringArg("namespace", 0)
	if !ok || ns != "env" {
		t.Errorf("positional namespace: got %q/%v", ns, ok)
	}
}

func TestParseTypeExpressions(t *testing.T) {
	tests := []struct {
		annotation string
		want       string
	}{
		{"int", "int"},
		{"list[int]", "list[int]"},
		{"dict[str, float]", "dict[str, float]"},
		{"tuple[int, str, bool]", "tuple[int, str, bool]"},
		{"typing.Optional[str]", "typing.Optional[str]"},
		{"int | None", "int | None"},
		{"list[dict[str, int]]", "list[dict[str, int]]"},
		{"binmod_mdk.Handle", "binmod_mdk.Handle"},
	}
	for _, tt := range tests {
		t.Run(tt.annotation, func(t *testing.T) {
			source := "def f(x: " + tt.annotation + ") -> None: ...\n"
			mod := mustParse(t, source)
			if len(mod.Functions) != 1 || len(mod.Functions[0].Params) != 1 {
				t.Fatalf("unexpected parse result: %+v", mod)
			}
			got := mod.Functions[0].Params[0].Annotation.String()
			if got != tt.want {
				t.Errorf("annotation: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDefaultsAreSkipped(t *testing.T) {
	mod := mustParse(t, `
def greet(name: str = "world", times: int = 3) -> str:
    return name * times
`)
	fn := mod.Functions[0]
	if len(fn.Params) != 2 {
		t.Fatalf("params: got %d, want 2", len(fn.Params))
	}
	if fn.Params[0].Annotation.String() != "str" || fn.Params[1].Annotation.String() != "int" {
		t.Errorf("annotations lost around defaults: %v, %v", fn.Params[0].Annotation, fn.Params[1].Annotation)
	}
}

func TestParseVarArgs(t *testing.T) {
	mod := mustParse(t, `
def collect(*items: int) -> int:
    return sum(items)


def options(**kwargs: str) -> None:
    pass
`)
	for i, fn := range mod.Functions {
		if !fn.HasVarArgs {
			t.Errorf("function %d: HasVarArgs not set", i)
		}
	}
}

func TestParseAsyncDef(t *testing.T) {
	mod := mustParse(t, `
@mod_fn
async def fetch(url: str) -> bytes:
    ...
`)
	if len(mod.Functions) != 1 || mod.Functions[0].Name != "fetch" {
		t.Fatalf("async def not parsed: %+v", mod.Functions)
	}
}

func TestParseSkipsUnmarkedStatements(t *testing.T) {
	mod := mustParse(t, `
import os
from typing import Optional

CONSTANT = {"a": [1, 2, 3]}


def helper(x):
    if x > 0:
        for i in range(x):
            print(i)
    return x


class Plain:
    value = 1

    def method(self):
        return self.value
`)
	if len(mod.Functions) != 1 {
		t.Fatalf("functions: got %d, want 1 (helper)", len(mod.Functions))
	}
	if mod.Functions[0].Name != "helper" {
		t.Errorf("function name: got %q", mod.Functions[0].Name)
	}
	if len(mod.Classes) != 1 || mod.Classes[0].Name != "Plain" {
		t.Fatalf("classes: got %+v", mod.Classes)
	}
	if len(mod.Classes[0].Methods) != 1 || mod.Classes[0].Methods[0].Name != "method" {
		t.Errorf("methods: got %+v", mod.Classes[0].Methods)
	}
}

func TestParseClassWithBases(t *testing.T) {
	mod := mustParse(t, `
class Child(Base, metaclass=Meta):
    def m(self) -> int:
        return 1
`)
	if len(mod.Classes) != 1 || len(mod.Classes[0].Methods) != 1 {
		t.Fatalf("class with bases: got %+v", mod.Classes)
	}
}

func TestParseMultilineSignature(t *testing.T) {
	mod := mustParse(t, `
@mod_fn
def transform(
    data: list[float],
    factor: float,
) -> list[float]:
    return [d * factor for d in data]
`)
	fn := mod.Functions[0]
	if len(fn.Params) != 2 {
		t.Fatalf("params: got %d, want 2", len(fn.Params))
	}
	if fn.Returns.String() != "list[float]" {
		t.Errorf("return: got %q", fn.Returns.String())
	}
}

func TestParseErrorReportsFile(t *testing.T) {
	_, err := Parse("def (:\n", "broken.py")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "broken.py") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestParseNestedFunctionsNotExported(t *testing.T) {
	mod := mustParse(t, `
def outer() -> int:
    def inner() -> int:
        return 1
    return inner()
`)
	if len(mod.Functions) != 1 || mod.Functions[0].Name != "outer" {
		t.Errorf("nested def leaked into module surface: %+v", mod.Functions)
	}
}
