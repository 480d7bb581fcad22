package codegen

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/binmodlabs/py2binmod/internal/iface"
	"github.com/binmodlabs/py2binmod/internal/project"
)

// renderLibRS emits the crate's src/lib.rs: the serde value bridge, the
// frozen interpreter global, the host function imports and the export
// shims. Exports render in sorted name order so the output is stable.
func renderLibRS(proj *project.Project) string {
	var b strings.Builder

	b.WriteString(libRSHeader)
	b.WriteString("\n")
	b.WriteString(libRSBridge)
	b.WriteString("\n")
	writeInterpreterGlobal(&b, proj)
	b.WriteString("\n")
	writeHostModule(&b, proj.Model)
	writeInitialize(&b, proj.Model)

	for _, name := range proj.Model.Names() {
		sig, _ := proj.Model.Export(name)
		b.WriteString("\n")
		writeExportShim(&b, sig)
	}

	return b.String()
}

// writeInterpreterGlobal emits the single shared interpreter. It is
// constructed lazily on first use and lives for the plugin instance, so
// Python module state persists across exported calls.
func writeInterpreterGlobal(b *strings.Builder, proj *project.Project) {
	moduleDir := proj.ModuleRoot
	if filepath.Base(proj.ModuleRoot) == proj.ModuleName {
		moduleDir = filepath.Dir(proj.ModuleRoot)
	}

	b.WriteString("thread_local! {\n")
	b.WriteString("    static INTERPRETER: Interpreter = Interpreter::with_init(Default::default(), |vm| {\n")
	b.WriteString("        vm.add_native_modules(get_module_inits());\n")
	b.WriteString("        vm.add_native_module(\"hostfns\", Box::new(hostfns::make_module));\n")
	b.WriteString("        vm.add_frozen(FROZEN_STDLIB);\n")
	fmt.Fprintf(b, "        vm.add_frozen(py_freeze!(dir = %s));\n", rustStr(moduleDir))
	fmt.Fprintf(b, "        vm.add_frozen(py_freeze!(dir = %s));\n", rustStr(proj.SitePackages))
	b.WriteString("    });\n")
	b.WriteString("}\n")
}

// writeHostModule emits the extern declarations for the host's imports
// and the pymodule that re-exposes them to Python. The module is emitted
// even with no host functions so the interpreter init and initialize()
// never have to special-case its absence.
func writeHostModule(b *strings.Builder, model *iface.Model) {
	fmt.Fprintf(b, "#[host_fns(namespace = %s)]\n", rustStr(model.HostNamespace))
	b.WriteString("unsafe extern \"host\" {\n")
	for _, f := range model.HostFuncs {
		fmt.Fprintf(b, "    fn %s(%s) -> %s;\n", rustIdent(f.Name), paramList(f.Params), f.Return.RustType())
	}
	b.WriteString("}\n\n")

	b.WriteString("#[pymodule]\n")
	b.WriteString("mod hostfns {\n")
	b.WriteString("    use super::*;\n")
	for _, f := range model.HostFuncs {
		b.WriteString("\n")
		fmt.Fprintf(b, "    #[pyfunction(name = %s)]\n", rustStr(f.Name))
		if len(f.Params) == 0 {
			fmt.Fprintf(b, "    fn %s_wrapper(vm: &VirtualMachine) -> PyResult<%s> {\n", rustIdent(f.Name), f.Return.RustType())
			fmt.Fprintf(b, "        unsafe { %s() }.map_err(|err| to_py_exc(vm, err))\n", rustIdent(f.Name))
		} else {
			fmt.Fprintf(b, "    fn %s_wrapper(%s, vm: &VirtualMachine) -> PyResult<%s> {\n",
				rustIdent(f.Name), paramList(f.Params), f.Return.RustType())
			fmt.Fprintf(b, "        unsafe { %s(%s) }.map_err(|err| to_py_exc(vm, err))\n",
				rustIdent(f.Name), argNames(f.Params))
		}
		b.WriteString("    }\n")
	}
	b.WriteString("}\n")
}

// writeInitialize emits the exported initialize(): it registers the host
// function module with the plugin-side MDK before any user code runs.
func writeInitialize(b *strings.Builder, model *iface.Model) {
	b.WriteString("\n")
	b.WriteString("#[mod_fn(name = \"initialize\")]\n")
	b.WriteString("pub fn initialize_impl() -> FnResult<()> {\n")
	b.WriteString("    INTERPRETER.with(|interpreter| {\n")
	b.WriteString("        interpreter.enter(|vm| {\n")
	b.WriteString("            vm.import(\"binmod_mdk\", 0)\n")
	b.WriteString("                .and_then(|py_mdk| py_mdk.get_attr(\"_register_host_fns\", vm))\n")
	b.WriteString("                .and_then(|register_fn| {\n")
	b.WriteString("                    vm.import(\"hostfns\", 0).map(|py_hostfns| (register_fn, py_hostfns))\n")
	b.WriteString("                })\n")
	b.WriteString("                .and_then(|(register_fn, py_hostfns)| {\n")
	fmt.Fprintf(b, "                    register_fn.call((%s.to_pyobject(vm), py_hostfns.as_object()), vm)\n", rustStr(model.HostNamespace))
	b.WriteString("                })\n")
	b.WriteString("                .map_err(|exc| from_py_exc(vm, exc))\n")
	b.WriteString("        })\n")
	b.WriteString("    })?;\n\n")
	b.WriteString("    Ok(())\n")
	b.WriteString("}\n")
}

// writeExportShim emits one exported function: marshal the arguments into
// the interpreter, dispatch to the plugin function by import path, and
// marshal the result back. Unit returns skip the result bridge entirely.
func writeExportShim(b *strings.Builder, sig iface.ExportSignature) {
	if sig.Doc != "" {
		fmt.Fprintf(b, "#[doc = %s]\n", rustStr(sig.Doc))
	}
	fmt.Fprintf(b, "#[mod_fn(name = %s)]\n", rustStr(sig.Name))
	fmt.Fprintf(b, "pub fn %s_shim(%s) -> FnResult<%s> {\n",
		rustIdent(sig.Name), paramList(sig.Params), sig.Return.RustType())
	b.WriteString("    INTERPRETER.with(|interpreter| {\n")
	b.WriteString("        interpreter.enter(|vm| {\n")

	call := func(indent string) {
		fmt.Fprintf(b, "%svm.import(%s, 0)\n", indent, rustStr(sig.ImportPath))
		fmt.Fprintf(b, "%s    .map_err(|exc| from_py_exc(vm, exc))?\n", indent)
		fmt.Fprintf(b, "%s    .get_attr(%s, vm)\n", indent, rustStr(sig.Name))
		fmt.Fprintf(b, "%s    .map_err(|exc| from_py_exc(vm, exc))?\n", indent)
		fmt.Fprintf(b, "%s    .call(%s, vm)\n", indent, callArgs(sig.Params))
		fmt.Fprintf(b, "%s    .map_err(|exc| from_py_exc(vm, exc))?", indent)
	}

	if sig.Return.Kind == iface.KindUnit {
		call("            ")
		b.WriteString(";\n\n")
		b.WriteString("            Ok(())\n")
	} else {
		fmt.Fprintf(b, "            py_to_rs::<%s>(\n", sig.Return.RustType())
		b.WriteString("                vm,\n")
		call("                ")
		b.WriteString(",\n")
		b.WriteString("            )\n")
	}

	b.WriteString("        })\n")
	b.WriteString("    })\n")
	b.WriteString("}\n")
}

// paramList renders "name: Type, ..." for a signature.
func paramList(params []iface.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = rustIdent(p.Name) + ": " + p.Type.RustType()
	}
	return strings.Join(parts, ", ")
}

func argNames(params []iface.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = rustIdent(p.Name)
	}
	return strings.Join(parts, ", ")
}

// callArgs renders the argument tuple for the interpreter call. A single
// argument keeps the trailing comma so the expression stays a tuple.
func callArgs(params []iface.Param) string {
	switch len(params) {
	case 0:
		return "()"
	case 1:
		return fmt.Sprintf("(rs_to_py(vm, %s)?,)", rustIdent(params[0].Name))
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("rs_to_py(vm, %s)?", rustIdent(p.Name))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// rustKeywords are the identifiers that need a raw prefix when a Python
// parameter name collides with them.
var rustKeywords = map[string]bool{
	"as": true, "box": true, "break": true, "const": true, "continue": true,
	"crate": true, "dyn": true, "else": true, "enum": true, "extern": true,
	"fn": true, "for": true, "if": true, "impl": true, "in": true,
	"let": true, "loop": true, "match": true, "mod": true, "move": true,
	"mut": true, "pub": true, "ref": true, "return": true, "static": true,
	"struct": true, "trait": true, "type": true, "unsafe": true, "use": true,
	"where": true, "while": true, "async": true, "await": true, "yield": true,
	"self": true, "super": true, "vm": true,
}

func rustIdent(name string) string {
	if rustKeywords[name] {
		if name == "self" || name == "super" || name == "vm" {
			// raw identifiers cannot spell self/super; vm shadows the
			// interpreter handle in every shim body
			return name + "_"
		}
		return "r#" + name
	}
	return name
}

// rustStr renders a Rust string literal.
func rustStr(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

const libRSHeader = `use serde_json::value::Serializer;
use serde::{Serialize, de::DeserializeOwned};
use rustpython_vm::{
    Interpreter,
    VirtualMachine,
    PyObjectRef,
    PyResult,
    AsObject,
    py_freeze,
    pymodule,
    builtins::PyBaseExceptionRef,
    convert::ToPyObject,
    py_serde::{serialize, deserialize},
};
use rustpython_stdlib::get_module_inits;
use rustpython_pylib::FROZEN_STDLIB;
use binmod_mdk::{host_fns, mod_fn, FnResult, ModuleFnErr};
`

const libRSBridge = `fn rs_to_py<T: Serialize>(vm: &VirtualMachine, value: T) -> FnResult<PyObjectRef> {
    let serialized = serde_json::to_value(&value).map_err(|exc| ModuleFnErr {
        error_type: "SerializationError".to_string(),
        message: format!("Failed to serialize: {}", exc),
    })?;
    let py_obj = deserialize(vm, serialized).map_err(|exc| ModuleFnErr {
        error_type: "DeserializationError".to_string(),
        message: format!("Failed to deserialize: {}", exc),
    })?;

    Ok(py_obj)
}

fn py_to_rs<T: DeserializeOwned>(vm: &VirtualMachine, obj: PyObjectRef) -> FnResult<T> {
    let serialized = serialize(vm, obj.as_object(), Serializer).map_err(|exc| ModuleFnErr {
        error_type: "SerializationError".to_string(),
        message: format!("Failed to serialize: {}", exc),
    })?;
    let deserialized = serde_json::from_value::<T>(serialized).map_err(|exc| ModuleFnErr {
        error_type: "DeserializationError".to_string(),
        message: format!("Failed to deserialize: {}", exc),
    })?;

    Ok(deserialized)
}

pub fn from_py_exc(vm: &VirtualMachine, exc: PyBaseExceptionRef) -> ModuleFnErr {
    let mut buffer = String::new();
    vm.write_exception(&mut buffer, &exc).unwrap();

    ModuleFnErr {
        error_type: exc.class().to_string(),
        message: buffer,
    }
}

pub fn to_py_exc(vm: &VirtualMachine, err: ModuleFnErr) -> PyBaseExceptionRef {
    vm.new_runtime_error(format!("Error in Python module: {}: {}", err.error_type, err.message))
}
`
