// Package cli is the py2binmod command line: argument parsing, pipeline
// assembly and exit codes live here, everything else in internal/.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/binmodlabs/py2binmod/internal/builder"
	"github.com/binmodlabs/py2binmod/internal/codegen"
	"github.com/binmodlabs/py2binmod/internal/config"
	"github.com/binmodlabs/py2binmod/internal/pipeline"
	"github.com/binmodlabs/py2binmod/internal/scanner"
	"github.com/binmodlabs/py2binmod/internal/ui"
)

const timeRounding = 10 * time.Millisecond

const usage = `py2binmod — compile Python plugin modules to sandboxed WASM binaries

Usage:
  py2binmod build <project-dir> [flags]      scan, generate and compile
  py2binmod transpile <project-dir> [flags]  generate the glue crate only
  py2binmod builds <project-dir> [-n <k>]    show recent build history
  py2binmod help                             show this help
  py2binmod --version                        show the version

Flags:
  -o, --out-dir <dir>   output directory (build: artifacts; transpile: crate)
      --release         build with the release profile
      --stdout          transpile: print generated files to stdout
      --venv <dir>      virtualenv directory override
      --module-root <d> import root override (default: src/ or project root)
      --module <name>   plugin module override (package or file.py)
      --verbose         stream toolchain output and debug details
`

// Run is the process entry point. It returns through os.Exit on failure.
func Run() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	if len(os.Args) == 2 {
		switch os.Args[1] {
		case "-v", "-version", "--version":
			fmt.Println("py2binmod " + config.Version)
			return
		}
	}

	if handleHelp() {
		return
	}
	if handleBuilds() {
		return
	}
	if handleTranspile() {
		return
	}
	if handleBuild() {
		return
	}

	fmt.Fprint(os.Stderr, usage)
	os.Exit(2)
}

func handleHelp() bool {
	if len(os.Args) < 2 {
		return false
	}
	if os.Args[1] != "help" && os.Args[1] != "-help" && os.Args[1] != "--help" && os.Args[1] != "-h" {
		return false
	}
	fmt.Print(usage)
	return true
}

func handleBuild() bool {
	if len(os.Args) < 2 || os.Args[1] != "build" {
		return false
	}

	printer := ui.NewPrinter()
	opts, err := parseOptions(os.Args[2:])
	if err != nil {
		printer.Errorf("%v", err)
		os.Exit(2)
	}
	printer.Verbose = opts.Verbose

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink builder.OutputSink = builder.NullSink{}
	if opts.Verbose {
		sink = printer
	}

	printer.Headerf("building %s", opts.ProjectDir)
	result := pipeline.New(
		&scanner.Processor{},
		&codegen.Processor{},
		&builder.Processor{Sink: sink},
	).Run(pipeline.NewContext(ctx, opts))

	if result.Failed() {
		reportErrors(printer, result)
		os.Exit(1)
	}

	artifact := result.Artifact
	if artifact.Cached {
		printer.Successf("reused cached build → %s (%s)", artifact.Path, artifact.Duration.Round(timeRounding))
	} else {
		printer.Successf("built %s (%s)", artifact.Path, artifact.Duration.Round(timeRounding))
	}
	return true
}

func handleTranspile() bool {
	if len(os.Args) < 2 || os.Args[1] != "transpile" {
		return false
	}

	printer := ui.NewPrinter()
	opts, err := parseOptions(os.Args[2:])
	if err != nil {
		printer.Errorf("%v", err)
		os.Exit(2)
	}
	printer.Verbose = opts.Verbose

	if opts.OutDir == "" && !opts.Stdout {
		printer.Warningf("no output directory specified; printing to stdout")
	}

	result := pipeline.New(
		&scanner.Processor{},
		&codegen.Processor{},
	).Run(pipeline.NewContext(context.Background(), opts))

	if result.Failed() {
		reportErrors(printer, result)
		os.Exit(1)
	}

	if opts.OutDir == "" || opts.Stdout {
		printUnit(result)
	}
	if opts.OutDir != "" {
		if err := codegen.WriteUnit(result.Unit, opts.OutDir); err != nil {
			printer.Errorf("%v", err)
			os.Exit(1)
		}
		printer.Successf("generated %d files in %s", len(result.Unit.Files), opts.OutDir)
	}
	return true
}

func handleBuilds() bool {
	if len(os.Args) < 2 || os.Args[1] != "builds" {
		return false
	}

	printer := ui.NewPrinter()
	projectDir := "."
	limit := 20
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-n", "--limit":
			if i+1 >= len(args) {
				printer.Errorf("%s requires a value", args[i])
				os.Exit(2)
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n <= 0 {
				printer.Errorf("invalid limit %q", args[i+1])
				os.Exit(2)
			}
			limit = n
			i++
		default:
			if strings.HasPrefix(args[i], "-") {
				printer.Errorf("unknown flag %q", args[i])
				os.Exit(2)
			}
			projectDir = args[i]
		}
	}

	ledger, err := builder.OpenLedger(projectDir)
	if err != nil {
		printer.Errorf("%v", err)
		os.Exit(1)
	}
	defer ledger.Close()

	records, err := ledger.Recent(limit)
	if err != nil {
		printer.Errorf("%v", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		printer.Infof("no builds recorded yet")
		return true
	}

	for _, rec := range records {
		origin := "compiled"
		if rec.Cached {
			origin = "cached"
		}
		printer.Infof("%s  %-8s %-8s %-9s %8s  %s",
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Project, rec.Profile, origin,
			rec.Duration.Round(timeRounding), rec.Artifact)
	}
	return true
}

// parseOptions parses the shared build/transpile argument list. The single
// positional argument is the project directory, defaulting to ".".
func parseOptions(args []string) (pipeline.Options, error) {
	opts := pipeline.Options{ProjectDir: "."}
	projectSet := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		value := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			i++
			return args[i], nil
		}

		switch arg {
		case "-o", "--out-dir":
			v, err := value()
			if err != nil {
				return opts, err
			}
			opts.OutDir = v
		case "--release":
			opts.Release = true
		case "--stdout":
			opts.Stdout = true
		case "--venv":
			v, err := value()
			if err != nil {
				return opts, err
			}
			opts.Venv = v
		case "--module-root":
			v, err := value()
			if err != nil {
				return opts, err
			}
			opts.ModuleRoot = v
		case "--module":
			v, err := value()
			if err != nil {
				return opts, err
			}
			opts.Module = v
		case "--verbose":
			opts.Verbose = true
		default:
			if strings.HasPrefix(arg, "-") {
				return opts, fmt.Errorf("unknown flag %q", arg)
			}
			if projectSet {
				return opts, fmt.Errorf("unexpected argument %q", arg)
			}
			opts.ProjectDir = arg
			projectSet = true
		}
	}
	return opts, nil
}

func reportErrors(printer *ui.Printer, result *pipeline.Context) {
	for _, diag := range result.Errors {
		printer.Errorf("%v", diag)
	}
}

// printUnit writes each generated file to stdout with a separator header,
// for piping and quick inspection.
func printUnit(result *pipeline.Context) {
	rule := strings.Repeat("─", 80)
	for _, f := range result.Unit.Files {
		fmt.Printf("\n%s\n%s\n", f.Path, rule)
		os.Stdout.Write(f.Content)
		fmt.Printf("%s\n", rule)
	}
}
