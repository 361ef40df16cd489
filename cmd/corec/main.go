// cmd/corec drives compile_core from the command line: it reads a JSON
// HIR sources document and writes the compiled JSON LIR sources
// document, the way sentra's own cmd/sentra dispatches to one
// subcommand per verb.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"corelang/internal/buildstore"
	"corelang/internal/coreserver"
	"corelang/internal/pipeline"
	"corelang/internal/symbol"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"c": "compile",
	"d": "dump-ir",
	"s": "serve",
	"v": "version",
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is main's body, split out so cmd/corec's testscript-driven
// golden tests can call it from the re-executed test binary instead of
// a separately built corec.
func run(args []string) int {
	if len(args) == 0 {
		showUsage()
		return 1
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Println("corec", version)
	case "compile":
		if err := compileCommand(args[1:]); err != nil {
			log.Printf("corec: %v", err)
			return 1
		}
	case "dump-ir":
		if err := dumpIRCommand(args[1:]); err != nil {
			log.Printf("corec: %v", err)
			return 1
		}
	case "serve":
		if err := serveCommand(args[1:]); err != nil {
			log.Printf("corec: %v", err)
			return 1
		}
	default:
		fmt.Fprintf(os.Stderr, "corec: unknown command %q\n", cmd)
		showUsage()
		return 1
	}
	return 0
}

func showUsage() {
	fmt.Println(`Usage: corec <command> [arguments]

Commands:
  compile <in.hir.json> <entry,points> [out.lir.json]   run compile_core
  dump-ir <in.hir.json>                                  decode and re-emit HIR as JSON
  serve <addr> [sqlite-dsn]                              run the websocket compile server
  version                                                print the corec version`)
}

func compileCommand(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: corec compile <in.hir.json> <entry,points> [out.lir.json]")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	entryPoints := strings.Split(args[1], ",")

	result, lirJSON, err := coreserver.CompileJSON(data, entryPoints, pipeline.DefaultOptions)
	if err != nil {
		return err
	}

	out := os.Stdout
	if len(args) > 2 {
		f, err := os.Create(args[2])
		if err != nil {
			return fmt.Errorf("creating %s: %w", args[2], err)
		}
		defer f.Close()
		out = f
	}
	if _, err := out.Write(lirJSON); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	report(result)
	return nil
}

// report prints a one-line compile summary to stderr, colored when
// stderr is a real terminal (mirroring the common go-isatty gate: pipe output
// stays plain so downstream tools never have to strip escape codes).
func report(result *pipeline.Result) {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\033[32m==>\033[0m %s\n", result.Summary)
	} else {
		fmt.Fprintln(os.Stderr, result.Summary)
	}
}

func dumpIRCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: corec dump-ir <in.hir.json>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	tbl := symbol.NewTable()
	src, err := coreserver.DecodeHIRSources(tbl, data)
	if err != nil {
		return err
	}
	out, err := coreserver.EncodeHIRSources(tbl, src)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func serveCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: corec serve <addr> [sqlite-dsn]")
	}
	dsn := "corec-telemetry.db"
	if len(args) > 1 {
		dsn = args[1]
	}
	store, err := buildstore.Open(dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintf(os.Stderr, "telemetry database: %s\n", dsn)
	return runServer(args[0], store)
}
