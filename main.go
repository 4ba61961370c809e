// eva compiles and runs programs written in the Eva language: a small
// dynamically-typed Lisp dialect compiled ahead of time to bytecode and
// executed by a stack machine with mark-sweep garbage collection.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/dr8co/eva/evaerr"
	"github.com/dr8co/eva/repl"
	"github.com/dr8co/eva/vm"
)

const version = "0.1.0"

// printUsage displays custom usage information
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `Eva v%s

USAGE:
    %s [OPTIONS]

DESCRIPTION:
    Eva compiles a small Lisp-like language to bytecode and runs it on a
    stack virtual machine. Without any flags, it starts an interactive
    REPL (Read-Eval-Print-Loop).

OPTIONS:
    -f, --file <path>       Execute an Eva script file
    -e, --eval <code>       Evaluate an Eva expression and print the result
    -d, --debug             Enable debug mode with more verbose output
    -v, --version           Show version information
    -h, --help              Show this help message

EXAMPLES:
    # Start interactive REPL
    %s

    # Execute a script file
    %s -f script.eva
    %s --file script.eva

    # Evaluate an expression
    %s -e "(+ 1 2)"
    %s --eval "(var x 10) (* x x)"

    # Execute with debug mode
    %s -f script.eva -d

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	flag.Usage = printUsage

	fileFlag := flag.String("file", "", "Execute an Eva script file")
	evalFlag := flag.String("eval", "", "Evaluate an Eva expression and print the result")
	debugFlag := flag.Bool("debug", false, "Enable debug mode with more verbose output")
	versionFlag := flag.Bool("version", false, "Show version information")

	flag.StringVar(fileFlag, "f", "", "Execute an Eva script file")
	flag.StringVar(evalFlag, "e", "", "Evaluate an Eva expression and print the result")
	flag.BoolVar(debugFlag, "d", false, "Enable debug mode with more verbose output")
	flag.BoolVar(versionFlag, "v", false, "Show version information")

	flag.Parse()

	if flag.NArg() > 0 || (*fileFlag != "" && *evalFlag != "") {
		printUsage()
		return
	}

	if *versionFlag {
		fmt.Printf("Eva v%s\n", version)
		return
	}

	if *fileFlag != "" {
		executeFile(*fileFlag, *debugFlag)
		return
	}

	if *evalFlag != "" {
		evaluateExpression(*evalFlag, *debugFlag)
		return
	}

	username := "unknown"
	if usr, err := user.Current(); err == nil {
		username = usr.Username
	}

	repl.Start(username, repl.Options{Debug: *debugFlag})
}

// executeFile reads and runs an Eva script file.
func executeFile(filename string, debug bool) {
	cleaned := filepath.Clean(filename)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		fmt.Printf("Error getting absolute path: %s\n", err)
		os.Exit(1)
	}
	if debug {
		fmt.Printf("DEBUG: executing file: %s\n", absolute)
	}

	//nolint:gosec // the path comes from a trusted command-line flag, not user input
	content, err := os.ReadFile(absolute)
	if err != nil {
		fmt.Printf("Error reading file: %s\n", err)
		os.Exit(1)
	}

	run(string(content), debug)
}

// evaluateExpression runs a single Eva expression passed on the command line.
func evaluateExpression(expr string, debug bool) {
	run(expr, debug)
}

// run compiles and executes source on a fresh VM, printing its result or
// reporting a fatal error.
func run(source string, debug bool) {
	machine := vm.New()

	result, err := machine.Exec(source)
	if err != nil {
		var evaErr *evaerr.Error
		if errors.As(err, &evaErr) {
			_, _ = fmt.Fprintf(os.Stderr, "Fatal error: %s: %s\n", evaErr.Kind, evaErr.Message)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "Fatal error: %s\n", err)
		}
		os.Exit(1)
	}

	if debug {
		fmt.Printf("DEBUG: result kind = %s\n", result.Kind())
	}
	fmt.Println(result.Inspect())
}
