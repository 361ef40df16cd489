package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

// TestMain lets testscript re-exec this same test binary as "corec" for
// each script's "exec corec ..." lines, the standard go-internal
// pattern for golden CLI tests without a separate go build step.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"corec": run2,
	}))
}

// run2 adapts run's (args []string) int signature to testscript's
// (no-args, reads os.Args itself) convention.
func run2() int {
	return run(os.Args[1:])
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
	})
}
