// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command autopar rewrites the parallelizable loops of a source file
// for an execution backend.
//
// By default it writes the rewritten file as a Go program next to the
// input, with a _parallel suffix. With -report it also records the
// decision taken on every candidate region, with -run or -profile it
// evaluates a function of the file, and with -i it starts an
// interactive session on the rewritten tree.
//
// The -backend and -workers flags default to the AUTOPAR_BACKEND and
// AUTOPAR_WORKERS environment variables.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/gx-org/autopar"
	"github.com/gx-org/autopar/backend"
	"github.com/gx-org/autopar/interp"
	"github.com/gx-org/autopar/tools/parflag"
)

var (
	output      = flag.String("o", "", "output path for the generated Go program (default <stem>_parallel.go, - for stdout)")
	backendName = flag.String("backend", env.Str("AUTOPAR_BACKEND", autopar.DefaultBackend), "execution backend: "+strings.Join(backend.Names(), ", "))
	workers     = flag.Int("workers", env.Int("AUTOPAR_WORKERS", 0), "bound on concurrent work units (0 lets the backend decide)")
	minIters    = flag.Int("min-iterations", 0, "reject candidate regions with fewer estimated iterations (default 2)")
	pureCalls   = parflag.StringList("pure", "list of function names vouched for as pure")
	reportPath  = flag.String("report", "", "write the candidate decision report to this file (- for stdout)")
	runFn       = flag.String("run", "", "evaluate this function on the rewritten tree and print its value")
	profileFn   = flag.String("profile", "", "run this function before and after rewriting and compare the two runs")
	interactive = flag.Bool("i", false, "start an interactive session on the rewritten tree")
	verbose     = flag.Bool("v", false, "print progress to stderr")
)

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: autopar [flags] file [args...]\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "autopar: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, rawArgs []string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	progressf("analyzing %s (backend %s)", path, *backendName)
	result, err := autopar.Parallelize(path, string(src), autopar.Options{
		Backend:       *backendName,
		Workers:       *workers,
		MinIterations: *minIters,
		PureCalls:     *pureCalls,
	})
	if err != nil {
		return err
	}
	progress(summary(result))
	if err := writeReport(result); err != nil {
		return err
	}
	args := parseArgs(rawArgs)
	switch {
	case *runFn != "":
		return evaluate(result, *runFn, args)
	case *profileFn != "":
		cmp, err := result.Profile(*profileFn, args...)
		if err != nil {
			return err
		}
		fmt.Println(cmp)
		return nil
	case *interactive:
		return repl(result)
	case *reportPath != "":
		return nil
	}
	return generate(result, path)
}

func summary(result *autopar.Result) string {
	accepted := 0
	for _, e := range result.Report.Entries {
		if e.Accepted {
			accepted++
		}
	}
	s := fmt.Sprintf("%d candidate(s), %d accepted, %d rewritten",
		len(result.Report.Entries), accepted, len(result.Tasks))
	if result.Mismatched > 0 {
		s += fmt.Sprintf(", %d left sequential (backend mismatch)", result.Mismatched)
	}
	return s
}

func writeReport(result *autopar.Result) error {
	switch *reportPath {
	case "":
		return nil
	case "-":
		fmt.Print(result.Report.String())
		return nil
	}
	return os.WriteFile(*reportPath, []byte(result.Report.String()), 0644)
}

// outputPath derives the generated file location from the input path:
// dir/name.seq becomes dir/name_parallel.go.
func outputPath(input string) string {
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	return stem + "_parallel.go"
}

func generate(result *autopar.Result, input string) error {
	if *output == "-" {
		return result.Generate(os.Stdout)
	}
	path := *output
	if path == "" {
		path = outputPath(input)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := result.Generate(out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	progressf("wrote %s", path)
	return nil
}

func evaluate(result *autopar.Result, fn string, args []interp.Value) error {
	ev, err := result.Evaluator()
	if err != nil {
		return err
	}
	value, err := ev.CallNamed(fn, args...)
	if err != nil {
		return err
	}
	if value != nil {
		fmt.Println(value)
	}
	return nil
}

// parseArg converts one command line argument into an evaluator value.
// Integers and booleans are recognized, everything else is a string.
func parseArg(raw string) interp.Value {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func parseArgs(raw []string) []interp.Value {
	var args []interp.Value
	for _, arg := range raw {
		args = append(args, parseArg(arg))
	}
	return args
}

var noColor = env.Bool("NO_COLOR")

func progress(msg string) {
	if !*verbose {
		return
	}
	if noColor {
		fmt.Fprintln(os.Stderr, msg)
		return
	}
	fmt.Fprintf(os.Stderr, "\033[36m%s\033[0m\n", msg)
}

func progressf(format string, args ...any) {
	progress(fmt.Sprintf(format, args...))
}
