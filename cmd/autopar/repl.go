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

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/gx-org/autopar"
	gxfmt "github.com/gx-org/autopar/base/fmt"
)

const (
	historyFile = ".autopar_history"
	prompt      = "autopar> "
	banner      = "autopar — Ctrl+C to cancel input, Ctrl+D to exit. Type help for commands."
	helpText    = `
Commands:
  help                 Show this help
  report               Print the decision taken on every candidate region
  tasks                List the parallel sections spliced into the tree
  show                 Print the rewritten tree as source
  gen                  Print the rewritten tree as a Go program
  run <fn> [args]      Evaluate a function on the rewritten tree
  profile <fn> [args]  Compare a function before and after rewriting
  explain              Read a function body and print its diagnostics
  quit                 Exit
`
)

// repl drives an interactive session on the rewritten tree.
func repl(result *autopar.Result) error {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	// Load history (best-effort).
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Println()
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if done := command(result, ln, line); done {
			break
		}
	}

	// Persist history (best-effort).
	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

func command(result *autopar.Result, ln *liner.State, line string) (exit bool) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "help":
		fmt.Print(helpText)

	case "quit", "exit":
		return true

	case "report":
		fmt.Print(result.Report.String())

	case "tasks":
		if len(result.Tasks) == 0 {
			fmt.Println("no parallel sections")
			return false
		}
		for i, task := range result.Tasks {
			fmt.Printf("%d: %s\n", i, strings.TrimRight(task.String(), "\n"))
		}
		if result.Mismatched > 0 {
			fmt.Printf("%d accepted region(s) left sequential: backend mismatch\n", result.Mismatched)
		}

	case "show":
		fmt.Print(gxfmt.Number(result.File.String()))

	case "gen":
		if err := result.Generate(os.Stdout); err != nil {
			fmt.Println(err)
		}

	case "run":
		if len(fields) < 2 {
			fmt.Println("usage: run <fn> [args]")
			return false
		}
		if err := evaluate(result, fields[1], parseArgs(fields[2:])); err != nil {
			fmt.Println(err)
		}

	case "profile":
		if len(fields) < 2 {
			fmt.Println("usage: profile <fn> [args]")
			return false
		}
		cmp, err := result.Profile(fields[1], parseArgs(fields[2:])...)
		if err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Println(cmp)

	case "explain":
		explain(ln)

	default:
		fmt.Printf("unknown command %q (help for the list)\n", cmd)
	}
	return false
}

// explain reads a function until a blank line, analyzes it on its own,
// and prints the decision taken on every candidate region it contains.
func explain(ln *liner.State) {
	fmt.Println("enter a function, end with a blank line:")
	var lines []string
	for {
		line, err := ln.Prompt("... ")
		if err != nil || strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return
	}
	src := "package explain\n\n" + strings.Join(lines, "\n") + "\n"
	result, err := autopar.Parallelize("explain.seq", src, autopar.Options{
		Backend:       *backendName,
		Workers:       *workers,
		MinIterations: *minIters,
		PureCalls:     *pureCalls,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	if len(result.Report.Entries) == 0 {
		fmt.Println("no candidate regions")
		return
	}
	fmt.Print(result.Report.String())
}
