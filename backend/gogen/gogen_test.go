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

package gogen_test

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/gx-org/autopar/analysis/detect"
	"github.com/gx-org/autopar/analysis/effects"
	"github.com/gx-org/autopar/backend"
	"github.com/gx-org/autopar/backend/gogen"
	"github.com/gx-org/autopar/build/builder"
	"github.com/gx-org/autopar/ir"
	"github.com/gx-org/autopar/transform"
)

func generate(t *testing.T, src, backendName string, parallel bool) string {
	t.Helper()
	file, err := builder.Parse(token.NewFileSet(), "test.seq", src)
	if err != nil {
		t.Fatalf("cannot build %q: %v", src, err)
	}
	caps, err := backend.ByName(backendName)
	if err != nil {
		t.Fatal(err)
	}
	if parallel {
		fa := effects.AnalyzeFile(file, effects.Config{})
		for _, fn := range file.Funcs {
			for _, region := range detect.Detect(fa, fn, detect.Config{}) {
				if !region.Accepted {
					continue
				}
				if _, err := transform.Apply(fa, region, detect.Config{}, caps); err != nil {
					t.Fatalf("cannot transform %s: %v", fn.Name.Name, err)
				}
			}
		}
	}
	out, err := gogen.Source(file, caps)
	if err != nil {
		t.Fatalf("cannot generate: %v", err)
	}
	// Whatever else, the output must be syntactically valid Go.
	if _, err := parser.ParseFile(token.NewFileSet(), "gen.go", out, parser.SkipObjectResolution); err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, out)
	}
	return out
}

func wantFragments(t *testing.T, out string, fragments ...string) {
	t.Helper()
	for _, fragment := range fragments {
		if !strings.Contains(out, fragment) {
			t.Errorf("generated source does not contain %q:\n%s", fragment, out)
		}
	}
}

const mapSrc = `package main

func twice(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, 2*x)
	}
	return out
}

func main() {
	println(twice([]int{1, 2, 3}))
}
`

func TestSequential(t *testing.T) {
	out := generate(t, mapSrc, "pool", false)
	wantFragments(t, out,
		"// Code generated by autopar. DO NOT EDIT.",
		"package main",
		"func twice(xs []int) []int",
		"for _, x := range xs",
		"out = append(out, 2 * x)",
		"fmt.Println(twice([]int{1, 2, 3}))",
		`"fmt"`,
	)
	if strings.Contains(out, "sync.") {
		t.Errorf("sequential program pulls in sync:\n%s", out)
	}
}

func TestPool(t *testing.T) {
	out := generate(t, mapSrc, "pool", true)
	wantFragments(t, out,
		`"sync"`,
		`"runtime"`,
		"idx := make(chan int)",
		"results := make([]int, len(xs))",
		"runtime.NumCPU()",
		"for i := range idx",
		"x := xs[i]",
		"results[i] = 2 * x",
		"out = append(out, results...)",
	)
}

func TestSpawn(t *testing.T) {
	out := generate(t, mapSrc, "spawn", true)
	wantFragments(t, out,
		`"sync"`,
		"results := make([]int, len(xs))",
		"var wg sync.WaitGroup",
		"wg.Wait()",
		"out = append(out, results...)",
	)
	if strings.Contains(out, "chan int") {
		t.Errorf("spawn scaffolding uses a worker channel:\n%s", out)
	}
}

const reduceSrc = `package main

func total(xs []int, lo int, hi int) int {
	if hi-lo < 2 {
		if hi-lo < 1 {
			return 0
		}
		return xs[lo]
	}
	mid := (lo + hi) / 2
	return total(xs, lo, mid) + total(xs, mid, hi)
}
`

func TestReduce(t *testing.T) {
	out := generate(t, reduceSrc, "vector", true)
	wantFragments(t, out,
		"var results [2]int",
		"results[0] = total(xs, lo, mid)",
		"results[1] = total(xs, mid, hi)",
		"return results[0] + results[1]",
	)
}

func TestHelpers(t *testing.T) {
	const src = `package main

func run() {
	name := readln()
	writefile(name, abs(-3))
}
`
	out := generate(t, src, "pool", false)
	wantFragments(t, out,
		"func readln() string",
		"func writefile(name string, data any)",
		"func abs(n int) int",
		`"bufio"`,
		`"os"`,
	)
}

func TestMainStub(t *testing.T) {
	const src = `package main

func helper(n int) int {
	return n + 1
}
`
	out := generate(t, src, "pool", false)
	wantFragments(t, out, "func main() {}")
}

func TestScaffoldingAvoidsUserNames(t *testing.T) {
	const src = `package main

func crowd(xs []int) []int {
	results := 0
	wg := 1
	out := []int{}
	for _, x := range xs {
		out = append(out, x+results+wg)
	}
	return out
}
`
	out := generate(t, src, "spawn", true)
	wantFragments(t, out, "results1 := make([]int,")
	if !strings.Contains(out, "wg1") {
		t.Errorf("wait group name collides with a user variable:\n%s", out)
	}
}

func TestMaxWorkers(t *testing.T) {
	file, err := builder.Parse(token.NewFileSet(), "test.seq", mapSrc)
	if err != nil {
		t.Fatal(err)
	}
	caps, err := backend.ByName("pool")
	if err != nil {
		t.Fatal(err)
	}
	caps.MaxWorkers = 4
	fa := effects.AnalyzeFile(file, effects.Config{})
	var applied bool
	for _, fn := range file.Funcs {
		for _, region := range detect.Detect(fa, fn, detect.Config{}) {
			if !region.Accepted {
				continue
			}
			if _, err := transform.Apply(fa, region, detect.Config{}, caps); err != nil {
				t.Fatal(err)
			}
			applied = true
		}
	}
	if !applied {
		t.Fatal("no region transformed")
	}
	out, err := gogen.Source(file, caps)
	if err != nil {
		t.Fatal(err)
	}
	wantFragments(t, out, "< 4;")
	if strings.Contains(out, "runtime.NumCPU") {
		t.Errorf("bounded pool still sizes itself from the machine:\n%s", out)
	}
}

func TestGeneratedTaskMatchesRewrittenTree(t *testing.T) {
	file, err := builder.Parse(token.NewFileSet(), "test.seq", mapSrc)
	if err != nil {
		t.Fatal(err)
	}
	caps, err := backend.ByName("pool")
	if err != nil {
		t.Fatal(err)
	}
	fa := effects.AnalyzeFile(file, effects.Config{})
	fn := file.Funcs[0]
	regions := detect.Detect(fa, fn, detect.Config{})
	if _, err := transform.Apply(fa, regions[0], detect.Config{}, caps); err != nil {
		t.Fatal(err)
	}
	var task *ir.ParallelTask
	ir.Visit(fn.Body, func(n ir.Node) bool {
		if found, ok := n.(*ir.ParallelTask); ok {
			task = found
		}
		return task == nil
	})
	if task == nil {
		t.Fatal("no task in the rewritten tree")
	}
	out, err := gogen.Source(file, caps)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "= "+task.Elem.String()) {
		t.Errorf("generated source does not compute the task element %s:\n%s", task.Elem, out)
	}
}
