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

package interp_test

import (
	"go/token"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gx-org/autopar/analysis/detect"
	"github.com/gx-org/autopar/analysis/effects"
	"github.com/gx-org/autopar/backend"
	"github.com/gx-org/autopar/build/builder"
	"github.com/gx-org/autopar/interp"
	"github.com/gx-org/autopar/ir"
	"github.com/gx-org/autopar/transform"
)

func buildFile(t *testing.T, src string) *ir.File {
	t.Helper()
	file, err := builder.Parse(token.NewFileSet(), "test.seq", src)
	if err != nil {
		t.Fatalf("cannot build %q: %v", src, err)
	}
	return file
}

func callNamed(t *testing.T, src, fn string, args ...interp.Value) interp.Value {
	t.Helper()
	it, err := interp.New(buildFile(t, src))
	if err != nil {
		t.Fatalf("cannot initialize evaluator: %v", err)
	}
	got, err := it.CallNamed(fn, args...)
	if err != nil {
		t.Fatalf("%s: %v", fn, err)
	}
	return got
}

func TestCallNamed(t *testing.T) {
	tests := []struct {
		src  string
		fn   string
		args []interp.Value
		want interp.Value
	}{
		{
			src: `package main

func add(a int, b int) int {
	return a + b
}
`,
			fn:   "add",
			args: []interp.Value{int64(2), int64(3)},
			want: int64(5),
		},
		{
			src: `package main

func sum(n int) int {
	total := 0
	for i := range n {
		total += i
	}
	return total
}
`,
			fn:   "sum",
			args: []interp.Value{int64(5)},
			want: int64(10),
		},
		{
			src: `package main

func fib(n int) int {
	if n < 2 {
		return n
	}
	return fib(n-1) + fib(n-2)
}
`,
			fn:   "fib",
			args: []interp.Value{int64(10)},
			want: int64(55),
		},
		{
			src: `package main

func countdown(n int) []int {
	out := []int{}
	for i := n; i > 0; i -= 1 {
		out = append(out, i)
	}
	return out
}
`,
			fn:   "countdown",
			args: []interp.Value{int64(3)},
			want: []interp.Value{int64(3), int64(2), int64(1)},
		},
		{
			src: `package main

func classify(n int) string {
	if n%2 == 0 {
		return "even"
	} else {
		return "odd"
	}
}
`,
			fn:   "classify",
			args: []interp.Value{int64(7)},
			want: "odd",
		},
		{
			src: `package main

func clamp(n int) int {
	return max(0, min(n, 10))
}
`,
			fn:   "clamp",
			args: []interp.Value{int64(42)},
			want: int64(10),
		},
		{
			src: `package main

func twice(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, 2*x)
	}
	return out
}
`,
			fn:   "twice",
			args: []interp.Value{[]interp.Value{int64(1), int64(2), int64(3)}},
			want: []interp.Value{int64(2), int64(4), int64(6)},
		},
		{
			src: `package main

func apply(n int) int {
	inc := func(x int) int {
		return x + n
	}
	return inc(inc(1))
}
`,
			fn:   "apply",
			args: []interp.Value{int64(10)},
			want: int64(21),
		},
	}
	for _, test := range tests {
		t.Run(test.fn, func(t *testing.T) {
			got := callNamed(t, test.src, test.fn, test.args...)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("%s returned an unexpected value:\n%s", test.fn, diff)
			}
		})
	}
}

func TestGlobals(t *testing.T) {
	const src = `package main

var base = 100

var labels = []string{"lo", "hi"}

func pick(i int) string {
	return labels[i]
}

func offset(n int) int {
	return base + n
}
`
	if got, want := callNamed(t, src, "offset", int64(5)), int64(105); got != want {
		t.Errorf("offset(5) = %v, want %v", got, want)
	}
	if got, want := callNamed(t, src, "pick", int64(1)), "hi"; got != want {
		t.Errorf("pick(1) = %v, want %v", got, want)
	}
}

func TestStdout(t *testing.T) {
	const src = `package main

func report(n int) {
	println("value:", n)
	printf("twice: %d\n", 2*n)
}
`
	out := &strings.Builder{}
	it, err := interp.New(buildFile(t, src), interp.WithStdout(out))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := it.CallNamed("report", int64(21)); err != nil {
		t.Fatal(err)
	}
	want := "value: 21\ntwice: 42\n"
	if out.String() != want {
		t.Errorf("report(21) printed %q, want %q", out.String(), want)
	}
}

func TestWritefile(t *testing.T) {
	const src = `package main

func export(names []string) {
	for i, name := range names {
		writefile("out-"+name, i)
	}
}
`
	it, err := interp.New(buildFile(t, src))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := it.CallNamed("export", []interp.Value{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	got, ok := it.FileContent("out-b")
	if !ok || got != "1" {
		t.Errorf("FileContent(out-b) = %q, %v, want %q, true", got, ok, "1")
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		fn   string
		want string
	}{
		{
			name: "divide by zero",
			src: `package main

func div(a int, b int) int {
	return a / b
}
`,
			fn:   "div",
			want: "divide by zero",
		},
		{
			name: "panic",
			src: `package main

func boom(msg string) {
	panic(msg)
}
`,
			fn:   "boom",
			want: "panic",
		},
		{
			name: "index out of range",
			src: `package main

func get(xs []int) int {
	return xs[10]
}
`,
			fn:   "get",
			want: "out of range",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			it, err := interp.New(buildFile(t, test.src))
			if err != nil {
				t.Fatal(err)
			}
			var args []interp.Value
			switch test.fn {
			case "div":
				args = []interp.Value{int64(1), int64(0)}
			case "boom":
				args = []interp.Value{"bad input"}
			case "get":
				args = []interp.Value{[]interp.Value{int64(1)}}
			}
			_, err = it.CallNamed(test.fn, args...)
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("%s returned error %v, want error containing %q", test.fn, err, test.want)
			}
		})
	}
}

// parallelize replaces the best accepted region of fn with a parallel
// task and returns the rewritten file.
func parallelize(t *testing.T, src, fn string) *ir.File {
	t.Helper()
	file := buildFile(t, src)
	fa := effects.AnalyzeFile(file, effects.Config{})
	var decl *ir.FuncDecl
	for _, f := range file.Funcs {
		if f.Name.Name == fn {
			decl = f
		}
	}
	if decl == nil {
		t.Fatalf("function %s not declared", fn)
	}
	caps, err := backend.ByName("pool")
	if err != nil {
		t.Fatal(err)
	}
	for _, region := range detect.Detect(fa, decl, detect.Config{}) {
		if !region.Accepted {
			continue
		}
		if _, err := transform.Apply(fa, region, detect.Config{}, caps); err != nil {
			t.Fatalf("cannot transform %s: %v", fn, err)
		}
		return file
	}
	t.Fatalf("no accepted region in %s", fn)
	return nil
}

func TestParallelOrderPreserved(t *testing.T) {
	const src = `package main

func twice(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, 2*x)
	}
	return out
}
`
	file := parallelize(t, src, "twice")
	// Delay early units so later units finish first: the combined
	// result must still follow iteration order.
	hook := func(i int) {
		time.Sleep(time.Duration(10-i) * time.Millisecond)
	}
	it, err := interp.New(file, interp.WithUnitHook(hook))
	if err != nil {
		t.Fatal(err)
	}
	xs := []interp.Value{int64(1), int64(2), int64(3), int64(4), int64(5)}
	got, err := it.CallNamed("twice", xs)
	if err != nil {
		t.Fatal(err)
	}
	want := []interp.Value{int64(2), int64(4), int64(6), int64(8), int64(10)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parallel twice lost iteration order:\n%s", diff)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	tests := []struct {
		name string
		src  string
		fn   string
		args []interp.Value
	}{
		{
			name: "map over range",
			src: `package main

func squares(n int) []int {
	out := []int{}
	for i := range n {
		out = append(out, i*i)
	}
	return out
}
`,
			fn:   "squares",
			args: []interp.Value{int64(20)},
		},
		{
			name: "append to existing",
			src: `package main

func extend(xs []int) []int {
	out := []int{7}
	for _, x := range xs {
		out = append(out, x+1)
	}
	return out
}
`,
			fn:   "extend",
			args: []interp.Value{[]interp.Value{int64(1), int64(2), int64(3)}},
		},
		{
			name: "recursive reduction",
			src: `package main

func sum(xs []int, lo int, hi int) int {
	if hi-lo < 2 {
		total := 0
		for i := lo; i < hi; i += 1 {
			total += xs[i]
		}
		return total
	}
	mid := (lo + hi) / 2
	return sum(xs, lo, mid) + sum(xs, mid, hi)
}
`,
			fn:   "sum",
			args: []interp.Value{[]interp.Value{int64(1), int64(2), int64(3), int64(4)}, int64(0), int64(4)},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			seq, err := interp.New(buildFile(t, test.src))
			if err != nil {
				t.Fatal(err)
			}
			want, err := seq.CallNamed(test.fn, test.args...)
			if err != nil {
				t.Fatal(err)
			}
			par, err := interp.New(parallelize(t, test.src, test.fn))
			if err != nil {
				t.Fatal(err)
			}
			got, err := par.CallNamed(test.fn, test.args...)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("parallel %s diverged from sequential:\n%s", test.fn, diff)
			}
		})
	}
}
