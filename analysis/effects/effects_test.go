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

package effects_test

import (
	"go/token"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gx-org/autopar/analysis/effects"
	"github.com/gx-org/autopar/build/builder"
	"github.com/gx-org/autopar/ir"
)

func analyzeFunc(t *testing.T, src, fn string, cfg effects.Config) *effects.Analysis {
	t.Helper()
	file, err := builder.Parse(token.NewFileSet(), "test.seq", src)
	if err != nil {
		t.Fatalf("cannot build %q: %v", src, err)
	}
	fa := effects.AnalyzeFile(file, cfg)
	for _, decl := range file.Funcs {
		if decl.Name.Name == fn {
			return fa.Func(decl)
		}
	}
	t.Fatalf("function %s not declared", fn)
	return nil
}

func symNames(syms interface{ Elements() []*ir.Symbol }) []string {
	var out []string
	for _, sym := range syms.Elements() {
		out = append(out, sym.Name)
	}
	sort.Strings(out)
	return out
}

func TestBodyEffects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		fn   string
		cfg  effects.Config

		wantReads       []string
		wantWrites      []string
		wantIO          bool
		wantRaise       bool
		wantCallsUnkown bool
	}{
		{
			name: "assignment reads and writes",
			src: `package main

func move(a int) int {
	b := a + 1
	b += a
	return b
}
`,
			fn:         "move",
			wantReads:  []string{"a", "b"},
			wantWrites: []string{"b"},
		},
		{
			name: "index write reads and writes the base",
			src: `package main

func set(xs []int, i int) {
	xs[i] = 0
}
`,
			fn:         "set",
			wantReads:  []string{"i", "xs"},
			wantWrites: []string{"xs"},
		},
		{
			name: "pure builtins have no effects",
			src: `package main

func stat(xs []int) int {
	return max(len(xs), abs(-1))
}
`,
			fn:        "stat",
			wantReads: []string{"xs"},
		},
		{
			name: "print is io",
			src: `package main

func say(msg string) {
	println(msg)
}
`,
			fn:        "say",
			wantReads: []string{"msg"},
			wantIO:    true,
		},
		{
			name: "read is io",
			src: `package main

func ask() string {
	return readln()
}
`,
			fn:     "ask",
			wantIO: true,
		},
		{
			name: "panic may raise",
			src: `package main

func guard(n int) {
	if n < 0 {
		panic("negative")
	}
}
`,
			fn:        "guard",
			wantReads: []string{"n"},
			wantRaise: true,
		},
		{
			name: "division by a variable may raise",
			src: `package main

func ratio(a int, b int) int {
	return a / b
}
`,
			fn:        "ratio",
			wantReads: []string{"a", "b"},
			wantRaise: true,
		},
		{
			name: "division by a non-zero literal cannot raise",
			src: `package main

func half(a int) int {
	return a / 2
}
`,
			fn:        "half",
			wantReads: []string{"a"},
		},
		{
			name: "unknown call taints arguments",
			src: `package main

func apply(xs []int) {
	mystery(xs)
}
`,
			fn:              "apply",
			wantReads:       []string{"xs"},
			wantWrites:      []string{"xs"},
			wantCallsUnkown: true,
		},
		{
			name: "allow-listed call reads arguments only",
			src: `package main

func apply(xs []int) int {
	return mystery(xs)
}
`,
			fn:        "apply",
			cfg:       effects.Config{PureCalls: []string{"mystery"}},
			wantReads: []string{"xs"},
		},
		{
			name: "declared callee effects fold into the call",
			src: `package main

var hits = 0

func bump() {
	hits += 1
}

func run() {
	bump()
}
`,
			fn:         "run",
			wantReads:  []string{"hits"},
			wantWrites: []string{"hits"},
		},
		{
			name: "declared io callee",
			src: `package main

func log(msg string) {
	println(msg)
}

func run() {
	log("hi")
}
`,
			fn:     "run",
			wantIO: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a := analyzeFunc(t, test.src, test.fn, test.cfg)
			set := a.Of(a.Table().Func().Body)
			if diff := cmp.Diff(test.wantReads, symNames(set.Reads)); diff != "" {
				t.Errorf("reads mismatch:\n%s", diff)
			}
			if diff := cmp.Diff(test.wantWrites, symNames(set.Writes)); diff != "" {
				t.Errorf("writes mismatch:\n%s", diff)
			}
			if set.HasIO != test.wantIO {
				t.Errorf("HasIO = %v, want %v", set.HasIO, test.wantIO)
			}
			if set.MayRaise != test.wantRaise {
				t.Errorf("MayRaise = %v, want %v", set.MayRaise, test.wantRaise)
			}
			if set.CallsUnknown != test.wantCallsUnkown {
				t.Errorf("CallsUnknown = %v, want %v", set.CallsUnknown, test.wantCallsUnkown)
			}
		})
	}
}

func TestMutualRecursionReachesFixpoint(t *testing.T) {
	const src = `package main

func even(n int) bool {
	if n == 0 {
		return true
	}
	return odd(n - 1)
}

func odd(n int) bool {
	if n == 0 {
		println("hit zero")
		return false
	}
	return even(n - 1)
}
`
	a := analyzeFunc(t, src, "even", effects.Config{})
	set := a.Of(a.Table().Func().Body)
	if !set.HasIO {
		t.Error("io effect of a mutually recursive callee was not propagated")
	}
	if set.CallsUnknown {
		t.Errorf("declared callees flagged as unknown: %v", set.UnknownCallees.Elements())
	}
}

func TestMemoized(t *testing.T) {
	const src = `package main

func move(a int) int {
	return a + 1
}
`
	a := analyzeFunc(t, src, "move", effects.Config{})
	body := a.Table().Func().Body
	if a.Of(body) != a.Of(body) {
		t.Error("effect sets are recomputed on every query")
	}
}
