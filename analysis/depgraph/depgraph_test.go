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

package depgraph_test

import (
	"go/token"
	"testing"

	"github.com/gx-org/autopar/analysis/depgraph"
	"github.com/gx-org/autopar/analysis/effects"
	"github.com/gx-org/autopar/build/builder"
	"github.com/gx-org/autopar/ir"
)

func buildGraph(t *testing.T, src, fn string) *depgraph.Graph {
	t.Helper()
	return buildGraphTrusting(t, src, fn, nil)
}

func buildGraphTrusting(t *testing.T, src, fn string, pure []string) *depgraph.Graph {
	t.Helper()
	file, err := builder.Parse(token.NewFileSet(), "test.seq", src)
	if err != nil {
		t.Fatalf("cannot build %q: %v", src, err)
	}
	fa := effects.AnalyzeFile(file, effects.Config{})
	for _, decl := range file.Funcs {
		if decl.Name.Name != fn {
			continue
		}
		a := fa.Func(decl)
		var loop *ir.ForStmt
		ir.Visit(decl.Body, func(n ir.Node) bool {
			if forStmt, ok := n.(*ir.ForStmt); ok {
				loop = forStmt
			}
			return loop == nil
		})
		if loop == nil {
			t.Fatalf("no loop in %s", fn)
		}
		return depgraph.Build(a, a.Table().Region(loop), loop, pure)
	}
	t.Fatalf("function %s not declared", fn)
	return nil
}

func edgeKinds(g *depgraph.Graph) map[depgraph.Kind]int {
	kinds := map[depgraph.Kind]int{}
	for _, e := range g.Edges {
		kinds[e.Kind]++
	}
	return kinds
}

func TestEdges(t *testing.T) {
	tests := []struct {
		name string
		src  string
		fn   string
		want map[depgraph.Kind]int
	}{
		{
			name: "accumulation reads the previous iteration",
			src: `package main

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total = total + x
	}
	return total
}
`,
			fn:   "sum",
			want: map[depgraph.Kind]int{depgraph.Flow: 1},
		},
		{
			name: "write only races the final value",
			src: `package main

func last(xs []int) int {
	seen := 0
	for _, x := range xs {
		seen = x
	}
	return seen
}
`,
			fn:   "last",
			want: map[depgraph.Kind]int{depgraph.Output: 1},
		},
		{
			name: "write then read stays racy",
			src: `package main

func scratch(xs []int) int {
	tmp := 0
	hits := 0
	for _, x := range xs {
		tmp = x * 2
		hits = hits + tmp
	}
	return hits
}
`,
			fn: "scratch",
			// tmp: anti + output; hits: flow.
			want: map[depgraph.Kind]int{depgraph.Flow: 1, depgraph.Anti: 1, depgraph.Output: 1},
		},
		{
			name: "private locals carry nothing",
			src: `package main

func work(xs []int) {
	for _, x := range xs {
		y := x * 2
		y = y + 1
	}
}
`,
			fn:   "work",
			want: map[depgraph.Kind]int{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			g := buildGraph(t, test.src, test.fn)
			if g.Unanalyzable {
				t.Fatalf("loop flagged unanalyzable: %v", g.UnknownCallees)
			}
			got := edgeKinds(g)
			for kind, n := range test.want {
				if got[kind] != n {
					t.Errorf("%s edges = %d, want %d (all: %v)", kind, got[kind], n, g.Edges)
				}
			}
			if len(g.Edges) != total(test.want) {
				t.Errorf("graph has %d edges, want %d: %v", len(g.Edges), total(test.want), g.Edges)
			}
		})
	}
}

func total(want map[depgraph.Kind]int) int {
	n := 0
	for _, c := range want {
		n += c
	}
	return n
}

func TestBenignAccumulation(t *testing.T) {
	const src = `package main

func twice(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, 2*x)
	}
	return out
}
`
	g := buildGraph(t, src, "twice")
	if g.HasBlockingEdge() {
		t.Fatalf("benign accumulation produced edges: %v", g.Edges)
	}
	if len(g.Accums) != 1 {
		t.Fatalf("recognized %d accumulations, want 1", len(g.Accums))
	}
	accum := g.Accums[0]
	if accum.Target.Name != "out" {
		t.Errorf("accumulation target is %s, want out", accum.Target.Name)
	}
	if accum.Elem.String() != "2 * x" {
		t.Errorf("accumulation element is %s, want 2 * x", accum.Elem)
	}
}

func TestAccumulationReadElsewhereIsNotBenign(t *testing.T) {
	const src = `package main

func grow(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, x+len(out))
	}
	return out
}
`
	g := buildGraph(t, src, "grow")
	if len(g.Accums) != 0 {
		t.Errorf("self-reading accumulation recognized as benign: %v", g.Accums)
	}
	if !g.HasBlockingEdge() {
		t.Error("self-reading accumulation carries no dependency edge")
	}
}

func TestUnknownCallee(t *testing.T) {
	const src = `package main

func apply(xs []int) {
	for _, x := range xs {
		mystery(x)
	}
}
`
	g := buildGraph(t, src, "apply")
	if !g.Unanalyzable {
		t.Fatal("call to an undeclared function left the loop analyzable")
	}
	if len(g.UnknownCallees) != 1 || g.UnknownCallees[0] != "mystery" {
		t.Errorf("unknown callees = %v, want [mystery]", g.UnknownCallees)
	}
}

func TestVouchedCalleeKeepsGraphAnalyzable(t *testing.T) {
	const src = `package main

func apply(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, mystery(x))
	}
	return out
}
`
	g := buildGraphTrusting(t, src, "apply", []string{"mystery"})
	if g.Unanalyzable {
		t.Fatalf("vouched-for callee left the loop unanalyzable: %v", g.UnknownCallees)
	}
	if len(g.Accums) != 1 {
		t.Fatalf("accumulations = %d, want 1", len(g.Accums))
	}
	if g.HasBlockingEdge() {
		t.Errorf("edges = %v, want none", g.Edges)
	}
}
