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

package detect_test

import (
	"go/token"
	"strings"
	"testing"

	"github.com/gx-org/autopar/analysis/detect"
	"github.com/gx-org/autopar/analysis/effects"
	"github.com/gx-org/autopar/build/builder"
	"github.com/gx-org/autopar/ir"
)

func analyze(t *testing.T, src string, cfg detect.Config) (*ir.File, *effects.FileAnalysis) {
	t.Helper()
	file, err := builder.Parse(token.NewFileSet(), "test.seq", src)
	if err != nil {
		t.Fatalf("cannot build %q: %v", src, err)
	}
	return file, effects.AnalyzeFile(file, effects.Config{PureCalls: cfg.PureCalls})
}

func detectIn(t *testing.T, src, fn string, cfg detect.Config) []*detect.Region {
	t.Helper()
	file, fa := analyze(t, src, cfg)
	for _, decl := range file.Funcs {
		if decl.Name.Name == fn {
			return detect.Detect(fa, decl, cfg)
		}
	}
	t.Fatalf("function %s not declared", fn)
	return nil
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		src  string
		fn   string
		cfg  detect.Config

		wantAccepted bool
		wantShape    detect.Shape
		wantReason   detect.Reason
		wantDetail   string
	}{
		{
			name: "map over fresh collection",
			src: `package main

func twice(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, 2*x)
	}
	return out
}
`,
			fn:           "twice",
			wantAccepted: true,
			wantShape:    detect.ShapeMap,
		},
		{
			name: "append to existing collection",
			src: `package main

func extend(xs []int) []int {
	out := []int{0}
	for _, x := range xs {
		out = append(out, x+1)
	}
	return out
}
`,
			fn:           "extend",
			wantAccepted: true,
			wantShape:    detect.ShapeAppend,
		},
		{
			name: "scalar accumulation is loop-carried",
			src: `package main

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total = total + x
	}
	return total
}
`,
			fn:         "sum",
			wantReason: detect.UnsafeRegion,
		},
		{
			name: "op-assign accumulation is loop-carried",
			src: `package main

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
`,
			fn:         "sum",
			wantReason: detect.UnsafeRegion,
		},
		{
			name: "call to undeclared function",
			src: `package main

func apply(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, mystery(x))
	}
	return out
}
`,
			fn:         "apply",
			wantReason: detect.UnknownCall,
			wantDetail: "mystery",
		},
		{
			name: "allow-listed call is trusted pure",
			src: `package main

func apply(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, mystery(x))
	}
	return out
}
`,
			fn:           "apply",
			cfg:          detect.Config{PureCalls: []string{"mystery"}},
			wantAccepted: true,
			wantShape:    detect.ShapeMap,
		},
		{
			name: "declared pure helper needs no allow-list",
			src: `package main

func double(x int) int {
	return 2 * x
}

func apply(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, double(x))
	}
	return out
}
`,
			fn:           "apply",
			wantAccepted: true,
			wantShape:    detect.ShapeMap,
		},
		{
			name: "shared output stream",
			src: `package main

func report(xs []int) {
	for _, x := range xs {
		println(x)
	}
}
`,
			fn:         "report",
			wantReason: detect.SharedIO,
		},
		{
			name: "disjoint file output",
			src: `package main

func export(names []string) {
	for _, name := range names {
		writefile(name, 1)
	}
}
`,
			fn:           "export",
			wantAccepted: true,
			wantShape:    detect.ShapeForEach,
		},
		{
			name: "file output fed by shared input",
			src: `package main

func record(names []string) {
	for _, name := range names {
		writefile(name, readln())
	}
}
`,
			fn:         "record",
			wantReason: detect.SharedIO,
		},
		{
			name: "too few iterations",
			src: `package main

func one() []int {
	out := []int{}
	for _, x := range []int{7} {
		out = append(out, x)
	}
	return out
}
`,
			fn:         "one",
			wantReason: detect.TooSmall,
		},
		{
			name: "canonical counted loop",
			src: `package main

func squares(n int) []int {
	out := []int{}
	for i := 0; i < n; i += 1 {
		out = append(out, i*i)
	}
	return out
}
`,
			fn:           "squares",
			wantAccepted: true,
			wantShape:    detect.ShapeMap,
		},
		{
			name: "non-zero lower bound is not decomposable",
			src: `package main

func tail(xs []int, lo int) []int {
	out := []int{}
	for i := 1; i < len(xs); i += 1 {
		out = append(out, xs[i])
	}
	return out
}
`,
			fn:         "tail",
			wantReason: detect.UnsafeRegion,
		},
		{
			name: "write to captured scalar",
			src: `package main

func last(xs []int) int {
	seen := 0
	for _, x := range xs {
		seen = x
	}
	return seen
}
`,
			fn:         "last",
			wantReason: detect.UnsafeRegion,
		},
		{
			name: "index write into shared slice",
			src: `package main

func fill(xs []int) {
	for i, x := range xs {
		xs[i] = x + 1
	}
}
`,
			fn:         "fill",
			wantReason: detect.UnsafeRegion,
		},
		{
			name: "two accumulation targets",
			src: `package main

func split(xs []int) []int {
	evens := []int{}
	odds := []int{}
	for _, x := range xs {
		evens = append(evens, x)
		odds = append(odds, x)
	}
	return evens
}
`,
			fn:         "split",
			wantReason: detect.UnsafeRegion,
		},
		{
			name: "recursive associative reduction",
			src: `package main

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
`,
			fn:           "total",
			wantAccepted: true,
			wantShape:    detect.ShapeReduce,
		},
		{
			name: "recursion with side effects",
			src: `package main

func noisy(n int) int {
	if n < 2 {
		return n
	}
	println(n)
	return noisy(n-1) + noisy(n-2)
}
`,
			fn:         "noisy",
			wantReason: detect.SharedIO,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			regions := detectIn(t, test.src, test.fn, test.cfg)
			if len(regions) == 0 {
				t.Fatal("no candidate region detected")
			}
			region := regions[0]
			if region.Accepted != test.wantAccepted {
				t.Fatalf("accepted = %v (%s: %s), want %v", region.Accepted, region.Reason, region.Detail, test.wantAccepted)
			}
			if test.wantAccepted {
				if region.Shape != test.wantShape {
					t.Errorf("shape = %s, want %s", region.Shape, test.wantShape)
				}
				if region.Score <= 0 {
					t.Errorf("score = %d, want a positive benefit", region.Score)
				}
				return
			}
			if region.Reason != test.wantReason {
				t.Errorf("reason = %s (%s), want %s", region.Reason, region.Detail, test.wantReason)
			}
			if test.wantDetail != "" && !strings.Contains(region.Detail, test.wantDetail) {
				t.Errorf("detail = %q, want it to mention %q", region.Detail, test.wantDetail)
			}
		})
	}
}

const rankedSrc = `package main

var small = []int{1, 2, 3}

func work(xs []int) []int {
	tiny := []int{}
	for _, s := range small {
		tiny = append(tiny, s)
	}
	big := []int{}
	for _, x := range xs {
		big = append(big, x*x)
	}
	return big
}
`

func TestDetectRanking(t *testing.T) {
	regions := detectIn(t, rankedSrc, "work", detect.Config{})
	if len(regions) != 2 {
		t.Fatalf("detected %d regions, want 2", len(regions))
	}
	// The loop over the parameter slice has the larger estimated trip
	// count and must rank first.
	if regions[0].Score <= regions[1].Score {
		t.Errorf("scores not in descending order: %d then %d", regions[0].Score, regions[1].Score)
	}
	if regions[0].Pos <= regions[1].Pos {
		t.Errorf("expected the later, bigger loop first; got positions %d then %d", regions[0].Pos, regions[1].Pos)
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	first := detectIn(t, rankedSrc, "work", detect.Config{})
	second := detectIn(t, rankedSrc, "work", detect.Config{})
	if len(first) != len(second) {
		t.Fatalf("detected %d then %d regions", len(first), len(second))
	}
	for i := range first {
		if first[i].Accepted != second[i].Accepted || first[i].Shape != second[i].Shape || first[i].Score != second[i].Score {
			t.Errorf("region %d differs between runs: %+v then %+v", i, first[i], second[i])
		}
	}
}

func TestMinIterations(t *testing.T) {
	const src = `package main

func three() []int {
	out := []int{}
	for _, x := range []int{1, 2, 3} {
		out = append(out, x)
	}
	return out
}
`
	if region := detectIn(t, src, "three", detect.Config{})[0]; !region.Accepted {
		t.Errorf("three iterations rejected with the default minimum: %s (%s)", region.Reason, region.Detail)
	}
	region := detectIn(t, src, "three", detect.Config{MinIterations: 10})[0]
	if region.Accepted || region.Reason != detect.TooSmall {
		t.Errorf("three iterations not rejected with minimum 10: %+v", region)
	}
}

func TestPureCallsReachDependencyAnalysis(t *testing.T) {
	// The allow-list must take effect even when the effect analysis
	// ran without it.
	const src = `package main

func apply(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, mystery(x))
	}
	return out
}
`
	file, err := builder.Parse(token.NewFileSet(), "test.seq", src)
	if err != nil {
		t.Fatalf("cannot build %q: %v", src, err)
	}
	fa := effects.AnalyzeFile(file, effects.Config{})
	regions := detect.Detect(fa, file.Funcs[0], detect.Config{PureCalls: []string{"mystery"}})
	if len(regions) == 0 {
		t.Fatal("no candidate region detected")
	}
	region := regions[0]
	if !region.Accepted {
		t.Fatalf("accepted = false (%s: %s), want true", region.Reason, region.Detail)
	}
	if region.Shape != detect.ShapeMap {
		t.Errorf("shape = %s, want %s", region.Shape, detect.ShapeMap)
	}
}

func TestReport(t *testing.T) {
	regions := detectIn(t, rankedSrc, "work", detect.Config{})
	report := detect.NewReport(nil, regions)
	text := report.String()
	for _, want := range []string{"work", "map"} {
		if !strings.Contains(text, want) {
			t.Errorf("report %q does not mention %q", text, want)
		}
	}
}
