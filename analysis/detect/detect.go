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

// Package detect walks an analyzed function, applies the safety
// predicate to every candidate region, and ranks the survivors by
// estimated benefit.
//
// Candidates are loops and the combining return of self-recursive
// functions. Rejected candidates are never dropped: they keep their
// rejection reason for diagnostics. Detection is deterministic and
// idempotent: the same tree always yields the same ranked list.
package detect

import (
	"fmt"
	"go/token"
	"sort"

	"github.com/gx-org/autopar/analysis/depgraph"
	"github.com/gx-org/autopar/analysis/effects"
	"github.com/gx-org/autopar/build/symtab"
	"github.com/gx-org/autopar/ir"
)

// Config is the analysis configuration the detector honors.
type Config struct {
	// MinIterations rejects loops whose estimated iteration count is
	// below it: parallel overhead dominates tiny loops.
	MinIterations int
	// PureCalls lists function names vouched for as pure, exempting
	// their calls from the unknown-call rejection.
	PureCalls []string
}

// DefaultMinIterations is used when Config.MinIterations is zero.
const DefaultMinIterations = 2

func (cfg Config) minIterations() int {
	if cfg.MinIterations <= 0 {
		return DefaultMinIterations
	}
	return cfg.MinIterations
}

// Reason a candidate was rejected.
type Reason int

// All rejection reasons.
const (
	// NotRejected marks accepted candidates.
	NotRejected Reason = iota
	// UnknownCall: the body calls a function that cannot be analyzed.
	// Analysis is inconclusive, so the region is conservatively kept
	// sequential.
	UnknownCall
	// UnsafeRegion: an explicit loop-carried dependency was detected.
	UnsafeRegion
	// SharedIO: the body performs input/output on a stream shared
	// between iterations.
	SharedIO
	// TooSmall: the estimated iteration count is below the configured
	// minimum.
	TooSmall
)

var reasonNames = [...]string{
	NotRejected:  "",
	UnknownCall:  "UnknownCall",
	UnsafeRegion: "UnsafeRegion",
	SharedIO:     "SharedIO",
	TooSmall:     "TooSmall",
}

// String returns the name of the reason.
func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "invalid"
	}
	return reasonNames[r]
}

// Shape of an accepted region.
type Shape int

// All region shapes.
const (
	// ShapeInvalid marks rejected candidates.
	ShapeInvalid Shape = iota
	// ShapeMap: the loop builds a fresh collection through the
	// recognized append pattern.
	ShapeMap
	// ShapeAppend: the loop appends to a collection that existed
	// before it; same combination, target not fresh.
	ShapeAppend
	// ShapeForEach: the loop has no shared writes at all, only
	// per-iteration-disjoint effects.
	ShapeForEach
	// ShapeReduce: independent recursive sub-calls combined by one
	// associative operator.
	ShapeReduce
)

var shapeNames = [...]string{
	ShapeInvalid: "invalid",
	ShapeMap:     "map",
	ShapeAppend:  "append",
	ShapeForEach: "foreach",
	ShapeReduce:  "reduce",
}

// String returns the name of the shape.
func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return "invalid"
	}
	return shapeNames[s]
}

// Region is one candidate region with its safety verdict and benefit
// score. Accepted regions carry everything the transformation engine
// needs; rejected ones carry their rejection evidence.
type Region struct {
	Fn   *ir.FuncDecl
	Node ir.Node
	Pos  token.Pos

	Shape   Shape
	Private []*ir.Symbol
	Shared  []*ir.Symbol

	// Accum is the benign accumulation of map and append shapes.
	Accum *depgraph.Accum
	// Units and Op describe the reduce shape.
	Units []*ir.CallExpr
	Op    token.Token

	Accepted bool
	Reason   Reason
	Detail   string

	// Score estimates the benefit of parallelizing the region:
	// estimated iteration count times estimated per-iteration cost.
	Score int
}

// Location returns the position of the region in the source.
func (r *Region) Location(fset *token.FileSet) string {
	if fset == nil || !r.Pos.IsValid() {
		return r.Fn.Name.Name
	}
	return fset.Position(r.Pos).String()
}

// Detect analyzes every candidate region of one function and returns
// them ranked by descending benefit score, ties broken by source
// position, earliest first.
func Detect(fa *effects.FileAnalysis, fn *ir.FuncDecl, cfg Config) []*Region {
	d := &detector{
		fa:  fa,
		fn:  fn,
		a:   fa.Func(fn),
		cfg: cfg,
	}
	var regions []*Region
	ir.Visit(fn.Body, func(n ir.Node) bool {
		if loop, ok := n.(*ir.ForStmt); ok {
			regions = append(regions, d.loop(loop))
		}
		return true
	})
	if region := d.recursion(); region != nil {
		regions = append(regions, region)
	}
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Score != regions[j].Score {
			return regions[i].Score > regions[j].Score
		}
		return regions[i].Pos < regions[j].Pos
	})
	return regions
}

type detector struct {
	fa  *effects.FileAnalysis
	fn  *ir.FuncDecl
	a   *effects.Analysis
	cfg Config
}

func (d *detector) newRegion(n ir.Node) *Region {
	region := &Region{Fn: d.fn, Node: n}
	if src, ok := n.(ir.SourceNode); ok && src.Source() != nil {
		region.Pos = src.Source().Pos()
	}
	return region
}

func (d *detector) reject(region *Region, reason Reason, format string, args ...any) *Region {
	region.Accepted = false
	region.Reason = reason
	region.Detail = fmt.Sprintf(format, args...)
	return region
}

func (d *detector) loop(loop *ir.ForStmt) *Region {
	region := d.newRegion(loop)
	view := d.a.Table().Region(loop)
	d.partition(region, view, loop)
	graph := depgraph.Build(d.a, view, loop, d.cfg.PureCalls)
	if graph.Unanalyzable {
		return d.reject(region, UnknownCall, "call to %s cannot be analyzed", first(graph.UnknownCallees))
	}
	if graph.HasBlockingEdge() {
		return d.reject(region, UnsafeRegion, "%s", graph.Edges[0])
	}
	if len(graph.Accums) > 1 {
		return d.reject(region, UnsafeRegion, "more than one accumulation target")
	}
	bodySet := d.a.Of(loop.Body)
	if bodySet.HasIO && !d.disjointIO(loop) {
		return d.reject(region, SharedIO, "iterations share an input/output stream")
	}
	if !loop.IsRange() && !canonicalFor(loop) {
		return d.reject(region, UnsafeRegion, "iteration space is not statically decomposable")
	}
	iters := d.estimateIterations(loop)
	if iters < d.cfg.minIterations() {
		return d.reject(region, TooSmall, "estimated %d iterations, minimum is %d", iters, d.cfg.minIterations())
	}
	region.Accepted = true
	region.Score = iters * d.bodyCost(loop.Body)
	switch {
	case len(graph.Accums) == 1:
		region.Accum = graph.Accums[0]
		region.Shape = ShapeAppend
		if d.freshTarget(loop, region.Accum.Target) {
			region.Shape = ShapeMap
		}
	default:
		region.Shape = ShapeForEach
	}
	return region
}

// partition splits the symbols referenced by the loop body into
// loop-private and shared.
func (d *detector) partition(region *Region, view *symtab.RegionView, loop *ir.ForStmt) {
	set := d.a.Of(loop.Body)
	seen := map[*ir.Symbol]bool{}
	classify := func(sym *ir.Symbol) {
		if seen[sym] {
			return
		}
		seen[sym] = true
		if view.Classify(sym) == symtab.RegionPrivate {
			region.Private = append(region.Private, sym)
			return
		}
		region.Shared = append(region.Shared, sym)
	}
	for sym := range set.Reads.Iter() {
		classify(sym)
	}
	for sym := range set.Writes.Iter() {
		classify(sym)
	}
}

// disjointIO returns true if every input/output statement of the body
// targets a handle that depends on the loop variable, making the
// targets of distinct iterations disjoint.
func (d *detector) disjointIO(loop *ir.ForStmt) bool {
	table := d.a.Table()
	keySyms := d.loopVarSyms(loop)
	disjoint := true
	ir.Visit(loop.Body, func(n ir.Node) bool {
		call, ok := n.(*ir.CallExpr)
		if !ok {
			return disjoint
		}
		if !d.a.Of(call).HasIO {
			return false
		}
		callee := call.Callee()
		if callee == nil || callee.Name != "writefile" || len(call.Args) != 2 {
			disjoint = false
			return false
		}
		if !readsAny(table, call.Args[0], keySyms) {
			disjoint = false
			return false
		}
		// The arguments can hide their own input/output calls,
		// e.g. a readln feeding the payload.
		return disjoint
	})
	return disjoint
}

func (d *detector) loopVarSyms(loop *ir.ForStmt) map[*ir.Symbol]bool {
	table := d.a.Table()
	syms := map[*ir.Symbol]bool{}
	add := func(id *ir.Ident) {
		if id == nil {
			return
		}
		if sym := table.Resolve(id); sym != nil {
			syms[sym] = true
		}
	}
	add(loop.Key)
	add(loop.Value)
	if loop.Init != nil {
		if id, ok := loop.Init.Lhs.(*ir.Ident); ok {
			add(id)
		}
	}
	return syms
}

func readsAny(table *symtab.Table, x ir.Expr, syms map[*ir.Symbol]bool) bool {
	found := false
	ir.Visit(x, func(n ir.Node) bool {
		if id, ok := n.(*ir.Ident); ok && syms[table.Resolve(id)] {
			found = true
		}
		return !found
	})
	return found
}

// freshTarget returns true if the accumulation target is defined as an
// empty collection by the statement immediately preceding the loop.
func (d *detector) freshTarget(loop *ir.ForStmt, target *ir.Symbol) bool {
	prev := d.stmtBefore(loop)
	assign, ok := prev.(*ir.AssignStmt)
	if !ok || assign.Tok != token.DEFINE {
		return false
	}
	lhs, ok := assign.Lhs.(*ir.Ident)
	if !ok || d.a.Table().Resolve(lhs) != target {
		return false
	}
	lit, ok := assign.Rhs.(*ir.SliceLit)
	return ok && len(lit.Elems) == 0
}

func (d *detector) stmtBefore(loop *ir.ForStmt) ir.Stmt {
	var prev ir.Stmt
	var found ir.Stmt
	ir.Visit(d.fn.Body, func(n ir.Node) bool {
		block, ok := n.(*ir.BlockStmt)
		if !ok {
			return found == nil
		}
		for i, stmt := range block.List {
			if stmt == loop && i > 0 {
				prev = block.List[i-1]
				found = stmt
			}
		}
		return found == nil
	})
	return prev
}

func first(names []string) string {
	if len(names) == 0 {
		return "<unknown>"
	}
	return names[0]
}
