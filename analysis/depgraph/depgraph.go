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

// Package depgraph decides whether two distinct iterations of a loop,
// executed in any relative order, could observably disagree with
// sequential execution.
//
// The builder restricts itself to symbols the iterations can interact
// through: writes to captured, global, or unknown symbols. Iterations
// are referenced symbolically by the loop variable; edges always relate
// consecutive iterations.
package depgraph

import (
	"fmt"
	"slices"

	"github.com/gx-org/autopar/analysis/effects"
	"github.com/gx-org/autopar/build/symtab"
	"github.com/gx-org/autopar/ir"
)

// Kind of a loop-carried dependency.
type Kind int

// All dependency kinds.
const (
	// Flow is a read-after-write dependency: an iteration may read a
	// value a previous iteration wrote.
	Flow Kind = iota
	// Anti is a write-after-read dependency: an iteration may
	// overwrite a value a previous iteration still reads.
	Anti
	// Output is a write-after-write dependency: the final value
	// depends on iteration order.
	Output
)

var kindNames = [...]string{
	Flow:   "flow",
	Anti:   "anti",
	Output: "output",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// IterationRef references an iteration symbolically, by an expression
// over the loop variable.
type IterationRef string

// Edge is one piece of loop-carried dependency evidence.
type Edge struct {
	From, To IterationRef
	Sym      *ir.Symbol
	Kind     Kind
}

// String returns a description of the edge.
func (e Edge) String() string {
	return fmt.Sprintf("%s dependency on %s between iterations %s and %s", e.Kind, e.Sym.Name, e.From, e.To)
}

// Accum is a recognized benign accumulation: a monotonic append to a
// collection declared outside the loop that the loop never otherwise
// touches. It does not block parallelization but constrains the
// transformation to rebuild the sequential append order.
type Accum struct {
	Target *ir.Symbol
	Stmt   *ir.AssignStmt
	Ident  *ir.Ident
	Elem   ir.Expr
}

// Graph is the loop-carried dependency evidence of one loop.
type Graph struct {
	Loop  *ir.ForStmt
	Edges []Edge

	// Accums lists the benign accumulations of the body.
	Accums []*Accum

	// Unanalyzable is true if the body calls a function whose effects
	// cannot be analyzed; no edge evidence is reliable in that case.
	Unanalyzable bool
	// UnknownCallees lists the calls making the loop unanalyzable.
	UnknownCallees []string
}

// HasBlockingEdge returns true if any dependency edge blocks
// parallelization.
func (g *Graph) HasBlockingEdge() bool {
	return len(g.Edges) > 0
}

// Build constructs the dependency graph of a loop from the effect sets
// of its body and the region-relative symbol view. Callees listed in
// pure are trusted not to have effects: the graph is still built from
// the (conservative) effect sets even when such a call has no body to
// analyze.
func Build(a *effects.Analysis, view *symtab.RegionView, loop *ir.ForStmt, pure []string) *Graph {
	g := &Graph{Loop: loop}
	body := a.Of(loop.Body)
	if body.CallsUnknown {
		unknown := body.UnknownCallees.Elements()
		unknown = slices.DeleteFunc(unknown, func(callee string) bool {
			return slices.Contains(pure, callee)
		})
		if len(unknown) > 0 {
			g.Unanalyzable = true
			g.UnknownCallees = unknown
			return g
		}
	}
	b := &builder{a: a, view: view, loop: loop, graph: g}
	b.findAccums()
	from, to := b.iterRefs()
	for sym := range body.Writes.Iter() {
		if !view.Shared(sym) {
			continue
		}
		if b.isAccum(sym) {
			continue
		}
		order := b.defUseOrder(sym)
		switch {
		case order.readBefore:
			g.Edges = append(g.Edges, Edge{From: from, To: to, Sym: sym, Kind: Flow})
		case order.read:
			// Write-first reuse of a shared scalar: reads stay inside
			// one iteration, but the write itself races both the final
			// value and the other iterations' reads.
			g.Edges = append(g.Edges, Edge{From: from, To: to, Sym: sym, Kind: Anti})
			g.Edges = append(g.Edges, Edge{From: from, To: to, Sym: sym, Kind: Output})
		default:
			g.Edges = append(g.Edges, Edge{From: from, To: to, Sym: sym, Kind: Output})
		}
	}
	return g
}

type builder struct {
	a     *effects.Analysis
	view  *symtab.RegionView
	loop  *ir.ForStmt
	graph *Graph
}

func (b *builder) iterRefs() (IterationRef, IterationRef) {
	name := "i"
	if b.loop.Key != nil {
		name = b.loop.Key.Name
	} else if b.loop.Init != nil {
		if id, ok := b.loop.Init.Lhs.(*ir.Ident); ok {
			name = id.Name
		}
	}
	return IterationRef(name), IterationRef(name + "+1")
}

// findAccums recognizes x = append(x, elem) statements directly in the
// loop body, targeting a collection shared with the enclosing function.
func (b *builder) findAccums() {
	table := b.a.Table()
	for _, stmt := range b.loop.Body.List {
		assign, ok := stmt.(*ir.AssignStmt)
		if !ok {
			continue
		}
		target, elem, ok := assign.AppendPattern()
		if !ok {
			continue
		}
		sym := table.Resolve(target)
		if sym == nil || !b.view.Shared(sym) {
			continue
		}
		b.graph.Accums = append(b.graph.Accums, &Accum{
			Target: sym,
			Stmt:   assign,
			Ident:  target,
			Elem:   elem,
		})
	}
	// The accumulation is only benign if the loop never touches the
	// collection outside the recognized appends.
	var benign []*Accum
	for _, accum := range b.graph.Accums {
		if b.onlyAppendUses(accum) {
			benign = append(benign, accum)
		}
	}
	b.graph.Accums = benign
}

// onlyAppendUses verifies that every occurrence of the accumulation
// target inside the loop body belongs to its append statement.
func (b *builder) onlyAppendUses(accum *Accum) bool {
	table := b.a.Table()
	allowed := map[*ir.Ident]bool{accum.Ident: true}
	if call, ok := accum.Stmt.Rhs.(*ir.CallExpr); ok {
		if arg0, ok := call.Args[0].(*ir.Ident); ok {
			allowed[arg0] = true
		}
	}
	benign := true
	ir.Visit(b.loop.Body, func(n ir.Node) bool {
		id, ok := n.(*ir.Ident)
		if !ok {
			return benign
		}
		if table.Resolve(id) == accum.Target && !allowed[id] {
			benign = false
		}
		return benign
	})
	return benign
}

func (b *builder) isAccum(sym *ir.Symbol) bool {
	for _, accum := range b.graph.Accums {
		if accum.Target == sym {
			return true
		}
	}
	return false
}

type defUse struct {
	read       bool
	readBefore bool
	written    bool
	uncond     bool
}

// defUseOrder walks the top-level statements of the body in source
// order and records whether the symbol may be read before the iteration
// wrote it. A write nested under a condition or inner loop does not
// count as unconditional: a read after it may still see the previous
// iteration's value.
func (b *builder) defUseOrder(sym *ir.Symbol) defUse {
	var order defUse
	for _, stmt := range b.loop.Body.List {
		set := b.a.Of(stmt)
		if set.ReadsSym(sym) {
			order.read = true
			// Within one statement, reads evaluate before the write
			// commits, so a statement both reading and writing reads
			// first.
			if !order.uncond {
				order.readBefore = true
			}
		}
		if set.WritesSym(sym) {
			order.written = true
			if unconditionalWrite(stmt, sym, b.a) {
				order.uncond = true
			}
		}
	}
	return order
}

func unconditionalWrite(stmt ir.Stmt, sym *ir.Symbol, a *effects.Analysis) bool {
	assign, ok := stmt.(*ir.AssignStmt)
	if !ok {
		return false
	}
	return a.Of(assign).WritesSym(sym)
}
