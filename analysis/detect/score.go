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

package detect

import (
	"go/token"
	"strconv"

	"github.com/gx-org/autopar/ir"
)

// The benefit score is estimated iteration count times estimated
// per-iteration cost. Neither is guaranteed: iteration counts fall back
// to DefaultIterationEstimate when the trip count is not statically
// visible, and cost is a weighted node count where calls weigh
// CallCost, nested loops multiply by their own iteration estimate, and
// everything else weighs one.
const (
	// DefaultIterationEstimate stands in for trip counts that are not
	// statically visible, such as ranging over a parameter slice.
	DefaultIterationEstimate = 1000
	// CallCost is the per-node weight of a function call.
	CallCost = 5
	// RecursionEstimate scores the reduce shape, whose fan-out is not
	// statically visible.
	RecursionEstimate = 100
)

func (d *detector) estimateIterations(loop *ir.ForStmt) int {
	if loop.IsRange() {
		return d.estimateRange(loop.Range)
	}
	// Canonical 3-clause loop: i := lo; i < hi; i += 1.
	lo, loOk := intLit(loop.Init.Rhs)
	hi, hiOk := intLit(boundExpr(loop.Cond))
	if !loOk || !hiOk {
		return DefaultIterationEstimate
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

func (d *detector) estimateRange(x ir.Expr) int {
	switch xT := x.(type) {
	case *ir.BasicLit:
		if n, ok := intLit(xT); ok {
			return n
		}
	case *ir.SliceLit:
		return len(xT.Elems)
	case *ir.Ident:
		// A global initialized with a literal has a visible length.
		sym := d.a.Table().Resolve(xT)
		if sym == nil || sym.Kind != ir.GlobalSymbol {
			return DefaultIterationEstimate
		}
		if decl := d.globalDecl(sym); decl != nil && decl.Value != nil {
			return d.estimateRange(decl.Value)
		}
	case *ir.CallExpr:
		if callee := xT.Callee(); callee != nil && callee.Name == "len" && len(xT.Args) == 1 {
			return d.estimateRange(xT.Args[0])
		}
	}
	return DefaultIterationEstimate
}

func (d *detector) globalDecl(sym *ir.Symbol) *ir.VarDecl {
	for _, g := range d.fa.File().Globals {
		if g.Name.Name == sym.Name {
			return g
		}
	}
	return nil
}

// bodyCost is the per-iteration cost heuristic: a weighted node count.
func (d *detector) bodyCost(n ir.Node) int {
	cost := 0
	for _, c := range ir.Children(n) {
		cost += d.bodyCost(c)
	}
	switch nT := n.(type) {
	case *ir.CallExpr:
		cost += CallCost
	case *ir.ForStmt:
		// A nested loop runs its body once per inner iteration.
		cost *= d.estimateIterations(nT)
	default:
		cost++
	}
	return cost
}

// canonicalFor recognizes the decomposable 3-clause form
// i := 0; i < hi; i += 1 over one loop variable. The transformation
// normalizes it to a range over hi, so the lower bound must be zero.
func canonicalFor(loop *ir.ForStmt) bool {
	if loop.Init == nil || loop.Init.Tok != token.DEFINE {
		return false
	}
	name, ok := loop.Init.Lhs.(*ir.Ident)
	if !ok {
		return false
	}
	if lo, ok := intLit(loop.Init.Rhs); !ok || lo != 0 {
		return false
	}
	cond, ok := loop.Cond.(*ir.BinaryExpr)
	if !ok || cond.Op != token.LSS {
		return false
	}
	condVar, ok := cond.X.(*ir.Ident)
	if !ok || condVar.Name != name.Name {
		return false
	}
	if loop.Post == nil || loop.Post.Tok != token.ADD_ASSIGN {
		return false
	}
	postVar, ok := loop.Post.Lhs.(*ir.Ident)
	if !ok || postVar.Name != name.Name {
		return false
	}
	step, ok := intLit(loop.Post.Rhs)
	return ok && step == 1
}

func boundExpr(cond ir.Expr) ir.Expr {
	bin, ok := cond.(*ir.BinaryExpr)
	if !ok {
		return nil
	}
	return bin.Y
}

func intLit(x ir.Expr) (int, bool) {
	lit, ok := x.(*ir.BasicLit)
	if !ok || lit.Typ != ir.IntType {
		return 0, false
	}
	n, err := strconv.Atoi(lit.Value)
	if err != nil {
		return 0, false
	}
	return n, true
}
