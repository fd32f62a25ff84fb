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

	"github.com/gx-org/autopar/ir"
)

var associativeOps = map[token.Token]bool{
	token.ADD: true,
	token.MUL: true,
}

// recursion detects the reduce candidate: a self-recursive function
// whose recursive sub-calls are mutually independent and combined by
// one associative operator, as in return f(n-1) + f(n-2).
func (d *detector) recursion() *Region {
	ret, units, op := d.combiningReturn()
	if ret == nil {
		return nil
	}
	region := d.newRegion(ret)
	region.Units = units
	region.Op = op
	region.Shape = ShapeReduce
	set := d.a.Of(d.fn.Body)
	if set.CallsUnknown {
		return d.reject(region, UnknownCall, "call to %s cannot be analyzed", first(set.UnknownCallees.Elements()))
	}
	if set.HasIO {
		return d.reject(region, SharedIO, "recursive body performs input/output")
	}
	for sym := range set.Writes.Iter() {
		if sym.Kind == ir.GlobalSymbol || sym.Kind == ir.CapturedSymbol || sym.Kind == ir.UnknownSymbol {
			return d.reject(region, UnsafeRegion, "recursive body writes shared symbol %s", sym.Name)
		}
	}
	region.Accepted = true
	region.Score = RecursionEstimate * d.bodyCost(d.fn.Body)
	return region
}

// combiningReturn finds a return of the form f(a) op f(b) where f is
// the analyzed function itself.
func (d *detector) combiningReturn() (*ir.ReturnStmt, []*ir.CallExpr, token.Token) {
	var ret *ir.ReturnStmt
	var units []*ir.CallExpr
	var op token.Token
	ir.Visit(d.fn.Body, func(n ir.Node) bool {
		if ret != nil {
			return false
		}
		stmt, ok := n.(*ir.ReturnStmt)
		if !ok {
			return true
		}
		bin, ok := stmt.Value.(*ir.BinaryExpr)
		if !ok || !associativeOps[bin.Op] {
			return true
		}
		left, leftOk := d.selfCall(bin.X)
		right, rightOk := d.selfCall(bin.Y)
		if !leftOk || !rightOk {
			return true
		}
		ret, units, op = stmt, []*ir.CallExpr{left, right}, bin.Op
		return false
	})
	return ret, units, op
}

func (d *detector) selfCall(x ir.Expr) (*ir.CallExpr, bool) {
	call, ok := x.(*ir.CallExpr)
	if !ok {
		return nil, false
	}
	callee := call.Callee()
	if callee == nil {
		return nil, false
	}
	sym := d.a.Table().Resolve(callee)
	if sym == nil || sym.Func != d.fn {
		return nil, false
	}
	return call, true
}
