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

package builder

import (
	"go/ast"
	"go/token"

	"github.com/gx-org/autopar/ir"
)

var binaryOps = map[token.Token]bool{
	token.ADD: true, token.SUB: true, token.MUL: true,
	token.QUO: true, token.REM: true,
	token.EQL: true, token.NEQ: true,
	token.LSS: true, token.LEQ: true, token.GTR: true, token.GEQ: true,
	token.LAND: true, token.LOR: true,
}

func (b *builder) processExpr(src ast.Expr) (ir.Expr, bool) {
	switch srcT := src.(type) {
	case *ast.Ident:
		if srcT.Name == "true" || srcT.Name == "false" {
			return &ir.BasicLit{Src: srcT, Typ: ir.BoolType, Value: srcT.Name}, true
		}
		return processIdent(srcT), true
	case *ast.BasicLit:
		return b.processBasicLit(srcT)
	case *ast.CompositeLit:
		return b.processCompositeLit(srcT)
	case *ast.UnaryExpr:
		return b.processUnaryExpr(srcT)
	case *ast.BinaryExpr:
		return b.processBinaryExpr(srcT)
	case *ast.IndexExpr:
		return b.processIndexExpr(srcT)
	case *ast.CallExpr:
		return b.processCallExpr(srcT)
	case *ast.ParenExpr:
		x, ok := b.processExpr(srcT.X)
		return &ir.ParenExpr{Src: srcT, X: x}, ok
	case *ast.FuncLit:
		return b.processFuncLit(srcT)
	}
	return nil, b.ap.Appendf(src, "%T not supported", src)
}

func (b *builder) processBasicLit(src *ast.BasicLit) (*ir.BasicLit, bool) {
	lit := &ir.BasicLit{Src: src, Value: src.Value}
	switch src.Kind {
	case token.INT:
		lit.Typ = ir.IntType
	case token.STRING:
		lit.Typ = ir.StringType
	default:
		return nil, b.ap.Appendf(src, "%s literals not supported", src.Kind)
	}
	return lit, true
}

func (b *builder) processCompositeLit(src *ast.CompositeLit) (*ir.SliceLit, bool) {
	typ, typOk := b.processType(src.Type)
	if typOk && !typ.IsSlice() {
		return nil, b.ap.Appendf(src, "composite literal of type %s not supported", typ)
	}
	lit := &ir.SliceLit{Src: src, Typ: typ}
	ok := typOk
	for _, elt := range src.Elts {
		irElt, eltOk := b.processExpr(elt)
		ok = ok && eltOk
		if eltOk {
			lit.Elems = append(lit.Elems, irElt)
		}
	}
	return lit, ok
}

func (b *builder) processUnaryExpr(src *ast.UnaryExpr) (*ir.UnaryExpr, bool) {
	if src.Op != token.SUB && src.Op != token.NOT {
		return nil, b.ap.Appendf(src, "unary operator %s not supported", src.Op)
	}
	x, ok := b.processExpr(src.X)
	return &ir.UnaryExpr{Src: src, Op: src.Op, X: x}, ok
}

func (b *builder) processBinaryExpr(src *ast.BinaryExpr) (*ir.BinaryExpr, bool) {
	if !binaryOps[src.Op] {
		return nil, b.ap.Appendf(src, "binary operator %s not supported", src.Op)
	}
	x, xOk := b.processExpr(src.X)
	y, yOk := b.processExpr(src.Y)
	return &ir.BinaryExpr{Src: src, Op: src.Op, X: x, Y: y}, xOk && yOk
}

func (b *builder) processIndexExpr(src *ast.IndexExpr) (*ir.IndexExpr, bool) {
	x, xOk := b.processExpr(src.X)
	index, indexOk := b.processExpr(src.Index)
	return &ir.IndexExpr{Src: src, X: x, Index: index}, xOk && indexOk
}

func (b *builder) processCallExpr(src *ast.CallExpr) (*ir.CallExpr, bool) {
	if src.Ellipsis.IsValid() {
		return nil, b.ap.Appendf(src, "variadic calls not supported")
	}
	call := &ir.CallExpr{Src: src}
	var funOk bool
	call.Fun, funOk = b.processExpr(src.Fun)
	ok := funOk
	for _, arg := range src.Args {
		irArg, argOk := b.processExpr(arg)
		ok = ok && argOk
		if argOk {
			call.Args = append(call.Args, irArg)
		}
	}
	return call, ok
}

func (b *builder) processFuncLit(src *ast.FuncLit) (*ir.FuncLit, bool) {
	lit := &ir.FuncLit{Src: src}
	var ftypeOk bool
	lit.FType, ftypeOk = b.processFuncType(src.Type)
	var bodyOk bool
	lit.Body, bodyOk = b.processBlockStmt(src.Body)
	return lit, ftypeOk && bodyOk
}
