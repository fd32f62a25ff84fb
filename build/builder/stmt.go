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

func (b *builder) processBlockStmt(src *ast.BlockStmt) (*ir.BlockStmt, bool) {
	block := &ir.BlockStmt{Src: src}
	ok := true
	for _, stmt := range src.List {
		irStmt, stmtOk := b.processStmt(stmt)
		ok = ok && stmtOk
		if stmtOk {
			block.List = append(block.List, irStmt)
		}
	}
	return block, ok
}

func (b *builder) processStmt(src ast.Stmt) (ir.Stmt, bool) {
	switch srcT := src.(type) {
	case *ast.AssignStmt:
		return b.processAssignStmt(srcT)
	case *ast.IncDecStmt:
		return b.processIncDecStmt(srcT)
	case *ast.ExprStmt:
		return b.processExprStmt(srcT)
	case *ast.ReturnStmt:
		return b.processReturnStmt(srcT)
	case *ast.IfStmt:
		return b.processIfStmt(srcT)
	case *ast.RangeStmt:
		return b.processRangeStmt(srcT)
	case *ast.ForStmt:
		return b.processForStmt(srcT)
	case *ast.BlockStmt:
		return b.processBlockStmt(srcT)
	}
	return nil, b.ap.Appendf(src, "%T not supported", src)
}

var assignTokens = map[token.Token]bool{
	token.DEFINE:     true,
	token.ASSIGN:     true,
	token.ADD_ASSIGN: true,
	token.SUB_ASSIGN: true,
	token.MUL_ASSIGN: true,
}

func (b *builder) processAssignStmt(src *ast.AssignStmt) (*ir.AssignStmt, bool) {
	if !assignTokens[src.Tok] {
		return nil, b.ap.Appendf(src, "assignment operator %s not supported", src.Tok)
	}
	if len(src.Lhs) != 1 || len(src.Rhs) != 1 {
		return nil, b.ap.Appendf(src, "multiple assignment not supported")
	}
	stmt := &ir.AssignStmt{Src: src, Tok: src.Tok}
	var lhsOk bool
	stmt.Lhs, lhsOk = b.processAssignable(src.Lhs[0], src.Tok)
	var rhsOk bool
	stmt.Rhs, rhsOk = b.processExpr(src.Rhs[0])
	return stmt, lhsOk && rhsOk
}

func (b *builder) processAssignable(src ast.Expr, tok token.Token) (ir.Expr, bool) {
	switch srcT := src.(type) {
	case *ast.Ident:
		return processIdent(srcT), true
	case *ast.IndexExpr:
		if tok == token.DEFINE {
			return nil, b.ap.Appendf(src, "cannot define an element")
		}
		return b.processIndexExpr(srcT)
	}
	return nil, b.ap.Appendf(src, "cannot assign to %T", src)
}

// processIncDecStmt rewrites i++ and i-- into the equivalent op-assign,
// so later stages only ever see one update form.
func (b *builder) processIncDecStmt(src *ast.IncDecStmt) (*ir.AssignStmt, bool) {
	ident, ok := src.X.(*ast.Ident)
	if !ok {
		return nil, b.ap.Appendf(src, "%s on %T not supported", src.Tok, src.X)
	}
	tok := token.ADD_ASSIGN
	if src.Tok == token.DEC {
		tok = token.SUB_ASSIGN
	}
	return &ir.AssignStmt{
		Src: src,
		Tok: tok,
		Lhs: processIdent(ident),
		Rhs: &ir.BasicLit{Src: src.X, Typ: ir.IntType, Value: "1"},
	}, true
}

func (b *builder) processExprStmt(src *ast.ExprStmt) (*ir.ExprStmt, bool) {
	x, ok := b.processExpr(src.X)
	return &ir.ExprStmt{Src: src, X: x}, ok
}

func (b *builder) processReturnStmt(src *ast.ReturnStmt) (*ir.ReturnStmt, bool) {
	stmt := &ir.ReturnStmt{Src: src}
	if len(src.Results) > 1 {
		return nil, b.ap.Appendf(src, "multiple results not supported")
	}
	ok := true
	if len(src.Results) == 1 {
		stmt.Value, ok = b.processExpr(src.Results[0])
	}
	return stmt, ok
}

func (b *builder) processIfStmt(src *ast.IfStmt) (*ir.IfStmt, bool) {
	if src.Init != nil {
		return nil, b.ap.Appendf(src, "if statement with init not supported")
	}
	stmt := &ir.IfStmt{Src: src}
	var condOk bool
	stmt.Cond, condOk = b.processExpr(src.Cond)
	var bodyOk bool
	stmt.Body, bodyOk = b.processBlockStmt(src.Body)
	elseOk := true
	switch elseT := src.Else.(type) {
	case nil:
	case *ast.BlockStmt:
		stmt.Else, elseOk = b.processBlockStmt(elseT)
	case *ast.IfStmt:
		stmt.Else, elseOk = b.processIfStmt(elseT)
	default:
		elseOk = b.ap.Appendf(src.Else, "%T not supported as an else branch", src.Else)
	}
	return stmt, condOk && bodyOk && elseOk
}

func (b *builder) processLoopVar(src ast.Expr) (*ir.Ident, bool) {
	if src == nil {
		return nil, true
	}
	ident, ok := src.(*ast.Ident)
	if !ok {
		return nil, b.ap.Appendf(src, "%T not supported as a loop variable", src)
	}
	return processIdent(ident), true
}

func (b *builder) processRangeStmt(src *ast.RangeStmt) (*ir.ForStmt, bool) {
	if src.Tok == token.ASSIGN {
		return nil, b.ap.Appendf(src, "range with assignment not supported")
	}
	stmt := &ir.ForStmt{Src: src}
	var keyOk bool
	stmt.Key, keyOk = b.processLoopVar(src.Key)
	if stmt.Key == nil {
		keyOk = b.ap.Appendf(src, "range without a loop variable not supported")
	}
	var valueOk bool
	stmt.Value, valueOk = b.processLoopVar(src.Value)
	var rangeOk bool
	stmt.Range, rangeOk = b.processExpr(src.X)
	var bodyOk bool
	stmt.Body, bodyOk = b.processBlockStmt(src.Body)
	return stmt, keyOk && valueOk && rangeOk && bodyOk
}

func (b *builder) processForStmt(src *ast.ForStmt) (*ir.ForStmt, bool) {
	if src.Init == nil || src.Cond == nil || src.Post == nil {
		return nil, b.ap.Appendf(src, "only 3-clause for loops are supported")
	}
	stmt := &ir.ForStmt{Src: src}
	initOk := true
	if init, ok := src.Init.(*ast.AssignStmt); ok {
		stmt.Init, initOk = b.processAssignStmt(init)
	} else {
		initOk = b.ap.Appendf(src.Init, "%T not supported as a loop init", src.Init)
	}
	var condOk bool
	stmt.Cond, condOk = b.processExpr(src.Cond)
	postOk := true
	switch postT := src.Post.(type) {
	case *ast.AssignStmt:
		stmt.Post, postOk = b.processAssignStmt(postT)
	case *ast.IncDecStmt:
		stmt.Post, postOk = b.processIncDecStmt(postT)
	default:
		postOk = b.ap.Appendf(src.Post, "%T not supported as a loop post statement", src.Post)
	}
	var bodyOk bool
	stmt.Body, bodyOk = b.processBlockStmt(src.Body)
	return stmt, initOk && condOk && postOk && bodyOk
}
