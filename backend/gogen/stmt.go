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

package gogen

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/gx-org/autopar/base/tmpl"
	"github.com/gx-org/autopar/ir"
)

// block renders a braced statement list. depth is the indentation
// level of the opening brace: statements indent one level deeper and
// the closing brace aligns with the opening line.
func (g *Generator) block(fn *ir.FuncDecl, block *ir.BlockStmt, depth int) (string, error) {
	body, err := tmpl.IterateFunc(block.List, func(_ int, stmt ir.Stmt) (string, error) {
		rendered, err := g.stmt(fn, stmt, depth+1)
		if err != nil {
			return "", err
		}
		return strings.Repeat("\t", depth+1) + rendered, nil
	})
	if err != nil {
		return "", err
	}
	if body == "" {
		return "{\n" + strings.Repeat("\t", depth) + "}", nil
	}
	return "{\n" + body + "\n" + strings.Repeat("\t", depth) + "}", nil
}

func (g *Generator) stmt(fn *ir.FuncDecl, stmt ir.Stmt, depth int) (string, error) {
	switch stmtT := stmt.(type) {
	case *ir.AssignStmt:
		lhs, err := g.expr(fn, stmtT.Lhs)
		if err != nil {
			return "", err
		}
		rhs, err := g.expr(fn, stmtT.Rhs)
		if err != nil {
			return "", err
		}
		return lhs + " " + stmtT.Tok.String() + " " + rhs, nil
	case *ir.ExprStmt:
		return g.expr(fn, stmtT.X)
	case *ir.ReturnStmt:
		if stmtT.Value == nil {
			return "return", nil
		}
		value, err := g.expr(fn, stmtT.Value)
		if err != nil {
			return "", err
		}
		return "return " + value, nil
	case *ir.IfStmt:
		return g.ifStmt(fn, stmtT, depth)
	case *ir.ForStmt:
		return g.forStmt(fn, stmtT, depth)
	case *ir.BlockStmt:
		return g.block(fn, stmtT, depth)
	case *ir.ParallelTask:
		return g.task(fn, stmtT, depth)
	}
	return "", errors.Errorf("cannot generate statement %T", stmt)
}

func (g *Generator) ifStmt(fn *ir.FuncDecl, stmt *ir.IfStmt, depth int) (string, error) {
	cond, err := g.expr(fn, stmt.Cond)
	if err != nil {
		return "", err
	}
	body, err := g.block(fn, stmt.Body, depth)
	if err != nil {
		return "", err
	}
	out := "if " + cond + " " + body
	if stmt.Else == nil {
		return out, nil
	}
	alt, err := g.stmt(fn, stmt.Else, depth)
	if err != nil {
		return "", err
	}
	return out + " else " + alt, nil
}

func (g *Generator) forStmt(fn *ir.FuncDecl, stmt *ir.ForStmt, depth int) (string, error) {
	body, err := g.block(fn, stmt.Body, depth)
	if err != nil {
		return "", err
	}
	if stmt.IsRange() {
		rng, err := g.expr(fn, stmt.Range)
		if err != nil {
			return "", err
		}
		head := "for " + stmt.Key.Name
		if stmt.Value != nil {
			head += ", " + stmt.Value.Name
		}
		return head + " := range " + rng + " " + body, nil
	}
	init, err := g.stmt(fn, stmt.Init, depth)
	if err != nil {
		return "", err
	}
	cond, err := g.expr(fn, stmt.Cond)
	if err != nil {
		return "", err
	}
	post, err := g.stmt(fn, stmt.Post, depth)
	if err != nil {
		return "", err
	}
	return "for " + init + "; " + cond + "; " + post + " " + body, nil
}

func (g *Generator) expr(fn *ir.FuncDecl, x ir.Expr) (string, error) {
	switch xT := x.(type) {
	case *ir.Ident:
		return xT.Name, nil
	case *ir.BasicLit:
		return xT.Value, nil
	case *ir.SliceLit:
		elems := make([]string, len(xT.Elems))
		for i, elem := range xT.Elems {
			rendered, err := g.expr(fn, elem)
			if err != nil {
				return "", err
			}
			elems[i] = rendered
		}
		return goType(xT.Typ) + "{" + strings.Join(elems, ", ") + "}", nil
	case *ir.UnaryExpr:
		operand, err := g.expr(fn, xT.X)
		if err != nil {
			return "", err
		}
		return xT.Op.String() + operand, nil
	case *ir.BinaryExpr:
		left, err := g.expr(fn, xT.X)
		if err != nil {
			return "", err
		}
		right, err := g.expr(fn, xT.Y)
		if err != nil {
			return "", err
		}
		return left + " " + xT.Op.String() + " " + right, nil
	case *ir.IndexExpr:
		base, err := g.expr(fn, xT.X)
		if err != nil {
			return "", err
		}
		index, err := g.expr(fn, xT.Index)
		if err != nil {
			return "", err
		}
		return base + "[" + index + "]", nil
	case *ir.CallExpr:
		return g.call(fn, xT)
	case *ir.ParenExpr:
		inner, err := g.expr(fn, xT.X)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *ir.FuncLit:
		return g.funcLit(fn, xT)
	}
	return "", errors.Errorf("cannot generate expression %T", x)
}

func (g *Generator) call(fn *ir.FuncDecl, call *ir.CallExpr) (string, error) {
	if callee := call.Callee(); callee != nil {
		if out, done, err := g.builtinCall(fn, callee.Name, call); done {
			return out, err
		}
	}
	fun, err := g.expr(fn, call.Fun)
	if err != nil {
		return "", err
	}
	args, err := g.args(fn, call)
	if err != nil {
		return "", err
	}
	return fun + "(" + args + ")", nil
}

func (g *Generator) funcLit(fn *ir.FuncDecl, lit *ir.FuncLit) (string, error) {
	params := make([]string, len(lit.FType.Params))
	for i, p := range lit.FType.Params {
		params[i] = p.Name.Name + " " + goType(p.Typ)
	}
	sig := "func(" + strings.Join(params, ", ") + ")"
	if lit.FType.Result != ir.VoidType {
		sig += " " + goType(lit.FType.Result)
	}
	body, err := g.block(fn, lit.Body, 0)
	if err != nil {
		return "", err
	}
	return sig + " " + body, nil
}
