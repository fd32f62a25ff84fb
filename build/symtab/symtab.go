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

// Package symtab resolves every identifier occurrence of a function body
// to a symbol.
//
// Resolution is a pure function of the tree: it never fails and never
// mutates a node. A name with no visible declaration that is not a
// recognized builtin resolves to a symbol of kind unknown, which later
// stages treat as maximally conservative: it may alias anything and, as
// a callee, may do anything.
package symtab

import (
	"go/token"

	"github.com/gx-org/autopar/build/builtins"
	"github.com/gx-org/autopar/ir"
)

// Table maps the identifier occurrences of one function to their symbols.
type Table struct {
	fn     *ir.FuncDecl
	module *ir.Scope
	scopes map[ir.Node]*ir.Scope
	refs   map[*ir.Ident]*ir.Symbol
	kinds  map[*ir.Ident]ir.SymbolKind

	// unknowns shares one record per unresolved name, so that all
	// references to the same free name denote the same variable.
	unknowns map[string]*ir.Symbol
	builtins map[string]*ir.Symbol
}

// Build resolves the body of fn against the module-level declarations
// of file and returns the resolution table.
func Build(file *ir.File, fn *ir.FuncDecl) *Table {
	t := &Table{
		fn:       fn,
		scopes:   make(map[ir.Node]*ir.Scope),
		refs:     make(map[*ir.Ident]*ir.Symbol),
		kinds:    make(map[*ir.Ident]ir.SymbolKind),
		unknowns: make(map[string]*ir.Symbol),
		builtins: make(map[string]*ir.Symbol),
	}
	t.module = t.buildModuleScope(file)
	t.buildFunc(fn, fn.Name, fn.FType, fn.Body, t.module)
	return t
}

// Func returns the function the table resolves.
func (t *Table) Func() *ir.FuncDecl {
	return t.fn
}

// ModuleScope returns the scope holding the module-level declarations.
func (t *Table) ModuleScope() *ir.Scope {
	return t.module
}

// Resolve returns the symbol denoted by an identifier occurrence.
// Returns nil for identifiers outside the function the table was
// built for.
func (t *Table) Resolve(id *ir.Ident) *ir.Symbol {
	return t.refs[id]
}

// KindAt returns how the symbol denoted by id is visible at that
// occurrence. A local of an enclosing function referenced inside a
// function literal is reported as captured.
func (t *Table) KindAt(id *ir.Ident) ir.SymbolKind {
	kind, ok := t.kinds[id]
	if !ok {
		return ir.UnknownSymbol
	}
	return kind
}

// ScopeOf returns the scope owned by a function, block or loop node.
func (t *Table) ScopeOf(n ir.Node) *ir.Scope {
	return t.scopes[n]
}

func (t *Table) buildModuleScope(file *ir.File) *ir.Scope {
	module := ir.NewScope(file, nil)
	for _, g := range file.Globals {
		sym := &ir.Symbol{
			Name: g.Name.Name,
			Kind: ir.GlobalSymbol,
			Typ:  g.Typ,
			Decl: g.Source(),
		}
		module.Define(sym)
		t.record(g.Name, sym, ir.GlobalSymbol)
	}
	for _, fn := range file.Funcs {
		module.Define(&ir.Symbol{
			Name: fn.Name.Name,
			Kind: ir.GlobalSymbol,
			Decl: fn.Source(),
			Func: fn,
		})
	}
	return module
}

// funcRoot is the resolution state of one function: the scope holding
// its parameters and whether crossing it captures.
type funcRoot struct {
	scope *ir.Scope
	inner bool // true for function literals
}

type resolver struct {
	table *Table
	roots []*funcRoot
}

func (t *Table) buildFunc(owner ir.Node, name *ir.Ident, ftype *ir.FuncType, body *ir.BlockStmt, parent *ir.Scope) {
	r := &resolver{table: t}
	r.pushFunc(owner, name, ftype, parent, false)
	r.block(body, r.current())
}

func (r *resolver) pushFunc(owner ir.Node, name *ir.Ident, ftype *ir.FuncType, parent *ir.Scope, inner bool) {
	scope := ir.NewScope(owner, parent)
	r.table.scopes[owner] = scope
	for _, param := range ftype.Params {
		sym := &ir.Symbol{
			Name: param.Name.Name,
			Kind: ir.ParamSymbol,
			Typ:  param.Typ,
			Decl: param.Source(),
		}
		scope.Define(sym)
		r.table.record(param.Name, sym, ir.ParamSymbol)
	}
	r.roots = append(r.roots, &funcRoot{scope: scope, inner: inner})
	if name != nil {
		if sym, ok := parent.Find(name.Name); ok {
			r.table.record(name, sym, sym.Kind)
		}
	}
}

func (r *resolver) popFunc() {
	r.roots = r.roots[:len(r.roots)-1]
}

func (r *resolver) current() *ir.Scope {
	return r.roots[len(r.roots)-1].scope
}

func (t *Table) record(id *ir.Ident, sym *ir.Symbol, kind ir.SymbolKind) {
	t.refs[id] = sym
	t.kinds[id] = kind
}

// resolve finds the symbol for a name visible from scope, recording how
// the occurrence sees it. Unresolved names become unknown symbols.
func (r *resolver) resolve(id *ir.Ident, from *ir.Scope) *ir.Symbol {
	sym, crossed := r.find(id.Name, from)
	if sym == nil {
		sym = r.unknown(id.Name)
	}
	kind := sym.Kind
	if crossed && (kind == ir.LocalSymbol || kind == ir.ParamSymbol) {
		kind = ir.CapturedSymbol
	}
	r.table.record(id, sym, kind)
	return sym
}

// find walks the scope chain. The second result is true if the
// resolution crossed a function literal boundary.
func (r *resolver) find(name string, from *ir.Scope) (*ir.Symbol, bool) {
	crossed := false
	for s := from; s != nil; s = s.Parent() {
		if sym, ok := s.FindLocal(name); ok {
			return sym, crossed
		}
		for _, root := range r.roots {
			if root.scope == s && root.inner {
				crossed = true
			}
		}
	}
	if builtins.Is(name) {
		return r.builtin(name), false
	}
	return nil, false
}

func (r *resolver) unknown(name string) *ir.Symbol {
	sym, ok := r.table.unknowns[name]
	if !ok {
		sym = &ir.Symbol{Name: name, Kind: ir.UnknownSymbol}
		r.table.unknowns[name] = sym
	}
	return sym
}

func (r *resolver) builtin(name string) *ir.Symbol {
	sym, ok := r.table.builtins[name]
	if !ok {
		sym = &ir.Symbol{Name: name, Kind: ir.BuiltinSymbol}
		r.table.builtins[name] = sym
	}
	return sym
}

func (r *resolver) block(block *ir.BlockStmt, parent *ir.Scope) {
	scope := ir.NewScope(block, parent)
	r.table.scopes[block] = scope
	for _, stmt := range block.List {
		r.stmt(stmt, scope)
	}
}

func (r *resolver) stmt(stmt ir.Stmt, scope *ir.Scope) {
	switch stmtT := stmt.(type) {
	case *ir.AssignStmt:
		r.assign(stmtT, scope)
	case *ir.ExprStmt:
		r.expr(stmtT.X, scope)
	case *ir.ReturnStmt:
		if stmtT.Value != nil {
			r.expr(stmtT.Value, scope)
		}
	case *ir.IfStmt:
		r.expr(stmtT.Cond, scope)
		r.block(stmtT.Body, scope)
		if stmtT.Else != nil {
			r.stmt(stmtT.Else, scope)
		}
	case *ir.ForStmt:
		r.forStmt(stmtT, scope)
	case *ir.BlockStmt:
		r.block(stmtT, scope)
	}
}

func (r *resolver) assign(stmt *ir.AssignStmt, scope *ir.Scope) {
	r.expr(stmt.Rhs, scope)
	switch lhs := stmt.Lhs.(type) {
	case *ir.Ident:
		if stmt.Tok == token.DEFINE {
			r.define(lhs, scope, r.typeOf(stmt.Rhs, scope))
			return
		}
		r.resolve(lhs, scope)
	case *ir.IndexExpr:
		r.expr(lhs.X, scope)
		r.expr(lhs.Index, scope)
	}
}

// define declares a fresh local, unless the same block already declared
// the name: redefinition in one scope denotes the same variable, while a
// definition in a nested scope shadows with a distinct symbol.
func (r *resolver) define(id *ir.Ident, scope *ir.Scope, typ ir.Type) {
	if sym, ok := scope.FindLocal(id.Name); ok {
		if sym.Typ == ir.InvalidType {
			sym.Typ = typ
		}
		r.table.record(id, sym, sym.Kind)
		return
	}
	sym := &ir.Symbol{
		Name: id.Name,
		Kind: ir.LocalSymbol,
		Typ:  typ,
		Decl: id.Source(),
	}
	scope.Define(sym)
	r.table.record(id, sym, ir.LocalSymbol)
}

// typeOf infers the static type of an expression, so that defined
// locals carry a type the way declared globals and parameters do.
// InvalidType means the type is not visible, never an error.
func (r *resolver) typeOf(x ir.Expr, scope *ir.Scope) ir.Type {
	switch xT := x.(type) {
	case *ir.BasicLit:
		return xT.Typ
	case *ir.SliceLit:
		return xT.Typ
	case *ir.Ident:
		if sym, ok := scope.Find(xT.Name); ok {
			return sym.Typ
		}
	case *ir.ParenExpr:
		return r.typeOf(xT.X, scope)
	case *ir.UnaryExpr:
		if xT.Op == token.NOT {
			return ir.BoolType
		}
		return r.typeOf(xT.X, scope)
	case *ir.BinaryExpr:
		switch xT.Op {
		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ, token.LAND, token.LOR:
			return ir.BoolType
		}
		return r.typeOf(xT.X, scope)
	case *ir.IndexExpr:
		return r.typeOf(xT.X, scope).Elem()
	case *ir.CallExpr:
		return r.callType(xT, scope)
	}
	return ir.InvalidType
}

func (r *resolver) callType(call *ir.CallExpr, scope *ir.Scope) ir.Type {
	callee := call.Callee()
	if callee == nil {
		return ir.InvalidType
	}
	// A declaration shadows a builtin of the same name.
	if sym, ok := scope.Find(callee.Name); ok {
		if sym.Func != nil {
			return sym.Func.FType.Result
		}
		return ir.InvalidType
	}
	switch callee.Name {
	case "len", "abs", "min", "max":
		return ir.IntType
	case "readln":
		return ir.StringType
	case "append":
		if len(call.Args) > 0 {
			return r.typeOf(call.Args[0], scope)
		}
	}
	return ir.InvalidType
}

func (r *resolver) forStmt(stmt *ir.ForStmt, parent *ir.Scope) {
	scope := ir.NewScope(stmt, parent)
	r.table.scopes[stmt] = scope
	if stmt.IsRange() {
		r.expr(stmt.Range, parent)
		r.define(stmt.Key, scope, ir.IntType)
		if stmt.Value != nil {
			r.define(stmt.Value, scope, r.typeOf(stmt.Range, parent).Elem())
		}
	} else {
		r.assignIn(stmt.Init, scope)
		r.expr(stmt.Cond, scope)
		r.assignIn(stmt.Post, scope)
	}
	r.block(stmt.Body, scope)
}

func (r *resolver) assignIn(stmt *ir.AssignStmt, scope *ir.Scope) {
	if stmt == nil {
		return
	}
	r.assign(stmt, scope)
}

func (r *resolver) expr(expr ir.Expr, scope *ir.Scope) {
	switch exprT := expr.(type) {
	case *ir.Ident:
		r.resolve(exprT, scope)
	case *ir.BasicLit:
	case *ir.SliceLit:
		for _, e := range exprT.Elems {
			r.expr(e, scope)
		}
	case *ir.UnaryExpr:
		r.expr(exprT.X, scope)
	case *ir.BinaryExpr:
		r.expr(exprT.X, scope)
		r.expr(exprT.Y, scope)
	case *ir.IndexExpr:
		r.expr(exprT.X, scope)
		r.expr(exprT.Index, scope)
	case *ir.CallExpr:
		r.expr(exprT.Fun, scope)
		for _, arg := range exprT.Args {
			r.expr(arg, scope)
		}
	case *ir.ParenExpr:
		r.expr(exprT.X, scope)
	case *ir.FuncLit:
		r.pushFunc(exprT, nil, exprT.FType, scope, true)
		r.block(exprT.Body, r.current())
		r.popFunc()
	}
}
