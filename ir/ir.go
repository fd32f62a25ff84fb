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

// Package ir is the autopar Intermediate Representation (IR) tree.
// The tree is built by the autopar builder
// [github.com/gx-org/autopar/build/builder]
// from sequential source code.
//
// The structure and semantic is modeled after the go/ast package.
// The tree owns its children exclusively: a node has exactly one parent.
// Once built, a tree is only mutated by the transformation engine,
// which replaces one subtree atomically.
package ir

import (
	"go/ast"
	"go/token"
)

// ----------------------------------------------------------------------------
// Types of node in the tree.
type (
	// Node in the tree.
	Node interface {
		// node marks a structure as a node structure.
		// It prevents external implementations of the interface.
		// It prevents using arbitrary structure in this package to be used as nodes.
		node()

		// String returns a string representation of the node.
		String() string
	}

	// SourceNode is a node with a position in the analyzed source code.
	SourceNode interface {
		Node
		Source() ast.Node
	}

	// Stmt is a statement node.
	Stmt interface {
		SourceNode
		stmtNode()
	}

	// Expr is an expression node.
	Expr interface {
		SourceNode
		exprNode()
	}
)

// ----------------------------------------------------------------------------
// Declarations.
type (
	// File is the root of the tree built from one source file.
	File struct {
		Src     *ast.File
		Package string
		Globals []*VarDecl
		Funcs   []*FuncDecl
	}

	// VarDecl declares a module-level variable.
	VarDecl struct {
		Src   *ast.ValueSpec
		Name  *Ident
		Typ   Type
		Value Expr
	}

	// FuncDecl declares a function.
	FuncDecl struct {
		Src   *ast.FuncDecl
		Name  *Ident
		FType *FuncType
		Body  *BlockStmt
	}

	// FuncType is the signature of a function declaration or literal.
	FuncType struct {
		Src    *ast.FuncType
		Params []*Field
		Result Type
	}

	// Field is one named parameter of a function signature.
	Field struct {
		Src  *ast.Field
		Name *Ident
		Typ  Type
	}
)

func (*File) node()     {}
func (*VarDecl) node()  {}
func (*FuncDecl) node() {}
func (*FuncType) node() {}
func (*Field) node()    {}

// Source returns the node in the source code.
func (f *File) Source() ast.Node { return f.Src }

// Source returns the node in the source code.
func (d *VarDecl) Source() ast.Node { return d.Src }

// Source returns the node in the source code.
func (f *FuncDecl) Source() ast.Node { return f.Src }

// Source returns the node in the source code.
func (f *FuncType) Source() ast.Node { return f.Src }

// Source returns the node in the source code.
func (f *Field) Source() ast.Node { return f.Src }

// ----------------------------------------------------------------------------
// Statements.
type (
	// BlockStmt is an ordered sequence of statements with its own scope.
	BlockStmt struct {
		Src  *ast.BlockStmt
		List []Stmt
	}

	// AssignStmt defines a variable (token.DEFINE), assigns to storage
	// (token.ASSIGN) or updates it in place (token.ADD_ASSIGN and friends).
	// The builder rewrites i++ and i-- into the equivalent op-assign.
	AssignStmt struct {
		Src ast.Stmt
		Tok token.Token
		Lhs Expr
		Rhs Expr
	}

	// ExprStmt evaluates an expression for its effects, discarding the result.
	ExprStmt struct {
		Src *ast.ExprStmt
		X   Expr
	}

	// ReturnStmt returns from the enclosing function.
	ReturnStmt struct {
		Src   *ast.ReturnStmt
		Value Expr // nil for a bare return.
	}

	// IfStmt is an if statement with an optional else branch.
	IfStmt struct {
		Src  *ast.IfStmt
		Cond Expr
		Body *BlockStmt
		Else Stmt // *BlockStmt, *IfStmt, or nil.
	}

	// ForStmt is a loop in any of its source forms:
	// for i := range n, for i, v := range xs,
	// or the 3-clause for i := 0; i < n; i++.
	//
	// Range forms set Key, Value (optional) and Range.
	// The 3-clause form sets Init, Cond and Post instead.
	ForStmt struct {
		Src ast.Stmt

		Key   *Ident
		Value *Ident
		Range Expr

		Init *AssignStmt
		Cond Expr
		Post *AssignStmt

		Body *BlockStmt
	}
)

func (*BlockStmt) node()  {}
func (*AssignStmt) node() {}
func (*ExprStmt) node()   {}
func (*ReturnStmt) node() {}
func (*IfStmt) node()     {}
func (*ForStmt) node()    {}

func (*BlockStmt) stmtNode()  {}
func (*AssignStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}
func (*ReturnStmt) stmtNode() {}
func (*IfStmt) stmtNode()     {}
func (*ForStmt) stmtNode()    {}

// Source returns the node in the source code.
func (s *BlockStmt) Source() ast.Node { return s.Src }

// Source returns the node in the source code.
func (s *AssignStmt) Source() ast.Node { return s.Src }

// Source returns the node in the source code.
func (s *ExprStmt) Source() ast.Node { return s.Src }

// Source returns the node in the source code.
func (s *ReturnStmt) Source() ast.Node { return s.Src }

// Source returns the node in the source code.
func (s *IfStmt) Source() ast.Node { return s.Src }

// Source returns the node in the source code.
func (s *ForStmt) Source() ast.Node { return s.Src }

// IsRange returns true for the range loop forms.
func (s *ForStmt) IsRange() bool {
	return s.Range != nil
}

// AppendPattern reports whether the statement is the monotonic append
// pattern x = append(x, elem). It returns the target identifier and the
// appended element.
func (s *AssignStmt) AppendPattern() (target *Ident, elem Expr, ok bool) {
	if s.Tok != token.ASSIGN {
		return nil, nil, false
	}
	lhs, ok := s.Lhs.(*Ident)
	if !ok {
		return nil, nil, false
	}
	call, ok := s.Rhs.(*CallExpr)
	if !ok {
		return nil, nil, false
	}
	fun, ok := call.Fun.(*Ident)
	if !ok || fun.Name != "append" || len(call.Args) != 2 {
		return nil, nil, false
	}
	arg0, ok := call.Args[0].(*Ident)
	if !ok || arg0.Name != lhs.Name {
		return nil, nil, false
	}
	return lhs, call.Args[1], true
}

// ----------------------------------------------------------------------------
// Expressions.
type (
	// Ident is one occurrence of an identifier.
	// Name resolution is external to the tree: the symbol table maps
	// each occurrence to its symbol.
	Ident struct {
		Src  *ast.Ident
		Name string
	}

	// BasicLit is an int, string, or bool literal.
	// Value holds the raw source text of the literal.
	BasicLit struct {
		Src   ast.Expr
		Typ   Type
		Value string
	}

	// SliceLit is a slice literal, possibly empty: []int{1, 2, 3}.
	SliceLit struct {
		Src   *ast.CompositeLit
		Typ   Type
		Elems []Expr
	}

	// UnaryExpr applies - or ! to an operand.
	UnaryExpr struct {
		Src *ast.UnaryExpr
		Op  token.Token
		X   Expr
	}

	// BinaryExpr applies a binary operator to two operands.
	BinaryExpr struct {
		Src  *ast.BinaryExpr
		Op   token.Token
		X, Y Expr
	}

	// IndexExpr reads one element of a slice.
	IndexExpr struct {
		Src      *ast.IndexExpr
		X, Index Expr
	}

	// CallExpr calls a function: a builtin, a declared function,
	// or a function value.
	CallExpr struct {
		Src  *ast.CallExpr
		Fun  Expr
		Args []Expr
	}

	// ParenExpr is a parenthesized expression.
	ParenExpr struct {
		Src *ast.ParenExpr
		X   Expr
	}

	// FuncLit is a function literal. Identifiers that resolve across
	// the literal's boundary are captured.
	FuncLit struct {
		Src   *ast.FuncLit
		FType *FuncType
		Body  *BlockStmt
	}
)

func (*Ident) node()      {}
func (*BasicLit) node()   {}
func (*SliceLit) node()   {}
func (*UnaryExpr) node()  {}
func (*BinaryExpr) node() {}
func (*IndexExpr) node()  {}
func (*CallExpr) node()   {}
func (*ParenExpr) node()  {}
func (*FuncLit) node()    {}

func (*Ident) exprNode()      {}
func (*BasicLit) exprNode()   {}
func (*SliceLit) exprNode()   {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*IndexExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*ParenExpr) exprNode()  {}
func (*FuncLit) exprNode()    {}

// Source returns the node in the source code.
func (x *Ident) Source() ast.Node { return x.Src }

// Source returns the node in the source code.
func (x *BasicLit) Source() ast.Node { return x.Src }

// Source returns the node in the source code.
func (x *SliceLit) Source() ast.Node { return x.Src }

// Source returns the node in the source code.
func (x *UnaryExpr) Source() ast.Node { return x.Src }

// Source returns the node in the source code.
func (x *BinaryExpr) Source() ast.Node { return x.Src }

// Source returns the node in the source code.
func (x *IndexExpr) Source() ast.Node { return x.Src }

// Source returns the node in the source code.
func (x *CallExpr) Source() ast.Node { return x.Src }

// Source returns the node in the source code.
func (x *ParenExpr) Source() ast.Node { return x.Src }

// Source returns the node in the source code.
func (x *FuncLit) Source() ast.Node { return x.Src }

// Callee returns the called identifier, unwrapping parentheses.
// Returns nil if the call target is not a plain identifier.
func (x *CallExpr) Callee() *Ident {
	fun := x.Fun
	for {
		paren, ok := fun.(*ParenExpr)
		if !ok {
			break
		}
		fun = paren.X
	}
	ident, _ := fun.(*Ident)
	return ident
}

// ----------------------------------------------------------------------------
// Parallel task.

// CombineKind is the combining operation of a parallel task.
type CombineKind int

const (
	// CombineOrderedAppend combines unit results by appending them to the
	// target collection in unit index order, regardless of completion order.
	CombineOrderedAppend CombineKind = iota + 1
	// CombineReduce folds unit results with one associative operator.
	CombineReduce
)

// String returns the name of the combining operation.
func (k CombineKind) String() string {
	switch k {
	case CombineOrderedAppend:
		return "ordered-append"
	case CombineReduce:
		return "reduce"
	}
	return "invalid"
}

// ParallelTask is the backend-agnostic parallel form spliced in by the
// transformation engine. It is an ordered sequence of independent work
// units, each closing over Captured, with a single combining operation.
//
// The ordered-append form replaces a loop: each unit binds Key (and Value)
// for one iteration, runs Body, and produces Elem; results are appended to
// Target in unit index order. The reduce form replaces the combining return
// of a self-recursive function: each unit evaluates one expression of
// Units; results are folded with Op and returned.
type ParallelTask struct {
	Src     ast.Node
	Combine CombineKind

	Key    *Ident
	Value  *Ident
	Range  Expr
	Body   *BlockStmt
	Elem   Expr
	Target *Ident

	Units []Expr
	Op    token.Token

	Captured   []*Symbol
	MaxWorkers int
}

func (*ParallelTask) node()     {}
func (*ParallelTask) stmtNode() {}

// Source returns the node in the source code.
func (s *ParallelTask) Source() ast.Node { return s.Src }
