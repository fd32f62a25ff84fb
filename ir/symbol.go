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

package ir

import (
	"fmt"
	"go/ast"

	"github.com/gx-org/autopar/internal/base/scope"
)

// SymbolKind classifies how a symbol is visible at a reference.
type SymbolKind int

// All kinds of symbols.
const (
	// LocalSymbol is declared in the function holding the reference.
	LocalSymbol SymbolKind = iota
	// ParamSymbol is a parameter of the function holding the reference.
	ParamSymbol
	// CapturedSymbol is declared in an enclosing function and referenced
	// across a function literal boundary.
	CapturedSymbol
	// GlobalSymbol is a module-level variable.
	GlobalSymbol
	// BuiltinSymbol is a recognized builtin function.
	BuiltinSymbol
	// UnknownSymbol has no visible declaration. Unknown is never an error:
	// it propagates conservatively, as a name that may alias anything and
	// a callee that may do anything.
	UnknownSymbol
)

var symbolKindNames = [...]string{
	LocalSymbol:    "local",
	ParamSymbol:    "parameter",
	CapturedSymbol: "captured",
	GlobalSymbol:   "global",
	BuiltinSymbol:  "builtin",
	UnknownSymbol:  "unknown",
}

// String returns the name of the kind.
func (k SymbolKind) String() string {
	if k < 0 || int(k) >= len(symbolKindNames) {
		return "invalid"
	}
	return symbolKindNames[k]
}

// Symbol is one variable of the analyzed program.
// Two references denote the same variable iff they resolve to the same
// *Symbol: a declaration in a nested scope shadows, creating a distinct
// record with the same name.
type Symbol struct {
	Name string
	Kind SymbolKind
	Typ  Type
	// Decl is the declaring site in the source, for positions.
	// Nil for builtins and unknown names.
	Decl ast.Node
	// DeclScope is the scope owning the declaration.
	// Nil for builtins and unknown names.
	DeclScope *Scope
	// Func is the declaration of a module-level function name,
	// making the callee body available to the effect analyzer.
	Func *FuncDecl
}

// String returns the symbol name and kind.
func (s *Symbol) String() string {
	return fmt.Sprintf("%s(%s)", s.Name, s.Kind)
}

// Scope is an ordered sequence of symbol declarations owned by a
// function or block node. A child scope keeps a non-owning reference
// to its parent for lookup only.
type Scope struct {
	owner  Node
	parent *Scope
	syms   *scope.RWScope[*Symbol]
}

// NewScope returns a scope owned by a function or block node.
// The parent is nil for the module-level scope.
func NewScope(owner Node, parent *Scope) *Scope {
	var parentSyms scope.Scope[*Symbol]
	if parent != nil {
		parentSyms = parent.syms
	}
	return &Scope{owner: owner, parent: parent, syms: scope.NewScope(parentSyms)}
}

// Owner returns the node owning the scope.
func (s *Scope) Owner() Node {
	return s.owner
}

// Parent returns the enclosing scope, or nil for the module-level scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Define declares a symbol in this scope.
func (s *Scope) Define(sym *Symbol) {
	sym.DeclScope = s
	s.syms.Define(sym.Name, sym)
}

// Find resolves a name in this scope and its ancestors.
func (s *Scope) Find(name string) (*Symbol, bool) {
	return s.syms.Find(name)
}

// FindLocal resolves a name in this scope only.
func (s *Scope) FindLocal(name string) (*Symbol, bool) {
	if !s.syms.IsLocal(name) {
		return nil, false
	}
	return s.syms.Find(name)
}

// Encloses returns true if s is other or one of other's ancestors.
func (s *Scope) Encloses(other *Scope) bool {
	for o := other; o != nil; o = o.parent {
		if o == s {
			return true
		}
	}
	return false
}

// Symbols returns the symbols declared directly in this scope,
// in declaration order.
func (s *Scope) Symbols() []*Symbol {
	var syms []*Symbol
	for name := range s.syms.LocalKeys() {
		sym, _ := s.syms.Find(name)
		syms = append(syms, sym)
	}
	return syms
}
