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

// Children returns the direct children of a node, in source order.
func Children(n Node) []Node {
	var children []Node
	add := func(ns ...Node) {
		for _, c := range ns {
			if ident, ok := c.(*Ident); ok && ident == nil {
				continue
			}
			if c == nil {
				continue
			}
			children = append(children, c)
		}
	}
	switch nT := n.(type) {
	case *File:
		for _, g := range nT.Globals {
			add(g)
		}
		for _, f := range nT.Funcs {
			add(f)
		}
	case *VarDecl:
		add(nT.Name)
		if nT.Value != nil {
			add(nT.Value)
		}
	case *FuncDecl:
		add(nT.Name, nT.FType, nT.Body)
	case *FuncType:
		for _, f := range nT.Params {
			add(f)
		}
	case *Field:
		add(nT.Name)
	case *BlockStmt:
		for _, s := range nT.List {
			add(s)
		}
	case *AssignStmt:
		add(nT.Lhs, nT.Rhs)
	case *ExprStmt:
		add(nT.X)
	case *ReturnStmt:
		if nT.Value != nil {
			add(nT.Value)
		}
	case *IfStmt:
		add(nT.Cond, nT.Body)
		if nT.Else != nil {
			add(nT.Else)
		}
	case *ForStmt:
		if nT.Key != nil {
			add(nT.Key)
		}
		if nT.Value != nil {
			add(nT.Value)
		}
		if nT.Range != nil {
			add(nT.Range)
		}
		if nT.Init != nil {
			add(nT.Init)
		}
		if nT.Cond != nil {
			add(nT.Cond)
		}
		if nT.Post != nil {
			add(nT.Post)
		}
		add(nT.Body)
	case *Ident, *BasicLit:
	case *SliceLit:
		for _, e := range nT.Elems {
			add(e)
		}
	case *UnaryExpr:
		add(nT.X)
	case *BinaryExpr:
		add(nT.X, nT.Y)
	case *IndexExpr:
		add(nT.X, nT.Index)
	case *CallExpr:
		add(nT.Fun)
		for _, a := range nT.Args {
			add(a)
		}
	case *ParenExpr:
		add(nT.X)
	case *FuncLit:
		add(nT.FType, nT.Body)
	case *ParallelTask:
		if nT.Key != nil {
			add(nT.Key)
		}
		if nT.Value != nil {
			add(nT.Value)
		}
		if nT.Range != nil {
			add(nT.Range)
		}
		if nT.Body != nil {
			add(nT.Body)
		}
		if nT.Elem != nil {
			add(nT.Elem)
		}
		if nT.Target != nil {
			add(nT.Target)
		}
		for _, u := range nT.Units {
			add(u)
		}
	}
	return children
}

// Visit calls f on n and all its descendants in depth-first pre-order.
// Children of a node for which f returns false are skipped.
func Visit(n Node, f func(Node) bool) {
	if n == nil {
		return
	}
	if !f(n) {
		return
	}
	for _, c := range Children(n) {
		Visit(c, f)
	}
}

// VisitPost calls f on all of n's descendants and then on n itself
// (post-order, children before parent).
func VisitPost(n Node, f func(Node)) {
	if n == nil {
		return
	}
	for _, c := range Children(n) {
		VisitPost(c, f)
	}
	f(n)
}

// ReplaceStmt swaps old for new in the child slot of old's parent within
// root. It returns false if old is not attached under root. The swap is
// the only structural mutation the package supports: either the slot is
// updated or the tree is left untouched.
func ReplaceStmt(root Node, old, new Stmt) bool {
	replaced := false
	Visit(root, func(n Node) bool {
		if replaced {
			return false
		}
		switch nT := n.(type) {
		case *BlockStmt:
			for i, s := range nT.List {
				if s == old {
					nT.List[i] = new
					replaced = true
					return false
				}
			}
		case *IfStmt:
			if nT.Else == old {
				nT.Else = new
				replaced = true
				return false
			}
		}
		return true
	})
	return replaced
}
