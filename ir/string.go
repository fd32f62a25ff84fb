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
	"slices"
	"strings"

	gxfmt "github.com/gx-org/autopar/base/fmt"
	"github.com/gx-org/autopar/base/stringseq"
)

// String methods render nodes back to source notation. For every node
// kind except ParallelTask the output is valid source text of the
// analyzed language; backend generators are responsible for rendering
// ParallelTask nodes into executable code.

// String returns the source text of the file.
func (f *File) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n", f.Package)
	for _, g := range f.Globals {
		b.WriteString("\n" + g.String() + "\n")
	}
	for _, fn := range f.Funcs {
		b.WriteString("\n" + fn.String() + "\n")
	}
	return b.String()
}

// String returns the source text of the declaration.
func (d *VarDecl) String() string {
	if d.Value != nil {
		return fmt.Sprintf("var %s = %s", d.Name.Name, exprString(d.Value))
	}
	return fmt.Sprintf("var %s %s", d.Name.Name, d.Typ)
}

// String returns the source text of the function.
func (f *FuncDecl) String() string {
	return "func " + f.Name.Name + f.FType.String() + " " + f.Body.String()
}

// String returns the source text of the signature.
func (f *FuncType) String() string {
	s := "(" + stringseq.JoinStringer(slices.Values(f.Params), ", ") + ")"
	if f.Result != VoidType {
		s += " " + f.Result.String()
	}
	return s
}

// String returns the source text of the parameter.
func (f *Field) String() string {
	return f.Name.Name + " " + f.Typ.String()
}

// String returns the source text of the block.
func (s *BlockStmt) String() string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, stmt := range s.List {
		b.WriteString(gxfmt.Indent(stmtString(stmt) + "\n"))
	}
	b.WriteString("}")
	return b.String()
}

func stmtString(s Stmt) string {
	return fmt.Sprint(s)
}

func exprString(x Expr) string {
	return fmt.Sprint(x)
}

// String returns the source text of the statement.
func (s *AssignStmt) String() string {
	return fmt.Sprintf("%s %s %s", exprString(s.Lhs), s.Tok, exprString(s.Rhs))
}

// String returns the source text of the statement.
func (s *ExprStmt) String() string {
	return exprString(s.X)
}

// String returns the source text of the statement.
func (s *ReturnStmt) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + exprString(s.Value)
}

// String returns the source text of the statement.
func (s *IfStmt) String() string {
	str := "if " + exprString(s.Cond) + " " + s.Body.String()
	if s.Else != nil {
		str += " else " + stmtString(s.Else)
	}
	return str
}

// String returns the source text of the loop.
func (s *ForStmt) String() string {
	var head string
	switch {
	case s.IsRange() && s.Value != nil:
		head = fmt.Sprintf("for %s, %s := range %s", s.Key.Name, s.Value.Name, exprString(s.Range))
	case s.IsRange():
		head = fmt.Sprintf("for %s := range %s", s.Key.Name, exprString(s.Range))
	default:
		head = fmt.Sprintf("for %s; %s; %s", s.Init, exprString(s.Cond), s.Post)
	}
	return head + " " + s.Body.String()
}

// String returns the name of the identifier.
func (x *Ident) String() string {
	return x.Name
}

// String returns the source text of the literal.
func (x *BasicLit) String() string {
	return x.Value
}

// String returns the source text of the literal.
func (x *SliceLit) String() string {
	elems := make([]string, len(x.Elems))
	for i, e := range x.Elems {
		elems[i] = exprString(e)
	}
	return fmt.Sprintf("%s{%s}", x.Typ, strings.Join(elems, ", "))
}

// String returns the source text of the expression.
func (x *UnaryExpr) String() string {
	return x.Op.String() + exprString(x.X)
}

// String returns the source text of the expression.
func (x *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", exprString(x.X), x.Op, exprString(x.Y))
}

// String returns the source text of the expression.
func (x *IndexExpr) String() string {
	return fmt.Sprintf("%s[%s]", exprString(x.X), exprString(x.Index))
}

// String returns the source text of the call.
func (x *CallExpr) String() string {
	args := make([]string, len(x.Args))
	for i, a := range x.Args {
		args[i] = exprString(a)
	}
	return fmt.Sprintf("%s(%s)", exprString(x.Fun), strings.Join(args, ", "))
}

// String returns the source text of the expression.
func (x *ParenExpr) String() string {
	return "(" + exprString(x.X) + ")"
}

// String returns the source text of the function literal.
func (x *FuncLit) String() string {
	return "func" + x.FType.String() + " " + x.Body.String()
}

// String returns a readable, non-executable representation of the task.
func (s *ParallelTask) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parallel[%s, workers=%d]", s.Combine, s.MaxWorkers)
	switch s.Combine {
	case CombineOrderedAppend:
		if s.Value != nil {
			fmt.Fprintf(&b, " for %s, %s := range %s", s.Key.Name, s.Value.Name, exprString(s.Range))
		} else {
			fmt.Fprintf(&b, " for %s := range %s", s.Key.Name, exprString(s.Range))
		}
		b.WriteString(" " + s.Body.String())
		fmt.Fprintf(&b, " -> %s = append(%s, %s)", s.Target.Name, s.Target.Name, exprString(s.Elem))
	case CombineReduce:
		units := make([]string, len(s.Units))
		for i, u := range s.Units {
			units[i] = exprString(u)
		}
		fmt.Fprintf(&b, " return reduce(%s, %s)", s.Op, strings.Join(units, ", "))
	}
	return b.String()
}
