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

// Package effects computes, for every node of a function body, the set
// of symbols read, the set of symbols written, and whether the node may
// perform an externally observable side effect.
//
// The analysis is a single post-order pass, memoized per node identity:
// a node's effect set is the union of its children's sets plus whatever
// the node itself introduces. It never fails; missing information always
// resolves to the most conservative summary.
//
// Calls to functions declared in the same file are folded through a
// per-function summary, computed to a fixpoint so that recursion does
// not loop. Calls to anything else that is not a recognized builtin or
// an allow-listed pure name are unknown: they flag the set and
// conservatively read and write every identifier of their arguments.
package effects

import (
	"go/token"

	"github.com/gx-org/autopar/base/ordered"
	"github.com/gx-org/autopar/build/builtins"
	"github.com/gx-org/autopar/build/symtab"
	"github.com/gx-org/autopar/ir"
)

// Set is the effect summary of one node. A set is never mutated after
// it has been computed for a given tree version.
type Set struct {
	Reads  *ordered.Set[*ir.Symbol]
	Writes *ordered.Set[*ir.Symbol]
	// CallsUnknown is true if the node calls a function whose body is
	// not available for analysis.
	CallsUnknown bool
	// HasIO is true if the node may perform input/output.
	HasIO bool
	// MayRaise is true if the node may raise an error.
	MayRaise bool
	// UnknownCallees lists the names called without an analyzable body.
	UnknownCallees *ordered.Set[string]
}

func newSet() *Set {
	return &Set{
		Reads:          ordered.NewSet[*ir.Symbol](),
		Writes:         ordered.NewSet[*ir.Symbol](),
		UnknownCallees: ordered.NewSet[string](),
	}
}

func (s *Set) union(o *Set) {
	s.Reads.AddAll(o.Reads)
	s.Writes.AddAll(o.Writes)
	s.CallsUnknown = s.CallsUnknown || o.CallsUnknown
	s.HasIO = s.HasIO || o.HasIO
	s.MayRaise = s.MayRaise || o.MayRaise
	s.UnknownCallees.AddAll(o.UnknownCallees)
}

// ReadsSym returns true if the node reads the symbol.
func (s *Set) ReadsSym(sym *ir.Symbol) bool {
	return s.Reads.Has(sym)
}

// WritesSym returns true if the node writes the symbol.
func (s *Set) WritesSym(sym *ir.Symbol) bool {
	return s.Writes.Has(sym)
}

// Config is the analysis configuration honored by the effect analyzer.
type Config struct {
	// PureCalls lists names the user vouches for as pure: calls to
	// them carry no effect besides reading their arguments.
	PureCalls []string
}

func (cfg Config) isPure(name string) bool {
	for _, p := range cfg.PureCalls {
		if p == name {
			return true
		}
	}
	return false
}

// FileAnalysis holds the symbol tables and function summaries of one file.
type FileAnalysis struct {
	file      *ir.File
	cfg       Config
	tables    map[*ir.FuncDecl]*symtab.Table
	summaries map[*ir.FuncDecl]*summary
}

// summary abstracts what a call to a declared function does to its
// caller. Symbols do not cross function analyses, so module-level state
// is tracked by name.
type summary struct {
	hasIO        bool
	mayRaise     bool
	callsUnknown bool
	callees      []string
	globalReads  []string
	globalWrites []string
	// mutatesArgs is true if the body writes through a parameter,
	// e.g. assigning to an element of a slice parameter.
	mutatesArgs bool
}

// AnalyzeFile resolves and summarizes every function of the file.
func AnalyzeFile(file *ir.File, cfg Config) *FileAnalysis {
	fa := &FileAnalysis{
		file:      file,
		cfg:       cfg,
		tables:    make(map[*ir.FuncDecl]*symtab.Table),
		summaries: make(map[*ir.FuncDecl]*summary),
	}
	for _, fn := range file.Funcs {
		fa.tables[fn] = symtab.Build(file, fn)
		fa.summaries[fn] = &summary{}
	}
	fa.fixpoint()
	return fa
}

// fixpoint recomputes summaries until they stop growing. Starting from
// the optimistic all-pure summary keeps recursive calls from poisoning
// their own function; effects only ever grow, so iteration terminates.
func (fa *FileAnalysis) fixpoint() {
	for changed := true; changed; {
		changed = false
		for _, fn := range fa.file.Funcs {
			next := fa.summarize(fn)
			if !next.equal(fa.summaries[fn]) {
				fa.summaries[fn] = next
				changed = true
			}
		}
	}
}

func (fa *FileAnalysis) summarize(fn *ir.FuncDecl) *summary {
	a := fa.newAnalysis(fn)
	set := a.Of(fn.Body)
	sum := &summary{
		hasIO:        set.HasIO,
		mayRaise:     set.MayRaise,
		callsUnknown: set.CallsUnknown,
		callees:      set.UnknownCallees.Elements(),
	}
	for sym := range set.Reads.Iter() {
		if sym.Kind == ir.GlobalSymbol && sym.Func == nil {
			sum.globalReads = append(sum.globalReads, sym.Name)
		}
	}
	for sym := range set.Writes.Iter() {
		switch sym.Kind {
		case ir.GlobalSymbol:
			sum.globalWrites = append(sum.globalWrites, sym.Name)
		case ir.ParamSymbol:
			sum.mutatesArgs = true
		case ir.UnknownSymbol:
			sum.mutatesArgs = true
		}
	}
	return sum
}

func (s *summary) equal(o *summary) bool {
	if s.hasIO != o.hasIO || s.mayRaise != o.mayRaise ||
		s.callsUnknown != o.callsUnknown || s.mutatesArgs != o.mutatesArgs {
		return false
	}
	return equalNames(s.callees, o.callees) &&
		equalNames(s.globalReads, o.globalReads) &&
		equalNames(s.globalWrites, o.globalWrites)
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i, s := range a {
		if s != b[i] {
			return false
		}
	}
	return true
}

// File returns the analyzed file.
func (fa *FileAnalysis) File() *ir.File {
	return fa.file
}

// Table returns the symbol table of a function of the file.
func (fa *FileAnalysis) Table(fn *ir.FuncDecl) *symtab.Table {
	return fa.tables[fn]
}

// Func returns the per-node effect sets of one function.
func (fa *FileAnalysis) Func(fn *ir.FuncDecl) *Analysis {
	a := fa.newAnalysis(fn)
	a.Of(fn.Body)
	return a
}

func (fa *FileAnalysis) newAnalysis(fn *ir.FuncDecl) *Analysis {
	return &Analysis{
		fa:    fa,
		fn:    fn,
		table: fa.tables[fn],
		sets:  make(map[ir.Node]*Set),
	}
}

// Analysis memoizes the effect sets of one function's nodes.
type Analysis struct {
	fa    *FileAnalysis
	fn    *ir.FuncDecl
	table *symtab.Table
	sets  map[ir.Node]*Set
}

// Table returns the symbol table the analysis resolves against.
func (a *Analysis) Table() *symtab.Table {
	return a.table
}

// Of returns the effect set of a node of the function.
func (a *Analysis) Of(n ir.Node) *Set {
	if set, ok := a.sets[n]; ok {
		return set
	}
	set := a.compute(n)
	a.sets[n] = set
	return set
}

func (a *Analysis) compute(n ir.Node) *Set {
	set := newSet()
	switch nT := n.(type) {
	case *ir.AssignStmt:
		a.assign(set, nT)
	case *ir.Ident:
		a.read(set, nT)
	case *ir.CallExpr:
		a.call(set, nT)
	case *ir.BinaryExpr:
		set.union(a.Of(nT.X))
		set.union(a.Of(nT.Y))
		if nT.Op == token.QUO || nT.Op == token.REM {
			if !isNonZeroLit(nT.Y) {
				set.MayRaise = true
			}
		}
	case *ir.ForStmt:
		a.forStmt(set, nT)
	default:
		for _, c := range ir.Children(n) {
			set.union(a.Of(c))
		}
	}
	return set
}

func (a *Analysis) read(set *Set, id *ir.Ident) {
	sym := a.table.Resolve(id)
	if sym == nil || sym.Kind == ir.BuiltinSymbol {
		return
	}
	set.Reads.Add(sym)
}

func (a *Analysis) write(set *Set, id *ir.Ident) {
	sym := a.table.Resolve(id)
	if sym == nil || sym.Kind == ir.BuiltinSymbol {
		return
	}
	set.Writes.Add(sym)
}

func (a *Analysis) assign(set *Set, stmt *ir.AssignStmt) {
	set.union(a.Of(stmt.Rhs))
	switch lhs := stmt.Lhs.(type) {
	case *ir.Ident:
		if stmt.Tok != token.DEFINE && stmt.Tok != token.ASSIGN {
			// Op-assign reads the previous value.
			a.read(set, lhs)
		}
		a.write(set, lhs)
	case *ir.IndexExpr:
		// Writing an element mutates the collection and reads the
		// index and the collection reference.
		set.union(a.Of(lhs.Index))
		if base, ok := lhs.X.(*ir.Ident); ok {
			a.read(set, base)
			a.write(set, base)
		} else {
			set.union(a.Of(lhs.X))
		}
	}
}

func (a *Analysis) forStmt(set *Set, stmt *ir.ForStmt) {
	if stmt.IsRange() {
		set.union(a.Of(stmt.Range))
		a.write(set, stmt.Key)
		if stmt.Value != nil {
			a.write(set, stmt.Value)
		}
	} else {
		set.union(a.Of(stmt.Init))
		set.union(a.Of(stmt.Cond))
		set.union(a.Of(stmt.Post))
	}
	set.union(a.Of(stmt.Body))
}

func (a *Analysis) call(set *Set, call *ir.CallExpr) {
	for _, arg := range call.Args {
		set.union(a.Of(arg))
	}
	callee := call.Callee()
	if callee == nil {
		// Calling anything but a named function is a dynamic dispatch:
		// the target body is not available.
		set.union(a.Of(call.Fun))
		a.unknownCall(set, call, "<dynamic>")
		return
	}
	sym := a.table.Resolve(callee)
	switch {
	case sym != nil && sym.Kind == ir.BuiltinSymbol:
		if builtins.IsIO(callee.Name) {
			set.HasIO = true
		}
		if builtins.Raises(callee.Name) {
			set.MayRaise = true
		}
	case a.fa.cfg.isPure(callee.Name):
		// User-vouched pure call: argument reads only.
	case sym != nil && sym.Func != nil:
		a.declaredCall(set, call, sym.Func)
	default:
		// The callee name is tracked through UnknownCallees; only
		// the argument identifiers are tainted.
		a.unknownCall(set, call, callee.Name)
	}
}

// declaredCall folds the summary of a same-file callee into the caller.
func (a *Analysis) declaredCall(set *Set, call *ir.CallExpr, fn *ir.FuncDecl) {
	sum := a.fa.summaries[fn]
	set.HasIO = set.HasIO || sum.hasIO
	set.MayRaise = set.MayRaise || sum.mayRaise
	if sum.callsUnknown {
		set.CallsUnknown = true
		for _, name := range sum.callees {
			set.UnknownCallees.Add(name)
		}
	}
	module := a.table.ModuleScope()
	for _, name := range sum.globalReads {
		if gsym, ok := module.Find(name); ok {
			set.Reads.Add(gsym)
		}
	}
	for _, name := range sum.globalWrites {
		if gsym, ok := module.Find(name); ok {
			set.Writes.Add(gsym)
		}
	}
	if sum.mutatesArgs {
		a.argIdents(set, call, true)
	}
}

// unknownCall applies the conservative summary of a call without an
// analyzable body: it may do anything to anything it can reach.
func (a *Analysis) unknownCall(set *Set, call *ir.CallExpr, name string) {
	set.CallsUnknown = true
	set.UnknownCallees.Add(name)
	a.argIdents(set, call, true)
}

// argIdents folds every identifier of the call arguments into the reads
// and, if write is set, the writes of the set.
func (a *Analysis) argIdents(set *Set, call *ir.CallExpr, write bool) {
	for _, arg := range call.Args {
		ir.Visit(arg, func(n ir.Node) bool {
			id, ok := n.(*ir.Ident)
			if !ok {
				return true
			}
			a.read(set, id)
			if write {
				a.write(set, id)
			}
			return true
		})
	}
}

func isNonZeroLit(x ir.Expr) bool {
	lit, ok := x.(*ir.BasicLit)
	return ok && lit.Typ == ir.IntType && lit.Value != "0"
}
