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

package symtab

import "github.com/gx-org/autopar/ir"

// RegionClass classifies a symbol relative to a candidate region.
type RegionClass int

// All region-relative classes.
const (
	// RegionPrivate symbols are declared inside the region: each
	// iteration gets a fresh instance.
	RegionPrivate RegionClass = iota
	// RegionCaptured symbols are declared in the enclosing function
	// outside the region, parameters included: iterations share them.
	RegionCaptured
	// RegionGlobal symbols are module-level variables.
	RegionGlobal
	// RegionBuiltin names recognized builtin functions.
	RegionBuiltin
	// RegionUnknown symbols have no visible declaration.
	RegionUnknown
)

var regionClassNames = [...]string{
	RegionPrivate:  "private",
	RegionCaptured: "captured",
	RegionGlobal:   "global",
	RegionBuiltin:  "builtin",
	RegionUnknown:  "unknown",
}

// String returns the name of the class.
func (c RegionClass) String() string {
	if c < 0 || int(c) >= len(regionClassNames) {
		return "invalid"
	}
	return regionClassNames[c]
}

// RegionView classifies symbols relative to one candidate region.
// The loop variables of the region count as private: they are rebound
// for every iteration.
type RegionView struct {
	table *Table
	scope *ir.Scope
}

// Region returns the region-relative symbol view of a loop.
func (t *Table) Region(loop *ir.ForStmt) *RegionView {
	return &RegionView{table: t, scope: t.scopes[loop]}
}

// Classify returns how a symbol relates to the region.
func (v *RegionView) Classify(sym *ir.Symbol) RegionClass {
	switch sym.Kind {
	case ir.GlobalSymbol:
		return RegionGlobal
	case ir.BuiltinSymbol:
		return RegionBuiltin
	case ir.UnknownSymbol:
		return RegionUnknown
	}
	if v.scope != nil && v.scope.Encloses(sym.DeclScope) {
		return RegionPrivate
	}
	return RegionCaptured
}

// Shared returns true for symbols that distinct iterations of the
// region could interact through.
func (v *RegionView) Shared(sym *ir.Symbol) bool {
	switch v.Classify(sym) {
	case RegionCaptured, RegionGlobal, RegionUnknown:
		return true
	}
	return false
}
