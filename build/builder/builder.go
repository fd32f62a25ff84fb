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

// Package builder converts parsed source files into the autopar IR tree.
//
// The analyzed language is a subset of Go syntax, so source files are
// parsed with go/parser and then lowered, declaration by declaration,
// into the closed node set of [github.com/gx-org/autopar/ir]. Name
// resolution is not done here: the builder produces the tree, the symbol
// table resolves it.
//
// Errors never abort the build: syntax outside the subset is appended to
// an error accumulator with its source position and the enclosing
// construct is dropped.
package builder

import (
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/gx-org/autopar/build/fmterr"
	"github.com/gx-org/autopar/ir"
)

type builder struct {
	fset *token.FileSet
	errs *fmterr.Errors
	ap   *fmterr.Appender
}

// Parse parses source text and builds the IR tree of the file.
// src follows the conventions of go/parser.ParseFile.
func Parse(fset *token.FileSet, filename string, src any) (*ir.File, error) {
	astFile, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}
	return Build(fset, astFile)
}

// Build lowers a parsed file into the IR tree.
func Build(fset *token.FileSet, src *ast.File) (*ir.File, error) {
	b := &builder{fset: fset, errs: &fmterr.Errors{}}
	b.ap = b.errs.NewAppender(fset)
	file := b.processFile(src)
	if !b.errs.Empty() {
		return file, b.errs
	}
	return file, nil
}

func (b *builder) processFile(src *ast.File) *ir.File {
	file := &ir.File{
		Src:     src,
		Package: src.Name.Name,
	}
	for _, decl := range src.Decls {
		switch declT := decl.(type) {
		case *ast.FuncDecl:
			if fn, ok := b.processFuncDecl(declT); ok {
				file.Funcs = append(file.Funcs, fn)
			}
		case *ast.GenDecl:
			if declT.Tok != token.VAR {
				b.ap.Appendf(declT, "%s declarations not supported", declT.Tok)
				continue
			}
			for _, spec := range declT.Specs {
				if v, ok := b.processVarSpec(spec); ok {
					file.Globals = append(file.Globals, v)
				}
			}
		default:
			b.ap.Appendf(decl, "%T not supported", decl)
		}
	}
	return file
}

func (b *builder) processVarSpec(spec ast.Spec) (*ir.VarDecl, bool) {
	valueSpec, ok := spec.(*ast.ValueSpec)
	if !ok {
		return nil, b.ap.Appendf(spec, "%T not supported", spec)
	}
	if len(valueSpec.Names) != 1 || len(valueSpec.Values) > 1 {
		return nil, b.ap.Appendf(spec, "only single-variable declarations are supported")
	}
	decl := &ir.VarDecl{
		Src:  valueSpec,
		Name: processIdent(valueSpec.Names[0]),
	}
	declOk := true
	if valueSpec.Type != nil {
		decl.Typ, declOk = b.processType(valueSpec.Type)
	}
	if len(valueSpec.Values) == 1 {
		var valueOk bool
		decl.Value, valueOk = b.processExpr(valueSpec.Values[0])
		declOk = declOk && valueOk
	}
	if valueSpec.Type == nil && decl.Value == nil {
		return nil, b.ap.Appendf(spec, "variable declaration needs a type or a value")
	}
	return decl, declOk
}

func (b *builder) processFuncDecl(src *ast.FuncDecl) (*ir.FuncDecl, bool) {
	if src.Recv != nil {
		return nil, b.ap.Appendf(src, "methods not supported")
	}
	if src.Body == nil {
		return nil, b.ap.Appendf(src, "function %s has no body", src.Name.Name)
	}
	fn := &ir.FuncDecl{
		Src:  src,
		Name: processIdent(src.Name),
	}
	ftypeOk := true
	fn.FType, ftypeOk = b.processFuncType(src.Type)
	var bodyOk bool
	fn.Body, bodyOk = b.processBlockStmt(src.Body)
	return fn, ftypeOk && bodyOk
}

func (b *builder) processFuncType(src *ast.FuncType) (*ir.FuncType, bool) {
	ftype := &ir.FuncType{Src: src, Result: ir.VoidType}
	ok := true
	if src.Params != nil {
		for _, field := range src.Params.List {
			fieldTyp, typOk := b.processType(field.Type)
			ok = ok && typOk
			for _, name := range field.Names {
				ftype.Params = append(ftype.Params, &ir.Field{
					Src:  field,
					Name: processIdent(name),
					Typ:  fieldTyp,
				})
			}
			if len(field.Names) == 0 {
				ok = b.ap.Appendf(field, "unnamed parameters not supported")
			}
		}
	}
	if src.Results != nil {
		if len(src.Results.List) > 1 {
			return ftype, b.ap.Appendf(src.Results, "multiple results not supported")
		}
		var resultOk bool
		ftype.Result, resultOk = b.processType(src.Results.List[0].Type)
		ok = ok && resultOk
	}
	return ftype, ok
}

func (b *builder) processType(src ast.Expr) (ir.Type, bool) {
	switch srcT := src.(type) {
	case *ast.Ident:
		typ, ok := ir.TypeFromName(srcT.Name)
		if !ok {
			return ir.InvalidType, b.ap.Appendf(src, "type %s not supported", srcT.Name)
		}
		return typ, true
	case *ast.ArrayType:
		if srcT.Len != nil {
			return ir.InvalidType, b.ap.Appendf(src, "fixed-size arrays not supported")
		}
		elt, ok := srcT.Elt.(*ast.Ident)
		if !ok {
			return ir.InvalidType, b.ap.Appendf(src, "%T not supported as a slice element type", srcT.Elt)
		}
		typ, found := ir.TypeFromName("[]" + elt.Name)
		if !found {
			return ir.InvalidType, b.ap.Appendf(src, "type []%s not supported", elt.Name)
		}
		return typ, true
	}
	return ir.InvalidType, b.ap.Appendf(src, "%T not supported as a type", src)
}

func processIdent(src *ast.Ident) *ir.Ident {
	return &ir.Ident{Src: src, Name: src.Name}
}
