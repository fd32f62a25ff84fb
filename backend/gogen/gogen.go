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

// Package gogen generates a standalone Go program from an analyzed
// file. Sequential constructs map one to one onto Go; parallel task
// nodes are rendered into goroutine scaffolding matching the execution
// backend the transformation targeted. The generated source depends on
// the Go standard library only.
package gogen

import (
	"io"
	"sort"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/exp/maps"

	"github.com/gx-org/autopar/backend"
	"github.com/gx-org/autopar/base/uname"
	"github.com/gx-org/autopar/build/builtins"
	"github.com/gx-org/autopar/build/symtab"
	"github.com/gx-org/autopar/ir"
)

var fileTmpl = template.Must(template.New("file").Parse(
	`// Code generated by autopar. DO NOT EDIT.

package main
{{if .Imports}}
import (
{{range .Imports}}	"{{.}}"
{{end}})
{{end}}{{range .Decls}}
{{.}}
{{end}}`))

// Generator renders one analyzed file as Go source.
type Generator struct {
	file  *ir.File
	caps  backend.Capabilities
	names *uname.Unique

	imports map[string]bool
	helpers map[string]string
	tables  map[*ir.FuncDecl]*symtab.Table
}

// New returns a generator for the file, targeting one execution
// backend.
func New(file *ir.File, caps backend.Capabilities) *Generator {
	g := &Generator{
		file:    file,
		caps:    caps,
		names:   uname.New(),
		imports: make(map[string]bool),
		helpers: make(map[string]string),
		tables:  make(map[*ir.FuncDecl]*symtab.Table),
	}
	// Reserve the declared names so helper functions never collide.
	for _, global := range file.Globals {
		g.names.Name(global.Name.Name)
	}
	for _, fn := range file.Funcs {
		g.names.Name(fn.Name.Name)
		g.tables[fn] = symtab.Build(file, fn)
	}
	return g
}

// Generate writes the Go source of the file.
func (g *Generator) Generate(w io.Writer) error {
	var errs error
	decls := make([]string, 0, len(g.file.Globals)+len(g.file.Funcs))
	for _, global := range g.file.Globals {
		decl, err := g.varDecl(global)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		decls = append(decls, decl)
	}
	hasMain := false
	for _, fn := range g.file.Funcs {
		if fn.Name.Name == "main" {
			hasMain = true
		}
		decl, err := g.funcDecl(fn)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "cannot generate function %s", fn.Name.Name))
			continue
		}
		decls = append(decls, decl)
	}
	if errs != nil {
		return errs
	}
	if !hasMain {
		decls = append(decls, "func main() {}")
	}
	decls = append(decls, g.helperDecls()...)
	imports := maps.Keys(g.imports)
	sort.Strings(imports)
	return fileTmpl.Execute(w, struct {
		Imports []string
		Decls   []string
	}{Imports: imports, Decls: decls})
}

// Source renders the file and returns it as a string.
func Source(file *ir.File, caps backend.Capabilities) (string, error) {
	var b strings.Builder
	if err := New(file, caps).Generate(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (g *Generator) varDecl(decl *ir.VarDecl) (string, error) {
	if decl.Value == nil {
		return "var " + decl.Name.Name + " " + goType(decl.Typ), nil
	}
	value, err := g.expr(nil, decl.Value)
	if err != nil {
		return "", err
	}
	return "var " + decl.Name.Name + " = " + value, nil
}

func (g *Generator) funcDecl(fn *ir.FuncDecl) (string, error) {
	params := make([]string, len(fn.FType.Params))
	for i, p := range fn.FType.Params {
		params[i] = p.Name.Name + " " + goType(p.Typ)
	}
	sig := "func " + fn.Name.Name + "(" + strings.Join(params, ", ") + ")"
	if fn.FType.Result != ir.VoidType {
		sig += " " + goType(fn.FType.Result)
	}
	body, err := g.block(fn, fn.Body, 0)
	if err != nil {
		return "", err
	}
	return sig + " " + body, nil
}

func goType(typ ir.Type) string {
	// The analyzed language borrows Go type notation.
	return typ.String()
}

// addImport records a standard library dependency of the generated
// code.
func (g *Generator) addImport(path string) {
	g.imports[path] = true
}

// helper returns the generated name of a runtime helper, declaring it
// on first use.
func (g *Generator) helper(name string) string {
	if got, ok := g.helpers[name]; ok {
		return got
	}
	g.helpers[name] = g.names.Name(name)
	return g.helpers[name]
}

func (g *Generator) helperDecls() []string {
	names := maps.Keys(g.helpers)
	sort.Strings(names)
	var decls []string
	for _, name := range names {
		decls = append(decls, g.helperDecl(name))
	}
	return decls
}

func (g *Generator) helperDecl(name string) string {
	generated := g.helpers[name]
	switch name {
	case "abs":
		return `func ` + generated + `(n int) int {
	if n < 0 {
		return -n
	}
	return n
}`
	case "readln":
		g.addImport("bufio")
		g.addImport("os")
		g.addImport("strings")
		return `var stdin = bufio.NewReader(os.Stdin)

func ` + generated + `() string {
	line, _ := stdin.ReadString('\n')
	return strings.TrimSuffix(line, "\n")
}`
	case "writefile":
		g.addImport("fmt")
		g.addImport("os")
		return `func ` + generated + `(name string, data any) {
	os.WriteFile(name, []byte(fmt.Sprint(data)), 0o644)
}`
	}
	return ""
}

// isDeclared returns true if the file declares a function with that
// name: a declaration takes precedence over the builtin of the same
// name.
func (g *Generator) isDeclared(name string) bool {
	for _, fn := range g.file.Funcs {
		if fn.Name.Name == name {
			return true
		}
	}
	return false
}

// builtinCall rewrites a builtin call into its Go form.
func (g *Generator) builtinCall(fn *ir.FuncDecl, name string, call *ir.CallExpr) (string, bool, error) {
	if !builtins.Is(name) || g.isDeclared(name) {
		return "", false, nil
	}
	args, err := g.args(fn, call)
	if err != nil {
		return "", true, err
	}
	switch name {
	case "len", "append", "min", "max", "panic":
		// Direct Go equivalents.
		return name + "(" + args + ")", true, nil
	case "abs", "readln", "writefile":
		return g.helper(name) + "(" + args + ")", true, nil
	case "println":
		g.addImport("fmt")
		return "fmt.Println(" + args + ")", true, nil
	case "printf":
		g.addImport("fmt")
		return "fmt.Printf(" + args + ")", true, nil
	}
	return "", true, errors.Errorf("builtin %s cannot be generated", name)
}

func (g *Generator) args(fn *ir.FuncDecl, call *ir.CallExpr) (string, error) {
	args := make([]string, len(call.Args))
	for i, arg := range call.Args {
		rendered, err := g.expr(fn, arg)
		if err != nil {
			return "", err
		}
		args[i] = rendered
	}
	return strings.Join(args, ", "), nil
}
