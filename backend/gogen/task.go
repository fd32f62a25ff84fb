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
	"fmt"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/gx-org/autopar/base/uname"
	"github.com/gx-org/autopar/ir"
)

// poolTmpl schedules work units on a fixed pool of workers fed by an
// index channel. Results land at their unit index, so the combined
// collection follows iteration order.
var poolTmpl = template.Must(template.New("pool").Parse(
	`{
	{{.Idx}} := make(chan int)
{{if .Collect}}	{{.Results}} := make([]{{.ElemType}}, {{.N}})
{{end}}	var {{.Wg}} sync.WaitGroup
	for {{.W}} := 0; {{.W}} < {{.Workers}}; {{.W}}++ {
		{{.Wg}}.Add(1)
		go func() {
			defer {{.Wg}}.Done()
			for {{.Key}} := range {{.Idx}} {
{{if .ValueInit}}				{{.ValueInit}}
{{end}}{{range .Body}}				{{.}}
{{end}}{{if .Collect}}				{{.Results}}[{{.Key}}] = {{.Elem}}
{{end}}			}
		}()
	}
	for {{.I}} := 0; {{.I}} < {{.N}}; {{.I}}++ {
		{{.Idx}} <- {{.I}}
	}
	close({{.Idx}})
	{{.Wg}}.Wait()
{{if .Collect}}	{{.Target}} = append({{.Target}}, {{.Results}}...)
{{end}}}`))

// spawnTmpl starts one goroutine per work unit and collects results by
// unit index.
var spawnTmpl = template.Must(template.New("spawn").Parse(
	`{
{{if .Collect}}	{{.Results}} := make([]{{.ElemType}}, {{.N}})
{{end}}	var {{.Wg}} sync.WaitGroup
	for {{.I}} := 0; {{.I}} < {{.N}}; {{.I}}++ {
		{{.Wg}}.Add(1)
		go func({{.Key}} int) {
			defer {{.Wg}}.Done()
{{if .ValueInit}}			{{.ValueInit}}
{{end}}{{range .Body}}			{{.}}
{{end}}{{if .Collect}}			{{.Results}}[{{.Key}}] = {{.Elem}}
{{end}}		}({{.I}})
	}
	{{.Wg}}.Wait()
{{if .Collect}}	{{.Target}} = append({{.Target}}, {{.Results}}...)
{{end}}}`))

// reduceTmpl evaluates the units of an associative reduction
// concurrently and folds them.
var reduceTmpl = template.Must(template.New("reduce").Parse(
	`{
	var {{.Results}} [{{len .Units}}]{{.ResultType}}
	var {{.Wg}} sync.WaitGroup
	{{.Wg}}.Add({{len .Units}})
{{range $i, $u := .Units}}	go func() {
		defer {{$.Wg}}.Done()
		{{$.Results}}[{{$i}}] = {{$u}}
	}()
{{end}}	{{.Wg}}.Wait()
	return {{.Fold}}
}`))

type taskData struct {
	Workers string
	N       string

	Key       string
	ValueInit string
	Body      []string
	Collect   bool
	Results   string
	ElemType  string
	Elem      string
	Target    string

	Units      []string
	ResultType string
	Fold       string

	Idx string
	Wg  string
	W   string
	I   string
}

func (g *Generator) task(fn *ir.FuncDecl, task *ir.ParallelTask, depth int) (string, error) {
	g.addImport("sync")
	var out string
	var err error
	switch task.Combine {
	case ir.CombineReduce:
		out, err = g.reduceTask(fn, task)
	default:
		out, err = g.loopTask(fn, task)
	}
	if err != nil {
		return "", err
	}
	return reindent(out, depth), nil
}

// reindent shifts every line but the first to the statement's
// indentation level: templates are written at level zero.
func reindent(s string, depth int) string {
	if depth <= 0 {
		return s
	}
	pad := strings.Repeat("\t", depth)
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = pad + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// taskNames picks scaffolding variable names that cannot collide with
// any identifier of the function.
func (g *Generator) taskNames(fn *ir.FuncDecl) *uname.Unique {
	names := uname.New()
	for _, global := range g.file.Globals {
		names.Name(global.Name.Name)
	}
	for _, decl := range g.file.Funcs {
		names.Name(decl.Name.Name)
	}
	ir.Visit(fn, func(n ir.Node) bool {
		if id, ok := n.(*ir.Ident); ok {
			names.Name(id.Name)
		}
		return true
	})
	return names
}

func (g *Generator) loopTask(fn *ir.FuncDecl, task *ir.ParallelTask) (string, error) {
	names := g.taskNames(fn)
	data := &taskData{
		Workers: g.workers(task),
		Collect: task.Elem != nil,
		Idx:     names.Name("idx"),
		Wg:      names.Name("wg"),
		W:       names.Name("w"),
		I:       names.Name("i"),
	}
	rng, err := g.expr(fn, task.Range)
	if err != nil {
		return "", err
	}
	overSlice, err := g.rangesOverSlice(fn, task)
	if err != nil {
		return "", err
	}
	if overSlice {
		data.N = "len(" + rng + ")"
	} else {
		data.N = rng
	}
	data.Key = data.I
	if task.Key != nil && task.Key.Name != "_" {
		data.Key = task.Key.Name
	}
	if task.Value != nil && task.Value.Name != "_" {
		data.ValueInit = task.Value.Name + " := " + rng + "[" + data.Key + "]"
	}
	if data.Collect {
		data.Results = names.Name("results")
		data.Target = task.Target.Name
		elemType, err := g.elemType(fn, task)
		if err != nil {
			return "", err
		}
		data.ElemType = elemType
		if data.Elem, err = g.expr(fn, task.Elem); err != nil {
			return "", err
		}
	}
	tpl, bodyDepth := spawnTmpl, 3
	if g.caps.Name == "pool" {
		tpl, bodyDepth = poolTmpl, 4
	}
	if task.Body != nil {
		for _, stmt := range task.Body.List {
			rendered, err := g.stmt(fn, stmt, bodyDepth)
			if err != nil {
				return "", err
			}
			data.Body = append(data.Body, rendered)
		}
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return "", errors.Wrap(err, "cannot render parallel section")
	}
	return b.String(), nil
}

func (g *Generator) reduceTask(fn *ir.FuncDecl, task *ir.ParallelTask) (string, error) {
	names := g.taskNames(fn)
	data := &taskData{
		Results:    names.Name("results"),
		Wg:         names.Name("wg"),
		ResultType: goType(fn.FType.Result),
	}
	for _, unit := range task.Units {
		rendered, err := g.expr(fn, unit)
		if err != nil {
			return "", err
		}
		data.Units = append(data.Units, rendered)
	}
	folds := make([]string, len(data.Units))
	for i := range data.Units {
		folds[i] = fmt.Sprintf("%s[%d]", data.Results, i)
	}
	data.Fold = strings.Join(folds, " "+task.Op.String()+" ")
	var b strings.Builder
	if err := reduceTmpl.Execute(&b, data); err != nil {
		return "", errors.Wrap(err, "cannot render parallel reduction")
	}
	return b.String(), nil
}

func (g *Generator) workers(task *ir.ParallelTask) string {
	if task.MaxWorkers > 0 {
		return fmt.Sprint(task.MaxWorkers)
	}
	g.addImport("runtime")
	return "runtime.NumCPU()"
}

// rangesOverSlice reports whether the iteration space is a collection,
// as opposed to an integer bound.
func (g *Generator) rangesOverSlice(fn *ir.FuncDecl, task *ir.ParallelTask) (bool, error) {
	if task.Value != nil {
		return true, nil
	}
	typ := g.typeOf(fn, task.Range)
	switch typ {
	case ir.IntType:
		return false, nil
	case ir.IntSliceType, ir.StringSliceType:
		return true, nil
	}
	return false, errors.Errorf("cannot infer the iteration space of %s", task.Range)
}

func (g *Generator) elemType(fn *ir.FuncDecl, task *ir.ParallelTask) (string, error) {
	if typ := g.typeOf(fn, ir.Expr(task.Target)); typ.IsSlice() {
		return goType(typ.Elem()), nil
	}
	// The collection type can be invisible, e.g. a local built by a
	// closure; the appended element then types the results.
	if typ := g.typeOf(fn, task.Elem); typ != ir.InvalidType && typ != ir.VoidType {
		return goType(typ), nil
	}
	return "", errors.Errorf("%s is not a collection", task.Target.Name)
}

// typeOf is a minimal expression typer, sufficient to size generated
// scaffolding. It returns InvalidType when the type is not visible.
func (g *Generator) typeOf(fn *ir.FuncDecl, x ir.Expr) ir.Type {
	switch xT := x.(type) {
	case *ir.Ident:
		if sym := g.tables[fn].Resolve(xT); sym != nil {
			return sym.Typ
		}
	case *ir.BasicLit:
		return xT.Typ
	case *ir.SliceLit:
		return xT.Typ
	case *ir.ParenExpr:
		return g.typeOf(fn, xT.X)
	case *ir.BinaryExpr:
		return g.typeOf(fn, xT.X)
	case *ir.CallExpr:
		if callee := xT.Callee(); callee != nil && callee.Name == "len" {
			return ir.IntType
		}
	}
	return ir.InvalidType
}
