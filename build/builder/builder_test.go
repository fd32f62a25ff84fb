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

package builder_test

import (
	"go/token"
	"strings"
	"testing"

	"github.com/gx-org/autopar/build/builder"
	"github.com/gx-org/autopar/ir"
)

func parse(t *testing.T, src string) *ir.File {
	t.Helper()
	file, err := builder.Parse(token.NewFileSet(), "test.seq", src)
	if err != nil {
		t.Fatalf("cannot build %q: %v", src, err)
	}
	return file
}

func TestFile(t *testing.T) {
	const src = `package main

var limit = 100

var names = []string{"a", "b"}

func pick(i int) string {
	return names[i]
}

func grow(n int) int {
	return n + limit
}
`
	file := parse(t, src)
	if file.Package != "main" {
		t.Errorf("package = %s, want main", file.Package)
	}
	if len(file.Globals) != 2 {
		t.Fatalf("built %d globals, want 2", len(file.Globals))
	}
	if got := file.Globals[1].Name.Name; got != "names" {
		t.Errorf("second global is %s, want names", got)
	}
	if len(file.Funcs) != 2 {
		t.Fatalf("built %d functions, want 2", len(file.Funcs))
	}
	fn := file.Funcs[0]
	if fn.Name.Name != "pick" || fn.FType.Result != ir.StringType {
		t.Errorf("first function is %s returning %s, want pick returning string", fn.Name.Name, fn.FType.Result)
	}
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want func(t *testing.T, body *ir.BlockStmt)
	}{
		{
			name: "increment becomes add-assign",
			src: `package main

func inc(n int) int {
	n++
	return n
}
`,
			want: func(t *testing.T, body *ir.BlockStmt) {
				assign, ok := body.List[0].(*ir.AssignStmt)
				if !ok || assign.Tok != token.ADD_ASSIGN {
					t.Fatalf("n++ built as %s, want +=", body.List[0])
				}
				lit, ok := assign.Rhs.(*ir.BasicLit)
				if !ok || lit.Value != "1" {
					t.Errorf("n++ increment is %s, want 1", assign.Rhs)
				}
			},
		},
		{
			name: "range over slice binds key and value",
			src: `package main

func scan(xs []int) {
	for i, x := range xs {
		_ = i + x
	}
}
`,
			want: func(t *testing.T, body *ir.BlockStmt) {
				loop, ok := body.List[0].(*ir.ForStmt)
				if !ok || !loop.IsRange() {
					t.Fatalf("built %s, want a range loop", body.List[0])
				}
				if loop.Key.Name != "i" || loop.Value.Name != "x" {
					t.Errorf("range binds (%s, %s), want (i, x)", loop.Key, loop.Value)
				}
			},
		},
		{
			name: "three clause loop",
			src: `package main

func count(n int) {
	for i := 0; i < n; i += 1 {
		_ = i
	}
}
`,
			want: func(t *testing.T, body *ir.BlockStmt) {
				loop, ok := body.List[0].(*ir.ForStmt)
				if !ok || loop.IsRange() {
					t.Fatalf("built %s, want a 3-clause loop", body.List[0])
				}
				if loop.Init == nil || loop.Cond == nil || loop.Post == nil {
					t.Error("3-clause loop is missing clauses")
				}
			},
		},
		{
			name: "append pattern",
			src: `package main

func grow(xs []int) []int {
	xs = append(xs, 1)
	return xs
}
`,
			want: func(t *testing.T, body *ir.BlockStmt) {
				assign := body.List[0].(*ir.AssignStmt)
				target, elem, ok := assign.AppendPattern()
				if !ok {
					t.Fatalf("%s not recognized as an append pattern", assign)
				}
				if target.Name != "xs" {
					t.Errorf("append target is %s, want xs", target)
				}
				if elem.String() != "1" {
					t.Errorf("append element is %s, want 1", elem)
				}
			},
		},
		{
			name: "else if chains",
			src: `package main

func sign(n int) int {
	if n > 0 {
		return 1
	} else if n < 0 {
		return -1
	} else {
		return 0
	}
}
`,
			want: func(t *testing.T, body *ir.BlockStmt) {
				outer := body.List[0].(*ir.IfStmt)
				inner, ok := outer.Else.(*ir.IfStmt)
				if !ok {
					t.Fatalf("else branch is %T, want a nested if", outer.Else)
				}
				if _, ok := inner.Else.(*ir.BlockStmt); !ok {
					t.Errorf("final else branch is %T, want a block", inner.Else)
				}
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			file := parse(t, test.src)
			if len(file.Funcs) != 1 {
				t.Fatalf("built %d functions, want 1", len(file.Funcs))
			}
			test.want(t, file.Funcs[0].Body)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unsupported type",
			src: `package main

func bad(m map[string]int) int {
	return 0
}
`,
			want: "type",
		},
		{
			name: "unsupported statement",
			src: `package main

func bad() {
	go bad()
}
`,
			want: "not supported",
		},
		{
			name: "unsupported float literal",
			src: `package main

func bad() int {
	x := 1.5
	return 0
}
`,
			want: "literal",
		},
		{
			name: "incomplete loop clauses",
			src: `package main

func bad(n int) {
	for n > 0 {
		n -= 1
	}
}
`,
			want: "loop",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := builder.Parse(token.NewFileSet(), "test.seq", test.src)
			if err == nil {
				t.Fatalf("%q built without error", test.src)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %q", err.Error(), test.want)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	const src = `package main

func twice(xs []int) []int {
	out := []int{}
	for _, x := range xs {
		out = append(out, 2*x)
	}
	return out
}
`
	first := parse(t, src).String()
	second := parse(t, first).String()
	if first != second {
		t.Errorf("rendering is not stable:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}
