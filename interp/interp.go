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

// Package interp is a tree-walking evaluator for the analyzed language.
//
// Its purpose is equivalence checking and profiling: the same tree can
// be executed before and after transformation and the observable
// results compared. Parallel task nodes execute their work units
// actually concurrently, so order preservation is tested against real
// out-of-order completion, not a simulation of it.
package interp

import (
	"bufio"
	"fmt"
	"go/token"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gx-org/autopar/base/sync"
	"github.com/gx-org/autopar/internal/base/scope"
	"github.com/gx-org/autopar/ir"
)

// Value of the analyzed language: int64, bool, string, or []Value.
type Value any

// Interp evaluates functions of one file.
type Interp struct {
	file    *ir.File
	globals *scope.RWScope[Value]

	stdout io.Writer
	stdin  *bufio.Reader
	// files receives writefile output, keyed by target. It is
	// synchronized: accepted disjoint-IO loops write it concurrently.
	files *sync.Map[string, string]
	// unitHook, if set, runs at the start of every parallel work unit
	// with the unit index. Tests use it to force completion orders.
	unitHook func(int)
}

// Option configures the evaluator.
type Option func(*Interp)

// WithStdout redirects println and printf output.
func WithStdout(w io.Writer) Option {
	return func(it *Interp) { it.stdout = w }
}

// WithStdin provides readln input.
func WithStdin(r io.Reader) Option {
	return func(it *Interp) { it.stdin = bufio.NewReader(r) }
}

// WithUnitHook registers a hook run at the start of every parallel
// work unit.
func WithUnitHook(hook func(int)) Option {
	return func(it *Interp) { it.unitHook = hook }
}

// New returns an evaluator for the file, with its module-level
// variables initialized.
func New(file *ir.File, opts ...Option) (*Interp, error) {
	it := &Interp{
		file:    file,
		globals: scope.NewScope[Value](nil),
		stdout:  io.Discard,
		stdin:   bufio.NewReader(strings.NewReader("")),
		files:   &sync.Map[string, string]{},
	}
	for _, opt := range opts {
		opt(it)
	}
	for _, g := range file.Globals {
		value, err := it.globalValue(g)
		if err != nil {
			return nil, err
		}
		it.globals.Define(g.Name.Name, value)
	}
	return it, nil
}

func (it *Interp) globalValue(g *ir.VarDecl) (Value, error) {
	if g.Value == nil {
		return zeroValue(g.Typ), nil
	}
	env := scope.NewScope[Value](it.globals)
	return it.expr(env, g.Value)
}

func zeroValue(typ ir.Type) Value {
	switch typ {
	case ir.IntType:
		return int64(0)
	case ir.BoolType:
		return false
	case ir.StringType:
		return ""
	case ir.IntSliceType, ir.StringSliceType:
		return []Value(nil)
	}
	return nil
}

// File returns the file the evaluator runs.
func (it *Interp) File() *ir.File {
	return it.file
}

// Equal reports deep equality of two values.
func Equal(a, b Value) bool {
	as, aOk := a.([]Value)
	bs, bOk := b.([]Value)
	if aOk != bOk {
		return false
	}
	if !aOk {
		return a == b
	}
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !Equal(as[i], bs[i]) {
			return false
		}
	}
	return true
}

// FileContent returns what writefile wrote to a target.
func (it *Interp) FileContent(target string) (string, bool) {
	content := it.files.Load(target)
	if content == "" {
		// Distinguish empty writes from absent targets.
		for k := range it.files.Iter() {
			if k == target {
				return "", true
			}
		}
		return "", false
	}
	return content, true
}

// CallNamed evaluates a declared function by name.
func (it *Interp) CallNamed(name string, args ...Value) (Value, error) {
	for _, fn := range it.file.Funcs {
		if fn.Name.Name == name {
			return it.call(fn, args)
		}
	}
	return nil, errors.Errorf("function %s not declared", name)
}

func (it *Interp) call(fn *ir.FuncDecl, args []Value) (Value, error) {
	if len(args) != len(fn.FType.Params) {
		return nil, errors.Errorf("%s takes %d arguments, got %d", fn.Name.Name, len(fn.FType.Params), len(args))
	}
	env := scope.NewScope[Value](it.globals)
	for i, param := range fn.FType.Params {
		env.Define(param.Name.Name, args[i])
	}
	result, returned, err := it.block(env, fn.Body)
	if err != nil {
		return nil, err
	}
	if !returned && fn.FType.Result != ir.VoidType {
		return nil, errors.Errorf("%s did not return a value", fn.Name.Name)
	}
	return result, nil
}

func (it *Interp) block(parent *scope.RWScope[Value], block *ir.BlockStmt) (Value, bool, error) {
	env := scope.NewScope[Value](parent)
	for _, stmt := range block.List {
		result, returned, err := it.stmt(env, stmt)
		if err != nil || returned {
			return result, returned, err
		}
	}
	return nil, false, nil
}

func (it *Interp) stmt(env *scope.RWScope[Value], stmt ir.Stmt) (Value, bool, error) {
	switch stmtT := stmt.(type) {
	case *ir.AssignStmt:
		return nil, false, it.assign(env, stmtT)
	case *ir.ExprStmt:
		_, err := it.expr(env, stmtT.X)
		return nil, false, err
	case *ir.ReturnStmt:
		if stmtT.Value == nil {
			return nil, true, nil
		}
		value, err := it.expr(env, stmtT.Value)
		return value, err == nil, err
	case *ir.IfStmt:
		return it.ifStmt(env, stmtT)
	case *ir.ForStmt:
		return it.forStmt(env, stmtT)
	case *ir.BlockStmt:
		return it.block(env, stmtT)
	case *ir.ParallelTask:
		return it.parallelTask(env, stmtT)
	}
	return nil, false, errors.Errorf("cannot evaluate statement %T", stmt)
}

func (it *Interp) assign(env *scope.RWScope[Value], stmt *ir.AssignStmt) error {
	rhs, err := it.expr(env, stmt.Rhs)
	if err != nil {
		return err
	}
	switch lhs := stmt.Lhs.(type) {
	case *ir.Ident:
		return it.assignIdent(env, lhs, stmt.Tok, rhs)
	case *ir.IndexExpr:
		return it.assignIndex(env, lhs, stmt.Tok, rhs)
	}
	return errors.Errorf("cannot assign to %T", stmt.Lhs)
}

func (it *Interp) assignIdent(env *scope.RWScope[Value], lhs *ir.Ident, tok token.Token, rhs Value) error {
	switch tok {
	case token.DEFINE:
		env.Define(lhs.Name, rhs)
		return nil
	case token.ASSIGN:
		if err := env.Assign(lhs.Name, rhs); err != nil {
			// A first assignment to a name the scope does not know yet
			// defines it: the language has no separate local keyword.
			env.Define(lhs.Name, rhs)
		}
		return nil
	}
	prev, ok := env.Find(lhs.Name)
	if !ok {
		return errors.Errorf("%s is not defined", lhs.Name)
	}
	next, err := binaryOp(opOf(tok), prev, rhs)
	if err != nil {
		return err
	}
	if err := env.Assign(lhs.Name, next); err != nil {
		return err
	}
	return nil
}

func opOf(tok token.Token) token.Token {
	switch tok {
	case token.ADD_ASSIGN:
		return token.ADD
	case token.SUB_ASSIGN:
		return token.SUB
	case token.MUL_ASSIGN:
		return token.MUL
	}
	return token.ILLEGAL
}

func (it *Interp) assignIndex(env *scope.RWScope[Value], lhs *ir.IndexExpr, tok token.Token, rhs Value) error {
	if tok != token.ASSIGN {
		return errors.Errorf("%s not supported on elements", tok)
	}
	base, err := it.expr(env, lhs.X)
	if err != nil {
		return err
	}
	slice, ok := base.([]Value)
	if !ok {
		return errors.Errorf("cannot index %T", base)
	}
	index, err := it.intExpr(env, lhs.Index)
	if err != nil {
		return err
	}
	if index < 0 || int(index) >= len(slice) {
		return errors.Errorf("index %d out of range [0:%d]", index, len(slice))
	}
	slice[index] = rhs
	return nil
}

func (it *Interp) ifStmt(env *scope.RWScope[Value], stmt *ir.IfStmt) (Value, bool, error) {
	cond, err := it.boolExpr(env, stmt.Cond)
	if err != nil {
		return nil, false, err
	}
	if cond {
		return it.block(env, stmt.Body)
	}
	if stmt.Else != nil {
		return it.stmt(env, stmt.Else)
	}
	return nil, false, nil
}

func (it *Interp) forStmt(env *scope.RWScope[Value], stmt *ir.ForStmt) (Value, bool, error) {
	if stmt.IsRange() {
		return it.rangeLoop(env, stmt)
	}
	loopEnv := scope.NewScope[Value](env)
	if err := it.assign(loopEnv, stmt.Init); err != nil {
		return nil, false, err
	}
	for {
		cond, err := it.boolExpr(loopEnv, stmt.Cond)
		if err != nil {
			return nil, false, err
		}
		if !cond {
			return nil, false, nil
		}
		result, returned, err := it.block(loopEnv, stmt.Body)
		if err != nil || returned {
			return result, returned, err
		}
		if err := it.assign(loopEnv, stmt.Post); err != nil {
			return nil, false, err
		}
	}
}

func (it *Interp) rangeLoop(env *scope.RWScope[Value], stmt *ir.ForStmt) (Value, bool, error) {
	space, err := it.iterSpace(env, stmt.Range)
	if err != nil {
		return nil, false, err
	}
	for i, elem := range space {
		loopEnv := scope.NewScope[Value](env)
		loopEnv.Define(stmt.Key.Name, int64(i))
		if stmt.Value != nil {
			loopEnv.Define(stmt.Value.Name, elem)
		}
		result, returned, err := it.block(loopEnv, stmt.Body)
		if err != nil || returned {
			return result, returned, err
		}
	}
	return nil, false, nil
}

// iterSpace materializes the iteration space of a range expression:
// an int n yields n indices, a slice yields its elements.
func (it *Interp) iterSpace(env *scope.RWScope[Value], x ir.Expr) ([]Value, error) {
	value, err := it.expr(env, x)
	if err != nil {
		return nil, err
	}
	switch valueT := value.(type) {
	case int64:
		space := make([]Value, valueT)
		for i := range space {
			space[i] = int64(i)
		}
		return space, nil
	case []Value:
		return valueT, nil
	}
	return nil, errors.Errorf("cannot range over %T", value)
}

func (it *Interp) expr(env *scope.RWScope[Value], x ir.Expr) (Value, error) {
	switch xT := x.(type) {
	case *ir.Ident:
		value, ok := env.Find(xT.Name)
		if !ok {
			return nil, errors.Errorf("%s is not defined", xT.Name)
		}
		return value, nil
	case *ir.BasicLit:
		return litValue(xT)
	case *ir.SliceLit:
		slice := make([]Value, 0, len(xT.Elems))
		for _, elem := range xT.Elems {
			value, err := it.expr(env, elem)
			if err != nil {
				return nil, err
			}
			slice = append(slice, value)
		}
		return slice, nil
	case *ir.UnaryExpr:
		return it.unary(env, xT)
	case *ir.BinaryExpr:
		return it.binary(env, xT)
	case *ir.IndexExpr:
		return it.index(env, xT)
	case *ir.CallExpr:
		return it.callExpr(env, xT)
	case *ir.ParenExpr:
		return it.expr(env, xT.X)
	case *ir.FuncLit:
		return &closure{lit: xT, env: env}, nil
	}
	return nil, errors.Errorf("cannot evaluate expression %T", x)
}

// closure is a function literal bound to its defining environment.
type closure struct {
	lit *ir.FuncLit
	env *scope.RWScope[Value]
}

func litValue(lit *ir.BasicLit) (Value, error) {
	switch lit.Typ {
	case ir.IntType:
		n, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil {
			return nil, errors.Errorf("invalid int literal %s", lit.Value)
		}
		return n, nil
	case ir.StringType:
		s, err := strconv.Unquote(lit.Value)
		if err != nil {
			return nil, errors.Errorf("invalid string literal %s", lit.Value)
		}
		return s, nil
	case ir.BoolType:
		return lit.Value == "true", nil
	}
	return nil, errors.Errorf("invalid literal %s", lit.Value)
}

func (it *Interp) unary(env *scope.RWScope[Value], x *ir.UnaryExpr) (Value, error) {
	operand, err := it.expr(env, x.X)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case token.SUB:
		n, ok := operand.(int64)
		if !ok {
			return nil, errors.Errorf("cannot negate %T", operand)
		}
		return -n, nil
	case token.NOT:
		b, ok := operand.(bool)
		if !ok {
			return nil, errors.Errorf("cannot invert %T", operand)
		}
		return !b, nil
	}
	return nil, errors.Errorf("unary operator %s not supported", x.Op)
}

func (it *Interp) binary(env *scope.RWScope[Value], x *ir.BinaryExpr) (Value, error) {
	left, err := it.expr(env, x.X)
	if err != nil {
		return nil, err
	}
	// && and || evaluate their right operand lazily.
	if x.Op == token.LAND || x.Op == token.LOR {
		cond, ok := left.(bool)
		if !ok {
			return nil, errors.Errorf("%s needs bool operands", x.Op)
		}
		if (x.Op == token.LAND && !cond) || (x.Op == token.LOR && cond) {
			return cond, nil
		}
		return it.boolValue(env, x.Y)
	}
	right, err := it.expr(env, x.Y)
	if err != nil {
		return nil, err
	}
	return binaryOp(x.Op, left, right)
}

func (it *Interp) boolValue(env *scope.RWScope[Value], x ir.Expr) (Value, error) {
	b, err := it.boolExpr(env, x)
	return b, err
}

func (it *Interp) index(env *scope.RWScope[Value], x *ir.IndexExpr) (Value, error) {
	base, err := it.expr(env, x.X)
	if err != nil {
		return nil, err
	}
	slice, ok := base.([]Value)
	if !ok {
		return nil, errors.Errorf("cannot index %T", base)
	}
	index, err := it.intExpr(env, x.Index)
	if err != nil {
		return nil, err
	}
	if index < 0 || int(index) >= len(slice) {
		return nil, errors.Errorf("index %d out of range [0:%d]", index, len(slice))
	}
	return slice[index], nil
}

func (it *Interp) intExpr(env *scope.RWScope[Value], x ir.Expr) (int64, error) {
	value, err := it.expr(env, x)
	if err != nil {
		return 0, err
	}
	n, ok := value.(int64)
	if !ok {
		return 0, errors.Errorf("%v is not an int", value)
	}
	return n, nil
}

func (it *Interp) boolExpr(env *scope.RWScope[Value], x ir.Expr) (bool, error) {
	value, err := it.expr(env, x)
	if err != nil {
		return false, err
	}
	b, ok := value.(bool)
	if !ok {
		return false, errors.Errorf("%v is not a bool", value)
	}
	return b, nil
}

func binaryOp(op token.Token, left, right Value) (Value, error) {
	switch leftT := left.(type) {
	case int64:
		rightN, ok := right.(int64)
		if !ok {
			return nil, errors.Errorf("mismatched operands %T and %T", left, right)
		}
		return intOp(op, leftT, rightN)
	case string:
		rightS, ok := right.(string)
		if !ok {
			return nil, errors.Errorf("mismatched operands %T and %T", left, right)
		}
		return stringOp(op, leftT, rightS)
	case bool:
		rightB, ok := right.(bool)
		if !ok {
			return nil, errors.Errorf("mismatched operands %T and %T", left, right)
		}
		switch op {
		case token.EQL:
			return leftT == rightB, nil
		case token.NEQ:
			return leftT != rightB, nil
		}
	}
	return nil, errors.Errorf("operator %s not supported on %T", op, left)
}

func intOp(op token.Token, a, b int64) (Value, error) {
	switch op {
	case token.ADD:
		return a + b, nil
	case token.SUB:
		return a - b, nil
	case token.MUL:
		return a * b, nil
	case token.QUO:
		if b == 0 {
			return nil, errors.New("integer divide by zero")
		}
		return a / b, nil
	case token.REM:
		if b == 0 {
			return nil, errors.New("integer divide by zero")
		}
		return a % b, nil
	case token.EQL:
		return a == b, nil
	case token.NEQ:
		return a != b, nil
	case token.LSS:
		return a < b, nil
	case token.LEQ:
		return a <= b, nil
	case token.GTR:
		return a > b, nil
	case token.GEQ:
		return a >= b, nil
	}
	return nil, errors.Errorf("operator %s not supported on int", op)
}

func stringOp(op token.Token, a, b string) (Value, error) {
	switch op {
	case token.ADD:
		return a + b, nil
	case token.EQL:
		return a == b, nil
	case token.NEQ:
		return a != b, nil
	case token.LSS:
		return a < b, nil
	case token.LEQ:
		return a <= b, nil
	case token.GTR:
		return a > b, nil
	case token.GEQ:
		return a >= b, nil
	}
	return nil, errors.Errorf("operator %s not supported on string", op)
}

func (it *Interp) callExpr(env *scope.RWScope[Value], call *ir.CallExpr) (Value, error) {
	callee := call.Callee()
	if callee != nil {
		if value, done, err := it.builtinCall(env, callee.Name, call); done {
			return value, err
		}
		for _, fn := range it.file.Funcs {
			if fn.Name.Name == callee.Name {
				if _, shadowed := env.Find(callee.Name); !shadowed {
					args, err := it.args(env, call)
					if err != nil {
						return nil, err
					}
					return it.call(fn, args)
				}
				break
			}
		}
	}
	fun, err := it.expr(env, call.Fun)
	if err != nil {
		return nil, err
	}
	cl, ok := fun.(*closure)
	if !ok {
		return nil, errors.Errorf("cannot call %T", fun)
	}
	args, err := it.args(env, call)
	if err != nil {
		return nil, err
	}
	if len(args) != len(cl.lit.FType.Params) {
		return nil, errors.Errorf("function literal takes %d arguments, got %d", len(cl.lit.FType.Params), len(args))
	}
	funcEnv := scope.NewScope[Value](cl.env)
	for i, param := range cl.lit.FType.Params {
		funcEnv.Define(param.Name.Name, args[i])
	}
	result, returned, err := it.block(funcEnv, cl.lit.Body)
	if err != nil {
		return nil, err
	}
	if !returned && cl.lit.FType.Result != ir.VoidType {
		return nil, errors.New("function literal did not return a value")
	}
	return result, nil
}

func (it *Interp) args(env *scope.RWScope[Value], call *ir.CallExpr) ([]Value, error) {
	args := make([]Value, 0, len(call.Args))
	for _, arg := range call.Args {
		value, err := it.expr(env, arg)
		if err != nil {
			return nil, err
		}
		args = append(args, value)
	}
	return args, nil
}

func (it *Interp) builtinCall(env *scope.RWScope[Value], name string, call *ir.CallExpr) (Value, bool, error) {
	switch name {
	case "len", "append", "abs", "min", "max", "println", "printf", "readln", "writefile", "panic":
	default:
		return nil, false, nil
	}
	if _, shadowed := env.Find(name); shadowed {
		return nil, false, nil
	}
	args, err := it.args(env, call)
	if err != nil {
		return nil, true, err
	}
	value, err := it.builtin(name, args)
	return value, true, err
}

func (it *Interp) builtin(name string, args []Value) (Value, error) {
	switch name {
	case "len":
		if len(args) != 1 {
			return nil, errors.New("len takes one argument")
		}
		switch argT := args[0].(type) {
		case []Value:
			return int64(len(argT)), nil
		case string:
			return int64(len(argT)), nil
		}
		return nil, errors.Errorf("cannot take the length of %T", args[0])
	case "append":
		if len(args) < 1 {
			return nil, errors.New("append takes at least one argument")
		}
		slice, ok := args[0].([]Value)
		if !ok && args[0] != nil {
			return nil, errors.Errorf("cannot append to %T", args[0])
		}
		out := make([]Value, len(slice), len(slice)+len(args)-1)
		copy(out, slice)
		return append(out, args[1:]...), nil
	case "abs":
		n, ok := first(args).(int64)
		if !ok {
			return nil, errors.New("abs takes an int")
		}
		if n < 0 {
			return -n, nil
		}
		return n, nil
	case "min", "max":
		return minMax(name, args)
	case "println":
		fmt.Fprintln(it.stdout, anyArgs(args)...)
		return nil, nil
	case "printf":
		format, ok := first(args).(string)
		if !ok {
			return nil, errors.New("printf takes a format string")
		}
		fmt.Fprintf(it.stdout, format, anyArgs(args[1:])...)
		return nil, nil
	case "readln":
		line, err := it.stdin.ReadString('\n')
		if err != nil && line == "" {
			return "", nil
		}
		return strings.TrimSuffix(line, "\n"), nil
	case "writefile":
		if len(args) != 2 {
			return nil, errors.New("writefile takes a target and data")
		}
		target, ok := args[0].(string)
		if !ok {
			target = fmt.Sprint(args[0])
		}
		it.files.Store(target, fmt.Sprint(args[1]))
		return nil, nil
	case "panic":
		return nil, errors.Errorf("panic: %v", first(args))
	}
	return nil, errors.Errorf("unknown builtin %s", name)
}

// anyArgs widens values for forwarding to the fmt variadics.
func anyArgs(args []Value) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		out[i] = arg
	}
	return out
}

func first(args []Value) Value {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

func minMax(name string, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, errors.Errorf("%s takes at least one argument", name)
	}
	best, ok := args[0].(int64)
	if !ok {
		return nil, errors.Errorf("%s takes ints", name)
	}
	for _, arg := range args[1:] {
		n, ok := arg.(int64)
		if !ok {
			return nil, errors.Errorf("%s takes ints", name)
		}
		if (name == "min" && n < best) || (name == "max" && n > best) {
			best = n
		}
	}
	return best, nil
}
