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

package interp

import (
	"go/token"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/gx-org/autopar/internal/base/scope"
	"github.com/gx-org/autopar/ir"
)

func (it *Interp) parallelTask(env *scope.RWScope[Value], task *ir.ParallelTask) (Value, bool, error) {
	switch task.Combine {
	case ir.CombineReduce:
		return it.parallelReduce(env, task)
	default:
		return nil, false, it.parallelLoop(env, task)
	}
}

// parallelLoop runs the work units of a map, append, or for-each task
// concurrently. Results land in a slice indexed by unit, so the final
// collection is in iteration order no matter which unit finished first.
func (it *Interp) parallelLoop(env *scope.RWScope[Value], task *ir.ParallelTask) error {
	space, err := it.iterSpace(env, task.Range)
	if err != nil {
		return err
	}
	var results []Value
	collect := task.Elem != nil
	if collect {
		results = make([]Value, len(space))
	}
	grp := errgroup.Group{}
	grp.SetLimit(workers(task))
	for i, elem := range space {
		grp.Go(func() error {
			if it.unitHook != nil {
				it.unitHook(i)
			}
			unitEnv := scope.NewScope[Value](env)
			if task.Key != nil {
				unitEnv.Define(task.Key.Name, int64(i))
			}
			if task.Value != nil {
				unitEnv.Define(task.Value.Name, elem)
			}
			// The body runs directly in the unit scope so that
			// locals it defines stay visible to the element
			// expression below.
			for _, stmt := range task.Body.List {
				result, returned, err := it.stmt(unitEnv, stmt)
				if err != nil {
					return err
				}
				if returned {
					return errors.Errorf("cannot return %v from a work unit", result)
				}
			}
			if collect {
				value, err := it.expr(unitEnv, task.Elem)
				if err != nil {
					return err
				}
				results[i] = value
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	if !collect {
		return nil
	}
	return it.combineAppend(env, task, results)
}

func (it *Interp) combineAppend(env *scope.RWScope[Value], task *ir.ParallelTask, results []Value) error {
	prev, ok := env.Find(task.Target.Name)
	if !ok {
		return errors.Errorf("%s is not defined", task.Target.Name)
	}
	slice, ok := prev.([]Value)
	if !ok && prev != nil {
		return errors.Errorf("cannot append to %T", prev)
	}
	out := make([]Value, len(slice), len(slice)+len(results))
	copy(out, slice)
	out = append(out, results...)
	return env.Assign(task.Target.Name, out)
}

// parallelReduce evaluates the units of an associative reduction
// concurrently and folds them left to right. The task stands in for a
// return statement.
func (it *Interp) parallelReduce(env *scope.RWScope[Value], task *ir.ParallelTask) (Value, bool, error) {
	results := make([]Value, len(task.Units))
	grp := errgroup.Group{}
	grp.SetLimit(workers(task))
	for i, unit := range task.Units {
		grp.Go(func() error {
			if it.unitHook != nil {
				it.unitHook(i)
			}
			value, err := it.expr(env, unit)
			if err != nil {
				return err
			}
			results[i] = value
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, false, err
	}
	if len(results) == 0 {
		return nil, false, errors.New("reduction has no work units")
	}
	acc := results[0]
	for _, value := range results[1:] {
		next, err := binaryOp(op(task), acc, value)
		if err != nil {
			return nil, false, err
		}
		acc = next
	}
	return acc, true, nil
}

func op(task *ir.ParallelTask) token.Token {
	if task.Op == token.ILLEGAL {
		return token.ADD
	}
	return task.Op
}

func workers(task *ir.ParallelTask) int {
	if task.MaxWorkers > 0 {
		return task.MaxWorkers
	}
	return runtime.NumCPU()
}
