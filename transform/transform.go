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

// Package transform rewrites one approved candidate region into a
// backend-agnostic parallel task and splices it into the tree.
//
// The splice is the only mutation in the whole system and it is atomic:
// the engine builds the task from detached nodes, re-verifies the
// region, and then swaps exactly one child slot of the region's parent.
// On any failure the tree is left untouched and an error value is
// returned; the engine never panics on analysis results.
package transform

import (
	"github.com/pkg/errors"

	"github.com/gx-org/autopar/analysis/detect"
	"github.com/gx-org/autopar/analysis/effects"
	"github.com/gx-org/autopar/backend"
	"github.com/gx-org/autopar/ir"
)

// Sentinel results of the engine. Both are ordinary values: the caller
// decides whether a mismatch or an abort is fatal.
var (
	// ErrBackendMismatch: the target backend cannot represent the
	// combination semantics the region requires.
	ErrBackendMismatch = errors.New("backend cannot represent the required combination")
	// ErrTransformAborted: the defensive re-verification before the
	// splice failed; the tree has not been modified.
	ErrTransformAborted = errors.New("transformation aborted, tree left unchanged")
)

// Apply rewrites an accepted region into a parallel task for the given
// backend and splices it into the function body, replacing the region
// node. It returns the spliced task.
func Apply(fa *effects.FileAnalysis, region *detect.Region, cfg detect.Config, caps backend.Capabilities) (*ir.ParallelTask, error) {
	if !region.Accepted {
		return nil, errors.Wrapf(ErrTransformAborted, "region was rejected (%s: %s)", region.Reason, region.Detail)
	}
	if err := checkCapabilities(region, caps); err != nil {
		return nil, err
	}
	task, err := buildTask(fa, region, caps)
	if err != nil {
		return nil, err
	}
	if err := verify(fa, region, cfg); err != nil {
		return nil, err
	}
	old, ok := region.Node.(ir.Stmt)
	if !ok {
		return nil, errors.Wrapf(ErrTransformAborted, "region node %T is not a statement", region.Node)
	}
	if !ir.ReplaceStmt(region.Fn.Body, old, task) {
		return nil, errors.Wrapf(ErrTransformAborted, "region node is no longer attached to the function")
	}
	return task, nil
}

// checkCapabilities rejects backends that cannot represent the region's
// combination semantics rather than emitting an incorrect transformation.
func checkCapabilities(region *detect.Region, caps backend.Capabilities) error {
	switch region.Shape {
	case detect.ShapeMap, detect.ShapeAppend:
		// The observable result order must equal the sequential order,
		// so the backend must combine by unit index.
		if !caps.SupportsOrderedMap {
			return errors.Wrapf(ErrBackendMismatch, "backend %s cannot order a %s region", caps.Name, region.Shape)
		}
	case detect.ShapeReduce:
		if !caps.SupportsReduce {
			return errors.Wrapf(ErrBackendMismatch, "backend %s cannot reduce", caps.Name)
		}
	case detect.ShapeForEach:
		// No result combination: any backend can run it.
	default:
		return errors.Wrapf(ErrTransformAborted, "unsupported region shape %s", region.Shape)
	}
	return nil
}

func buildTask(fa *effects.FileAnalysis, region *detect.Region, caps backend.Capabilities) (*ir.ParallelTask, error) {
	switch region.Shape {
	case detect.ShapeReduce:
		return buildReduce(region, caps), nil
	default:
		return buildOrderedMap(fa, region, caps)
	}
}

func buildReduce(region *detect.Region, caps backend.Capabilities) *ir.ParallelTask {
	ret := region.Node.(*ir.ReturnStmt)
	task := &ir.ParallelTask{
		Src:        ret.Src,
		Combine:    ir.CombineReduce,
		Op:         region.Op,
		Captured:   region.Shared,
		MaxWorkers: caps.MaxWorkers,
	}
	for _, unit := range region.Units {
		task.Units = append(task.Units, unit)
	}
	return task
}

func buildOrderedMap(fa *effects.FileAnalysis, region *detect.Region, caps backend.Capabilities) (*ir.ParallelTask, error) {
	loop, ok := region.Node.(*ir.ForStmt)
	if !ok {
		return nil, errors.Wrapf(ErrTransformAborted, "%T is not a loop", region.Node)
	}
	task := &ir.ParallelTask{
		Src:        loop.Source(),
		Combine:    ir.CombineOrderedAppend,
		MaxWorkers: caps.MaxWorkers,
	}
	if loop.IsRange() {
		task.Key = loop.Key
		task.Value = loop.Value
		task.Range = loop.Range
	} else {
		// Canonical 3-clause loop, normalized to a range over its bound.
		task.Key, _ = loop.Init.Lhs.(*ir.Ident)
		bound, ok := loop.Cond.(*ir.BinaryExpr)
		if !ok {
			return nil, errors.Wrapf(ErrTransformAborted, "loop bound is not decomposable")
		}
		task.Range = bound.Y
	}
	if region.Accum != nil {
		// Each unit computes the appended element; the append itself
		// becomes the task's combining step.
		task.Elem = region.Accum.Elem
		task.Target = region.Accum.Ident
		task.Body = &ir.BlockStmt{Src: loop.Body.Src}
		for _, stmt := range loop.Body.List {
			if stmt == region.Accum.Stmt {
				continue
			}
			task.Body.List = append(task.Body.List, stmt)
		}
	} else {
		task.Body = loop.Body
	}
	for _, sym := range region.Shared {
		if region.Accum != nil && sym == region.Accum.Target {
			continue
		}
		task.Captured = append(task.Captured, sym)
	}
	return task, nil
}

// verify re-runs the detector on the unmodified tree and confirms the
// region is still attached, still accepted, and still has the same
// shape. The engine distrusts its caller: a stale region decision must
// abort, not splice.
func verify(fa *effects.FileAnalysis, region *detect.Region, cfg detect.Config) error {
	attached := false
	ir.Visit(region.Fn.Body, func(n ir.Node) bool {
		if n == region.Node {
			attached = true
		}
		return !attached
	})
	if !attached {
		return errors.Wrapf(ErrTransformAborted, "region node is not attached to function %s", region.Fn.Name.Name)
	}
	if err := ir.CheckTree(region.Fn); err != nil {
		return errors.Wrapf(ErrTransformAborted, "%v", err)
	}
	for _, fresh := range detect.Detect(fa, region.Fn, cfg) {
		if fresh.Node != region.Node {
			continue
		}
		if !fresh.Accepted || fresh.Shape != region.Shape {
			return errors.Wrapf(ErrTransformAborted, "region at %s no longer passes the safety predicate", region.Location(nil))
		}
		return nil
	}
	return errors.Wrapf(ErrTransformAborted, "region is no longer a candidate")
}
