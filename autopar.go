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

// Package autopar drives the parallelization pipeline: build the tree,
// analyze effects, detect profitable regions, and rewrite the accepted
// ones for one execution backend.
package autopar

import (
	"go/token"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/gx-org/autopar/analysis/detect"
	"github.com/gx-org/autopar/analysis/effects"
	"github.com/gx-org/autopar/backend"
	"github.com/gx-org/autopar/backend/gogen"
	"github.com/gx-org/autopar/base/iter"
	"github.com/gx-org/autopar/base/sync"
	"github.com/gx-org/autopar/build/builder"
	"github.com/gx-org/autopar/interp"
	"github.com/gx-org/autopar/ir"
	"github.com/gx-org/autopar/profile"
	"github.com/gx-org/autopar/transform"
)

// Options configure one pipeline run.
type Options struct {
	// Backend names the execution backend rewrites target.
	// Defaults to pool.
	Backend string
	// Workers bounds the concurrent work units of every rewritten
	// region. Zero lets the backend decide at execution time.
	Workers int
	// MinIterations rejects regions with fewer estimated iterations.
	MinIterations int
	// PureCalls lists function names vouched for as pure.
	PureCalls []string
}

// DefaultBackend is used when Options.Backend is empty.
const DefaultBackend = "pool"

func (o Options) detectConfig() detect.Config {
	return detect.Config{MinIterations: o.MinIterations, PureCalls: o.PureCalls}
}

func (o Options) capabilities() (backend.Capabilities, error) {
	name := o.Backend
	if name == "" {
		name = DefaultBackend
	}
	caps, err := backend.ByName(name)
	if err != nil {
		return backend.Capabilities{}, err
	}
	if o.Workers > 0 {
		caps.MaxWorkers = o.Workers
	}
	return caps, nil
}

// Result of one pipeline run.
type Result struct {
	opts Options
	caps backend.Capabilities
	src  string

	// FSet locates diagnostics in the source.
	FSet *token.FileSet
	// File is the rewritten tree.
	File *ir.File
	// Analysis holds the effect analysis of the file.
	Analysis *effects.FileAnalysis
	// Report records the decision taken on every candidate region.
	Report *detect.Report
	// Tasks are the parallel sections spliced into the tree, in
	// application order.
	Tasks []*ir.ParallelTask
	// Mismatched counts accepted regions the backend could not
	// express; their loops were left sequential.
	Mismatched int
}

// Parallelize runs the pipeline on one source file.
func Parallelize(filename, src string, opts Options) (*Result, error) {
	caps, err := opts.capabilities()
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	file, err := builder.Parse(fset, filename, src)
	if err != nil {
		return nil, err
	}
	result := &Result{
		opts: opts,
		caps: caps,
		src:  src,
		FSet: fset,
		File: file,
	}
	result.Analysis = effects.AnalyzeFile(file, effects.Config{PureCalls: opts.PureCalls})
	regions, err := result.detect()
	if err != nil {
		return nil, err
	}
	result.Report = detect.NewReport(fset, regions)
	if err := result.apply(regions); err != nil {
		return nil, err
	}
	return result, nil
}

// detect analyzes the functions of the file concurrently. Detection
// only reads the tree, so the fan-out is safe; results are reassembled
// in declaration order to keep the pipeline deterministic.
func (r *Result) detect() ([]*detect.Region, error) {
	byFunc := &sync.Map[*ir.FuncDecl, []*detect.Region]{}
	grp := errgroup.Group{}
	for _, fn := range r.File.Funcs {
		grp.Go(func() error {
			byFunc.Store(fn, detect.Detect(r.Analysis, fn, r.opts.detectConfig()))
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	var regions []*detect.Region
	for _, fn := range r.File.Funcs {
		regions = append(regions, byFunc.Load(fn)...)
	}
	return regions, nil
}

// apply rewrites the accepted regions one at a time: splicing mutates
// the tree, so it stays sequential.
func (r *Result) apply(regions []*detect.Region) error {
	accepted := func(region *detect.Region) bool { return region.Accepted }
	for region := range iter.Filter(accepted, regions) {
		task, err := transform.Apply(r.Analysis, region, r.opts.detectConfig(), r.caps)
		switch {
		case errors.Is(err, transform.ErrBackendMismatch):
			r.Mismatched++
			continue
		case errors.Is(err, transform.ErrTransformAborted):
			// A previous rewrite invalidated this region; the loop
			// stays sequential.
			continue
		case err != nil:
			return err
		}
		r.Tasks = append(r.Tasks, task)
	}
	return nil
}

// Generate writes the rewritten file as a Go program.
func (r *Result) Generate(w io.Writer) error {
	return gogen.New(r.File, r.caps).Generate(w)
}

// Evaluator returns an evaluator running the rewritten tree.
func (r *Result) Evaluator(opts ...interp.Option) (*interp.Interp, error) {
	return interp.New(r.File, opts...)
}

// sequential rebuilds the tree from source, without rewrites.
func (r *Result) sequential() (*ir.File, error) {
	return builder.Parse(token.NewFileSet(), "baseline", r.src)
}

// Profile runs one function of the file before and after rewriting and
// compares the two runs. It fails if the transformed run returns a
// different value than the baseline.
func (r *Result) Profile(fn string, args ...interp.Value) (*profile.Comparison, error) {
	baseFile, err := r.sequential()
	if err != nil {
		return nil, err
	}
	base, err := interp.New(baseFile)
	if err != nil {
		return nil, err
	}
	var want interp.Value
	seq, err := profile.Measure(func() error {
		var callErr error
		want, callErr = base.CallNamed(fn, args...)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	rewritten, err := r.Evaluator()
	if err != nil {
		return nil, err
	}
	var got interp.Value
	par, err := profile.Measure(func() error {
		var callErr error
		got, callErr = rewritten.CallNamed(fn, args...)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if !interp.Equal(want, got) {
		return nil, errors.Errorf("%s diverged after rewriting: sequential %v, parallel %v", fn, want, got)
	}
	return &profile.Comparison{Name: fn, Sequential: seq, Parallel: par}, nil
}
