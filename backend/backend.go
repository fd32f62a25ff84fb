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

// Package backend describes the execution backends a parallel task can
// be generated for.
//
// The transformation engine only ever sees the capability descriptor:
// whether the target can combine unit results in a deterministic order,
// whether it can reduce, and how many workers it runs. How a backend
// renders the task into code is the business of its generator.
package backend

import (
	"sort"

	"github.com/pkg/errors"
)

// Capabilities of one execution backend.
type Capabilities struct {
	Name string
	// SupportsOrderedMap: unit results can be combined by unit index,
	// making the observable order independent of completion order.
	SupportsOrderedMap bool
	// SupportsReduce: unit results can be folded with an associative
	// operator.
	SupportsReduce bool
	// MaxWorkers bounds concurrent work units. Zero picks the backend
	// default at execution time.
	MaxWorkers int
}

var registry = map[string]Capabilities{
	// pool schedules work units on a fixed pool of workers.
	"pool": {Name: "pool", SupportsOrderedMap: true, SupportsReduce: true},
	// spawn starts one goroutine per work unit and collects results
	// by unit index.
	"spawn": {Name: "spawn", SupportsOrderedMap: true},
	// vector executes lane-style reductions only: it has no way to
	// reconstruct an ordered result collection.
	"vector": {Name: "vector", SupportsReduce: true},
}

// ByName returns the capability descriptor of a registered backend.
func ByName(name string) (Capabilities, error) {
	caps, ok := registry[name]
	if !ok {
		return Capabilities{}, errors.Errorf("unknown backend %q (available: %v)", name, Names())
	}
	return caps, nil
}

// Names returns the registered backend names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
