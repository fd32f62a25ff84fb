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

package ir

import (
	"github.com/pkg/errors"

	"github.com/gx-org/autopar/build/fmterr"
)

// CheckTree verifies the structural invariants of the tree rooted at n:
// every node is owned by exactly one parent and no statement or
// expression slot is nil. A violation is a bug in whoever built or
// transformed the tree, reported as an internal error, distinct from
// any analysis outcome.
func CheckTree(n Node) error {
	seen := make(map[Node]Node)
	var check func(parent, n Node) error
	check = func(parent, n Node) error {
		if prev, ok := seen[n]; ok {
			return fmterr.Internal(errors.Errorf(
				"node %T has two parents (%T and %T)", n, prev, parent))
		}
		seen[n] = parent
		for _, c := range Children(n) {
			if err := check(n, c); err != nil {
				return err
			}
		}
		return nil
	}
	if n == nil {
		return fmterr.Internal(errors.New("nil tree root"))
	}
	return check(nil, n)
}
