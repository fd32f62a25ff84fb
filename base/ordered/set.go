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

package ordered

import "slices"

// Set is an ordered set. Iter iterates over the elements
// in the same order in which they have been added.
type Set[T comparable] struct {
	elts []T
	in   map[T]bool
}

// NewSet returns a new ordered set with the given initial elements.
func NewSet[T comparable](elts ...T) *Set[T] {
	s := &Set[T]{in: make(map[T]bool)}
	for _, el := range elts {
		s.Add(el)
	}
	return s
}

// Add an element to the set. Adding an element already
// in the set does not change its position.
func (s *Set[T]) Add(el T) {
	if s.in[el] {
		return
	}
	s.in[el] = true
	s.elts = append(s.elts, el)
}

// AddAll adds all the elements of another set.
func (s *Set[T]) AddAll(o *Set[T]) {
	if o == nil {
		return
	}
	for _, el := range o.elts {
		s.Add(el)
	}
}

// Has returns true if the element belongs to the set.
func (s *Set[T]) Has(el T) bool {
	return s != nil && s.in[el]
}

// Iter returns an iterator to range over the elements of the set.
func (s *Set[T]) Iter() func(func(T) bool) {
	return func(yield func(T) bool) {
		if s == nil {
			return
		}
		for _, el := range s.elts {
			if !yield(el) {
				break
			}
		}
	}
}

// Elements returns the elements of the set in insertion order.
// The returned slice is a copy.
func (s *Set[T]) Elements() []T {
	if s == nil {
		return nil
	}
	return slices.Clone(s.elts)
}

// Clone creates a new set with the same elements.
func (s *Set[T]) Clone() *Set[T] {
	r := NewSet[T]()
	r.AddAll(s)
	return r
}

// Size returns the number of elements in the set.
func (s *Set[T]) Size() int {
	if s == nil {
		return 0
	}
	return len(s.elts)
}
