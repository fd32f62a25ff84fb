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

// Type of a declared variable, parameter, or result.
// The analyzed language only has scalar types and slices of scalars,
// so a closed enumeration is enough.
type Type int

// All types of the analyzed language.
const (
	InvalidType Type = iota
	VoidType
	IntType
	BoolType
	StringType
	IntSliceType
	StringSliceType
)

var typeNames = map[Type]string{
	InvalidType:     "invalid",
	VoidType:        "",
	IntType:         "int",
	BoolType:        "bool",
	StringType:      "string",
	IntSliceType:    "[]int",
	StringSliceType: "[]string",
}

// String returns the source notation of the type.
func (t Type) String() string {
	s, ok := typeNames[t]
	if !ok {
		return "invalid"
	}
	return s
}

// IsSlice returns true for slice types.
func (t Type) IsSlice() bool {
	return t == IntSliceType || t == StringSliceType
}

// Elem returns the element type of a slice type.
func (t Type) Elem() Type {
	switch t {
	case IntSliceType:
		return IntType
	case StringSliceType:
		return StringType
	}
	return InvalidType
}

// TypeFromName returns the type written with a given source notation.
func TypeFromName(name string) (Type, bool) {
	for t, s := range typeNames {
		if s == name && t != VoidType {
			return t, true
		}
	}
	return InvalidType, false
}
