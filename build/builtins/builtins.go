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

// Package builtins registers the builtin functions of the analyzed
// language and the effects each one carries.
package builtins

type builtin struct {
	pure  bool
	io    bool
	raise bool
}

var builtins = map[string]builtin{
	"len":    {pure: true},
	"append": {pure: true},
	"abs":    {pure: true},
	"min":    {pure: true},
	"max":    {pure: true},

	"println":   {io: true},
	"printf":    {io: true},
	"readln":    {io: true},
	"writefile": {io: true},

	"panic": {raise: true},
}

// Is returns true if the name is a recognized builtin.
func Is(name string) bool {
	_, ok := builtins[name]
	return ok
}

// IsPure returns true for builtins with no effect besides their result.
func IsPure(name string) bool {
	return builtins[name].pure
}

// IsIO returns true for builtins performing input/output.
func IsIO(name string) bool {
	return builtins[name].io
}

// Raises returns true for builtins that raise an error.
func Raises(name string) bool {
	return builtins[name].raise
}
