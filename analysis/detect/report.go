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

package detect

import (
	"fmt"
	"go/token"
	"strings"
)

// Report is the diagnostics contract handed to reporting and profiling
// collaborators: one entry per candidate considered, accepted or not.
type Report struct {
	fset    *token.FileSet
	Entries []ReportEntry
}

// ReportEntry describes the decision taken on one candidate region.
type ReportEntry struct {
	Location string
	Function string
	Shape    Shape
	Accepted bool
	Reason   Reason
	Detail   string
	Score    int
}

// NewReport collects the decisions of a ranked candidate list.
func NewReport(fset *token.FileSet, regions []*Region) *Report {
	report := &Report{fset: fset}
	for _, region := range regions {
		report.Entries = append(report.Entries, ReportEntry{
			Location: region.Location(fset),
			Function: region.Fn.Name.Name,
			Shape:    region.Shape,
			Accepted: region.Accepted,
			Reason:   region.Reason,
			Detail:   region.Detail,
			Score:    region.Score,
		})
	}
	return report
}

// String renders the report as text, one line per candidate.
func (r *Report) String() string {
	var b strings.Builder
	for _, e := range r.Entries {
		b.WriteString(e.String() + "\n")
	}
	return b.String()
}

// String renders one decision.
func (e ReportEntry) String() string {
	if e.Accepted {
		return fmt.Sprintf("%s: func %s: accepted %s region, score %d", e.Location, e.Function, e.Shape, e.Score)
	}
	return fmt.Sprintf("%s: func %s: rejected (%s: %s)", e.Location, e.Function, e.Reason, e.Detail)
}
