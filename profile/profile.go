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

// Package profile measures the effect of a transformation: the same
// work is run before and after rewriting and the wall times compared.
package profile

import (
	"fmt"
	"strings"
	"time"
)

// Sample is one measured run.
type Sample struct {
	// Wall is the elapsed time of the run.
	Wall time.Duration
	// MaxRSS is the peak resident set size of the process after the
	// run, in bytes. Zero on platforms without rusage.
	MaxRSS int64
}

// Measure runs f once and samples its cost.
func Measure(f func() error) (Sample, error) {
	start := time.Now()
	err := f()
	sample := Sample{Wall: time.Since(start), MaxRSS: maxRSS()}
	return sample, err
}

// Comparison holds the measurements of a sequential baseline and its
// transformed counterpart.
type Comparison struct {
	Name       string
	Sequential Sample
	Parallel   Sample
}

// Speedup returns the wall-time ratio of baseline to transformed run.
func (c *Comparison) Speedup() float64 {
	if c.Parallel.Wall <= 0 {
		return 0
	}
	return float64(c.Sequential.Wall) / float64(c.Parallel.Wall)
}

// String renders the comparison on one line.
func (c *Comparison) String() string {
	s := fmt.Sprintf("%s: sequential %v, parallel %v, speedup %.2fx",
		c.Name, c.Sequential.Wall.Round(time.Microsecond), c.Parallel.Wall.Round(time.Microsecond), c.Speedup())
	if c.Parallel.MaxRSS > 0 {
		s += fmt.Sprintf(", peak rss %s", formatBytes(c.Parallel.MaxRSS))
	}
	return s
}

// Report accumulates comparisons across functions.
type Report struct {
	Comparisons []*Comparison
}

// Add records one comparison.
func (r *Report) Add(c *Comparison) {
	r.Comparisons = append(r.Comparisons, c)
}

// String renders the report, one comparison per line.
func (r *Report) String() string {
	var b strings.Builder
	for _, c := range r.Comparisons {
		b.WriteString(c.String() + "\n")
	}
	return b.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
