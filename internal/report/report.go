// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report formats per-function and cross-function reconstruction
// statistics, per spec.md §4.6.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/aclements/go-moremath/stats"

	"streconst/internal/callgraph"
	"streconst/internal/reconstruct"
	"streconst/internal/stacktrace"
	"streconst/internal/stset"
)

// FunctionReport is the summary of one innermost-function group's DFS,
// in the field order spec.md §4.6 specifies.
type FunctionReport struct {
	Name string

	Total           int
	FoundCorrect    int
	Unresolved      int
	SuccessRate     float64 // percent, 0-100
	CollisionGroups int     // fingerprints with at least one incorrect hash hit
	CollisionHits   int     // incorrect hash hits: every hit on an unresolved fingerprint, all but one on a resolved one

	ResolvedDirect   int
	ResolvedIndirect int

	Visited int
	Pruned  int

	unresolved []*stset.Info // kept for PrintUnresolved
}

// Build computes a FunctionReport from one group's post-DFS Info
// records and the DFS's Result counters. cg is consulted to classify
// every PC of each resolved trace as a direct or indirect call site.
func Build(name string, group map[stacktrace.Fingerprint]*stset.Info, cg *callgraph.CallGraph, result reconstruct.Result) FunctionReport {
	r := FunctionReport{
		Name:    name,
		Total:   len(group),
		Visited: result.Visited,
		Pruned:  result.Pruned,
	}

	for _, info := range group {
		if info.FoundCorrectMatch {
			r.FoundCorrect++
			for _, pc := range info.Trace {
				if cg.DirectSiteAddrs[pc] {
					r.ResolvedDirect++
				}
				if cg.IndirectSiteAddrs[pc] {
					r.ResolvedIndirect++
				}
			}
			if info.NumHashMatches > 1 {
				r.CollisionGroups++
				r.CollisionHits += info.NumHashMatches - 1
			}
		} else {
			r.Unresolved++
			r.unresolved = append(r.unresolved, info)
			if info.NumHashMatches > 0 {
				r.CollisionGroups++
				r.CollisionHits += info.NumHashMatches
			}
		}
	}

	if r.Total == 0 {
		r.SuccessRate = 100
	} else {
		r.SuccessRate = 100 * float64(r.FoundCorrect) / float64(r.Total)
	}

	return r
}

// Print writes one §4.6 block for r to w.
func (r FunctionReport) Print(w io.Writer) {
	fmt.Fprintf(w, "%s:\n", r.Name)
	fmt.Fprintf(w, "  Num unique stack traces: %d\n", r.Total)
	fmt.Fprintf(w, "  Num decompressed correctly: %d\n", r.FoundCorrect)
	fmt.Fprintf(w, "  Num could not be decompressed: %d\n", r.Unresolved)
	fmt.Fprintf(w, "  Success rate: %.1f%%\n", r.SuccessRate)
	fmt.Fprintf(w, "  Num ST had incorrect collisions: %d\n", r.CollisionGroups)
	fmt.Fprintf(w, "  Num incorrect collisions: %d\n", r.CollisionHits)
	fmt.Fprintf(w, "  Num dir calls found correctly: %d\n", r.ResolvedDirect)
	fmt.Fprintf(w, "  Num indir calls found correctly: %d\n", r.ResolvedIndirect)
	fmt.Fprintf(w, "  Num nodes visited during DFS: %d\n", r.Visited)
	fmt.Fprintf(w, "  Num pruning done: %d\n", r.Pruned)
}

// PrintUnresolved writes the original stack trace of every unresolved
// fingerprint in r, one per line, to w — the optional diagnostic dump
// spec.md §4.6 allows.
func (r FunctionReport) PrintUnresolved(w io.Writer) {
	for _, info := range r.unresolved {
		fmt.Fprintf(w, "%s:", r.Name)
		for _, pc := range info.Trace {
			fmt.Fprintf(w, " %x", uint64(pc))
		}
		fmt.Fprintln(w)
	}
}

// Summary aggregates success rates across every function group using
// both the arithmetic and geometric mean, the way a cross-benchmark
// rollup would: a few groups with a 0% success rate shouldn't be
// swamped by one large, easy group, which is what GeoMean resists
// better than Mean.
type Summary struct {
	Groups       int
	MeanSuccess  float64
	GeoMeanRate  float64
	TotalVisited int
	TotalPruned  int
}

// Summarize reduces a set of per-function reports into one Summary.
// A group with a 0% success rate is given a small epsilon instead of
// exactly 0 before taking the geometric mean, since GeoMean of any set
// containing a true zero is zero regardless of the rest of the data.
func Summarize(reports []FunctionReport) Summary {
	if len(reports) == 0 {
		return Summary{MeanSuccess: 100, GeoMeanRate: 100}
	}

	rates := make([]float64, len(reports))
	var s Summary
	s.Groups = len(reports)
	for i, r := range reports {
		rate := r.SuccessRate
		if rate <= 0 {
			rate = 0.01
		}
		rates[i] = rate
		s.TotalVisited += r.Visited
		s.TotalPruned += r.Pruned
	}

	s.MeanSuccess = stats.Mean(rates)
	s.GeoMeanRate = stats.GeoMean(rates)
	return s
}

// Print writes the cross-group rollup to w.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "overall: %d function groups\n", s.Groups)
	fmt.Fprintf(w, "  success rate: mean %.1f%%, geomean %.1f%%\n", s.MeanSuccess, s.GeoMeanRate)
	fmt.Fprintf(w, "  dfs totals: %d visited, %d pruned\n", s.TotalVisited, s.TotalPruned)
}

// SortedNames returns the group names of reports in ascending order,
// giving the per-function output a deterministic sequence regardless
// of the map iteration order the caller built reports from.
func SortedNames(reports map[string]FunctionReport) []string {
	names := make([]string, 0, len(reports))
	for n := range reports {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
