// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reconstruct implements the depth-first enumeration over a
// CallGraph's reverse adjacency that searches for stacks whose
// fingerprint matches one of a set of collected fingerprints.
package reconstruct

import (
	"streconst/internal/callgraph"
	"streconst/internal/stacktrace"
	"streconst/internal/stset"

	"golang.org/x/exp/maps"
)

// Result accumulates the performance counters of one DFS run, passed
// by reference through the traversal rather than kept as global
// mutable state (spec.md §9).
type Result struct {
	Visited int
	Pruned  int

	// CapHit reports whether the search stopped early because it hit
	// the optional visited-node safety cutoff (spec.md §5), rather
	// than exhausting the graph on its own.
	CapHit bool
}

// Run performs the depth-first search of spec.md §4.4, starting at
// root (the innermost function's entry PC), searching simultaneously
// for every fingerprint in group. Matches update group's STInfo
// records in place; Run returns the visited/pruned counters.
//
// depthLimit is D and mid is the mid index m, 0 <= m < depthLimit. A
// positive cap aborts the search once Visited reaches it, as the
// optional safety cutoff of spec.md §5; 0 disables the cutoff.
func Run(cg *callgraph.CallGraph, root stacktrace.PC, depthLimit, mid int, group map[stacktrace.Fingerprint]*stset.Info, cap int) Result {
	midSet := make(map[uint32]struct{}, len(group))
	for _, fp := range maps.Keys(group) {
		midSet[fp.Hi()] = struct{}{}
	}

	buf := make(stacktrace.Trace, depthLimit)
	var result Result
	walk(cg, buf, root, 0, 0, depthLimit, mid, cap, group, midSet, &result)
	return result
}

// walk implements one DFS step. e is the current reverse-graph node
// (a function entry PC), h is the running two-lane hash for the trace
// built in buf[:depth].
func walk(
	cg *callgraph.CallGraph,
	buf stacktrace.Trace,
	e stacktrace.PC,
	h stacktrace.Fingerprint,
	depth, depthLimit, mid, cap int,
	group map[stacktrace.Fingerprint]*stset.Info,
	midSet map[uint32]struct{},
	result *Result,
) {
	if cap > 0 && result.Visited >= cap {
		result.CapHit = true
		return
	}
	result.Visited++

	if info, ok := group[h]; ok {
		verify(buf[:depth], h, mid, info)
	}

	if depth == mid {
		// At this point h's high lane is still untouched (the Step
		// that freezes it fires on the *next* transition, at idx ==
		// mid) so h's low lane already holds the running CRC of the
		// depth-mid prefix that will become that frozen high lane.
		// That is what must be compared against the prune set, which
		// holds each candidate fingerprint's high lane.
		if _, ok := midSet[h.Lo()]; !ok {
			result.Pruned++
			return
		}
	}

	if depth == depthLimit {
		return
	}

	for _, edge := range cg.Reverse(e) {
		buf[depth] = edge.SitePC
		next := stacktrace.Step(h, edge.SitePC, depth, mid)
		walk(cg, buf, edge.CallerPC, next, depth+1, depthLimit, mid, cap, group, midSet, result)
		if result.CapHit {
			return
		}
	}
}
