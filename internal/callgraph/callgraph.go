// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package callgraph models a program's direct and type-indirect call
// edges and their inversion into a reverse adjacency map used by the
// reconstructor's depth-first search.
package callgraph

import (
	"fmt"
	"sort"

	"streconst/internal/stacktrace"
	"streconst/internal/symtab"
)

// DirectCall is a resolved direct edge: a call instruction at Site,
// inside some caller, targeting Target.
type DirectCall struct {
	Site   stacktrace.PC
	Target stacktrace.PC
}

// CallGraph is the in-memory representation of spec.md's five input
// mappings plus the derived reverse adjacency.
//
// All exported maps use unique keys, as spec.md §3 requires; values
// are multisets represented as slices, preserving append order.
type CallGraph struct {
	IndirectTargets     map[stacktrace.TypeId][]stacktrace.PC
	IndirectSites       map[stacktrace.TypeId][]stacktrace.PC
	CallerIndirectSites map[stacktrace.PC][]stacktrace.PC
	CallerDirectSites   map[stacktrace.PC][]DirectCall
	DirectSiteAddrs     map[stacktrace.PC]bool
	IndirectSiteAddrs   map[stacktrace.PC]bool

	Symbols *symtab.Table

	// reverse is derived and rebuilt in full by Finalize whenever any
	// of the maps above change; it is never mutated piecewise.
	reverse map[stacktrace.PC][]stacktrace.CallSite
}

// New returns an empty CallGraph ready for incremental construction
// (used by producers such as cmd/cgdump). Call Finalize after adding
// all edges and symbols and before using Reverse.
func New() *CallGraph {
	return &CallGraph{
		IndirectTargets:     make(map[stacktrace.TypeId][]stacktrace.PC),
		IndirectSites:       make(map[stacktrace.TypeId][]stacktrace.PC),
		CallerIndirectSites: make(map[stacktrace.PC][]stacktrace.PC),
		CallerDirectSites:   make(map[stacktrace.PC][]DirectCall),
		DirectSiteAddrs:     make(map[stacktrace.PC]bool),
		IndirectSiteAddrs:   make(map[stacktrace.PC]bool),
	}
}

// AddIndirectTarget records that TypeId t may be the type of the
// target at pc for some indirect call.
func (cg *CallGraph) AddIndirectTarget(t stacktrace.TypeId, pc stacktrace.PC) {
	cg.IndirectTargets[t] = append(cg.IndirectTargets[t], pc)
}

// AddIndirectCallType records that the indirect call site at pc has
// TypeId t.
func (cg *CallGraph) AddIndirectCallType(t stacktrace.TypeId, pc stacktrace.PC) {
	cg.IndirectSites[t] = append(cg.IndirectSites[t], pc)
}

// AddIndirectCallSite records that function caller contains an
// indirect call instruction at site.
func (cg *CallGraph) AddIndirectCallSite(caller, site stacktrace.PC) {
	cg.CallerIndirectSites[caller] = append(cg.CallerIndirectSites[caller], site)
	cg.IndirectSiteAddrs[site] = true
}

// AddDirectCallSite records a resolved direct edge from caller to
// target through the call instruction at site.
func (cg *CallGraph) AddDirectCallSite(caller, site, target stacktrace.PC) {
	cg.CallerDirectSites[caller] = append(cg.CallerDirectSites[caller], DirectCall{site, target})
	cg.DirectSiteAddrs[site] = true
}

// Finalize rebuilds the derived reverse adjacency from the current
// input mappings. It must be called at least once before Reverse is
// used, and again after any further Add* call.
//
// Go maps do not preserve insertion order, so this defines "insertion
// order" (spec.md §4.4's ordering guarantee) as: indirect edges before
// direct edges (matching the reference implementation's
// GetIndirectCalls-then-direct-append order), callers/types visited in
// ascending PC order, and each caller's own call sites in the order
// they were added — a reproducible order, not necessarily the literal
// order of the original input file.
func (cg *CallGraph) Finalize() {
	rev := make(map[stacktrace.PC][]stacktrace.CallSite)

	siteToType := make(map[stacktrace.PC]stacktrace.TypeId)
	for t, sites := range cg.IndirectSites {
		for _, s := range sites {
			siteToType[s] = t
		}
	}

	for _, caller := range sortedPCKeys(cg.CallerIndirectSites) {
		for _, site := range cg.CallerIndirectSites[caller] {
			t, ok := siteToType[site]
			if !ok {
				// Missing TypeId cross-reference: silently tolerated,
				// contributes no edges (spec.md §4.2).
				continue
			}
			for _, target := range cg.IndirectTargets[t] {
				rev[target] = append(rev[target], stacktrace.CallSite{CallerPC: caller, SitePC: site})
			}
		}
	}

	for _, caller := range sortedPCKeys(cg.CallerDirectSites) {
		for _, dc := range cg.CallerDirectSites[caller] {
			rev[dc.Target] = append(rev[dc.Target], stacktrace.CallSite{CallerPC: caller, SitePC: dc.Site})
		}
	}

	cg.reverse = rev
}

// Reverse returns the predecessor edges for target: every
// (caller, call-site) pair that may transfer control to target. The
// returned slice is nil if target has no known predecessors; callers
// must not modify it.
func (cg *CallGraph) Reverse(target stacktrace.PC) []stacktrace.CallSite {
	return cg.reverse[target]
}

// sortedPCKeys returns the keys of a map[stacktrace.PC]V in ascending
// order, giving map iteration a reproducible order.
func sortedPCKeys[V any](m map[stacktrace.PC]V) []stacktrace.PC {
	keys := make([]stacktrace.PC, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// LookupFunc resolves a function name to its entry PC.
func (cg *CallGraph) LookupFunc(name string) (stacktrace.PC, bool) {
	if cg.Symbols == nil {
		return 0, false
	}
	sym, ok := cg.Symbols.ByName(name)
	return sym.PC, ok
}

// FuncName returns the display name for pc: its symbol if known,
// otherwise its hex address.
func (cg *CallGraph) FuncName(pc stacktrace.PC) string {
	if cg.Symbols == nil {
		return fmt.Sprintf("%#x", uint64(pc))
	}
	return cg.Symbols.Name(pc)
}
