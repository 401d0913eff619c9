// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package callgraph

import (
	"fmt"
	"io"
	"sort"

	"streconst/internal/stacktrace"
)

// edgeKey identifies a (caller, target) pair irrespective of which
// call site realizes it, used by Validate to compare edge multisets.
type edgeKey struct {
	caller, target stacktrace.PC
}

// Dump writes every input table back out in spec.md §6.1's dump
// format: re-parsing Dump's output with Parse reproduces structurally
// equal mappings (property P8). This both satisfies spec.md §4.2's
// "emit a human-readable dump of all tables" operation and gives the
// format a reparseable round-trip, which Dump's tests rely on.
func (cg *CallGraph) Dump(w io.Writer) {
	fmt.Fprintln(w, hdrIndirectTargetsTypes)
	for _, t := range sortedTypeIds(cg.IndirectTargets) {
		fmt.Fprintf(w, "%x", uint64(t))
		for _, pc := range cg.IndirectTargets[t] {
			fmt.Fprintf(w, " %x", uint64(pc))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, hdrIndirectCallsTypes)
	for _, t := range sortedTypeIds(cg.IndirectSites) {
		fmt.Fprintf(w, "%x", uint64(t))
		for _, pc := range cg.IndirectSites[t] {
			fmt.Fprintf(w, " %x", uint64(pc))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, hdrIndirectCallSites)
	for _, caller := range sortedPCKeys(cg.CallerIndirectSites) {
		fmt.Fprintf(w, "%x", uint64(caller))
		for _, site := range cg.CallerIndirectSites[caller] {
			fmt.Fprintf(w, " %x", uint64(site))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, hdrDirectCallSites)
	for _, caller := range sortedPCKeys(cg.CallerDirectSites) {
		fmt.Fprintf(w, "%x", uint64(caller))
		for _, dc := range cg.CallerDirectSites[caller] {
			fmt.Fprintf(w, " %x %x", uint64(dc.Site), uint64(dc.Target))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, hdrFunctionSymbols)
	if cg.Symbols != nil {
		for _, s := range cg.Symbols.Syms() {
			fmt.Fprintf(w, "%x %s\n", uint64(s.PC), s.Name)
		}
	}
}

// PrintReverse writes the reverse call graph in "CALLER calls TARGET
// at SITE" form (spec.md §4.2), one line per edge. names controls
// whether PCs are resolved to their symbol name at all (bare hex
// addresses otherwise); when names is true and resolve is non-nil,
// every resolved symbol name is passed through it (e.g. an external
// demangler) before being printed.
func (cg *CallGraph) PrintReverse(w io.Writer, names bool, resolve func(name string) string) {
	for _, target := range sortedReverseTargets(cg.reverse) {
		for _, cs := range cg.reverse[target] {
			fmt.Fprintf(w, "%s calls %s at %#x\n",
				cg.displayName(cs.CallerPC, names, resolve), cg.displayName(target, names, resolve), uint64(cs.SitePC))
		}
	}
}

func (cg *CallGraph) displayName(pc stacktrace.PC, names bool, resolve func(name string) string) string {
	if !names || cg.Symbols == nil {
		return fmt.Sprintf("%#x", uint64(pc))
	}
	s, ok := cg.Symbols.ByPC(pc)
	if !ok {
		return fmt.Sprintf("%#x", uint64(pc))
	}
	if resolve != nil {
		return resolve(s.Name)
	}
	return s.Name
}

// Validate cross-checks that the reverse adjacency contains exactly
// the edges justified by the forward mappings (spec.md property P3):
// every direct edge inverted, and for every indirect site in a
// function with some TypeId, one edge per target of that TypeId. It
// returns an error describing the first discrepancy found, or nil if
// reverse is faithful.
func (cg *CallGraph) Validate() error {
	justified := map[edgeKey]int{}

	siteToType := make(map[stacktrace.PC]stacktrace.TypeId)
	for t, sites := range cg.IndirectSites {
		for _, s := range sites {
			siteToType[s] = t
		}
	}
	for caller, sites := range cg.CallerIndirectSites {
		for _, site := range sites {
			t, ok := siteToType[site]
			if !ok {
				continue
			}
			for _, target := range cg.IndirectTargets[t] {
				justified[edgeKey{caller, target}]++
			}
		}
	}
	for caller, calls := range cg.CallerDirectSites {
		for _, dc := range calls {
			justified[edgeKey{caller, dc.Target}]++
		}
	}

	actual := map[edgeKey]int{}
	for target, edges := range cg.reverse {
		for _, cs := range edges {
			actual[edgeKey{cs.CallerPC, target}]++
		}
	}

	for k, want := range justified {
		if actual[k] != want {
			return fmt.Errorf("callgraph: reverse[%#x] has %d edges from %#x, want %d",
				uint64(k.target), actual[k], uint64(k.caller), want)
		}
	}
	for k, got := range actual {
		if justified[k] == 0 {
			return fmt.Errorf("callgraph: reverse[%#x] has an unjustified edge from %#x (count %d)",
				uint64(k.target), uint64(k.caller), got)
		}
	}

	return cg.validateViaBiGraph(justified)
}

// validateViaBiGraph re-derives the same presence check through the
// dense-index Graph/BiGraph abstraction, as an independent audit path
// that doesn't share code with the edgeKey-map check above.
func (cg *CallGraph) validateViaBiGraph(justified map[edgeKey]int) error {
	index := map[stacktrace.PC]int{}
	var pcs []stacktrace.PC
	idx := func(pc stacktrace.PC) int {
		if i, ok := index[pc]; ok {
			return i
		}
		i := len(pcs)
		index[pc] = i
		pcs = append(pcs, pc)
		return i
	}

	type pair struct{ c, t int }
	seen := map[pair]bool{}
	for target, edges := range cg.reverse {
		for _, cs := range edges {
			seen[pair{idx(cs.CallerPC), idx(target)}] = true
		}
	}
	for k := range justified {
		idx(k.caller)
		idx(k.target)
	}

	g := make(intGraph, len(pcs))
	for p := range seen {
		g[p.c] = append(g[p.c], p.t)
	}
	bg := MakeBiGraph(g)

	for k := range justified {
		ci, ti := index[k.caller], index[k.target]
		found := false
		for _, in := range bg.In(ti) {
			if in == ci {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("callgraph: bigraph audit: %#x -> %#x missing from derived predecessor set",
				uint64(k.caller), uint64(k.target))
		}
	}
	return nil
}

func sortedTypeIds[V any](m map[stacktrace.TypeId]V) []stacktrace.TypeId {
	keys := make([]stacktrace.TypeId, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedReverseTargets(m map[stacktrace.PC][]stacktrace.CallSite) []stacktrace.PC {
	keys := make([]stacktrace.PC, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
