// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command cgdump derives a call-graph dump in SPEC_FULL.md §6.1's
// text format from a Go program's static call graph, standing in for
// the instrumenting compiler pass spec.md treats as out of scope.
//
// Usage:
//
//	cgdump [packages...]
//
// Each argument is a package pattern as accepted by go/packages (for
// example "./..." or a full import path). The call graph is built
// with class hierarchy analysis (CHA), which over-approximates
// interface dispatch but requires no entry-point or allocation-site
// assumptions, unlike pointer analysis or RTA — appropriate for a
// dump tool meant to run over arbitrary packages rather than a single
// annotated main.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"streconst/internal/stacktrace"
	strcg "streconst/internal/callgraph"
	"streconst/internal/symtab"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <package-pattern...>\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedImports |
			packages.NeedDeps | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, flag.Args()...)
	if err != nil {
		log.Fatalf("cgdump: loading packages: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		log.Fatal("cgdump: errors loading packages")
	}

	prog, _ := ssautil.AllPackages(pkgs, 0)
	prog.Build()

	ssaGraph := cha.CallGraph(prog)
	ssaGraph.DeleteSyntheticNodes()

	d := newDumper(ssaGraph)
	d.assignFuncPCs()
	d.classifyEdges()

	cg, err := d.build()
	if err != nil {
		log.Fatalf("cgdump: %v", err)
	}
	cg.Finalize()
	cg.Dump(os.Stdout)
}

// fnPC is a synthetic entry address assigned to each *ssa.Function:
// CHA operates on the SSA graph, which has no notion of a linked
// binary's real addresses, so cgdump fabricates stable, deterministic
// ones instead. Assigned in sorted-by-name order so two runs over the
// same packages produce byte-identical dumps.
type fnPC = stacktrace.PC

// dumper walks a CHA-derived SSA call graph and reduces it to the
// same shape internal/callgraph.CallGraph is built from, so the rest
// of the pipeline (Finalize, Dump, Reverse, Validate) is shared with
// every other producer of a dump file rather than reimplemented here.
type dumper struct {
	cg *callgraph.Graph

	fnOrder []*ssa.Function
	pc      map[*ssa.Function]fnPC
	nextPC  fnPC

	directCallers   map[fnPC][][2]fnPC // caller -> (site, target)
	indirectTargets map[stacktrace.TypeId][]fnPC
	indirectSites   map[stacktrace.TypeId][]fnPC
	callerIndirect  map[fnPC][]fnPC
	typeIDOf        map[string]stacktrace.TypeId // canonical target-set signature -> typeid
}

func newDumper(cg *callgraph.Graph) *dumper {
	return &dumper{
		cg:              cg,
		pc:              map[*ssa.Function]fnPC{},
		nextPC:          0x1000,
		directCallers:   map[fnPC][][2]fnPC{},
		indirectTargets: map[stacktrace.TypeId][]fnPC{},
		indirectSites:   map[stacktrace.TypeId][]fnPC{},
		callerIndirect:  map[fnPC][]fnPC{},
		typeIDOf:        map[string]stacktrace.TypeId{},
	}
}

// assignFuncPCs walks every node of the call graph once, in
// name-sorted order, handing out the next synthetic PC to each
// function and recording the traversal order for FUNCTION SYMBOLS.
func (d *dumper) assignFuncPCs() {
	fns := make([]*ssa.Function, 0, len(d.cg.Nodes))
	for fn := range d.cg.Nodes {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })

	for _, fn := range fns {
		d.pc[fn] = d.nextPC
		d.nextPC += 0x10
		d.fnOrder = append(d.fnOrder, fn)
	}
}

// classifyEdges assigns a synthetic site PC to each distinct call
// instruction and splits edges into direct (a statically resolved
// callee) and indirect (dynamic dispatch through an interface or
// function value).
//
// CHA can only report, for an indirect call site, the full set of
// candidate callees reachable by the method signature in scope; that
// candidate set is used directly as the TypeId's target multiset,
// with the TypeId itself being an index over each distinct candidate
// set encountered (sites that can reach exactly the same candidates
// share a TypeId, mirroring how real TypeIds group call sites by
// concrete interface shape rather than by individual instruction).
func (d *dumper) classifyEdges() {
	type siteKey struct {
		caller *ssa.Function
		site   ssa.CallInstruction
	}
	bySite := map[siteKey][]*callgraph.Edge{}
	var sites []siteKey

	for _, fn := range d.fnOrder {
		node := d.cg.Nodes[fn]
		if node == nil {
			continue
		}
		for _, e := range node.Out {
			if e.Site == nil || e.Callee == nil || e.Callee.Func == nil {
				continue
			}
			k := siteKey{fn, e.Site}
			if _, ok := bySite[k]; !ok {
				sites = append(sites, k)
			}
			bySite[k] = append(bySite[k], e)
		}
	}

	sort.Slice(sites, func(i, j int) bool {
		if sites[i].caller != sites[j].caller {
			return d.pc[sites[i].caller] < d.pc[sites[j].caller]
		}
		return sites[i].site.String() < sites[j].site.String()
	})

	for i, k := range sites {
		callerPC := d.pc[k.caller]
		sitePC := fnPC(0x800000) + fnPC(i)*0x10 // disjoint range from function PCs

		edges := bySite[k]
		common := edges[0].Site.Common()
		if !common.IsInvoke() && len(edges) == 1 {
			d.directCallers[callerPC] = append(d.directCallers[callerPC], [2]fnPC{sitePC, d.pc[edges[0].Callee.Func]})
			continue
		}

		targets := make([]fnPC, 0, len(edges))
		for _, e := range edges {
			targets = append(targets, d.pc[e.Callee.Func])
		}
		sort.Slice(targets, func(a, b int) bool { return targets[a] < targets[b] })

		var sb strings.Builder
		for _, t := range targets {
			fmt.Fprintf(&sb, "%x,", uint64(t))
		}
		sig := sb.String()
		t, ok := d.typeIDOf[sig]
		if !ok {
			t = stacktrace.TypeId(len(d.typeIDOf) + 1)
			d.typeIDOf[sig] = t
			d.indirectTargets[t] = targets
		}
		d.indirectSites[t] = append(d.indirectSites[t], sitePC)
		d.callerIndirect[callerPC] = append(d.callerIndirect[callerPC], sitePC)
	}
}

// build folds the classified edges and assigned symbols into a
// streconst/internal/callgraph.CallGraph, so serialization and
// cross-validation (Dump, Validate) run through the one
// implementation shared with every other entry point.
func (d *dumper) build() (*strcg.CallGraph, error) {
	cg := strcg.New()

	for t, targets := range d.indirectTargets {
		for _, pc := range targets {
			cg.AddIndirectTarget(t, pc)
		}
	}
	for t, sites := range d.indirectSites {
		for _, pc := range sites {
			cg.AddIndirectCallType(t, pc)
		}
	}
	for caller, sites := range d.callerIndirect {
		for _, site := range sites {
			cg.AddIndirectCallSite(caller, site)
		}
	}
	for caller, calls := range d.directCallers {
		for _, st := range calls {
			cg.AddDirectCallSite(caller, st[0], st[1])
		}
	}

	syms := make([]symtab.Sym, 0, len(d.fnOrder))
	for _, fn := range d.fnOrder {
		syms = append(syms, symtab.Sym{Name: fn.String(), PC: d.pc[fn]})
	}
	table, err := symtab.NewTable(syms)
	if err != nil {
		return nil, fmt.Errorf("building symbol table: %w", err)
	}
	cg.Symbols = table

	return cg, nil
}
