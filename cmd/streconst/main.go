// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command streconst reconstructs collision-tolerant, hash-compressed
// stack traces from a statically-derived call graph.
//
// Usage:
//
//	streconst [flags] <callgraph-dump> <fingerprints> <D> <m> [print-unresolved]
//
// callgraph-dump is a call-graph dump in the text format documented
// in SPEC_FULL.md §6.1; fingerprints is one hex-PC stack record per
// line. D is the depth limit traces were collected with; m is the mid
// index used to compute their fingerprints, 0 <= m < D. The optional
// fifth argument, if non-zero, prints the original trace of every
// unresolved fingerprint on the diagnostic channel.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"streconst/internal/callgraph"
	"streconst/internal/demangle"
	"streconst/internal/reconstruct"
	"streconst/internal/report"
	"streconst/internal/stset"
)

func main() {
	var (
		demangleCmd string
		reverseDump string
		visitedCap  int
	)
	flag.StringVar(&demangleCmd, "demangle", "", "shell `command` used to demangle symbol names for display")
	flag.StringVar(&reverseDump, "reversedump", "", "write the human-readable reverse call graph to `file`")
	flag.IntVar(&visitedCap, "cap", 0, "stop a function's DFS once it has visited `n` nodes (0 disables)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <callgraph-dump> <fingerprints> <D> <m> [print-unresolved]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 4 && flag.NArg() != 5 {
		flag.Usage()
		os.Exit(2)
	}

	dumpPath := flag.Arg(0)
	fpPath := flag.Arg(1)
	depthLimit, err := strconv.Atoi(flag.Arg(2))
	if err != nil || depthLimit <= 0 {
		log.Fatalf("streconst: D must be a positive integer, got %q", flag.Arg(2))
	}
	mid, err := strconv.Atoi(flag.Arg(3))
	if err != nil || mid < 0 || mid >= depthLimit {
		log.Fatalf("streconst: m must satisfy 0 <= m < D, got m=%q D=%d", flag.Arg(3), depthLimit)
	}
	printUnresolved := false
	if flag.NArg() == 5 {
		n, err := strconv.Atoi(flag.Arg(4))
		if err != nil {
			log.Fatalf("streconst: print-unresolved must be an integer, got %q", flag.Arg(4))
		}
		printUnresolved = n != 0
	}

	dumpFile, err := os.Open(dumpPath)
	if err != nil {
		log.Fatalf("streconst: %v", err)
	}
	cg, err := callgraph.Parse(dumpFile)
	dumpFile.Close()
	if err != nil {
		log.Fatalf("streconst: %v", err)
	}

	var dem *demangle.Demangler
	if demangleCmd != "" {
		dem, err = demangle.New(demangleCmd)
		if err != nil {
			log.Fatalf("streconst: %v", err)
		}
		defer dem.Close()
	}

	if reverseDump != "" {
		f, err := os.Create(reverseDump)
		if err != nil {
			log.Fatalf("streconst: %v", err)
		}
		resolve := func(name string) string { return name }
		if dem != nil {
			resolve = dem.Name
		}
		cg.PrintReverse(f, true, resolve)
		f.Close()
	}

	fpFile, err := os.Open(fpPath)
	if err != nil {
		log.Fatalf("streconst: %v", err)
	}
	set, _, err := stset.Load(fpFile, depthLimit, mid, log.Default())
	fpFile.Close()
	if err != nil {
		log.Fatalf("streconst: %v", err)
	}

	reports := make(map[string]report.FunctionReport, len(set))
	for name, group := range set {
		entry, ok := cg.LookupFunc(name)
		if !ok {
			log.Printf("streconst: no entry PC known for function %q, skipping its %d fingerprint(s)", name, len(group))
			continue
		}

		result := reconstruct.Run(cg, entry, depthLimit, mid, group, visitedCap)
		if result.CapHit {
			log.Printf("streconst: %q: visited-node cap (%d) reached before the search finished", name, visitedCap)
		}
		reports[name] = report.Build(name, group, cg, result)
	}

	names := report.SortedNames(reports)
	fnReports := make([]report.FunctionReport, 0, len(names))
	for _, name := range names {
		r := reports[name]
		r.Print(os.Stdout)
		if printUnresolved {
			r.PrintUnresolved(os.Stderr)
		}
		fnReports = append(fnReports, r)
	}
	report.Summarize(fnReports).Print(os.Stdout)
}
