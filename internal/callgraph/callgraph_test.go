// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package callgraph

import (
	"bytes"
	"strings"
	"testing"

	"streconst/internal/stacktrace"
)

// e1Dump is spec.md §8 scenario E1: a direct-only chain
// main -> foo -> bar.
const e1Dump = `FUNCTION SYMBOLS
100 main
200 foo
300 bar

DIRECT CALL SITES
100 150 200
200 250 300
`

func TestParseDirectChain(t *testing.T) {
	cg, err := Parse(strings.NewReader(e1Dump))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	bar, ok := cg.LookupFunc("bar")
	if !ok || bar != 0x300 {
		t.Fatalf("LookupFunc(bar) = %#x, %v", bar, ok)
	}

	preds := cg.Reverse(bar)
	if len(preds) != 1 || preds[0].CallerPC != 0x200 || preds[0].SitePC != 0x250 {
		t.Fatalf("Reverse(bar) = %+v, want one edge from 0x200 at 0x250", preds)
	}

	preds = cg.Reverse(stacktrace.PC(0x200))
	if len(preds) != 1 || preds[0].CallerPC != 0x100 || preds[0].SitePC != 0x150 {
		t.Fatalf("Reverse(foo) = %+v, want one edge from 0x100 at 0x150", preds)
	}
}

// e3Dump is spec.md §8 scenario E3: a single indirect call site with
// two potential targets.
const e3Dump = `INDIRECT TARGETS TYPES
7 200 300

INDIRECT CALLS TYPES
7 160

INDIRECT CALL SITES
100 160

FUNCTION SYMBOLS
100 ind
200 foo
300 bar
`

func TestParseIndirectFanOut(t *testing.T) {
	cg, err := Parse(strings.NewReader(e3Dump))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	for _, target := range []stacktrace.PC{0x200, 0x300} {
		preds := cg.Reverse(target)
		if len(preds) != 1 || preds[0].CallerPC != 0x100 || preds[0].SitePC != 0x160 {
			t.Errorf("Reverse(%#x) = %+v, want one edge from 0x100 at 0x160", uint64(target), preds)
		}
	}
}

func TestParseMissingTypeIdTolerated(t *testing.T) {
	dump := `INDIRECT CALL SITES
100 160

FUNCTION SYMBOLS
100 ind
`
	cg, err := Parse(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if n := len(cg.Reverse(0x999)); n != 0 {
		t.Fatalf("expected no edges for unresolved indirect site, got %d", n)
	}
}

func TestParseDuplicateSectionFatal(t *testing.T) {
	dump := e1Dump + "\nFUNCTION SYMBOLS\n400 qux\n"
	if _, err := Parse(strings.NewReader(dump)); err == nil {
		t.Fatal("Parse: want error for duplicate FUNCTION SYMBOLS section, got nil")
	}
}

func TestParseMalformedLineFatal(t *testing.T) {
	dump := "FUNCTION SYMBOLS\nnotahexvalue name\n"
	if _, err := Parse(strings.NewReader(dump)); err == nil {
		t.Fatal("Parse: want error for malformed hex value, got nil")
	}
}

func TestParseUnknownHeaderIgnored(t *testing.T) {
	dump := "SOME UNKNOWN SECTION\njunk that would fail to parse\n\n" + e1Dump
	cg, err := Parse(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := cg.LookupFunc("bar"); !ok {
		t.Fatal("expected bar to be parsed despite a preceding unknown section")
	}
}

func TestValidateCatchesUnjustifiedEdge(t *testing.T) {
	cg, err := Parse(strings.NewReader(e1Dump))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Tamper with the derived reverse map directly to simulate an
	// implementation bug and confirm Validate catches it.
	cg.reverse[stacktrace.PC(0x999)] = append(cg.reverse[stacktrace.PC(0x999)], stacktrace.CallSite{CallerPC: 0x1, SitePC: 0x2})
	if err := cg.Validate(); err == nil {
		t.Fatal("Validate: want error for unjustified edge, got nil")
	}
}

func TestDumpReparseIdempotent(t *testing.T) {
	for _, dump := range []string{e1Dump, e3Dump} {
		cg, err := Parse(strings.NewReader(dump))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}

		var buf bytes.Buffer
		cg.Dump(&buf)

		cg2, err := Parse(&buf)
		if err != nil {
			t.Fatalf("re-Parse of Dump output: %v", err)
		}

		if len(cg.Symbols.Syms()) != len(cg2.Symbols.Syms()) {
			t.Fatalf("symbol count changed across round trip: %d vs %d", len(cg.Symbols.Syms()), len(cg2.Symbols.Syms()))
		}
		for _, s := range cg.Symbols.Syms() {
			s2, ok := cg2.Symbols.ByName(s.Name)
			if !ok || s2.PC != s.PC {
				t.Fatalf("symbol %q did not round-trip: got %+v, ok=%v", s.Name, s2, ok)
			}
		}

		for target, edges := range cg.reverse {
			edges2 := cg2.Reverse(target)
			if len(edges) != len(edges2) {
				t.Fatalf("reverse[%#x] length changed: %d vs %d", uint64(target), len(edges), len(edges2))
			}
		}
	}
}
