// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package callgraph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"streconst/internal/stacktrace"
	"streconst/internal/symtab"
)

const (
	hdrIndirectTargetsTypes = "INDIRECT TARGETS TYPES"
	hdrIndirectCallsTypes   = "INDIRECT CALLS TYPES"
	hdrIndirectCallSites    = "INDIRECT CALL SITES"
	hdrDirectCallSites      = "DIRECT CALL SITES"
	hdrFunctionSymbols      = "FUNCTION SYMBOLS"
)

// Parse reads a call-graph dump in spec.md §6.1's text format and
// returns the resulting CallGraph with its reverse adjacency already
// built.
//
// Parsing is strict: a duplicated section header or an unparseable
// body line is a fatal error that aborts the whole file, per spec.md
// §4.2/§7. Unknown section headers are ignored. Missing TypeId
// cross-references are tolerated silently by Finalize, not by Parse.
func Parse(r io.Reader) (*CallGraph, error) {
	cg := New()
	syms := []symtab.Sym{}
	seen := map[string]bool{}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		var header string
		switch {
		case strings.HasPrefix(line, hdrIndirectTargetsTypes):
			header = hdrIndirectTargetsTypes
		case strings.HasPrefix(line, hdrIndirectCallsTypes):
			header = hdrIndirectCallsTypes
		case strings.HasPrefix(line, hdrIndirectCallSites):
			header = hdrIndirectCallSites
		case strings.HasPrefix(line, hdrDirectCallSites):
			header = hdrDirectCallSites
		case strings.HasPrefix(line, hdrFunctionSymbols):
			header = hdrFunctionSymbols
		default:
			continue
		}

		if seen[header] {
			return nil, fmt.Errorf("callgraph: duplicate %q section", header)
		}
		seen[header] = true

		for sc.Scan() {
			body := sc.Text()
			if body == "" {
				break
			}
			fields := strings.Fields(body)
			if err := parseBodyLine(cg, &syms, header, fields); err != nil {
				return nil, fmt.Errorf("callgraph: %s section: %w", header, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("callgraph: reading dump: %w", err)
	}

	table, err := symtab.NewTable(syms)
	if err != nil {
		return nil, fmt.Errorf("callgraph: %w", err)
	}
	cg.Symbols = table

	cg.Finalize()
	return cg, nil
}

func parseBodyLine(cg *CallGraph, syms *[]symtab.Sym, header string, fields []string) error {
	switch header {
	case hdrIndirectTargetsTypes:
		if len(fields) < 2 {
			return fmt.Errorf("want \"<typeid> <target_pc>...\", got %q", strings.Join(fields, " "))
		}
		t, err := parseHex64(fields[0])
		if err != nil {
			return err
		}
		for _, f := range fields[1:] {
			pc, err := parseHex64(f)
			if err != nil {
				return err
			}
			cg.AddIndirectTarget(stacktrace.TypeId(t), stacktrace.PC(pc))
		}

	case hdrIndirectCallsTypes:
		if len(fields) < 2 {
			return fmt.Errorf("want \"<typeid> <site_pc>...\", got %q", strings.Join(fields, " "))
		}
		t, err := parseHex64(fields[0])
		if err != nil {
			return err
		}
		for _, f := range fields[1:] {
			pc, err := parseHex64(f)
			if err != nil {
				return err
			}
			cg.AddIndirectCallType(stacktrace.TypeId(t), stacktrace.PC(pc))
		}

	case hdrIndirectCallSites:
		if len(fields) < 2 {
			return fmt.Errorf("want \"<caller_pc> <site_pc>...\", got %q", strings.Join(fields, " "))
		}
		caller, err := parseHex64(fields[0])
		if err != nil {
			return err
		}
		for _, f := range fields[1:] {
			site, err := parseHex64(f)
			if err != nil {
				return err
			}
			cg.AddIndirectCallSite(stacktrace.PC(caller), stacktrace.PC(site))
		}

	case hdrDirectCallSites:
		if len(fields) < 3 || len(fields[1:])%2 != 0 {
			return fmt.Errorf("want \"<caller_pc> <site_pc> <target_pc>...\", got %q", strings.Join(fields, " "))
		}
		caller, err := parseHex64(fields[0])
		if err != nil {
			return err
		}
		rest := fields[1:]
		for i := 0; i < len(rest); i += 2 {
			site, err := parseHex64(rest[i])
			if err != nil {
				return err
			}
			target, err := parseHex64(rest[i+1])
			if err != nil {
				return err
			}
			cg.AddDirectCallSite(stacktrace.PC(caller), stacktrace.PC(site), stacktrace.PC(target))
		}

	case hdrFunctionSymbols:
		if len(fields) != 2 {
			return fmt.Errorf("want \"<pc> <symbol>\", got %q", strings.Join(fields, " "))
		}
		pc, err := parseHex64(fields[0])
		if err != nil {
			return err
		}
		*syms = append(*syms, symtab.Sym{Name: fields[1], PC: stacktrace.PC(pc)})

	default:
		// Unreachable: callers only dispatch recognized headers.
	}
	return nil
}

func parseHex64(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed hex value %q: %w", s, err)
	}
	return v, nil
}
