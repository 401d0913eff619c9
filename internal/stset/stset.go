// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stset loads the input database of fingerprints to
// reconstruct, grouped by innermost-function name.
package stset

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"streconst/internal/stacktrace"
)

// Info is a per-fingerprint record: the original trace (kept for
// verification), its fingerprint, and the DFS's running tally of hash
// hits and whether a correct match was found.
type Info struct {
	Trace             stacktrace.Trace
	Fingerprint       stacktrace.Fingerprint
	NumHashMatches    int
	FoundCorrectMatch bool
}

// Set maps innermost-function name to its fingerprints, each mapped
// to its Info.
type Set map[string]map[stacktrace.Fingerprint]*Info

// Stats accumulates the non-fatal warning counts spec.md §4.3
// requires: traces truncated to the depth limit, and input
// fingerprints overwritten due to a hash collision.
type Stats struct {
	Clipped    int
	Collisions int
	Discarded  int // malformed records skipped, spec.md §7
}

// Load reads one stack trace record per line ("funcname pc0 pc1 ...",
// hex PCs), truncates traces longer than depthLimit, fingerprints each
// with mid, and groups the result by function name. Malformed records
// are discarded with a diagnostic and do not stop the load; clipping
// and collisions are reported the same way, per spec.md §4.3/§7.
//
// diag receives one line per warning; if nil, the standard logger is
// used, matching the rest of the CLI's diagnostic channel.
func Load(r io.Reader, depthLimit, mid int, diag *log.Logger) (Set, Stats, error) {
	if depthLimit <= 0 {
		return nil, Stats{}, fmt.Errorf("stset: depth limit must be positive, got %d", depthLimit)
	}
	if mid < 0 || mid >= depthLimit {
		return nil, Stats{}, fmt.Errorf("stset: mid index %d must satisfy 0 <= mid < %d", mid, depthLimit)
	}
	if diag == nil {
		diag = log.Default()
	}

	set := Set{}
	var stats Stats

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			stats.Discarded++
			diag.Printf("stset: discarding malformed record (need a name and at least one pc): %q", line)
			continue
		}

		name := fields[0]
		pcFields := fields[1:]
		clipped := false
		if len(pcFields) > depthLimit {
			pcFields = pcFields[:depthLimit]
			clipped = true
		}

		trace := make(stacktrace.Trace, 0, len(pcFields))
		malformed := false
		for _, f := range pcFields {
			v, err := strconv.ParseUint(f, 16, 64)
			if err != nil {
				diag.Printf("stset: discarding malformed record (bad pc %q): %q", f, line)
				malformed = true
				break
			}
			trace = append(trace, stacktrace.PC(v))
		}
		if malformed {
			stats.Discarded++
			continue
		}

		if clipped {
			stats.Clipped++
		}

		fp := stacktrace.Hash(trace, mid)
		group := set[name]
		if group == nil {
			group = map[stacktrace.Fingerprint]*Info{}
			set[name] = group
		}
		if _, dup := group[fp]; dup {
			stats.Collisions++
		}
		group[fp] = &Info{Trace: trace, Fingerprint: fp}
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("stset: reading fingerprints: %w", err)
	}

	if stats.Clipped > 0 {
		diag.Printf("WARNING: %d stack traces were clipped as they exceeded the depth limit.", stats.Clipped)
	}
	if stats.Collisions > 0 {
		diag.Printf("WARNING: %d stack traces had hash collisions.", stats.Collisions)
	}

	return set, stats, nil
}
