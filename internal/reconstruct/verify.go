// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reconstruct

import (
	"fmt"

	"streconst/internal/stacktrace"
	"streconst/internal/stset"
)

// verify implements spec.md §4.5: candidate is the reconstructed
// prefix ST[0..d) whose hash equals h, a key of info's fingerprint.
// It recomputes the hash as an internal consistency guard (a mismatch
// is a programming error, not bad input, per spec.md §7), then
// compares the full PC sequence against the original trace to tell a
// true match from a hash collision. Either way, NumHashMatches is
// incremented; FoundCorrectMatch is only ever set, never cleared.
func verify(candidate stacktrace.Trace, h stacktrace.Fingerprint, mid int, info *stset.Info) {
	if got := stacktrace.Hash(candidate, mid); got != h {
		panic(fmt.Sprintf("reconstruct: internal invariant violation: re-hashing candidate trace gave %#x, want %#x", got, h))
	}

	info.NumHashMatches++
	if candidate.Equal(info.Trace) {
		info.FoundCorrectMatch = true
	}
}
