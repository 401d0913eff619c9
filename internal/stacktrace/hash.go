// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stacktrace

import (
	"encoding/binary"
	"hash/crc32"
)

// crcTable is the Castagnoli (CRC-32C) table. On amd64 and arm64, the
// standard library dispatches crc32.Update on this table straight to
// the hardware CRC32 instruction, which is the same primitive
// spec.md's HashStep names; there is no third-party replacement for
// the instruction itself.
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Fingerprint is a 64-bit hash summarizing a stack trace. Its upper 32
// bits ("mid lane") depend only on a prefix of the trace up to a fixed
// mid index; its lower 32 bits ("full lane") depend on the whole
// trace.
type Fingerprint uint64

// Hi returns the mid lane (upper 32 bits).
func (f Fingerprint) Hi() uint32 { return uint32(f >> 32) }

// Lo returns the full lane (lower 32 bits).
func (f Fingerprint) Lo() uint32 { return uint32(f) }

// crcOf returns CRC32C(seed, pc's 8 little-endian bytes), the 64->32
// hardware CRC primitive spec.md's Hash step is built on.
func crcOf(seed uint32, pc PC) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(pc))
	return crc32.Update(seed, crcTable, buf[:])
}

// Step advances the rolling hash h by one PC at position idx (0-based)
// of a trace being hashed with mid index mid.
//
// At idx == mid, the high lane snapshots the *previous* low lane
// (i.e. the running CRC of the prefix ST[0..mid]) before the low lane
// is overwritten by the new CRC. Getting this order backwards breaks
// the prefix-pruning identity (spec.md P1).
func Step(h Fingerprint, pc PC, idx, mid int) Fingerprint {
	c := Fingerprint(crcOf(uint32(h), pc))
	if idx == mid {
		return c | (h << 32)
	}
	return c | ((h >> 32) << 32)
}

// Hash computes the two-lane fingerprint of trace for the given mid
// index. It is deterministic and depends only on (trace, mid).
func Hash(trace Trace, mid int) Fingerprint {
	var h Fingerprint
	for i, pc := range trace {
		h = Step(h, pc, i, mid)
	}
	return h
}
