// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stacktrace holds the core value types the reconstructor
// operates on: program counters, the type tags used for indirect call
// resolution, stack traces built from them, and the two-lane rolling
// hash used to fingerprint a stack trace.
package stacktrace

// PC is an opaque instruction address: a function entry, a call-site
// instruction, or one element of a recorded stack trace. No arithmetic
// beyond equality is performed on a PC.
type PC uint64

// TypeId is a compiler-assigned tag shared by an indirect call site and
// the target functions it may dispatch to.
type TypeId uint64

// CallSite pairs the entry PC of a function with the address of a call
// instruction inside it.
type CallSite struct {
	CallerPC PC
	SitePC   PC
}

// Trace is a stack trace: position 0 is the call site closest to the
// instrumented event (innermost), position len-1 is the outermost
// retained frame.
type Trace []PC

// Clone returns an independent copy of t, safe to retain past the
// lifetime of the buffer t was built in.
func (t Trace) Clone() Trace {
	out := make(Trace, len(t))
	copy(out, t)
	return out
}

// Equal reports whether t and other hold the same PCs in the same
// order.
func (t Trace) Equal(other Trace) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}
