// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package demangle

import (
	"os/exec"
	"testing"
)

func TestNameRoundTripsThroughCat(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	d, err := New("cat")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if got := d.Name("_ZN3foo3barEv"); got != "_ZN3foo3barEv" {
		t.Errorf("Name = %q, want the input echoed back by cat", got)
	}
	// Cached on the second call, no second round trip to the process.
	if got := d.Name("_ZN3foo3barEv"); got != "_ZN3foo3barEv" {
		t.Errorf("Name (cached) = %q, want unchanged", got)
	}
}

func TestNewRejectsEmptyCommand(t *testing.T) {
	if _, err := New("   "); err == nil {
		t.Fatal("want error for an empty command line")
	}
}

func TestNewRejectsUnterminatedQuote(t *testing.T) {
	if _, err := New(`c++filt "unterminated`); err == nil {
		t.Fatal("want error for a malformed command line")
	}
}
