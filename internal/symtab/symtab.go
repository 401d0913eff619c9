// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symtab provides a bidirectional, sorted lookup table between
// function names and their entry program counters. It is adapted from
// the object-file symbol table in the examples this module was built
// from, simplified for point entries (a function's entry PC) rather
// than address ranges.
package symtab

import (
	"fmt"
	"sort"

	"streconst/internal/stacktrace"
)

// Sym is one function symbol: a name and its entry PC.
type Sym struct {
	Name string
	PC   stacktrace.PC
}

// Table facilitates fast name<->PC symbol lookup. Names and PCs are
// both unique per Table.
type Table struct {
	byAddr []Sym
	byName map[string]int // index into byAddr
}

// NewTable builds a Table over syms. It returns an error if a name or
// PC is duplicated, since spec.md requires func_name<->entry PC to be
// unique.
func NewTable(syms []Sym) (*Table, error) {
	addr := make([]Sym, len(syms))
	copy(addr, syms)
	sort.Slice(addr, func(i, j int) bool {
		return addr[i].PC < addr[j].PC
	})

	byName := make(map[string]int, len(addr))
	for i, s := range addr {
		if i > 0 && addr[i-1].PC == s.PC {
			return nil, fmt.Errorf("symtab: duplicate entry PC %#x (%q and %q)", s.PC, addr[i-1].Name, s.Name)
		}
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("symtab: duplicate function name %q", s.Name)
		}
		byName[s.Name] = i
	}
	return &Table{addr, byName}, nil
}

// Syms returns all symbols in address order. The caller must not
// modify the returned slice.
func (t *Table) Syms() []Sym {
	return t.byAddr
}

// ByName returns the symbol with the given name.
func (t *Table) ByName(name string) (Sym, bool) {
	if i, ok := t.byName[name]; ok {
		return t.byAddr[i], true
	}
	return Sym{}, false
}

// ByPC returns the symbol at the given entry PC.
func (t *Table) ByPC(pc stacktrace.PC) (Sym, bool) {
	i := sort.Search(len(t.byAddr), func(i int) bool {
		return t.byAddr[i].PC >= pc
	})
	if i < len(t.byAddr) && t.byAddr[i].PC == pc {
		return t.byAddr[i], true
	}
	return Sym{}, false
}

// Name returns the display name for pc, or its hex form if pc has no
// symbol.
func (t *Table) Name(pc stacktrace.PC) string {
	if s, ok := t.ByPC(pc); ok {
		return s.Name
	}
	return fmt.Sprintf("%#x", uint64(pc))
}
