// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package demangle resolves symbol names for display by shelling out
// to an external demangler, the way the reference tool's -demangle
// flag does.
package demangle

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	shellquote "github.com/kballard/go-shellquote"
)

// Demangler feeds raw symbol names to a long-lived external process
// (such as "c++filt" or "llvm-cxxfilt -n") over its stdin and reads
// back one demangled name per line of output, caching results so a
// symbol used across many frames is only demangled once.
type Demangler struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner

	mu    sync.Mutex
	cache map[string]string
}

// New starts the external demangler named by commandLine, a shell
// command string such as "c++filt -n" parsed the same way a shell
// would split it into argv.
func New(commandLine string) (*Demangler, error) {
	args, err := shellquote.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("demangle: parsing command %q: %w", commandLine, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("demangle: empty command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("demangle: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("demangle: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("demangle: starting %q: %w", commandLine, err)
	}

	return &Demangler{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewScanner(stdout),
		cache:  make(map[string]string),
	}, nil
}

// Name returns the demangled form of name, or name itself if the
// external process produced no usable output for it.
func (d *Demangler) Name(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if got, ok := d.cache[name]; ok {
		return got
	}

	if _, err := fmt.Fprintln(d.stdin, name); err != nil {
		d.cache[name] = name
		return name
	}
	if !d.stdout.Scan() {
		d.cache[name] = name
		return name
	}

	out := strings.TrimSpace(d.stdout.Text())
	if out == "" {
		out = name
	}
	d.cache[name] = out
	return out
}

// Close shuts down the external process.
func (d *Demangler) Close() error {
	d.stdin.Close()
	return d.cmd.Wait()
}
