// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package triple models the three-part target triple (architecture, OS,
// optional environment/ABI) and the closed, data-driven host-triple
// inference table. Grounded on
// _examples/original_source/rust-install/src/dist.rs's get_host_triple,
// generalized from its two-architecture match into a table per spec §9
// ("a closed mapping... is data, not code, and its entries are a testable
// fixture").
package triple

import (
	"fmt"
	"runtime"
	"strings"
)

// Triple is the three-part target identifier. Env may be empty (e.g. Apple
// targets carry no explicit environment component).
type Triple struct {
	Arch string
	OS   string
	Env  string
}

// String renders the canonical dash-joined form, e.g.
// "x86_64-unknown-linux-gnu".
func (t Triple) String() string {
	parts := []string{t.Arch, t.OS}
	if t.Env != "" {
		parts = append(parts, t.Env)
	}
	return strings.Join(parts, "-")
}

// Equal compares two triples textually after normalization, matching the
// descriptor comparison rule in spec §3.
func (t Triple) Equal(other Triple) bool {
	return t.String() == other.String()
}

// Parse splits a canonical triple string back into its components. Dashes
// inside the OS/env segments (e.g. "unknown-linux-gnu") are handled by
// looking the whole string up against the closed hostEntries table first;
// entries outside that table fall back to a naive 2-or-3-way split.
func Parse(s string) (Triple, error) {
	for _, e := range hostEntries {
		t := Triple{Arch: e.arch, OS: e.os, Env: e.env}
		if t.String() == s {
			return t, nil
		}
	}

	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Triple{}, fmt.Errorf("%w: %q", ErrUnsupportedHost, s)
	}

	rest := strings.SplitN(parts[1], "-", 2)
	t := Triple{Arch: parts[0]}
	if len(rest) == 2 {
		t.OS = rest[0]
		t.Env = rest[1]
	} else {
		t.OS = rest[0]
	}

	return t, nil
}

// CompleteFromHost fills any zero-value field of a partial triple from the
// host triple, per spec §3 ("partial triples are completed by filling
// missing components from the host").
func (t Triple) CompleteFromHost(host Triple) Triple {
	out := t
	if out.Arch == "" {
		out.Arch = host.Arch
	}
	if out.OS == "" {
		out.OS = host.OS
	}
	if out.Env == "" {
		out.Env = host.Env
	}
	return out
}

// hostEntry binds a Go-runtime (GOARCH, GOOS, abi-flavor) tuple — the key
// this process can actually observe about itself — to the canonical
// triple components the rest of the system deals in.
type hostEntry struct {
	goArch, goOS, abi string
	arch, os, env     string
}

// hostEntries is the closed (arch, OS, abi-flavor) → canonical-triple
// mapping; it is data, not code (spec §9), and is exercised directly by
// triple_test.go as a fixture.
var hostEntries = []hostEntry{
	{goArch: "amd64", goOS: "darwin", arch: "x86_64", os: "apple", env: "darwin"},
	{goArch: "arm64", goOS: "darwin", arch: "aarch64", os: "apple", env: "darwin"},
	{goArch: "amd64", goOS: "windows", abi: "gnu", arch: "x86_64", os: "pc", env: "windows-gnu"},
	{goArch: "amd64", goOS: "windows", abi: "msvc", arch: "x86_64", os: "pc", env: "windows-msvc"},
	{goArch: "386", goOS: "windows", abi: "gnu", arch: "i686", os: "pc", env: "windows-gnu"},
	{goArch: "386", goOS: "windows", abi: "msvc", arch: "i686", os: "pc", env: "windows-msvc"},
	{goArch: "amd64", goOS: "linux", arch: "x86_64", os: "unknown", env: "linux-gnu"},
	{goArch: "386", goOS: "linux", arch: "i686", os: "unknown", env: "linux-gnu"},
	{goArch: "arm64", goOS: "linux", arch: "aarch64", os: "unknown", env: "linux-gnu"},
	{goArch: "arm", goOS: "linux", abi: "gnueabihf", arch: "armv7", os: "unknown", env: "linux-gnueabihf"},
}

// ErrUnsupportedHost is returned when (arch, os, abi) has no entry in the
// closed host table.
var ErrUnsupportedHost = fmt.Errorf("unsupported host")

// goABI reports the ABI flavor this build was compiled with, used only to
// disambiguate Windows' gnu/msvc split the way the original did with
// cfg!(target_env = "gnu").
func goABI() string {
	if runtime.GOOS == "windows" {
		// The Go toolchain's windows/amd64 and windows/386 ports are always
		// built against MSVC-compatible import libraries; Host never
		// infers a MinGW/gnu host, whose entries are reachable only
		// through HostFor.
		return "msvc"
	}
	return ""
}

// Host returns the canonical triple for the platform this process is
// running on, looking up (GOARCH, GOOS, abi) in the closed table.
func Host() (Triple, error) {
	return HostFor(runtime.GOARCH, runtime.GOOS, goABI())
}

// HostFor looks up a (arch, os, abi) tuple in the closed mapping,
// independent of the running process's own GOARCH/GOOS — used by tests and
// by cross-target resolution (spec §3 "partial triples").
func HostFor(goArch, goOS, abi string) (Triple, error) {
	for _, e := range hostEntries {
		if e.goArch == goArch && e.goOS == goOS && e.abi == abi {
			return Triple{Arch: e.arch, OS: e.os, Env: e.env}, nil
		}
	}

	return Triple{}, fmt.Errorf("%w: (%s, %s, %s)", ErrUnsupportedHost, goArch, goOS, abi)
}
