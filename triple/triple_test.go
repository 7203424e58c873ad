// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package triple_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"toolup.sh/triple"
)

func TestHostForClosedFixture(t *testing.T) {
	cases := []struct {
		arch, os, abi, want string
	}{
		{"amd64", "linux", "", "x86_64-unknown-linux-gnu"},
		{"arm64", "linux", "", "aarch64-unknown-linux-gnu"},
		{"amd64", "darwin", "", "x86_64-apple-darwin"},
		{"arm64", "darwin", "", "aarch64-apple-darwin"},
		{"amd64", "windows", "msvc", "x86_64-pc-windows-msvc"},
		{"amd64", "windows", "gnu", "x86_64-pc-windows-gnu"},
	}

	for _, c := range cases {
		got, err := triple.HostFor(c.arch, c.os, c.abi)
		require.NoError(t, err)
		require.Equal(t, c.want, got.String())
	}
}

func TestHostForUnsupported(t *testing.T) {
	_, err := triple.HostFor("riscv64", "plan9", "")
	require.ErrorIs(t, err, triple.ErrUnsupportedHost)
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{
		"x86_64-unknown-linux-gnu",
		"aarch64-apple-darwin",
		"wasm32-unknown-unknown",
	} {
		got, err := triple.Parse(s)
		require.NoError(t, err)
		require.Equal(t, s, got.String())
	}
}

func TestCompleteFromHost(t *testing.T) {
	host, err := triple.HostFor("amd64", "linux", "")
	require.NoError(t, err)

	partial := triple.Triple{Arch: "wasm32"}
	completed := partial.CompleteFromHost(host)

	require.Equal(t, "wasm32", completed.Arch)
	require.Equal(t, host.OS, completed.OS)
	require.Equal(t, host.Env, completed.Env)
}

func TestEqualIsTextual(t *testing.T) {
	a := triple.Triple{Arch: "x86_64", OS: "unknown", Env: "linux-gnu"}
	b, err := triple.Parse(a.String())
	require.NoError(t, err)
	require.True(t, a.Equal(b))
}
