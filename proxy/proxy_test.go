// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package proxy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolup.sh/proxy"
	"toolup.sh/settings"
)

func TestResolvePrecedence(t *testing.T) {
	store := settings.Open(filepath.Join(t.TempDir(), "settings.toml"), nil)
	require.NoError(t, store.WithMut(func(doc *settings.Document) error {
		doc.DefaultToolchain = "stable"
		return nil
	}))

	d := proxy.New(t.TempDir(), store, nil)

	name, err := d.Resolve("nightly", "", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "nightly", name)

	name, err = d.Resolve("", "beta", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "beta", name)

	name, err = d.Resolve("", "", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "stable", name)
}

func TestResolveNoDefault(t *testing.T) {
	store := settings.Open(filepath.Join(t.TempDir(), "settings.toml"), nil)
	d := proxy.New(t.TempDir(), store, nil)

	_, err := d.Resolve("", "", t.TempDir())
	require.ErrorIs(t, err, proxy.ErrNoDefaultToolchain)
}

func TestPrepareBinaryNotFound(t *testing.T) {
	store := settings.Open(filepath.Join(t.TempDir(), "settings.toml"), nil)
	d := proxy.New(t.TempDir(), store, nil)

	_, err := d.Prepare(context.Background(), "rustc", "stable", nil)
	var notFound *proxy.BinaryNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestPrepareRecursionGuard(t *testing.T) {
	t.Setenv(proxy.RecursionEnvVar, "20")

	root := t.TempDir()
	bin := filepath.Join(root, "stable", "bin", "rustc"+proxy.ExeSuffix())
	require.NoError(t, os.MkdirAll(filepath.Dir(bin), 0o755))
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	store := settings.Open(filepath.Join(t.TempDir(), "settings.toml"), nil)
	d := proxy.New(root, store, nil)

	_, err := d.Prepare(context.Background(), "rustc", "stable", nil)
	require.ErrorIs(t, err, proxy.ErrInfiniteRecursion)
}
