// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolup.sh/settings"
)

func TestOpenWritesDefaultWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	store := settings.Open(path, nil)

	err := store.With(func(doc settings.Document) error {
		require.Equal(t, settings.CurrentVersion, doc.Version)
		require.Empty(t, doc.DefaultToolchain)
		return nil
	})
	require.NoError(t, err)
	require.FileExists(t, path)
}

func TestWithMutPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	store := settings.Open(path, nil)

	err := store.WithMut(func(doc *settings.Document) error {
		doc.DefaultToolchain = "stable"
		return nil
	})
	require.NoError(t, err)

	err = store.With(func(doc settings.Document) error {
		require.Equal(t, "stable", doc.DefaultToolchain)
		return nil
	})
	require.NoError(t, err)
}

func TestFindOverrideWalksAncestors(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	doc := settings.Document{Overrides: map[string]string{}}
	doc.AddOverride(filepath.Join(root, "a"), "nightly", nil)

	name, matched, ok := doc.FindOverride(nested, nil)
	require.True(t, ok)
	require.Equal(t, "nightly", name)
	require.Contains(t, matched, filepath.Join(root, "a"))

	removed := doc.RemoveOverride(filepath.Join(root, "a"), nil)
	require.True(t, removed)

	_, _, ok = doc.FindOverride(nested, nil)
	require.False(t, ok)
}
