// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package pkgreader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolup.sh/dist/pkgreader"
)

func buildFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "rust-installer-version"), []byte("3\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "components"), []byte("rustc\n"), 0o644))

	compDir := filepath.Join(root, "rustc")
	require.NoError(t, os.MkdirAll(filepath.Join(compDir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(compDir, "bin", "rustc"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(compDir, "manifest.in"), []byte("file:bin/rustc\n"), 0o644))

	return root
}

func TestDirectoryPackage(t *testing.T) {
	root := buildFixture(t)

	pkg, err := pkgreader.OpenDirectory(root)
	require.NoError(t, err)

	names, err := pkg.Components()
	require.NoError(t, err)
	require.Equal(t, []string{"rustc"}, names)

	ok, err := pkg.Contains("rustc")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = pkg.Contains("cargo")
	require.NoError(t, err)
	require.False(t, ok)

	entries, err := pkg.ManifestEntries("rustc")
	require.NoError(t, err)
	require.Equal(t, []pkgreader.Entry{{Kind: "file", Path: "bin/rustc"}}, entries)

	path, err := pkg.ComponentFilePath("rustc", "bin/rustc")
	require.NoError(t, err)
	require.FileExists(t, path)
}

func TestOpenDirectoryRejectsBadVersion(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "rust-installer-version"), []byte("99\n"), 0o644))

	_, err := pkgreader.OpenDirectory(root)
	var bad *pkgreader.BadInstallerVersion
	require.ErrorAs(t, err, &bad)
}

func TestManifestEntriesCorruptTag(t *testing.T) {
	root := buildFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "rustc", "manifest.in"), []byte("symlink:bin/rustc\n"), 0o644))

	pkg, err := pkgreader.OpenDirectory(root)
	require.NoError(t, err)

	_, err = pkg.ManifestEntries("rustc")
	var corrupt *pkgreader.CorruptComponent
	require.ErrorAs(t, err, &corrupt)
}
