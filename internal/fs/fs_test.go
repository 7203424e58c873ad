// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	fsutil "toolup.sh/internal/fs"
)

func TestEnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, fsutil.EnsureDir(dir))
	require.NoError(t, fsutil.EnsureDir(dir))

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestWriteAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	require.NoError(t, fsutil.WriteFile(path, []byte("version = \"1\"\n")))
	require.NoError(t, fsutil.AppendLine(path, "# trailing comment"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "version = \"1\"\n# trailing comment\n", string(data))
}

func TestRenameNonWindows(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	require.NoError(t, fsutil.Rename(context.Background(), src, dst, nil))
	require.False(t, fsutil.Exists(src))
	require.True(t, fsutil.Exists(dst))
}

func TestCopyDirPreservesTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "f.txt"), []byte("hi"), 0o755))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, fsutil.CopyDir(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "nested", "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi", string(data))

	fi, err := os.Stat(filepath.Join(dst, "nested", "f.txt"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), fi.Mode().Perm())
}

func TestFilterFileLines(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "components")
	dst := filepath.Join(dir, "components.new")

	require.NoError(t, os.WriteFile(src, []byte("rustc\ncargo\nstd-x86_64\n"), 0o644))
	require.NoError(t, fsutil.FilterFileLines(src, dst, func(line string) bool {
		return line != "cargo"
	}))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "rustc\nstd-x86_64\n", string(data))
}

func TestMatchFileLines(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "components")
	require.NoError(t, os.WriteFile(src, []byte("rustc\ncargo\n"), 0o644))

	match, ok, err := fsutil.MatchFileLines(src, func(line string) string {
		if line == "cargo" {
			return "found:cargo"
		}
		return ""
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "found:cargo", match)

	_, ok, err = fsutil.MatchFileLines(src, func(string) string { return "" })
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanonicalizeFallsBackOnMissingPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	got := fsutil.Canonicalize(missing, nil)
	require.Equal(t, missing, got)
}
