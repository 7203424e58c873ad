// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package transaction_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolup.sh/install/transaction"
	"toolup.sh/internal/tmp"
)

func newPrefix(t *testing.T) (string, *tmp.Scope) {
	t.Helper()
	prefix := t.TempDir()
	scope, err := tmp.NewScope(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(scope.Close)
	return prefix, scope
}

func TestCopyFileConflict(t *testing.T) {
	prefix, scope := newPrefix(t)
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "existing.txt"), []byte("old"), 0o644))

	src := filepath.Join(t.TempDir(), "new.txt")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	txn := transaction.New(context.Background(), prefix, scope, nil)
	err := txn.CopyFile("existing.txt", src)
	var conflict *transaction.ComponentConflict
	require.ErrorAs(t, err, &conflict)
}

func TestCopyFileNoConflictWithinSameTransaction(t *testing.T) {
	prefix, scope := newPrefix(t)
	src := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))

	txn := transaction.New(context.Background(), prefix, scope, nil)
	require.NoError(t, txn.CopyFile("a.txt", src))
	require.NoError(t, txn.CopyFile("a.txt", src))
}

func TestRollbackRestoresPriorState(t *testing.T) {
	prefix, scope := newPrefix(t)
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "keep.txt"), []byte("original"), 0o644))

	srcDir := t.TempDir()
	newFile := filepath.Join(srcDir, "added.txt")
	require.NoError(t, os.WriteFile(newFile, []byte("added"), 0o644))

	txn := transaction.New(context.Background(), prefix, scope, nil)

	require.NoError(t, txn.CopyFile("added.txt", newFile))

	handle, err := txn.ModifyFile("keep.txt")
	require.NoError(t, err)
	_, err = handle.Write([]byte("modified"))
	require.NoError(t, err)
	require.NoError(t, handle.Close())

	require.NoError(t, txn.AddComponent("rustc"))

	require.NoError(t, txn.Rollback())

	_, err = os.Stat(filepath.Join(prefix, "added.txt"))
	require.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(prefix, "keep.txt"))
	require.NoError(t, err)
	require.Equal(t, "original", string(data))

	_, err = os.Stat(filepath.Join(prefix, "lib/rustlib/components"))
	require.True(t, os.IsNotExist(err) || fileIsEmpty(t, filepath.Join(prefix, "lib/rustlib/components")))
}

func fileIsEmpty(t *testing.T, path string) bool {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return len(data) == 0
}

func TestCommitPreventsRollback(t *testing.T) {
	prefix, scope := newPrefix(t)
	srcDir := t.TempDir()
	newFile := filepath.Join(srcDir, "added.txt")
	require.NoError(t, os.WriteFile(newFile, []byte("added"), 0o644))

	txn := transaction.New(context.Background(), prefix, scope, nil)
	require.NoError(t, txn.CopyFile("added.txt", newFile))
	require.NoError(t, txn.Commit())
	require.NoError(t, txn.Rollback())

	_, err := os.Stat(filepath.Join(prefix, "added.txt"))
	require.NoError(t, err)
}

func TestRemoveFileRollback(t *testing.T) {
	prefix, scope := newPrefix(t)
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "gone.txt"), []byte("still here"), 0o644))

	txn := transaction.New(context.Background(), prefix, scope, nil)
	require.NoError(t, txn.RemoveFile("gone.txt"))

	_, err := os.Stat(filepath.Join(prefix, "gone.txt"))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, txn.Rollback())

	data, err := os.ReadFile(filepath.Join(prefix, "gone.txt"))
	require.NoError(t, err)
	require.Equal(t, "still here", string(data))
}
