// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package tmp_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolup.sh/internal/tmp"
)

func TestNewScopeIsIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "temp-root")

	_, err := tmp.NewScope(context.Background(), root, nil)
	require.NoError(t, err)
	_, err = tmp.NewScope(context.Background(), root, nil)
	require.NoError(t, err)
}

func TestNewDirAndFileAreUnique(t *testing.T) {
	scope, err := tmp.NewScope(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)

	d1, err := scope.NewDir()
	require.NoError(t, err)
	d2, err := scope.NewDir()
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)

	f1, err := scope.NewFile("manifest", ".toml")
	require.NoError(t, err)
	require.FileExists(t, f1)
}

func TestCloseDeletesEverything(t *testing.T) {
	scope, err := tmp.NewScope(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)

	dir, err := scope.NewDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))

	file, err := scope.NewFile("stage", "")
	require.NoError(t, err)

	scope.Close()

	require.NoFileExists(t, file)
	_, statErr := os.Stat(dir)
	require.True(t, os.IsNotExist(statErr))
}
