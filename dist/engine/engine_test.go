// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package engine_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolup.sh/dist/engine"
	"toolup.sh/download"
	"toolup.sh/toolchain"
	"toolup.sh/triple"
)

// fakeBackend serves fixed byte payloads by exact URL, the minimal double
// for download.Backend a manifest-driven test needs; it never honors
// ranges since every test here downloads a file exactly once.
type fakeBackend struct {
	objects map[string][]byte
}

func (b *fakeBackend) Get(_ context.Context, url string, _ int64) (io.ReadCloser, int64, bool, error) {
	data, ok := b.objects[url]
	if !ok {
		return nil, 0, false, &download.HTTPStatusError{URL: url, Code: 404}
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), false, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// buildComponentArchive produces a valid rust-installer-version=3 tar.gz
// for a single component with one file, the shape pkgreader.OpenArchive
// expects.
func buildComponentArchive(t *testing.T, component string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	files := map[string]string{
		"rust-installer-version":       "3\n",
		"components":                   component + "\n",
		component + "/manifest.in":     "file:bin/" + component + "\n",
		component + "/bin/" + component: "#!/bin/sh\n",
	}
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o755,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func buildManifest(t *testing.T, rustcArchive []byte) []byte {
	t.Helper()

	host, err := triple.Host()
	require.NoError(t, err)

	rustcHash := sha256Hex(rustcArchive)
	data := fmt.Sprintf(`manifest-version = "2"
date = "2026-07-30"

[pkg.rust.target.%[1]s]
available = true

[[pkg.rust.target.%[1]s.components]]
pkg = "rustc"

[pkg.rustc.target.%[1]s]
available = true
url = "https://dist.example.com/rustc.tar.gz"
hash = %[2]q
`, host.String(), rustcHash)
	return []byte(data)
}

func newEngine(t *testing.T, manifestData, rustcArchive []byte) (*engine.Engine, string) {
	t.Helper()

	manifestHash := sha256Hex(manifestData)
	backend := &fakeBackend{objects: map[string][]byte{
		"https://dist.example.com/channel-rust-stable.toml":        manifestData,
		"https://dist.example.com/channel-rust-stable.toml.sha256": []byte(manifestHash),
		"https://dist.example.com/rustc.tar.gz":                    rustcArchive,
	}}

	svc := download.NewService(backend)
	e := engine.New(svc, t.TempDir(), nil)
	return e, t.TempDir()
}

func hostOpts(prefix, updateHashPath string) engine.Options {
	d, err := toolchain.ParseChannel("stable")
	if err != nil {
		panic(err)
	}
	return engine.Options{
		Descriptor:     d,
		DistRoot:       "https://dist.example.com",
		Prefix:         prefix,
		UpdateHashPath: updateHashPath,
	}
}

func TestUpdateFromDistFreshInstall(t *testing.T) {
	rustcArchive := buildComponentArchive(t, "rustc")
	manifestData := buildManifest(t, rustcArchive)

	e, prefix := newEngine(t, manifestData, rustcArchive)
	updateHashPath := filepath.Join(t.TempDir(), "update-hash")

	result, err := e.UpdateFromDist(context.Background(), hostOpts(prefix, updateHashPath))
	require.NoError(t, err)
	require.Equal(t, engine.Updated, result.Status)
	require.Len(t, result.Added, 1)
	require.Equal(t, "rustc", result.Added[0].Pkg)

	require.FileExists(t, filepath.Join(prefix, "bin", "rustc"))
	require.FileExists(t, filepath.Join(prefix, "lib", "rustlib", "components"))
	require.FileExists(t, updateHashPath)
}

func TestUpdateFromDistFastPathUnchanged(t *testing.T) {
	rustcArchive := buildComponentArchive(t, "rustc")
	manifestData := buildManifest(t, rustcArchive)

	e, prefix := newEngine(t, manifestData, rustcArchive)
	updateHashPath := filepath.Join(t.TempDir(), "update-hash")

	opts := hostOpts(prefix, updateHashPath)

	_, err := e.UpdateFromDist(context.Background(), opts)
	require.NoError(t, err)

	before, err := os.ReadFile(filepath.Join(prefix, "bin", "rustc"))
	require.NoError(t, err)

	result, err := e.UpdateFromDist(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, engine.Unchanged, result.Status)

	after, err := os.ReadFile(filepath.Join(prefix, "bin", "rustc"))
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestUpdateFromDistNoManifestFound(t *testing.T) {
	backend := &fakeBackend{objects: map[string][]byte{}}
	svc := download.NewService(backend, download.WithMaxRetries(0))
	e := engine.New(svc, t.TempDir(), nil)

	_, err := e.UpdateFromDist(context.Background(), hostOpts(t.TempDir(), filepath.Join(t.TempDir(), "update-hash")))
	require.ErrorIs(t, err, engine.ErrNoManifestFound)
}
