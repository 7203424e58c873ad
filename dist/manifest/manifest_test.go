// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"toolup.sh/dist/manifest"
)

const sample = `
manifest-version = "2"
date = "2023-05-01"

[pkg.rust]
version = "1.70.0"

[pkg.rust.target.x86_64-unknown-linux-gnu]
available = true
url = "https://dist.toolup.sh/rust-1.70.0-x86_64-unknown-linux-gnu.tar.gz"
hash = "deadbeef"
components = [{ pkg = "rustc" }, { pkg = "cargo" }]
extensions = [{ pkg = "rust-docs" }]

[pkg.rustc]
version = "1.70.0"

[pkg.rustc.target.x86_64-unknown-linux-gnu]
available = true
url = "https://dist.toolup.sh/rustc-1.70.0-x86_64-unknown-linux-gnu.tar.gz"
hash = "cafebabe"

[pkg.cargo]
version = "1.70.0"

[pkg.cargo.target.x86_64-unknown-linux-gnu]
available = true
url = "https://dist.toolup.sh/cargo-1.70.0-x86_64-unknown-linux-gnu.tar.gz"
hash = "f00dface"

[pkg.rust-docs]
version = "1.70.0"

[pkg.rust-docs.target.x86_64-unknown-linux-gnu]
available = true
url = "https://dist.toolup.sh/rust-docs-1.70.0-x86_64-unknown-linux-gnu.tar.gz"
hash = "0ddba11"
`

func TestParseAndValidate(t *testing.T) {
	m, err := manifest.Parse([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, "2", m.ManifestVersion)
	require.NoError(t, m.Validate())

	rust, err := m.GetPackage("rust")
	require.NoError(t, err)
	tp, err := rust.GetTarget("x86_64-unknown-linux-gnu")
	require.NoError(t, err)
	require.True(t, tp.Required(manifest.ComponentRef{Pkg: "rustc"}))
	require.True(t, tp.Optional(manifest.ComponentRef{Pkg: "rust-docs"}))
	require.False(t, tp.Required(manifest.ComponentRef{Pkg: "rust-docs"}))
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	_, err := manifest.Parse([]byte(`manifest-version = "3"
date = "2023-05-01"
`))
	require.ErrorIs(t, err, manifest.ErrUnsupportedVersion)
}

func TestParseRejectsMissingKey(t *testing.T) {
	_, err := manifest.Parse([]byte(`date = "2023-05-01"`))
	require.ErrorIs(t, err, manifest.ErrMissingKey)
}

func TestValidateCatchesMissingPackageForComponent(t *testing.T) {
	broken := `
manifest-version = "2"
date = "2023-05-01"

[pkg.rust]
version = "1.70.0"

[pkg.rust.target.x86_64-unknown-linux-gnu]
available = true
url = "https://example.com/rust.tar.gz"
hash = "deadbeef"
components = [{ pkg = "ghost-component" }]
`
	m, err := manifest.Parse([]byte(broken))
	require.NoError(t, err)
	require.ErrorIs(t, m.Validate(), manifest.ErrMissingPackageForComponent)
}

func TestRoundTrip(t *testing.T) {
	m, err := manifest.Parse([]byte(sample))
	require.NoError(t, err)

	data, err := m.Serialize()
	require.NoError(t, err)

	again, err := manifest.Parse(data)
	require.NoError(t, err)

	require.Equal(t, m.ManifestVersion, again.ManifestVersion)
	require.Equal(t, m.Date, again.Date)
	require.Equal(t, len(m.Pkg), len(again.Pkg))

	thirdPass, err := again.Serialize()
	require.NoError(t, err)
	require.Equal(t, data, thirdPass)
}

func TestGetPackageNotFound(t *testing.T) {
	m, err := manifest.Parse([]byte(sample))
	require.NoError(t, err)

	_, err = m.GetPackage("does-not-exist")
	require.ErrorIs(t, err, manifest.ErrPackageNotFound)
}
