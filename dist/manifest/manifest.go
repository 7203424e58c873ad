// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package manifest parses and validates the remote distribution manifest
// into the typed structure of SPEC_FULL.md §3. Structurally adapted from
// the teacher's manifest/manifest.go (NewManifestFromBytes, typed
// key-by-key field extraction, forward-compatible unknown-key tolerance)
// but re-keyed for the TOML wire format SPEC_FULL.md §6 requires instead
// of the teacher's own YAML shape, using github.com/BurntSushi/toml.
package manifest

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

// acceptedVersions is the fixed set of manifest-version values spec §3
// accepts.
var acceptedVersions = map[string]bool{"1": true, "2": true}

// CurrentVersion is the newest manifest-version this package accepts. The
// distribution engine only reads manifests; nothing in this module writes
// one with this version.
const CurrentVersion = "2"

// ComponentRef names a component, optionally scoped to a target other than
// the one it's declared under (spec §3).
type ComponentRef struct {
	Pkg    string `toml:"pkg"`
	Target string `toml:"target,omitempty"`
}

// TargetedPackage is one package's availability for one target triple.
type TargetedPackage struct {
	Available  bool           `toml:"available"`
	URL        string         `toml:"url"`
	Hash       string         `toml:"hash"`
	Components []ComponentRef `toml:"components"`
	Extensions []ComponentRef `toml:"extensions"`
}

// Package is one named package across all the targets it's available for.
type Package struct {
	Version string                     `toml:"version"`
	Target  map[string]TargetedPackage `toml:"target"`
}

// GetTarget looks up triple within the package, returning ErrTargetNotFound
// if absent.
func (p *Package) GetTarget(t string) (*TargetedPackage, error) {
	tp, ok := p.Target[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTargetNotFound, t)
	}
	return &tp, nil
}

// Manifest is the parsed document of spec §3.
type Manifest struct {
	ManifestVersion string             `toml:"manifest-version"`
	Date            string             `toml:"date"`
	Pkg             map[string]Package `toml:"pkg"`
}

// GetPackage looks up name within the manifest, returning
// ErrPackageNotFound if absent.
func (m *Manifest) GetPackage(name string) (*Package, error) {
	p, ok := m.Pkg[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPackageNotFound, name)
	}
	return &p, nil
}

// Required reports whether ref is listed in tp.Components (spec §3:
// "required = component ∈ components").
func (tp *TargetedPackage) Required(ref ComponentRef) bool {
	for _, c := range tp.Components {
		if c == ref {
			return true
		}
	}
	return false
}

// Optional reports whether ref is listed in tp.Extensions (spec §3:
// "optional = component ∈ extensions").
func (tp *TargetedPackage) Optional(ref ComponentRef) bool {
	for _, c := range tp.Extensions {
		if c == ref {
			return true
		}
	}
	return false
}

// Parse decodes data (the manifest's TOML text) into a Manifest. Unknown
// keys are ignored (forward compatibility, spec §4.4); a manifest-version
// outside the accepted set fails with ErrUnsupportedVersion before any
// further field is inspected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExpectedType, err)
	}

	if m.ManifestVersion == "" {
		return nil, fmt.Errorf("%w: manifest-version", ErrMissingKey)
	}

	if !acceptedVersions[m.ManifestVersion] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, m.ManifestVersion)
	}

	if m.Date == "" {
		return nil, fmt.Errorf("%w: date", ErrMissingKey)
	}

	_ = meta // forward-compatible: undecoded keys are intentionally ignored

	return &m, nil
}

// Serialize renders m back to its TOML text form. Round-tripping
// Parse(Serialize(Parse(data))) must reproduce the same logical document
// (spec §8's testable property).
func (m *Manifest) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("serializing manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate enforces invariant M1: every ComponentRef appearing anywhere in
// the manifest must name a package present in Pkg.
func (m *Manifest) Validate() error {
	for pkgName, pkg := range m.Pkg {
		for targetName, tp := range pkg.Target {
			for _, ref := range append(append([]ComponentRef{}, tp.Components...), tp.Extensions...) {
				if _, ok := m.Pkg[ref.Pkg]; !ok {
					return fmt.Errorf("%w: package %q target %q references %q",
						ErrMissingPackageForComponent, pkgName, targetName, ref.Pkg)
				}
			}
		}
	}
	return nil
}
