// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package toolchain models the toolchain descriptor: a discriminated value
// naming a channel, optionally dated, optionally targeted, or a custom
// (non-channel) toolchain name. Grounded on
// _examples/original_source/rust-install/src/dist.rs's ToolchainDesc
// (Channel/ChannelDate, manifest_url/package_dir), generalized with the
// regex grammar's optional trailing target-triple group and the Custom
// variant SPEC_FULL.md §3 adds to represent `toolchain link`-style entries.
package toolchain

import (
	"fmt"
	"regexp"

	"toolup.sh/triple"
)

// descriptorRe is the fixed grammar from SPEC_FULL.md §3: group 1 is the
// channel or a literal version number, group 2 an optional ISO date, group
// 3 an optional trailing target triple of two or more dash-separated
// segments (e.g. "wasm32-unknown-unknown", "x86_64-unknown-linux-gnu").
var descriptorRe = regexp.MustCompile(
	`^(nightly|beta|stable|\d+(?:\.\d+){1,2})(?:-(\d{4}-\d{2}-\d{2}))?(?:-([a-zA-Z0-9_]+-[a-zA-Z0-9_.]+(?:-[a-zA-Z0-9_]+)*))?$`,
)

// ErrInvalidToolchainName is returned by Parse when name matches neither
// the channel grammar nor is accepted as a custom name.
var ErrInvalidToolchainName = fmt.Errorf("invalid toolchain name")

// Descriptor is either a Channel, a ChannelDate, or a Custom toolchain
// name. The Target triple is optional in all three cases; a zero Target
// means "use the host triple".
type Descriptor struct {
	Channel string
	Date    string // empty unless this is a ChannelDate
	Target  triple.Triple
	Custom  string // non-empty iff this is a Custom descriptor
}

// IsCustom reports whether this descriptor names a custom toolchain (one
// that doesn't match the channel grammar, e.g. installed via `toolchain
// link`) rather than a channel resolvable against a manifest.
func (d Descriptor) IsCustom() bool { return d.Custom != "" }

// HasTarget reports whether a target triple was explicitly present in the
// parsed name.
func (d Descriptor) HasTarget() bool { return d.Target != (triple.Triple{}) }

// String renders the descriptor back to its canonical textual form.
func (d Descriptor) String() string {
	if d.IsCustom() {
		return d.Custom
	}

	s := d.Channel
	if d.Date != "" {
		s += "-" + d.Date
	}
	if d.HasTarget() {
		s += "-" + d.Target.String()
	}
	return s
}

// Equal compares two descriptors textually after normalization, per spec
// §3 ("Two descriptors compare equal iff all fields match textually after
// normalization").
func (d Descriptor) Equal(other Descriptor) bool {
	return d.String() == other.String()
}

// Parse parses name against the fixed channel grammar. A name that fails
// to match is accepted as a Custom descriptor rather than rejected
// outright — SPEC_FULL.md §3 extends the spec's base grammar this way so
// that directory overrides and `toolchain link` names remain representable
// — callers that need strict channel parsing (e.g. manifest resolution)
// must check IsCustom and reject it themselves with
// ErrInvalidToolchainName.
func Parse(name string) (Descriptor, error) {
	if name == "" {
		return Descriptor{}, ErrInvalidToolchainName
	}

	m := descriptorRe.FindStringSubmatch(name)
	if m == nil {
		return Descriptor{Custom: name}, nil
	}

	d := Descriptor{Channel: m[1], Date: m[2]}

	if m[3] != "" {
		t, err := triple.Parse(m[3])
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: %q: %v", ErrInvalidToolchainName, name, err)
		}
		d.Target = t
	}

	return d, nil
}

// ParseChannel parses name strictly as a channel descriptor, rejecting
// anything that would otherwise fall back to Custom. Used wherever a
// descriptor must resolve against a remote manifest (spec §4.5).
func ParseChannel(name string) (Descriptor, error) {
	d, err := Parse(name)
	if err != nil {
		return Descriptor{}, err
	}
	if d.IsCustom() {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrInvalidToolchainName, name)
	}
	return d, nil
}

// ManifestURL derives the remote manifest URL for this descriptor under
// distRoot, per spec §4.5 step 1:
// "{root}/[dated-path/]channel-rust-{channel}.toml".
func (d Descriptor) ManifestURL(distRoot string) (string, error) {
	if d.IsCustom() {
		return "", fmt.Errorf("%w: custom toolchains have no manifest", ErrInvalidToolchainName)
	}

	if d.Date != "" {
		return fmt.Sprintf("%s/%s/channel-rust-%s.toml", distRoot, d.Date, d.Channel), nil
	}
	return fmt.Sprintf("%s/channel-rust-%s.toml", distRoot, d.Channel), nil
}

// PackageDir returns the directory component of ManifestURL, used to
// resolve package URLs that are recorded relative to it.
func (d Descriptor) PackageDir(distRoot string) string {
	if d.Date != "" {
		return fmt.Sprintf("%s/%s", distRoot, d.Date)
	}
	return distRoot
}
