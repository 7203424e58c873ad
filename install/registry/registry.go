// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package registry is the installation registry (spec §4.9): the
// installed-components index at lib/rustlib/components, one per-component
// manifest per installed component, and uninstall-through-transaction.
// Grounded on spec §6's on-disk toolchain layout, using the same
// transaction discipline install/transaction already provides.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fsutil "toolup.sh/internal/fs"
	"toolup.sh/install/transaction"
)

// ManifestEntry is one line of a per-component manifest: a file or
// directory path relative to the install prefix.
type ManifestEntry struct {
	Kind string // "file" or "dir"
	Path string
}

// Registry reads and mutates the installed-components index and
// per-component manifests rooted at prefix.
type Registry struct {
	prefix string
}

// New returns a Registry rooted at prefix.
func New(prefix string) *Registry {
	return &Registry{prefix: prefix}
}

func (r *Registry) indexPath() string {
	return filepath.Join(r.prefix, "lib/rustlib/components")
}

func (r *Registry) manifestRelPath(name string) string {
	return "lib/rustlib/manifest-" + name
}

// List returns the names of all installed components, in index order.
func (r *Registry) List() ([]string, error) {
	if !fsutil.Exists(r.indexPath()) {
		return nil, nil
	}

	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		return nil, fmt.Errorf("reading components index: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// Find reports whether name is in the installed-components index. It is a
// linear scan, matching spec §4.9.
func (r *Registry) Find(name string) (bool, error) {
	names, err := r.List()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ReadManifest reads the per-component manifest for name.
func (r *Registry) ReadManifest(name string) ([]ManifestEntry, error) {
	path := filepath.Join(r.prefix, r.manifestRelPath(name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest for %s: %w", name, err)
	}

	var entries []ManifestEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kind, rel, ok := strings.Cut(line, ":")
		if !ok || (kind != "file" && kind != "dir") {
			return nil, fmt.Errorf("%w: %q", ErrCorruptManifest, line)
		}
		entries = append(entries, ManifestEntry{Kind: kind, Path: rel})
	}
	return entries, nil
}

// WriteManifest stages the per-component manifest for name through txn,
// one "file:<rel>"/"dir:<rel>" line per entry.
func (r *Registry) WriteManifest(txn *transaction.Transaction, name string, entries []ManifestEntry) error {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s:%s\n", e.Kind, e.Path)
	}
	return txn.WriteFile(r.manifestRelPath(name), []byte(b.String()))
}

// Uninstall removes component name: every path in its per-component
// manifest is deleted through txn, then the manifest itself, then the
// component's line in the installed-components index.
func (r *Registry) Uninstall(txn *transaction.Transaction, name string) error {
	entries, err := r.ReadManifest(name)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !fsutil.Exists(filepath.Join(r.prefix, e.Path)) {
			return &ComponentMissingFile{Name: name, Path: e.Path}
		}

		switch e.Kind {
		case "file":
			if err := txn.RemoveFile(e.Path); err != nil {
				return err
			}
		case "dir":
			if err := txn.RemoveDir(e.Path); err != nil {
				return err
			}
		}
	}

	if err := txn.RemoveFile(r.manifestRelPath(name)); err != nil {
		return err
	}

	return txn.RemoveComponent(name)
}
