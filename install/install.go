// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package install is the component installer (spec §4.8): given a package
// and a component name, it stages every manifest.in entry through a
// transaction, writes the per-component manifest the registry later reads
// to uninstall, and records the component in the installed-components
// index.
package install

import (
	"fmt"

	"toolup.sh/dist/pkgreader"
	"toolup.sh/install/registry"
	"toolup.sh/install/transaction"
)

// Component stages name's files from pkg into txn and records it through
// reg. It does not commit txn; the caller controls the transaction's
// lifetime (spec §4.5 installs several components per transaction).
func Component(txn *transaction.Transaction, reg *registry.Registry, pkg pkgreader.Package, name string) error {
	ok, err := pkg.Contains(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("package does not contain component %q", name)
	}

	entries, err := pkg.ManifestEntries(name)
	if err != nil {
		return err
	}

	regEntries := make([]registry.ManifestEntry, 0, len(entries))
	for _, e := range entries {
		src, err := pkg.ComponentFilePath(name, e.Path)
		if err != nil {
			return err
		}

		switch e.Kind {
		case "file":
			if err := txn.CopyFile(e.Path, src); err != nil {
				return err
			}
		case "dir":
			if err := txn.CopyDir(e.Path, src); err != nil {
				return err
			}
		}

		regEntries = append(regEntries, registry.ManifestEntry{Kind: e.Kind, Path: e.Path})
	}

	if err := reg.WriteManifest(txn, name, regEntries); err != nil {
		return err
	}

	return txn.AddComponent(name)
}
