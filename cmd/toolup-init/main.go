// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Command toolup-init is the installer bootstrap: it resolves a toolchain
// descriptor against a distribution manifest and installs it non-interactively,
// then records it as the default toolchain. A full interactive shell
// (component selection, profiles, uninstall) is out of scope; this is the
// minimum spec.md §6 asks of it. Grounded on
// _examples/original_source/src/bin/rustup-init.rs's non-interactive -y path
// and cmd/kraftkit/kraftkit.go's main() shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"

	"toolup.sh/dist/engine"
	"toolup.sh/download"
	"toolup.sh/log"
	"toolup.sh/notify"
	"toolup.sh/settings"
	"toolup.sh/toolchain"
	"toolup.sh/utils"
)

// defaultDistRoot is the distribution server this build fetches manifests
// and component archives from.
const defaultDistRoot = "https://dist.toolup.sh"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("toolup-init", flag.ContinueOnError)
	assumeYes := fs.Bool("y", false, "disable confirmation prompt (always on: no interactive shell is implemented)")
	defaultToolchain := fs.String("default-toolchain", "stable", "toolchain descriptor to install and set as default")
	defaultHost := fs.String("default-host", "", "override the host triple used to resolve the manifest (unused: host triple is always inferred)")
	distRoot := fs.String("dist-root", defaultDistRoot, "distribution root URL")
	logLevel := fs.String("log-level", "info", "log level: panic, fatal, error, warning, info, debug, trace")
	logFormat := fs.String("log-format", "basic", "log format: quiet, basic, fancy, json")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	_ = assumeYes
	_ = defaultHost

	level, ok := log.ParseLevel(*logLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q\n", *logLevel)
		return 1
	}
	log.L.SetLevel(level)
	log.Configure(log.L, log.LoggerTypeFromString(*logFormat))

	logger := log.L
	ctx := log.WithToolchain(context.Background(), *defaultToolchain)
	sink := notify.ToLogger(ctx, nil)

	descriptor, err := toolchain.ParseChannel(*defaultToolchain)
	if err != nil {
		logger.Errorf("invalid toolchain name %q: %v", *defaultToolchain, err)
		return 1
	}

	home, err := homedir.Dir()
	if err != nil {
		logger.Errorf("resolving home directory: %v", err)
		return 1
	}
	toolupHome := filepath.Join(home, ".toolup")
	toolchainsRoot := filepath.Join(toolupHome, "toolchains")
	prefix := filepath.Join(toolchainsRoot, descriptor.String())

	backend, err := download.NewCurlBackend()
	if err != nil {
		logger.Errorf("locating curl: %v", err)
		return 1
	}
	downloads := download.NewService(backend, download.WithSink(sink))

	eng := engine.New(downloads, filepath.Join(toolupHome, "tmp"), sink)

	result, err := eng.UpdateFromDist(ctx, engine.Options{
		Descriptor:     descriptor,
		DistRoot:       *distRoot,
		Prefix:         prefix,
		UpdateHashPath: filepath.Join(toolupHome, "update-hashes", descriptor.String()),
	})
	if err != nil {
		logger.Errorf("installing %s: %v", descriptor.String(), err)
		return 1
	}

	switch result.Status {
	case engine.Updated:
		fmt.Printf("installed %s (%s)\n", descriptor.String(), utils.Pluralize(len(result.Added), "component"))
	case engine.Unchanged:
		fmt.Printf("%s is already up to date\n", descriptor.String())
	}

	store := settings.Open(filepath.Join(toolupHome, "settings.toml"), sink)
	if err := store.WithMut(func(doc *settings.Document) error {
		doc.DefaultToolchain = descriptor.String()
		return nil
	}); err != nil {
		logger.Errorf("recording default toolchain: %v", err)
		return 1
	}

	fmt.Printf("default toolchain set to %s\n", descriptor.String())
	return 0
}
