// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Command toolup is the proxy multiplexer binary (spec.md §6 "CLI surface
// (proxy mode only)"): invoked under a proxied tool's own name (typically
// via a symlink or hardlink named after the tool), it resolves the active
// toolchain and execs that toolchain's binary with the same arguments,
// stdio, and exit code. A leading "+toolchain" argument overrides
// resolution for that invocation only. Grounded on
// _examples/original_source/src/rustup-cli/proxy_mode.rs's argv0-dispatch
// and cmd/kraftkit/kraftkit.go's main() shape.
package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"

	"toolup.sh/log"
	"toolup.sh/notify"
	"toolup.sh/proxy"
	"toolup.sh/settings"
)

func main() {
	os.Exit(run())
}

// logEnvVar and logFormatEnvVar configure this binary's own logging out of
// band from argv: every argument after a stripped "+toolchain" belongs to
// the proxied tool, so this binary cannot claim any flags of its own the
// way toolup-init does.
const (
	logEnvVar       = "TOOLUP_LOG"
	logFormatEnvVar = "TOOLUP_LOG_FORMAT"
)

func run() int {
	if level, ok := log.ParseLevel(os.Getenv(logEnvVar)); ok {
		log.L.SetLevel(level)
	}
	log.Configure(log.L, log.LoggerTypeFromString(os.Getenv(logFormatEnvVar)))

	logger := log.L
	ctx := context.Background()
	sink := notify.ToLogger(ctx, nil)

	tool := strings.TrimSuffix(filepath.Base(os.Args[0]), proxy.ExeSuffix())
	args := os.Args[1:]

	explicit := ""
	if len(args) > 0 && strings.HasPrefix(args[0], "+") {
		explicit = strings.TrimPrefix(args[0], "+")
		args = args[1:]
	}

	home, err := homedir.Dir()
	if err != nil {
		logger.Errorf("resolving home directory: %v", err)
		return 1
	}
	toolupHome := filepath.Join(home, ".toolup")

	store := settings.Open(filepath.Join(toolupHome, "settings.toml"), sink)
	dispatcher := proxy.New(filepath.Join(toolupHome, "toolchains"), store, sink)

	workDir, err := os.Getwd()
	if err != nil {
		logger.Errorf("resolving working directory: %v", err)
		return 1
	}

	toolchainName, err := dispatcher.Resolve(explicit, os.Getenv(proxy.ToolchainEnvVar), workDir)
	if err != nil {
		if errors.Is(err, proxy.ErrNoDefaultToolchain) {
			logger.Error("no default toolchain configured; run toolup-init first")
		} else {
			logger.Errorf("resolving toolchain: %v", err)
		}
		return 1
	}

	ctx = log.WithToolchain(ctx, toolchainName)
	proc, err := dispatcher.Prepare(ctx, tool, toolchainName, args)
	if err != nil {
		var notFound *proxy.BinaryNotFound
		switch {
		case errors.As(err, &notFound):
			logger.Errorf("toolchain %q does not provide %q", notFound.Toolchain, notFound.Tool)
		case errors.Is(err, proxy.ErrInfiniteRecursion):
			logger.Error("infinite recursion detected in toolchain proxy")
		default:
			logger.Errorf("preparing %s: %v", tool, err)
		}
		return 1
	}

	if err := proc.Run(); err != nil {
		if code := proc.ExitCode(); code >= 0 {
			return code
		}
		logger.Errorf("running %s: %v", tool, err)
		return 1
	}

	return proc.ExitCode()
}
