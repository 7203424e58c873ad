// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package proxy is the toolchain dispatcher (spec §4.11): resolves the
// active toolchain for a tool invocation by a fixed precedence chain, then
// constructs the child-process invocation of that toolchain's binary with
// the environment a proxied tool needs (path, dynamic loader path,
// package-home default, recursion guard). Grounded on
// _examples/original_source/src/rustup-cli/proxy_mode.rs's
// direct_proxy/recursion-count handling, built over internal/runexec for
// the actual child-process construction.
package proxy

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	fsutil "toolup.sh/internal/fs"
	"toolup.sh/internal/runexec"
	"toolup.sh/notify"
	"toolup.sh/settings"
)

// RecursionEnvVar counts proxy re-entrancy across a process chain, the
// generalized analogue of the source base's RUST_RECURSION_COUNT.
const RecursionEnvVar = "TOOLUP_RECURSION_COUNT"

// PackageHomeVar names the environment variable proxied tools look at for
// their own per-user package home (e.g. a build-tool cache directory).
const PackageHomeVar = "TOOLUP_PACKAGE_HOME"

// ToolchainEnvVar names the environment variable that selects the active
// toolchain for every invocation in its scope (spec §4.11 precedence tier
// 2), overridable per call by an explicit "+toolchain" argument.
const ToolchainEnvVar = "TOOLUP_TOOLCHAIN"

// MaxRecursion is the recursion guard's bound (spec §4.11: "a small bound,
// e.g. 20").
const MaxRecursion = 20

// ExeSuffix is appended to a tool name to find its binary, empty on every
// host family except Windows.
func ExeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// dynamicLoaderPathVar names the platform-dependent variable a dynamic
// linker consults for extra search directories.
func dynamicLoaderPathVar() string {
	switch runtime.GOOS {
	case "darwin":
		return "DYLD_LIBRARY_PATH"
	case "windows":
		return "PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

// Dispatcher resolves and invokes proxied tools out of a directory of
// installed toolchains.
type Dispatcher struct {
	toolchainsRoot string
	store          *settings.Store
	sink           notify.Sink
}

// New returns a Dispatcher over toolchains installed under toolchainsRoot
// (each a subdirectory named by toolchain descriptor), backed by store for
// default/override resolution.
func New(toolchainsRoot string, store *settings.Store, sink notify.Sink) *Dispatcher {
	return &Dispatcher{toolchainsRoot: toolchainsRoot, store: store, sink: sink}
}

// Resolve computes the active toolchain name for workDir, honoring the
// precedence chain of spec §4.11: an explicit "+toolchain" argument, an
// environment variable, a directory override, then default_toolchain.
func (d *Dispatcher) Resolve(explicit, envToolchain, workDir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if envToolchain != "" {
		return envToolchain, nil
	}

	var resolved string
	err := d.store.With(func(doc settings.Document) error {
		if name, _, ok := doc.FindOverride(workDir, d.sink); ok {
			resolved = name
			return nil
		}
		if doc.DefaultToolchain != "" {
			resolved = doc.DefaultToolchain
			return nil
		}
		return ErrNoDefaultToolchain
	})
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// Prepare constructs (but does not start) the child process for invoking
// tool under toolchain, wired with inherited stdio and the environment
// spec §4.11 requires. It enforces the recursion guard before doing
// anything else.
func (d *Dispatcher) Prepare(ctx context.Context, tool, toolchain string, args []string) (*runexec.Process, error) {
	count, _ := strconv.Atoi(os.Getenv(RecursionEnvVar))
	if count >= MaxRecursion {
		return nil, ErrInfiniteRecursion
	}

	toolchainDir := filepath.Join(d.toolchainsRoot, toolchain)
	bin := filepath.Join(toolchainDir, "bin", tool+ExeSuffix())
	if !fsutil.Exists(bin) {
		return nil, &BinaryNotFound{Tool: tool, Toolchain: toolchain}
	}

	loaderVar := dynamicLoaderPathVar()

	env := []string{
		"PATH=" + prependPathList(filepath.Join(toolchainDir, "bin"), os.Getenv("PATH")),
		loaderVar + "=" + prependPathList(filepath.Join(toolchainDir, "lib"), os.Getenv(loaderVar)),
		PackageHomeVar + "=" + defaultPackageHome(),
		RecursionEnvVar + "=" + strconv.Itoa(count+1),
	}

	return runexec.New(bin, args,
		runexec.WithContext(ctx),
		runexec.WithEnv(env...),
		runexec.WithStdin(os.Stdin),
		runexec.WithStdout(os.Stdout),
		runexec.WithStderr(os.Stderr),
	)
}

func prependPathList(dir, existing string) string {
	if existing == "" {
		return dir
	}
	return dir + string(os.PathListSeparator) + existing
}

func defaultPackageHome() string {
	if v := os.Getenv(PackageHomeVar); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".toolup", "packages")
}
