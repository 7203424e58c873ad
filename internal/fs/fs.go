// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package fs collects the narrow set of filesystem primitives every other
// component builds on: atomic rename with an antivirus/in-use retry policy,
// filtered copy, symlink/hardlink, and line-oriented rewrite. Adapted from
// the teacher's archive package conventions (buffered copies, context-scoped
// logging via toolup.sh/log) and retry/backoff idiom from
// github.com/cenkalti/backoff/v4, which the teacher already carries
// (indirectly) in its dependency graph.
package fs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"toolup.sh/log"
	"toolup.sh/notify"
)

// bufSize matches the teacher's archive.bufPool sizing rationale: large
// enough to matter for disk I/O, small enough to not dominate memory use
// for many concurrent copies.
const bufSize = 1 << 20

// EnsureDir creates path and all missing intermediate directories. It is
// idempotent: a pre-existing directory at path is not an error.
func EnsureDir(path string) error {
	if fi, err := os.Stat(path); err == nil {
		if fi.IsDir() {
			return nil
		}
		return opErr("ensure_dir", fmt.Errorf("%s exists and is not a directory", path), path)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return opErr("ensure_dir", err, path)
	}

	return nil
}

// WriteFile truncates (or creates) path, writes data, and fsyncs before
// closing so the write survives a crash immediately after this call
// returns.
func WriteFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return opErr("write_file", err, path)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return opErr("write_file", err, path)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return opErr("write_file", err, path)
	}

	return opErr("write_file", f.Close(), path)
}

// AppendLine opens path for append (creating it if absent), writes line
// terminated by a newline, and fsyncs.
func AppendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return opErr("append_line", err, path)
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return opErr("append_line", err, path)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return opErr("append_line", err, path)
	}

	return opErr("append_line", f.Close(), path)
}

// Rename performs a single rename syscall; on a permission-denied error it
// retries a bounded number of times with exponential backoff, a heuristic
// for antivirus/indexer processes transiently holding the destination open
// on Windows-family hosts. Emits notify.RenameInUse on each retry.
func Rename(ctx context.Context, src, dst string, sink notify.Sink) error {
	if runtime.GOOS != "windows" {
		if err := os.Rename(src, dst); err != nil {
			return opErr("rename", err, src, dst)
		}
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)

	attempt := 0
	err := backoff.Retry(func() error {
		err := os.Rename(src, dst)
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrPermission) {
			return backoff.Permanent(err)
		}
		attempt++
		sink.Emit(notify.RenameInUse{Src: src, Dst: dst})
		log.G(ctx).WithFields(logrus.Fields{
			"src": src, "dst": dst, "attempt": attempt,
		}).Debug("fs: rename in use, retrying")
		return err
	}, b)

	return opErr("rename", err, src, dst)
}

// CopyDir recursively copies src to dst, preserving executable bits on
// regular files.
func CopyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return EnsureDir(target)
		}

		return copyFilePreservingMode(path, target)
	})
}

// CopyFile copies src to dst, preserving src's permission bits (including
// the executable bit). It is the single-file primitive CopyDir walks with
// and the one the transaction engine stages file changes through.
func CopyFile(src, dst string) error {
	return copyFilePreservingMode(src, dst)
}

func copyFilePreservingMode(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return opErr("copy_dir", err, src)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		link, err := os.Readlink(src)
		if err != nil {
			return opErr("copy_dir", err, src)
		}
		return opErr("copy_dir", os.Symlink(link, dst), src, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return opErr("copy_dir", err, src)
	}
	defer in.Close()

	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return opErr("copy_dir", err, dst)
	}

	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		out.Close()
		return opErr("copy_dir", err, src, dst)
	}

	return opErr("copy_dir", out.Close(), dst)
}

// ErrSymlinksUnprivileged is returned by SymlinkDir on host families where
// directory symlinks require a privilege this process does not hold. The
// spec requires this to fail explicitly rather than silently copy instead.
var ErrSymlinksUnprivileged = errors.New("creating directory symlinks requires a privilege this process does not hold")

// SymlinkDir creates a directory symlink at dst pointing to src.
func SymlinkDir(src, dst string) error {
	err := os.Symlink(src, dst)
	if err != nil && runtime.GOOS == "windows" && errors.Is(err, os.ErrPermission) {
		return opErr("symlink_dir", ErrSymlinksUnprivileged, src, dst)
	}
	return opErr("symlink_dir", err, src, dst)
}

// Hardlink creates a hardlink at dst pointing to src, replacing any
// existing file at dst.
func Hardlink(src, dst string) error {
	_ = os.Remove(dst)
	return opErr("hardlink", os.Link(src, dst), src, dst)
}

// FilterFileLines copies src to dst keeping only the lines for which
// predicate returns true.
func FilterFileLines(src, dst string, predicate func(line string) bool) error {
	in, err := os.Open(src)
	if err != nil {
		return opErr("filtering_file", err, src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return opErr("filtering_file", err, dst)
	}

	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		if predicate(line) {
			if _, err := w.WriteString(line + "\n"); err != nil {
				out.Close()
				return opErr("filtering_file", err, dst)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		out.Close()
		return opErr("filtering_file", err, src)
	}

	if err := w.Flush(); err != nil {
		out.Close()
		return opErr("filtering_file", err, dst)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return opErr("filtering_file", err, dst)
	}

	return opErr("filtering_file", out.Close(), dst)
}

// MatchFileLines scans src line by line, returning the first non-empty
// string produced by f, or "" with ok=false if none matched.
func MatchFileLines(src string, f func(line string) string) (result string, ok bool, err error) {
	in, openErr := os.Open(src)
	if openErr != nil {
		return "", false, opErr("reading_file", openErr, src)
	}
	defer in.Close()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		if m := f(scanner.Text()); m != "" {
			return m, true, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", false, opErr("reading_file", err, src)
	}

	return "", false, nil
}

// Canonicalize resolves symlinks and case in path. On failure it returns
// the input unchanged and emits notify.NoCanonicalPath, matching the
// spec's "never fail the caller over this" contract.
func Canonicalize(path string, sink notify.Sink) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		sink.Emit(notify.NoCanonicalPath{Path: path})
		return path
	}

	abs, err := filepath.Abs(resolved)
	if err != nil {
		sink.Emit(notify.NoCanonicalPath{Path: path})
		return resolved
	}

	return abs
}

// Exists reports whether path exists on disk (following symlinks), used by
// the transaction engine's conflict check.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
