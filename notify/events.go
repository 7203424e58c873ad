// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package notify

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// RenameInUse is emitted when internal/fs.Rename retries after a
// permission-denied error, heuristically attributed to an antivirus or
// file-indexer holding the destination open.
type RenameInUse struct {
	Src, Dst string
}

func (RenameInUse) event()              {}
func (RenameInUse) Level() logrus.Level { return logrus.InfoLevel }
func (e RenameInUse) String() string {
	return fmt.Sprintf("retrying renaming %q to %q", e.Src, e.Dst)
}

// NoCanonicalPath is emitted when canonicalize fails to resolve a path and
// falls back to returning the input unchanged.
type NoCanonicalPath struct {
	Path string
}

func (NoCanonicalPath) event()                  {}
func (NoCanonicalPath) Level() logrus.Level     { return logrus.WarnLevel }
func (e NoCanonicalPath) String() string {
	return fmt.Sprintf("could not canonicalize path %q", e.Path)
}

// ResumingPartialDownload is emitted exactly once per resumed download.
type ResumingPartialDownload struct{}

func (ResumingPartialDownload) event()              {}
func (ResumingPartialDownload) Level() logrus.Level { return logrus.DebugLevel }
func (ResumingPartialDownload) String() string      { return "resuming partial download" }

// DownloadContentLengthReceived is emitted exactly once when the
// Content-Length header is known.
type DownloadContentLengthReceived struct {
	URL    string
	Length int64
}

func (DownloadContentLengthReceived) event()              {}
func (DownloadContentLengthReceived) Level() logrus.Level { return logrus.DebugLevel }
func (e DownloadContentLengthReceived) String() string {
	return fmt.Sprintf("download size for %q is %s", e.URL, humanize.Bytes(uint64(e.Length)))
}

// DownloadDataReceived is emitted per chunk streamed to disk.
type DownloadDataReceived struct {
	URL   string
	Bytes int
}

func (DownloadDataReceived) event()              {}
func (DownloadDataReceived) Level() logrus.Level { return logrus.TraceLevel }
func (e DownloadDataReceived) String() string {
	return fmt.Sprintf("received %d bytes for %q", e.Bytes, e.URL)
}

// DownloadFinished is emitted once on a successful download.
type DownloadFinished struct {
	URL string
}

func (DownloadFinished) event()              {}
func (DownloadFinished) Level() logrus.Level { return logrus.DebugLevel }
func (e DownloadFinished) String() string    { return fmt.Sprintf("download finished for %q", e.URL) }

// RetryingDownload is emitted on each failed attempt past a transient
// network error, up to the download service's retry bound.
type RetryingDownload struct {
	URL     string
	Attempt int
}

func (RetryingDownload) event()              {}
func (RetryingDownload) Level() logrus.Level { return logrus.InfoLevel }
func (e RetryingDownload) String() string {
	return fmt.Sprintf("retrying download for %q (attempt %d)", e.URL, e.Attempt)
}

// SkippingNightlyMissingComponent is emitted when the missing-component
// policy (spec step 4.5 #7) prevents an update into a broken nightly.
type SkippingNightlyMissingComponent struct {
	Toolchain  string
	Components []string
}

func (SkippingNightlyMissingComponent) event()              {}
func (SkippingNightlyMissingComponent) Level() logrus.Level { return logrus.InfoLevel }
func (e SkippingNightlyMissingComponent) String() string {
	plural := ""
	if len(e.Components) > 1 {
		plural = "s"
	}
	return fmt.Sprintf("skipping %s which is missing installed component%s '%s'", e.Toolchain, plural, joinQuoted(e.Components))
}

func joinQuoted(items []string) string {
	out := ""
	for i, v := range items {
		if i > 0 {
			out += "', '"
		}
		out += v
	}
	return out
}

// NonFatalError carries a recovered error that does not abort the enclosing
// operation (e.g. a best-effort cleanup delete that failed).
type NonFatalError struct {
	Err error
}

func (NonFatalError) event()              {}
func (NonFatalError) Level() logrus.Level { return logrus.ErrorLevel }
func (e NonFatalError) String() string    { return e.Err.Error() }
