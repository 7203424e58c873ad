// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoManifestFound is returned when the distribution root has no
// manifest at the derived URL (a 404 fetching it).
var ErrNoManifestFound = errors.New("no manifest found at derived URL")

// RequestedComponentsUnavailable is returned when one or more explicitly
// requested extra components/targets aren't available in the fetched
// manifest for their target.
type RequestedComponentsUnavailable struct {
	Names []string
}

func (e *RequestedComponentsUnavailable) Error() string {
	return fmt.Sprintf("requested components unavailable: %s", strings.Join(e.Names, ", "))
}

// ComponentDownloadFailed wraps a failure to look up, download, verify,
// unpack or install one component, naming which one so the caller can
// report it precisely.
type ComponentDownloadFailed struct {
	Name string
	Err  error
}

func (e *ComponentDownloadFailed) Error() string {
	return fmt.Sprintf("downloading component %q: %v", e.Name, e.Err)
}

func (e *ComponentDownloadFailed) Unwrap() error { return e.Err }
