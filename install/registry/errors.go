// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package registry

import (
	"errors"
	"fmt"
)

// ErrCorruptManifest is returned when a per-component manifest contains a
// line that isn't "file:<rel>" or "dir:<rel>".
var ErrCorruptManifest = errors.New("corrupt component manifest")

// ComponentMissingFile is returned when a per-component manifest lists a
// path that is no longer present on disk.
type ComponentMissingFile struct {
	Name string
	Path string
}

func (e *ComponentMissingFile) Error() string {
	return fmt.Sprintf("component %q is missing file %q", e.Name, e.Path)
}

// ComponentNotFound reports that name isn't in the installed-components
// index. Find does not return it: Find reports an absent component as
// (false, nil).
type ComponentNotFound struct {
	Name string
}

func (e *ComponentNotFound) Error() string {
	return fmt.Sprintf("component %q is not installed", e.Name)
}
