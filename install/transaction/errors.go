// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package transaction

import "fmt"

// ComponentConflict is returned when a fresh FileAdded or DirAdded targets a
// path that already exists in the prefix and wasn't itself created earlier
// in the same transaction (spec §4.7 "Conflict rule").
type ComponentConflict struct {
	Name string
	Path string
}

func (e *ComponentConflict) Error() string {
	return fmt.Sprintf("component %q conflicts with existing path %q", e.Name, e.Path)
}
