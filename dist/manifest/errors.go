// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package manifest

import "fmt"

// Sentinel error kinds from spec §7's "Manifest" taxonomy. Each is wrapped
// with fmt.Errorf("...: %w", ...) at the call site rather than routed
// through a shared errors package, matching the teacher's convention.
var (
	ErrMissingKey               = fmt.Errorf("missing key")
	ErrExpectedType              = fmt.Errorf("unexpected value type")
	ErrPackageNotFound           = fmt.Errorf("package not found")
	ErrTargetNotFound            = fmt.Errorf("target not found")
	ErrUnsupportedVersion        = fmt.Errorf("unsupported manifest version")
	ErrMissingPackageForComponent = fmt.Errorf("component references a package not present in the manifest")
)
