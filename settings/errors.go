// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package settings

import "errors"

// ErrUnknownMetadataVersion is returned when a settings document on disk
// names a version this build doesn't understand (spec §7 "Configuration:
// UnknownMetadataVersion", invariant S1).
var ErrUnknownMetadataVersion = errors.New("unknown settings metadata version")
