// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package paths centralizes the fixed directory layout used by the system
// selector, mirroring the teacher's convention of a single small package
// (their pkg/common/strs) that every other package imports for path
// constants rather than hard-coding strings throughout the tree.
package paths

import (
	"fmt"
	"strconv"

	fp "path/filepath"
)

// MaxPathLen bounds path composition the way the original's snprintf+
// LE_FATAL pattern does - this package returns an error instead of
// truncating silently, leaving the fatal decision to the caller.
const MaxPathLen = 4096

const (
	// CurrentName is the well-known name of the currently-running system.
	CurrentName = "current"
	// UnpackName is the staging directory used while building a new system
	// or installing golden apps.
	UnpackName = "unpack"

	StatusFile      = "status"
	IndexFile       = "index"
	VersionFile     = "version"
	InfoPropsFile   = "info.properties"
	GoldenIndexFile = "golden_index"
	LdconfigMarker  = "needs_ldconfig"
)

// Join composes elements into a path, refusing to silently truncate if the
// result would exceed MaxPathLen.
func Join(elem ...string) (string, error) {
	p := fp.Join(elem...)
	if len(p) >= MaxPathLen {
		return "", fmt.Errorf("path too long: %d bytes, max %d", len(p), MaxPathLen)
	}
	return p, nil
}

// System returns the path to the system directory with the given index.
func System(systemsRoot string, index int) (string, error) {
	return Join(systemsRoot, strconv.Itoa(index))
}

// Named returns the path to a system directory by name ("current",
// "unpack", or a decimal index).
func Named(systemsRoot, name string) (string, error) {
	return Join(systemsRoot, name)
}

// StatusPath returns the path to a system's status file.
func StatusPath(systemsRoot, name string) (string, error) {
	return Join(systemsRoot, name, StatusFile)
}

// IndexPath returns the path to a system's index file.
func IndexPath(systemsRoot, name string) (string, error) {
	return Join(systemsRoot, name, IndexFile)
}
