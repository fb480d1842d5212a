// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package driver

import (
	"os"
	fp "path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsReadOnlyDetectsSentinel(t *testing.T) {
	root := t.TempDir()
	require.False(t, IsReadOnly(root))

	require.NoError(t, os.WriteFile(fp.Join(root, readOnlySentinel), nil, 0644))
	require.True(t, IsReadOnly(root))
}

func TestMountWritableAreaNoopWithoutBackingDevs(t *testing.T) {
	root := t.TempDir()
	c := Config{
		SystemsRoot: fp.Join(root, "systems"),
		HomeDir:     fp.Join(root, "home"),
	}
	require.NoError(t, mountWritableArea(c))

	_, err := os.Stat(c.SystemsRoot)
	require.True(t, os.IsNotExist(err))
}
