// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package fsutil

import (
	"os"
	fp "path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecursiveDeleteMissingIsNotError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, RecursiveDelete(fp.Join(dir, "nope")))
}

func TestRecursiveDeleteRemovesTree(t *testing.T) {
	dir := t.TempDir()
	sub := fp.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(fp.Join(sub, "f"), []byte("x"), 0644))
	require.NoError(t, RecursiveDelete(dir))
	_, err := os.Stat(dir)
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestRenameOverExistingDir(t *testing.T) {
	root := t.TempDir()
	from := fp.Join(root, "from")
	to := fp.Join(root, "to")
	require.NoError(t, os.Mkdir(from, 0755))
	require.NoError(t, os.WriteFile(fp.Join(from, "marker"), []byte("new"), 0644))
	require.NoError(t, os.Mkdir(to, 0755))
	require.NoError(t, os.WriteFile(fp.Join(to, "stale"), []byte("old"), 0644))

	require.NoError(t, Rename(from, to))

	data, err := os.ReadFile(fp.Join(to, "marker"))
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
	_, err = os.Stat(from)
	require.True(t, os.IsNotExist(err))
}

func TestCopyTree(t *testing.T) {
	root := t.TempDir()
	src := fp.Join(root, "src")
	dst := fp.Join(root, "dst")
	require.NoError(t, os.MkdirAll(fp.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(fp.Join(src, "sub", "f"), []byte("contents"), 0644))

	require.NoError(t, CopyTree(src, dst, nil))

	data, err := os.ReadFile(fp.Join(dst, "sub", "f"))
	require.NoError(t, err)
	require.Equal(t, "contents", string(data))
}
