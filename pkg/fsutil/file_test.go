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

func TestWriteReadFile(t *testing.T) {
	dir := t.TempDir()
	path := fp.Join(dir, "status")
	require.NoError(t, WriteFile(path, []byte("good\n"), 0644))
	data, err := ReadFile(path, 64)
	require.NoError(t, err)
	require.Equal(t, "good\n", string(data))
}

func TestReadFileMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadFile(fp.Join(dir, "missing"), 64)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotExist)
}

func TestReadFileCap(t *testing.T) {
	dir := t.TempDir()
	path := fp.Join(dir, "big")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))
	data, err := ReadFile(path, 4)
	require.NoError(t, err)
	require.Equal(t, "0123", string(data))
}

func TestWaitForChan(t *testing.T) {
	dir := t.TempDir()
	path := fp.Join(dir, "appears")
	stop := make(chan struct{})
	go func() {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}()
	found := WaitForChan(path, stop)
	require.True(t, found)
}
