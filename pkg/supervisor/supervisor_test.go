// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package supervisor

import (
	"os"
	fp "path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func scriptExiting(t *testing.T, code int) string {
	t.Helper()
	dir := t.TempDir()
	path := fp.Join(dir, "fake-supervisor.sh")
	content := "#!/bin/sh\nexit " + strconv.Itoa(code) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
	return path
}

func TestRunClassifiesCleanExit(t *testing.T) {
	require.Equal(t, Clean, Run(scriptExiting(t, 0)))
}

func TestRunClassifiesRestart(t *testing.T) {
	require.Equal(t, Restart, Run(scriptExiting(t, 2)))
}

func TestRunClassifiesUserRestart(t *testing.T) {
	require.Equal(t, UserRestart, Run(scriptExiting(t, 3)))
}

func TestRunClassifiesUnexpectedExitAsFailure(t *testing.T) {
	require.Equal(t, Failure, Run(scriptExiting(t, 17)))
}

func TestRunClassifiesMissingBinaryAsFailure(t *testing.T) {
	require.Equal(t, Failure, Run(fp.Join(t.TempDir(), "does-not-exist")))
}
