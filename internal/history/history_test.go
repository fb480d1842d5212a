// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func resetState(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	SetRoot(dir)
	results = nil
}

func TestRecordBootStateAccumulates(t *testing.T) {
	resetState(t)
	MaxFailuresPerSystem = 5
	RecordBootState(0, true, 0, time.Now(), "")
	RecordBootState(0, false, 2, time.Now(), "crashed")
	require.Len(t, results, 1)
	require.Equal(t, uint(2), results[0].BootAttempts)
	require.Equal(t, uint(2), results[0].BootFailures)
	require.True(t, Check(0))
}

func TestCheckTripsOverMaxFailures(t *testing.T) {
	resetState(t)
	MaxFailuresPerSystem = 3
	for i := 0; i < 4; i++ {
		RecordBootState(1, false, 1, time.Now(), "fail")
	}
	require.False(t, Check(1))
}

func TestMoveOrAddFrontOrdering(t *testing.T) {
	resetState(t)
	RecordBootState(0, true, 0, time.Now(), "")
	RecordBootState(1, true, 0, time.Now(), "")
	RecordBootState(0, true, 0, time.Now(), "")
	require.Equal(t, 0, results[0].SystemIndex)
	require.Equal(t, 1, results[1].SystemIndex)
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	SetRoot(dir)
	results = nil
	RecordBootState(0, true, 0, time.Now(), "")

	results = nil
	require.True(t, Load())
	require.Len(t, results, 1)
	require.Equal(t, 0, results[0].SystemIndex)
}
