// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package metrics

import (
	"os"
	fp "path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlushWritesTextfile(t *testing.T) {
	CyclesTotal.Inc()
	CurrentTries.Set(2)

	dir := t.TempDir()
	path := fp.Join(dir, "metrics.prom")
	require.NoError(t, Flush(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "bootsel_cycles_total"))
	require.True(t, strings.Contains(string(data), "bootsel_current_tries"))
}
