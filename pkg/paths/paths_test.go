// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package paths

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinTooLong(t *testing.T) {
	_, err := Join("/systems", strings.Repeat("x", MaxPathLen))
	require.Error(t, err)
}

func TestSystemAndStatusPath(t *testing.T) {
	p, err := System("/systems", 3)
	require.NoError(t, err)
	require.Equal(t, "/systems/3", p)

	sp, err := StatusPath("/systems", "current")
	require.NoError(t, err)
	require.Equal(t, "/systems/current/status", sp)
}
