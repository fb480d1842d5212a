// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/purecloudlabs/bootsel/pkg/sysdir"
)

var newestCmd = &cobra.Command{
	Use:   "newest",
	Short: "Print the index of the newest non-bad system",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx := sysdir.NewestNonBad(systemsRoot)
		if idx == -1 {
			fmt.Println("none")
			return nil
		}
		fmt.Println(idx)
		return nil
	},
}
