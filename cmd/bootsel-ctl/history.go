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

	"github.com/purecloudlabs/bootsel/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recorded boot/install history for every system index",
	RunE: func(cmd *cobra.Command, args []string) error {
		history.SetRoot(historyDir)
		records := history.Records()
		if len(records) == 0 {
			fmt.Println("no history recorded")
			return nil
		}
		for _, r := range records {
			fmt.Printf("system=%d installAttempts=%d installFailures=%d bootAttempts=%d bootFailures=%d reliable=%t\n",
				r.SystemIndex, r.InstallAttempts, r.InstallFailures, r.BootAttempts, r.BootFailures, history.Check(r.SystemIndex))
			for _, n := range r.Notes {
				fmt.Printf("  %s\n", n)
			}
		}
		return nil
	},
}
