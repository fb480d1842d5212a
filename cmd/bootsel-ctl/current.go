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

	"github.com/purecloudlabs/bootsel/pkg/paths"
	"github.com/purecloudlabs/bootsel/pkg/sysdir"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the index and status of the current system",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := sysdir.ReadIndex(systemsRoot, paths.CurrentName)
		if err != nil {
			fmt.Println("no current system")
			return nil
		}
		st := sysdir.GetStatus(systemsRoot, paths.CurrentName)
		fmt.Printf("index=%d status=%s\n", idx, st)
		return nil
	},
}
