// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package main

import (
	"github.com/spf13/cobra"
)

var systemsRoot string
var historyDir string

var rootCmd = &cobra.Command{
	Use:   "bootsel-ctl",
	Short: "Inspect the system selector's on-disk state",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&systemsRoot, "systems-root", "/legato/systems",
		"path to the systems root directory")
	rootCmd.PersistentFlags().StringVar(&historyDir, "history-dir", "/legato/history",
		"path to the boot/install history directory")
	rootCmd.AddCommand(currentCmd, newestCmd, historyCmd)
}
