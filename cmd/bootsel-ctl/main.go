// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command bootsel-ctl is a read-only inspector for the system selector's
// on-disk state: which system is current, which would be selected next,
// and the recorded boot/install history.
package main

import (
	"fmt"
	"os"

	"github.com/purecloudlabs/bootsel/pkg/log"
	"github.com/purecloudlabs/bootsel/pkg/log/flags"
)

func main() {
	log.AddConsoleLog(flags.NA)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
