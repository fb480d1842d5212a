// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package progress

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/purecloudlabs/bootsel/pkg/hw/kmsg"
)

var readySignal os.Signal = syscall.SIGUSR1

type sigChan chan os.Signal

func setupSignal() sigChan {
	sig := make(sigChan, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	return sig
}

func waitForSignal(km *kmsg.KmsgWithPrio, sig sigChan, timeout time.Duration) bool {
	select {
	case <-time.After(timeout):
		km.Printf("timed out waiting for ready signal")
		return false
	case <-sig:
		km.Printf("got ready signal")
		return true
	}
}
