// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package progress waits, with a timeout, for a ready signal (SIGUSR1) sent
// by another process. The boot driver uses it as its daemonization hand-off
// window and only logs whether the signal arrived.
package progress

import (
	"os"
	"time"

	"github.com/purecloudlabs/bootsel/pkg/hw/kmsg"
)

const watchdogProc = "bootsel-watchdog"

// WaitForReady blocks until either SIGUSR1 arrives (application reports
// itself healthy) or timeout elapses, whichever comes first. Returns true if
// the signal arrived in time.
func WaitForReady(timeout time.Duration) bool {
	km := kmsg.NewKmsgPrio(kmsg.FacLocal0, kmsg.SevNotice, watchdogProc)
	sig := setupSignal()
	return waitForSignal(km, sig, timeout)
}

// Signal notifies a waiting WaitForReady in another process that boot
// reached a healthy state.
func Signal(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(readySignal)
}
