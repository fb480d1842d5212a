// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package power handles poweroff- and reboot-related functionality, including
//running pre-reboot hooks registered by other packages (selector state
//persistence, metrics flush, etc).
//
//As a side-effect of import, log.Fatal is set to power.FailReboot.
package power

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/purecloudlabs/bootsel/pkg/log"

	"golang.org/x/sys/unix"
)

// Defines the action taken on failure, which is to reboot. Importing this
// package has the side effect of calling log.SetFatalAction() with this.
var FatalAction = log.FailAction{
	MsgPfx:     "ERROR, rebooting:",
	Terminator: FailReboot,
}

func init() {
	log.SetFatalAction(FatalAction)
}

// Preboots are run, in registration order, immediately before a reboot or
// shutdown - the last chance for a package to flush state to disk. Each is
// passed whether the stage that is ending succeeded.
var preboots struct {
	mu    sync.Mutex
	hooks []func(success bool)
}

// RegisterPreboot adds a hook to run immediately before reboot/shutdown.
func RegisterPreboot(f func(success bool)) {
	preboots.mu.Lock()
	defer preboots.mu.Unlock()
	preboots.hooks = append(preboots.hooks, f)
}

func runPreboots(success bool) {
	preboots.mu.Lock()
	hooks := append([]func(bool){}, preboots.hooks...)
	preboots.mu.Unlock()
	for _, h := range hooks {
		h(success)
	}
}

//Reboot.
func FailReboot() {
	Reboot(false)
}

// Reboot after the current stage succeeded.
func RebootSuccess() {
	StageFinished()
	Reboot(true)
}

// Logs that the current stage has finished.
func StageFinished() {
	log.Logf("%s succeeded, rebooting...", log.GetPrefix())
}

//Not for general use - prefer FailReboot() or RebootSuccess()
func Reboot(success bool) {
	/* this func can be called from a defer statement; deferred functions
	   will execute even if panic() was called. exiting or rebooting will
	   mask any such panic, so check for it and log it
	*/
	x := recover()
	if x != nil {
		log.Logf("panic() caught in reboot(success=%t)", success)
		success = false
		log.Msgf("internal error: %s", x)
		stars := "***********************************************************"
		log.Logf("%s\nstack trace:\n%s\n%s", stars, debug.Stack(), stars)
	}

	runPreboots(success)
	if os.Getpid() != 1 {
		fmt.Fprintf(os.Stderr, "pid 1 would reboot here")
		os.Exit(0)
	}
	time.Sleep(2 * time.Second)
	err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
	if err != nil {
		fmt.Printf("%s", err)
	}
}

func Off() {
	runPreboots(true)
	if os.Getpid() != 1 {
		fmt.Fprintf(os.Stderr, "pid 1 would shutdown here")
		os.Exit(0)
	}
	time.Sleep(2 * time.Second)
	err := unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
	if err != nil {
		fmt.Printf("%s", err)
	}
}
