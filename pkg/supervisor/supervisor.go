// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package supervisor forks/execs the Supervisor binary and classifies its
// exit outcome for the selector.
package supervisor

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/purecloudlabs/bootsel/pkg/log"
)

// Outcome classifies how the Supervisor exited.
type Outcome int

const (
	// Clean means the Supervisor exited 0; the core should exit 0 too.
	Clean Outcome = iota
	// Restart means the Supervisor asked to be relaunched (exit 2).
	Restart
	// UserRestart means the user requested a restart (exit 3); the try
	// count is not incremented for this outcome unless the system is New.
	UserRestart
	// Failure covers a signal kill, an unexpected exit code, or a failure
	// to even start the process.
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Clean:
		return "clean"
	case Restart:
		return "restart"
	case UserRestart:
		return "user-restart"
	default:
		return "failure"
	}
}

// Run execs binPath with --no-daemonize, waits for it to exit, and
// classifies the result. argv only - never passed through a shell.
//
// The Supervisor child inherits the core's real stdin - the write end of
// the daemonization hand-off pipe it was started with - so it alone
// retains that fd. Once the child has started, the core's own stdin is
// reassigned to /dev/null so the core does not also hold the pipe open
// across the next loop iteration.
func Run(binPath string) Outcome {
	cmd := exec.Command(binPath, "--no-daemonize")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	log.Logf("supervisor: starting %s", binPath)
	if err := cmd.Start(); err != nil {
		log.Logf("supervisor: failed to start %s: %s", binPath, err)
		return Failure
	}

	if err := redirectStdinToDevNull(); err != nil {
		log.Logf("supervisor: redirecting stdin to %s: %s", os.DevNull, err)
	}

	if err := cmd.Wait(); err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			log.Logf("supervisor: waiting for %s: %s", binPath, err)
			return Failure
		}
		return classify(exitErr)
	}
	return Clean
}

// redirectStdinToDevNull dup2's the core process's own fd 0 onto
// /dev/null, releasing whatever the core's stdin previously referred to
// (the hand-off pipe's write end, now owned solely by the child).
func redirectStdinToDevNull() error {
	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return err
	}
	defer devnull.Close()
	return unix.Dup2(int(devnull.Fd()), int(os.Stdin.Fd()))
}

func classify(exitErr *exec.ExitError) Outcome {
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		log.Logf("supervisor: unexpected wait status type for %v", exitErr)
		return Failure
	}
	if status.Signaled() {
		log.Logf("supervisor: killed by signal %s", status.Signal())
		return Failure
	}
	switch status.ExitStatus() {
	case 2:
		return Restart
	case 3:
		return UserRestart
	default:
		log.Logf("supervisor: unexpected exit code %d", status.ExitStatus())
		return Failure
	}
}
