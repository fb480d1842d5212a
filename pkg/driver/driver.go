// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package driver is the top-level entry point: it detects read-only mode,
// ensures the writable area is mounted, waits out the daemonization
// handoff window, and enters the selector loop.
package driver

import (
	"os"
	"time"

	"github.com/purecloudlabs/bootsel/pkg/fsutil"
	"github.com/purecloudlabs/bootsel/pkg/init/progress"
	"github.com/purecloudlabs/bootsel/pkg/log"
	"github.com/purecloudlabs/bootsel/pkg/paths"
	"github.com/purecloudlabs/bootsel/pkg/selector"
)

// readOnlySentinel is the file whose presence in the factory image marks it
// as mounted read-only.
const readOnlySentinel = "read-only"

// handoffWindow is how long Run waits for a prior Supervisor version's own
// start sequence to finish before proceeding.
const handoffWindow = 5 * time.Second

// Config describes the mount layout the driver must establish before
// entering the selector loop.
type Config struct {
	FactoryRoot string // e.g. /mnt/legato/system
	SystemsRoot string
	SystemsDev  string // backing device/partition for SystemsRoot; "" to skip
	HomeDir     string // e.g. /home
	HomeDev     string // backing device/partition for HomeDir; "" to skip
	Selector    selector.Config
}

// Run performs the one-time startup sequence and then runs the selector
// loop forever. It returns only on an internal error; a clean Supervisor
// exit terminates the process directly, matching the original's exit(0) on
// EXIT_SUCCESS.
func Run(c Config) error {
	readOnly := IsReadOnly(c.FactoryRoot)
	if readOnly {
		log.Logf("driver: factory image is read-only, running selector without golden install")
	} else {
		if err := mountWritableArea(c); err != nil {
			log.Logf("driver: mounting writable area: %s", err)
		}
	}

	ready := progress.WaitForReady(handoffWindow)
	log.Logf("driver: daemonization handoff complete, ready signal received=%t", ready)

	c.Selector.SkipGoldenInstall = readOnly
	if err := selector.Run(c.Selector); err != nil {
		return err
	}
	os.Exit(0)
	return nil
}

// IsReadOnly reports whether the factory image at factoryRoot is marked
// read-only.
func IsReadOnly(factoryRoot string) bool {
	sentinel, err := paths.Join(factoryRoot, readOnlySentinel)
	if err != nil {
		log.Logf("driver: composing read-only sentinel path: %s", err)
		return false
	}
	return fsutil.FileExists(sentinel)
}

// mountWritableArea bind-mounts the systems root and home directory from
// their backing partitions, then ensures /home/root exists.
func mountWritableArea(c Config) error {
	if c.SystemsDev != "" {
		if err := os.MkdirAll(c.SystemsRoot, 0755); err != nil {
			return err
		}
		if err := fsutil.BindMountIfNeeded(c.SystemsDev, c.SystemsRoot); err != nil {
			return err
		}
	}
	if c.HomeDev != "" {
		if err := os.MkdirAll(c.HomeDir, 0755); err != nil {
			return err
		}
		if err := fsutil.BindMountIfNeeded(c.HomeDev, c.HomeDir); err != nil {
			return err
		}
		homeRoot, err := paths.Join(c.HomeDir, "root")
		if err != nil {
			log.Logf("driver: composing /home/root path: %s", err)
		} else if err := os.MkdirAll(homeRoot, 0700); err != nil {
			log.Logf("driver: creating /home/root: %s", err)
		}
	}
	return nil
}
