// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package selector implements the boot-time decision procedure: decide
// whether to install the golden image, promote/demote systems, refresh
// ldconfig, and run the Supervisor for one cycle.
package selector

import (
	"fmt"
	"os"
	"os/exec"
	fp "path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/purecloudlabs/bootsel/internal/history"
	"github.com/purecloudlabs/bootsel/pkg/fsutil"
	"github.com/purecloudlabs/bootsel/pkg/golden"
	"github.com/purecloudlabs/bootsel/pkg/hw/kmsg"
	"github.com/purecloudlabs/bootsel/pkg/hw/power"
	"github.com/purecloudlabs/bootsel/pkg/log"
	"github.com/purecloudlabs/bootsel/pkg/metrics"
	"github.com/purecloudlabs/bootsel/pkg/paths"
	"github.com/purecloudlabs/bootsel/pkg/status"
	"github.com/purecloudlabs/bootsel/pkg/supervisor"
	"github.com/purecloudlabs/bootsel/pkg/sysdir"
)

// Config bundles the paths and hooks one cycle of the selector needs.
type Config struct {
	SystemsRoot    string
	Golden         golden.Config
	SupervisorPath string
	MetricsPath    string
	// Ldconfig runs the dynamic linker cache refresh. Defaults to
	// exec'ing "ldconfig" when nil.
	Ldconfig func() error
	// Reboot is called on Supervisor failure. Defaults to
	// pkg/hw/power.Reboot when nil; overridable so tests can observe the
	// failure path without actually rebooting/exiting.
	Reboot func(success bool)
	// SkipGoldenInstall disables golden installs entirely: set when the
	// factory image is mounted read-only, so the selector only ever runs
	// the Supervisor against whatever system already exists.
	SkipGoldenInstall bool
}

// SelectorState is threaded across loop iterations. It replaces the
// original's package-level static exit-code variable with an explicit,
// testable field.
type SelectorState struct {
	LastExitCode int
}

// Run drives the selector loop until the Supervisor exits cleanly, at which
// point it returns nil. Any other return is a logic error; failure paths
// reboot rather than returning.
func Run(c Config) error {
	st := SelectorState{}
	for {
		next, done, err := RunOneCycle(c, st)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		st = next
	}
}

// RunOneCycle performs one full pass of the selector decision procedure:
// directory reshuffle, optional golden install, ldconfig refresh, and one
// Supervisor run. done is true only on a clean Supervisor exit.
func RunOneCycle(c Config, st SelectorState) (next SelectorState, done bool, err error) {
	unpackDir, err := paths.Named(c.SystemsRoot, paths.UnpackName)
	if err != nil {
		return st, false, fmt.Errorf("composing unpack path: %w", err)
	}
	if err := fsutil.RecursiveDelete(unpackDir); err != nil {
		log.Logf("selector: clearing stale unpack: %s", err)
	}
	os.RemoveAll(unpackDir)

	newest := sysdir.NewestNonBad(c.SystemsRoot)
	curIdx, _ := sysdir.ReadIndex(c.SystemsRoot, paths.CurrentName)

	if !c.SkipGoldenInstall && golden.ShouldInstallGolden(c.Golden, newest) {
		idx, err := golden.Install(c.Golden, newest, curIdx)
		if err != nil {
			return st, false, fmt.Errorf("golden install: %w", err)
		}
		metrics.GoldenInstallsTotal.Inc()
		curIdx = idx
		newest = idx
	} else if !c.SkipGoldenInstall && newest != curIdx {
		if err := reshuffle(c.SystemsRoot, curIdx, newest); err != nil {
			return st, false, fmt.Errorf("reshuffling systems: %w", err)
		}
		curIdx = newest
	}

	marker, err := ldconfigMarkerPath(c.SystemsRoot)
	if err != nil {
		return st, false, fmt.Errorf("composing ldconfig marker path: %w", err)
	}
	if fsutil.FileExists(marker) {
		if err := refreshLdconfig(c); err != nil {
			log.Logf("selector: ldconfig refresh: %s", err)
		} else {
			os.Remove(marker)
		}
	}

	return runSupervisorCycle(c, st, curIdx)
}

// reshuffle demotes the existing "current" (if any) to its indexed name,
// harvesting config as appropriate for its status, then promotes newest.
func reshuffle(systemsRoot string, curIdx, newest int) error {
	currentDir, err := paths.Named(systemsRoot, paths.CurrentName)
	if err != nil {
		return err
	}
	if curIdx != -1 {
		fsutil.TryLazyUnmount(currentDir)
		s := sysdir.GetStatus(systemsRoot, paths.CurrentName)
		namedDir, err := paths.System(systemsRoot, curIdx)
		if err != nil {
			return err
		}
		if err := fsutil.Rename(currentDir, namedDir); err != nil {
			return fmt.Errorf("demoting current to %d: %w", curIdx, err)
		}
		switch {
		case s.IsBad():
			if err := fsutil.RecursiveDelete(namedDir); err != nil {
				log.Logf("selector: deleting demoted bad system %d: %s", curIdx, err)
			}
		case s.IsGood():
			importConfig(systemsRoot, curIdx, newest)
		default: // Tryable
			importConfig(systemsRoot, curIdx, newest)
			if err := fsutil.RecursiveDelete(namedDir); err != nil {
				log.Logf("selector: deleting demoted tryable system %d: %s", curIdx, err)
			}
		}
	}
	newestDir, err := paths.System(systemsRoot, newest)
	if err != nil {
		return err
	}
	if err := fsutil.Rename(newestDir, currentDir); err != nil {
		return fmt.Errorf("promoting %d to current: %w", newest, err)
	}
	return nil
}

// importConfig copies fromIdx's config tree into toIdx's, best-effort.
func importConfig(systemsRoot string, fromIdx, toIdx int) {
	fromDir, err := paths.System(systemsRoot, fromIdx)
	if err != nil {
		log.Logf("selector: composing config source path for system %d: %s", fromIdx, err)
		return
	}
	toDir, err := paths.System(systemsRoot, toIdx)
	if err != nil {
		log.Logf("selector: composing config dest path for system %d: %s", toIdx, err)
		return
	}
	src := fp.Join(fromDir, "config")
	dst := fp.Join(toDir, "config")
	if fi, err := os.Stat(src); err != nil || !fi.IsDir() {
		return
	}
	if err := fsutil.CopyTree(src, dst, nil); err != nil {
		log.Logf("selector: importing config from %d to %d: %s", fromIdx, toIdx, err)
	}
}

func ldconfigMarkerPath(systemsRoot string) (string, error) {
	return paths.Join(fp.Dir(systemsRoot), paths.LdconfigMarker)
}

func refreshLdconfig(c Config) error {
	if c.Ldconfig != nil {
		return c.Ldconfig()
	}
	return exec.Command("ldconfig").Run()
}

// runSupervisorCycle applies the Tryable-write rule, runs the Supervisor,
// records history/metrics, and classifies the outcome.
func runSupervisorCycle(c Config, st SelectorState, curIdx int) (next SelectorState, done bool, err error) {
	s := sysdir.GetStatus(c.SystemsRoot, paths.CurrentName)
	if s.IsBad() {
		log.Fatalf("selector: current system %d has Bad status - invariant violation", curIdx)
	}
	if !s.IsGood() {
		skipIncrement := st.LastExitCode == 3 && s.Tries > 0
		if !skipIncrement {
			tried := s.Tries + 1
			path, perr := paths.StatusPath(c.SystemsRoot, paths.CurrentName)
			if perr == nil {
				if werr := fsutil.WriteFile(path, status.Tried(tried), 0644); werr != nil {
					log.Logf("selector: writing tried status: %s", werr)
				}
			}
			s.Tries = tried
		}
	}
	metrics.CurrentTries.Set(float64(s.Tries))

	outcome := supervisor.Run(c.SupervisorPath)
	metrics.CyclesTotal.Inc()

	success := outcome == supervisor.Clean || outcome == supervisor.Restart || outcome == supervisor.UserRestart
	history.RecordBootState(curIdx, success, severityFor(outcome), time.Now(), outcome.String())
	if c.MetricsPath != "" {
		if ferr := metrics.Flush(c.MetricsPath); ferr != nil {
			log.Logf("selector: flushing metrics: %s", ferr)
		}
	}

	switch outcome {
	case supervisor.Clean:
		return SelectorState{LastExitCode: 0}, true, nil
	case supervisor.Restart:
		return SelectorState{LastExitCode: 2}, false, nil
	case supervisor.UserRestart:
		return SelectorState{LastExitCode: 3}, false, nil
	default:
		metrics.RebootsTotal.Inc()
		unix.Sync()
		log.Logf("supervisor failure, last kernel log lines:\n%s", kmsg.Tail(40))
		reboot := c.Reboot
		if reboot == nil {
			reboot = power.Reboot
		}
		reboot(false)
		return SelectorState{LastExitCode: st.LastExitCode}, false, nil
	}
}

func severityFor(o supervisor.Outcome) uint {
	if o == supervisor.Failure {
		return 1
	}
	return 0
}
