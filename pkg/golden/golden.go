// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package golden installs the factory-supplied ("golden") system image into
// the writable systems area. It is the atomic, crash-safe promotion path run
// on first boot and after a factory image upgrade.
package golden

import (
	"os"
	fp "path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/purecloudlabs/bootsel/internal/history"
	"github.com/purecloudlabs/bootsel/pkg/appstage"
	"github.com/purecloudlabs/bootsel/pkg/fsutil"
	"github.com/purecloudlabs/bootsel/pkg/log"
	"github.com/purecloudlabs/bootsel/pkg/paths"
	"github.com/purecloudlabs/bootsel/pkg/status"
	"github.com/purecloudlabs/bootsel/pkg/sysdir"
)

// configFiles are the standard config files symlinked from the factory
// image into every newly-staged system.
var configFiles = []string{"apps.cfg", "users.cfg", "modules.cfg"}

// Factory describes the read-only factory image layout.
type Factory struct {
	Root     string // e.g. /mnt/legato/system
	AppStore string // e.g. /mnt/legato/apps, the factory's content store
}

// Config bundles everything Install/ShouldInstallGolden need.
type Config struct {
	SystemsRoot  string // e.g. /legato/systems
	AppStoreDir  string // e.g. /legato/apps, the writable-area content store
	VersionMark  string // e.g. /legato/installed_version, the factory-version marker
	Factory      Factory
	LegacyWriteable string // passed through to appstage.SetUp when prevIndex == -1
}

// ShouldInstallGolden decides whether a golden install is due: always when
// no non-bad system exists yet, otherwise only when the factory image's
// version differs from the last-installed version marker. An unreadable
// marker or an unreadable/malformed factory version is treated as "do not
// install" - a damaged factory image must never trigger a reinstall loop.
func ShouldInstallGolden(c Config, newestNonBad int) bool {
	if newestNonBad == -1 {
		return true
	}
	marker, err := fsutil.ReadFile(c.VersionMark, 4096)
	if err != nil {
		log.Logf("golden: reading version marker: %s", err)
		return false
	}
	factoryVersion, err := paths.Join(c.Factory.Root, paths.VersionFile)
	if err != nil {
		log.Logf("golden: composing factory version path: %s", err)
		return false
	}
	factoryVer, err := fsutil.ReadFile(factoryVersion, 4096)
	if err != nil {
		log.Logf("golden: reading factory version: %s", err)
		return false
	}
	return strings.TrimSpace(string(marker)) != strings.TrimSpace(string(factoryVer))
}

// Install promotes the factory image into the writable area as a new
// current system, in the order mandated by the boot-safety invariants: the
// unpack tree is built in full before the single commit rename, and the
// version marker is the very last thing written.
func Install(c Config, newestIndex, currentIndex int) (goldenIndex int, err error) {
	installID := uuid.NewString()
	if setErr := log.SetAttr("installID", installID); setErr != nil {
		log.Logf("golden: installID attr already set: %s", setErr)
	}
	log.Logf("golden: starting install, installID=%s", installID)

	goldenIndex = newestIndex + 1

	// A golden install is a natural boundary in the boot history: archive
	// whatever accumulated under the previous factory version before
	// recording this attempt.
	history.Rollover(fp.Dir(c.SystemsRoot))
	defer func() {
		history.RecordInstall(goldenIndex, err == nil)
	}()

	goldenDir, err := paths.System(c.SystemsRoot, goldenIndex)
	if err != nil {
		return goldenIndex, err
	}
	if err := fsutil.RecursiveDelete(goldenDir); err != nil {
		return goldenIndex, errors.Wrapf(err, "clearing %s before install", goldenDir)
	}
	if err := os.RemoveAll(goldenDir); err != nil {
		return goldenIndex, errors.Wrapf(err, "removing %s", goldenDir)
	}

	currentDir, err := paths.Named(c.SystemsRoot, paths.CurrentName)
	if err != nil {
		return goldenIndex, err
	}
	if fi, statErr := os.Stat(currentDir); statErr == nil && fi.IsDir() {
		fsutil.TryLazyUnmount(currentDir)
		if currentIndex >= 0 {
			prevNamed, err := paths.System(c.SystemsRoot, currentIndex)
			if err != nil {
				return goldenIndex, err
			}
			if err := fsutil.Rename(currentDir, prevNamed); err != nil {
				return goldenIndex, errors.Wrapf(err, "preserving current as %d", currentIndex)
			}
		}
	}

	unpackDir, err := paths.Named(c.SystemsRoot, paths.UnpackName)
	if err != nil {
		return goldenIndex, err
	}
	if err := fsutil.RecursiveDelete(unpackDir); err != nil {
		log.Logf("golden: clearing stale unpack: %s", err)
	}
	os.RemoveAll(unpackDir)

	if err := buildUnpack(c, unpackDir, goldenIndex); err != nil {
		return goldenIndex, errors.Wrap(err, "building unpack tree")
	}

	if newestIndex >= 0 {
		prevSystemDir, err := paths.System(c.SystemsRoot, newestIndex)
		if err != nil {
			return goldenIndex, err
		}
		prevConfig := fp.Join(prevSystemDir, "config")
		unpackConfig, err := paths.Join(unpackDir, "config")
		if err != nil {
			return goldenIndex, err
		}
		if fi, statErr := os.Stat(prevConfig); statErr == nil && fi.IsDir() {
			if err := fsutil.CopyTree(prevConfig, unpackConfig, nil); err != nil {
				log.Logf("golden: copying prior config tree: %s", err)
			}
		}
	}

	prevForApps := newestIndex
	factoryAppsDir, err := paths.Join(c.Factory.Root, "apps")
	if err != nil {
		return goldenIndex, err
	}
	appEntries, err := os.ReadDir(factoryAppsDir)
	if err != nil {
		return goldenIndex, errors.Wrap(err, "reading factory apps dir")
	}
	unpackAppsDir, err := paths.Join(unpackDir, "apps")
	if err != nil {
		return goldenIndex, err
	}
	unpackWriteable, err := paths.Join(unpackDir, "appsWriteable")
	if err != nil {
		return goldenIndex, err
	}
	layout := appstage.Layout{
		FactoryAppsDir:  factoryAppsDir,
		FactoryStoreDir: c.Factory.AppStore,
		AppStoreDir:     c.AppStoreDir,
		UnpackAppsDir:   unpackAppsDir,
		UnpackWriteable: unpackWriteable,
		SystemsRoot:     c.SystemsRoot,
		LegacyWriteable: c.LegacyWriteable,
	}
	for _, e := range appEntries {
		if e.Type()&os.ModeSymlink == 0 {
			continue
		}
		if err := appstage.SetUp(layout, e.Name(), prevForApps); err != nil {
			log.Logf("golden: staging app %s: %s", e.Name(), err)
		}
	}

	if err := fsutil.Rename(unpackDir, currentDir); err != nil {
		return goldenIndex, errors.Wrap(err, "commit rename unpack -> current")
	}

	if err := sysdir.PurgeSiblings(c.SystemsRoot); err != nil {
		log.Logf("golden: purging siblings: %s", err)
	}

	marker, err := ldconfigMarkerPath(c.SystemsRoot)
	if err != nil {
		log.Logf("golden: composing ldconfig marker path: %s", err)
	} else if err := fsutil.WriteFile(marker, []byte("need_ldconfig"), 0644); err != nil {
		log.Logf("golden: writing ldconfig marker: %s", err)
	}

	unix.Sync()
	factoryVersion, err := paths.Join(c.Factory.Root, paths.VersionFile)
	if err != nil {
		log.Logf("golden: composing factory version path for marker: %s", err)
		return goldenIndex, nil
	}
	factoryVer, err := fsutil.ReadFile(factoryVersion, 4096)
	if err != nil {
		log.Logf("golden: reading factory version for marker: %s", err)
		return goldenIndex, nil
	}
	if err := fsutil.WriteFile(c.VersionMark, factoryVer, 0644); err != nil {
		log.Logf("golden: writing version marker: %s", err)
	}

	log.Logf("golden: install complete, new current is system %d", goldenIndex)
	return goldenIndex, nil
}

// ldconfigMarkerPath returns the path to the marker file the selector
// checks to decide whether to refresh the dynamic linker cache.
func ldconfigMarkerPath(systemsRoot string) (string, error) {
	return paths.Join(fp.Dir(systemsRoot), paths.LdconfigMarker)
}

// buildUnpack creates the skeleton unpack tree: directories, symlinks to the
// factory image's read-only components, and the by-value version/info files.
func buildUnpack(c Config, unpackDir string, goldenIndex int) error {
	for _, sub := range []string{"", "config", "apps", "appsWriteable"} {
		dir, err := paths.Join(unpackDir, sub)
		if err != nil {
			return errors.Wrapf(err, "composing %s", sub)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating %s", sub)
		}
	}

	for _, name := range []string{"bin", "lib", "modules"} {
		src, err := paths.Join(c.Factory.Root, name)
		if err != nil {
			return errors.Wrapf(err, "composing factory %s path", name)
		}
		dst, err := paths.Join(unpackDir, name)
		if err != nil {
			return errors.Wrapf(err, "composing unpack %s path", name)
		}
		if err := os.Symlink(src, dst); err != nil && !os.IsExist(err) {
			return errors.Wrapf(err, "symlinking %s", name)
		}
	}
	for _, name := range configFiles {
		src, err := paths.Join(c.Factory.Root, "config", name)
		if err != nil {
			return errors.Wrapf(err, "composing factory config/%s path", name)
		}
		dst, err := paths.Join(unpackDir, "config", name)
		if err != nil {
			return errors.Wrapf(err, "composing unpack config/%s path", name)
		}
		if err := os.Symlink(src, dst); err != nil && !os.IsExist(err) {
			return errors.Wrapf(err, "symlinking config/%s", name)
		}
	}

	factoryVersion, err := paths.Join(c.Factory.Root, paths.VersionFile)
	if err != nil {
		return errors.Wrap(err, "composing factory version path")
	}
	unpackVersion, err := paths.Join(unpackDir, paths.VersionFile)
	if err != nil {
		return errors.Wrap(err, "composing unpack version path")
	}
	if err := fsutil.CopyFile(factoryVersion, unpackVersion, 0); err != nil {
		return errors.Wrap(err, "copying version")
	}

	factoryInfo, err := paths.Join(c.Factory.Root, paths.InfoPropsFile)
	if err != nil {
		return errors.Wrap(err, "composing factory info.properties path")
	}
	unpackInfo, err := paths.Join(unpackDir, paths.InfoPropsFile)
	if err != nil {
		return errors.Wrap(err, "composing unpack info.properties path")
	}
	if err := fsutil.CopyFile(factoryInfo, unpackInfo, 0); err != nil {
		return errors.Wrap(err, "copying info.properties")
	}

	indexPath, err := paths.IndexPath(unpackDir, "")
	if err != nil {
		return errors.Wrap(err, "composing index path")
	}
	if err := fsutil.WriteFile(indexPath, []byte(strconv.Itoa(goldenIndex)), 0644); err != nil {
		return errors.Wrap(err, "writing index")
	}
	statusPath, err := paths.StatusPath(unpackDir, "")
	if err != nil {
		return errors.Wrap(err, "composing status path")
	}
	if err := fsutil.WriteFile(statusPath, status.Good(), 0644); err != nil {
		return errors.Wrap(err, "writing status")
	}
	return nil
}
