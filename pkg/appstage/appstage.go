// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package appstage symlinks a factory app into the content-addressed app
// store and migrates its writable state into a newly staged system.
package appstage

import (
	"os"
	fp "path/filepath"
	"strconv"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/purecloudlabs/bootsel/pkg/fsutil"
	"github.com/purecloudlabs/bootsel/pkg/log"
	"github.com/purecloudlabs/bootsel/pkg/paths"
)

// hashCache memoizes "factory symlink -> resolved content hash" for the
// lifetime of the process, so a later Install in the same process does not
// read the same factory symlink again.
var hashCache, _ = lru.New(256)

// AppWritableUpdate is called after an app's writable files are populated
// (copied forward or freshly created), so a caller can apply any
// version-to-version migration of that state. Nil is a valid no-op hook.
var AppWritableUpdate func(appName, hash, unpackDir string) error

// Layout describes the paths SetUp needs, so the package has no hard-coded
// knowledge of the factory image or unpack directory locations.
type Layout struct {
	FactoryAppsDir  string // e.g. /mnt/factory/system/apps, holds the <appName> symlinks
	FactoryStoreDir string // e.g. /mnt/factory/apps, holds the <hash> content directories
	AppStoreDir     string // e.g. /legato/apps
	UnpackAppsDir   string // e.g. /legato/systems/unpack/apps
	UnpackWriteable string // e.g. /legato/systems/unpack/appsWriteable
	SystemsRoot     string // e.g. /legato/systems
	LegacyWriteable string // e.g. /opt/legato/<appName>, used only when prevIndex == -1
}

// SetUp stages one app: resolves its content hash from the factory image,
// creates (or reuses) the app-store entry, symlinks it into the unpack
// system, and migrates writable state forward from prevIndex (or the
// legacy location when prevIndex == -1).
func SetUp(l Layout, appName string, prevIndex int) error {
	hash, err := resolveHash(l.FactoryAppsDir, appName)
	if err != nil {
		return errors.Wrapf(err, "resolving hash for app %s", appName)
	}

	unpackLink, err := paths.Join(l.UnpackAppsDir, appName)
	if err != nil {
		return errors.Wrapf(err, "composing unpack link for app %s", appName)
	}
	storeEntry, err := paths.Join(l.AppStoreDir, hash)
	if err != nil {
		return errors.Wrapf(err, "composing store entry for app %s", appName)
	}

	if err := os.Symlink(storeEntry, unpackLink); err != nil && !os.IsExist(err) {
		return errors.Wrapf(err, "symlinking %s to %s", unpackLink, storeEntry)
	}

	if _, err := os.Stat(storeEntry); os.IsNotExist(err) {
		factoryEntry, err := paths.Join(l.FactoryStoreDir, hash)
		if err != nil {
			return errors.Wrapf(err, "composing factory store entry for app %s", appName)
		}
		if err := os.Symlink(factoryEntry, storeEntry); err != nil && !os.IsExist(err) {
			return errors.Wrapf(err, "creating app-store symlink %s", storeEntry)
		}
	}

	writeableDest, err := paths.Join(l.UnpackWriteable, appName)
	if err != nil {
		return errors.Wrapf(err, "composing writeable dest for app %s", appName)
	}
	if err := os.MkdirAll(writeableDest, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", writeableDest)
	}

	if prevIndex == -1 {
		legacy, err := paths.Join(l.LegacyWriteable, appName)
		if err != nil {
			return errors.Wrapf(err, "composing legacy writeable path for app %s", appName)
		}
		if fi, err := os.Stat(legacy); err == nil && fi.IsDir() {
			if err := fsutil.CopyTree(legacy, writeableDest, nil); err != nil {
				log.Logf("appstage: copying legacy writeable state for %s: %s", appName, err)
			}
		}
	} else {
		prevDir, err := paths.Join(l.SystemsRoot, strconv.Itoa(prevIndex), "appsWriteable", appName)
		if err != nil {
			return errors.Wrapf(err, "composing prior writeable path for app %s", appName)
		}
		if fi, err := os.Stat(prevDir); err == nil && fi.IsDir() {
			if err := fsutil.CopyTree(prevDir, writeableDest, nil); err != nil {
				log.Logf("appstage: copying writeable state for %s from system %d: %s", appName, prevIndex, err)
			}
		}
	}

	if AppWritableUpdate != nil {
		if err := AppWritableUpdate(appName, hash, writeableDest); err != nil {
			return errors.Wrapf(err, "AppWritableUpdate for %s", appName)
		}
	}

	return nil
}

// resolveHash follows the factory image's apps/<appName> symlink to get the
// app's content hash, memoizing the result for the lifetime of the process.
func resolveHash(factoryAppsDir, appName string) (string, error) {
	link, err := paths.Join(factoryAppsDir, appName)
	if err != nil {
		return "", err
	}
	if v, ok := hashCache.Get(link); ok {
		return v.(string), nil
	}
	target, err := os.Readlink(link)
	if err != nil {
		return "", err
	}
	hash := fp.Base(target)
	hashCache.Add(link, hash)
	return hash, nil
}
