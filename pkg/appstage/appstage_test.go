// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package appstage

import (
	"os"
	fp "path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeLayout(t *testing.T) (Layout, string) {
	t.Helper()
	root := t.TempDir()
	l := Layout{
		FactoryAppsDir:  fp.Join(root, "factory", "system", "apps"),
		FactoryStoreDir: fp.Join(root, "factory", "apps"),
		AppStoreDir:     fp.Join(root, "legato", "apps"),
		UnpackAppsDir:   fp.Join(root, "legato", "systems", "unpack", "apps"),
		UnpackWriteable: fp.Join(root, "legato", "systems", "unpack", "appsWriteable"),
		SystemsRoot:     fp.Join(root, "legato", "systems"),
		LegacyWriteable: fp.Join(root, "opt", "legato"),
	}
	require.NoError(t, os.MkdirAll(l.FactoryAppsDir, 0755))
	require.NoError(t, os.MkdirAll(l.FactoryStoreDir, 0755))
	require.NoError(t, os.MkdirAll(l.AppStoreDir, 0755))
	require.NoError(t, os.MkdirAll(l.UnpackAppsDir, 0755))
	require.NoError(t, os.MkdirAll(l.UnpackWriteable, 0755))
	require.NoError(t, os.MkdirAll(l.SystemsRoot, 0755))
	return l, root
}

func factoryApp(t *testing.T, l Layout, name, hash string) {
	t.Helper()
	contentDir := fp.Join(l.FactoryStoreDir, hash)
	require.NoError(t, os.MkdirAll(contentDir, 0755))
	require.NoError(t, os.Symlink(contentDir, fp.Join(l.FactoryAppsDir, name)))
}

func TestSetUpCreatesStoreEntryAndSymlink(t *testing.T) {
	l, _ := makeLayout(t)
	factoryApp(t, l, "webui", "abc123")

	require.NoError(t, SetUp(l, "webui", -1))

	target, err := os.Readlink(fp.Join(l.UnpackAppsDir, "webui"))
	require.NoError(t, err)
	require.Equal(t, fp.Join(l.AppStoreDir, "abc123"), target)

	storeTarget, err := os.Readlink(fp.Join(l.AppStoreDir, "abc123"))
	require.NoError(t, err)
	require.Equal(t, fp.Join(l.FactoryStoreDir, "abc123"), storeTarget)
}

func TestSetUpReusesExistingStoreEntry(t *testing.T) {
	l, _ := makeLayout(t)
	factoryApp(t, l, "webui", "abc123")
	require.NoError(t, os.MkdirAll(l.AppStoreDir, 0755))
	require.NoError(t, os.Symlink("/somewhere/else", fp.Join(l.AppStoreDir, "abc123")))

	require.NoError(t, SetUp(l, "webui", -1))

	storeTarget, err := os.Readlink(fp.Join(l.AppStoreDir, "abc123"))
	require.NoError(t, err)
	require.Equal(t, "/somewhere/else", storeTarget)
}

func TestSetUpMigratesLegacyWriteableState(t *testing.T) {
	l, _ := makeLayout(t)
	factoryApp(t, l, "webui", "abc123")
	legacyDir := fp.Join(l.LegacyWriteable, "webui")
	require.NoError(t, os.MkdirAll(legacyDir, 0755))
	require.NoError(t, os.WriteFile(fp.Join(legacyDir, "config.json"), []byte("{}"), 0644))

	require.NoError(t, SetUp(l, "webui", -1))

	data, err := os.ReadFile(fp.Join(l.UnpackWriteable, "webui", "config.json"))
	require.NoError(t, err)
	require.Equal(t, "{}", string(data))
}

func TestSetUpMigratesPriorSystemWriteableState(t *testing.T) {
	l, _ := makeLayout(t)
	factoryApp(t, l, "webui", "abc123")
	prevDir := fp.Join(l.SystemsRoot, "3", "appsWriteable", "webui")
	require.NoError(t, os.MkdirAll(prevDir, 0755))
	require.NoError(t, os.WriteFile(fp.Join(prevDir, "state.db"), []byte("data"), 0644))

	require.NoError(t, SetUp(l, "webui", 3))

	data, err := os.ReadFile(fp.Join(l.UnpackWriteable, "webui", "state.db"))
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}

func TestSetUpInvokesAppWritableUpdate(t *testing.T) {
	l, _ := makeLayout(t)
	factoryApp(t, l, "webui", "abc123")

	var gotApp, gotHash string
	AppWritableUpdate = func(appName, hash, unpackDir string) error {
		gotApp, gotHash = appName, hash
		return nil
	}
	defer func() { AppWritableUpdate = nil }()

	require.NoError(t, SetUp(l, "webui", -1))
	require.Equal(t, "webui", gotApp)
	require.Equal(t, "abc123", gotHash)
}
