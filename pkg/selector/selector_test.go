// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package selector

import (
	"os"
	fp "path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/purecloudlabs/bootsel/internal/history"
	"github.com/purecloudlabs/bootsel/pkg/golden"
)

func scriptExiting(t *testing.T, code int) string {
	t.Helper()
	dir := t.TempDir()
	path := fp.Join(dir, "fake-supervisor.sh")
	content := "#!/bin/sh\nexit " + strconv.Itoa(code) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
	return path
}

func makeConfig(t *testing.T, supervisorExit int) Config {
	t.Helper()
	root := t.TempDir()
	systemsRoot := fp.Join(root, "legato", "systems")
	factoryRoot := fp.Join(root, "factory", "system")
	require.NoError(t, os.MkdirAll(fp.Join(factoryRoot, "config"), 0755))
	require.NoError(t, os.MkdirAll(fp.Join(factoryRoot, "apps"), 0755))
	require.NoError(t, os.MkdirAll(fp.Join(factoryRoot, "bin"), 0755))
	require.NoError(t, os.MkdirAll(fp.Join(factoryRoot, "lib"), 0755))
	require.NoError(t, os.MkdirAll(fp.Join(factoryRoot, "modules"), 0755))
	for _, f := range []string{"apps.cfg", "users.cfg", "modules.cfg"} {
		require.NoError(t, os.WriteFile(fp.Join(factoryRoot, "config", f), nil, 0644))
	}
	require.NoError(t, os.WriteFile(fp.Join(factoryRoot, "version"), []byte("1.0"), 0644))
	require.NoError(t, os.WriteFile(fp.Join(factoryRoot, "info.properties"), []byte("x=1"), 0644))

	history.SetRoot(fp.Join(root, "history"))

	return Config{
		SystemsRoot: systemsRoot,
		Golden: golden.Config{
			SystemsRoot: systemsRoot,
			AppStoreDir: fp.Join(root, "legato", "apps"),
			VersionMark: fp.Join(root, "legato", "installed_version"),
			Factory:     golden.Factory{Root: factoryRoot, AppStore: fp.Join(root, "factory", "apps")},
		},
		SupervisorPath: scriptExiting(t, supervisorExit),
		Ldconfig:       func() error { return nil },
		Reboot:         func(bool) {},
	}
}

func TestRunOneCycleInstallsGoldenOnFirstBoot(t *testing.T) {
	c := makeConfig(t, 0)
	_, done, err := RunOneCycle(c, SelectorState{})
	require.NoError(t, err)
	require.True(t, done)

	data, err := os.ReadFile(fp.Join(c.SystemsRoot, "current", "status"))
	require.NoError(t, err)
	require.Equal(t, "good", string(data))
}

func TestRunOneCycleRestartLoopsWithoutExit(t *testing.T) {
	c := makeConfig(t, 2)
	next, done, err := RunOneCycle(c, SelectorState{})
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, 2, next.LastExitCode)
}

func TestRunOneCycleFailureInvokesRebootHook(t *testing.T) {
	rebooted := false
	c := makeConfig(t, 17)
	c.Reboot = func(success bool) { rebooted = true }
	_, done, err := RunOneCycle(c, SelectorState{})
	require.NoError(t, err)
	require.False(t, done)
	require.True(t, rebooted)
}

func TestRunClean(t *testing.T) {
	c := makeConfig(t, 0)
	require.NoError(t, Run(c))
}
