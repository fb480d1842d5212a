// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command bootstart replaces the sh script /init in an initramfs, selecting
// and running the writable system image. See
// github.com/purecloudlabs/bootsel/pkg/driver for details.
package main

import (
	"os"
	fp "path/filepath"

	"github.com/purecloudlabs/bootsel/internal/history"
	"github.com/purecloudlabs/bootsel/pkg/driver"
	"github.com/purecloudlabs/bootsel/pkg/golden"
	_ "github.com/purecloudlabs/bootsel/pkg/hw/power" // sets log.Fatal to reboot
	"github.com/purecloudlabs/bootsel/pkg/log"
	"github.com/purecloudlabs/bootsel/pkg/log/flags"
	"github.com/purecloudlabs/bootsel/pkg/metrics"
	"github.com/purecloudlabs/bootsel/pkg/selector"
)

// in any binary with main.buildId string, it is set at compile time to $BUILD_INFO
var buildId string

const (
	defaultFactoryRoot = "/mnt/legato/system"
	defaultAppStoreDir = "/legato/apps"
	defaultSystemsRoot = "/legato/systems"
	defaultVersionMark = "/legato/installed_version"
	defaultHomeDir     = "/home"
	defaultHistoryDir  = "/legato/history"
)

func env(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.AddConsoleLog(flags.NA)
	log.Logf("buildId: %s", buildId)

	factoryRoot := env("BOOTSEL_FACTORY_ROOT", defaultFactoryRoot)
	systemsRoot := env("BOOTSEL_SYSTEMS_ROOT", defaultSystemsRoot)

	history.SetRoot(env("BOOTSEL_HISTORY_DIR", defaultHistoryDir))

	cfg := driver.Config{
		FactoryRoot: factoryRoot,
		SystemsRoot: systemsRoot,
		SystemsDev:  os.Getenv("BOOTSEL_SYSTEMS_DEV"),
		HomeDir:     env("BOOTSEL_HOME_DIR", defaultHomeDir),
		HomeDev:     os.Getenv("BOOTSEL_HOME_DEV"),
		Selector: selector.Config{
			SystemsRoot: systemsRoot,
			Golden: golden.Config{
				SystemsRoot: systemsRoot,
				AppStoreDir: env("BOOTSEL_APP_STORE", defaultAppStoreDir),
				VersionMark: env("BOOTSEL_VERSION_MARK", defaultVersionMark),
				Factory: golden.Factory{
					Root:     factoryRoot,
					AppStore: fp.Join(factoryRoot, "apps"),
				},
				LegacyWriteable: env("BOOTSEL_LEGACY_WRITEABLE", "/opt/legato"),
			},
			SupervisorPath: env("BOOTSEL_SUPERVISOR_PATH", fp.Join(systemsRoot, "current", "bin", "supervisor")),
			MetricsPath:    env("BOOTSEL_METRICS_PATH", metrics.DefaultPath),
		},
	}

	if err := driver.Run(cfg); err != nil {
		log.Fatalf("bootstart: %s", err)
	}
}
