// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package metrics collects selector/installer counters and flushes them to
// a textfile, since no HTTP listener exists this early in boot.
package metrics

import (
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Collectors for the selector and golden installer.
var (
	CyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bootsel_cycles_total",
		Help: "Cumulative number of selector cycles run.",
	})
	GoldenInstallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bootsel_golden_installs_total",
		Help: "Cumulative number of golden installs performed.",
	})
	RebootsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bootsel_reboots_total",
		Help: "Cumulative number of reboots requested by the selector.",
	})
	CurrentTries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bootsel_current_tries",
		Help: "Try count of the current system's status as of the last cycle.",
	})
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(CyclesTotal, GoldenInstallsTotal, RebootsTotal, CurrentTries)
}

// DefaultPath is the textfile-collector path the node exporter convention
// expects metrics to be dropped at.
const DefaultPath = "/var/lib/bootsel/metrics.prom"

// Flush writes the current values of all registered collectors to path in
// the Prometheus text exposition format, atomically via a temp file rename.
func Flush(path string) error {
	mfs, err := registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	tmp, err := os.CreateTemp(os.TempDir(), "bootsel-metrics-*.prom")
	if err != nil {
		return errors.Wrap(err, "creating temp metrics file")
	}
	defer os.Remove(tmp.Name())

	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(tmp, mf); err != nil {
			tmp.Close()
			return errors.Wrap(err, "encoding metrics")
		}
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp metrics file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "renaming metrics file to %s", path)
	}
	return nil
}
