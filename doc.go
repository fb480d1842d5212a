// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package bootsel implements a boot-time system selector and rollback
// state machine: it promotes a factory-supplied ("golden") system image
// into a writable area on first boot or after a factory upgrade, tracks
// per-system boot success across reboots, and rolls back to an older
// system after repeated failures.
//
// cmd/bootstart is the entry point run as /init from an initramfs.
// cmd/bootsel-ctl is a read-only inspector for the on-disk selection
// state. pkg/driver wires the mount/daemonization setup into
// pkg/selector's decision loop, which calls pkg/golden to install the
// factory image (via pkg/appstage for per-app staging) and
// pkg/supervisor to run the selected system.
package bootsel
