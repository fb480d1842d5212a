// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package kmsg

import (
	"strings"

	"golang.org/x/sys/unix"
)

// Tail returns up to the last n lines of the kernel ring buffer, suitable for
// dumping to the console when a fatal error needs more context than the
// process's own log can provide. Uses klogctl(2) rather than reading
// /dev/kmsg, since the latter is a stream of structured records and this
// only wants the formatted text.
func Tail(n int) string {
	buf := make([]byte, 256*1024)
	sz, err := unix.Klogctl(3 /* SYSLOG_ACTION_READ_ALL */, buf)
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(buf[:sz]), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
