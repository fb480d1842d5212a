// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package sysdir inspects the systems root directory: enumerating systems,
// reading their index/status files, and purging everything but current.
package sysdir

import (
	"os"
	fp "path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/purecloudlabs/bootsel/pkg/fsutil"
	"github.com/purecloudlabs/bootsel/pkg/log"
	"github.com/purecloudlabs/bootsel/pkg/paths"
	"github.com/purecloudlabs/bootsel/pkg/status"
)

// ReadIndex returns the integer stored in <systemsRoot>/<name>/index.
func ReadIndex(systemsRoot, name string) (int, error) {
	path, err := paths.IndexPath(systemsRoot, name)
	if err != nil {
		return -1, err
	}
	data, err := fsutil.ReadFile(path, 128)
	if err != nil {
		return -1, errors.Wrapf(err, "reading index of %s", name)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return -1, errors.Wrapf(err, "parsing index of %s", name)
	}
	return n, nil
}

// GetStatus returns the status of the named system. A missing status file
// is the expected "new system" case and is logged at normal severity, not
// as an error.
func GetStatus(systemsRoot, name string) status.Status {
	path, err := paths.StatusPath(systemsRoot, name)
	if err != nil {
		log.Logf("sysdir: %s", err)
		return status.Status{Kind: status.KindBad}
	}
	data, err := fsutil.ReadFile(path, 128)
	if err != nil {
		if errors.Is(err, fsutil.ErrNotExist) {
			log.Logf("system %q has no status file, treating as new", name)
			return status.New()
		}
		log.Logf("reading status of %q: %s", name, err)
		return status.Status{Kind: status.KindBad}
	}
	s := status.Classify(strings.TrimSpace(string(data)))
	log.Logf("status of system %q is %q", name, s)
	return s
}

// isCandidateDir reports whether a directory entry should be considered a
// system at all: a directory, not dotfile-prefixed, not "unpack".
func isCandidateDir(e os.DirEntry, path string) bool {
	if strings.HasPrefix(e.Name(), ".") || e.Name() == paths.UnpackName {
		return false
	}
	if t := e.Type(); t&os.ModeSymlink == 0 {
		if t.IsDir() {
			return true
		}
		if t&os.ModeType == 0 {
			return false
		}
	}
	fi, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return fi.IsDir()
}

// NewestNonBad scans systemsRoot and returns the highest index among
// systems whose status is Good or Tryable, skipping "unpack", dotfiles, and
// Bad systems. Returns -1 if none qualify (including if systemsRoot doesn't
// exist yet).
func NewestNonBad(systemsRoot string) int {
	entries, err := os.ReadDir(systemsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			log.Logf("sysdir: no systems yet exist in %s", systemsRoot)
		} else {
			log.Logf("sysdir: reading %s: %s", systemsRoot, err)
		}
		return -1
	}
	highest := -1
	for _, e := range entries {
		path := fp.Join(systemsRoot, e.Name())
		if !isCandidateDir(e, path) {
			continue
		}
		idx, err := ReadIndex(systemsRoot, e.Name())
		if err != nil {
			log.Logf("sysdir: %s", err)
			continue
		}
		st := GetStatus(systemsRoot, e.Name())
		if st.IsBad() {
			log.Logf("system %q is bad, ignoring", e.Name())
			continue
		}
		if idx > highest {
			highest = idx
		}
	}
	return highest
}

// PurgeSiblings deletes every system directory under systemsRoot except
// "current", lazily unmounting first in case a previous run bind-mounted into
// it. Dot-prefixed entries and non-directories are left in place.
func PurgeSiblings(systemsRoot string) error {
	entries, err := os.ReadDir(systemsRoot)
	if err != nil {
		return errors.Wrapf(err, "reading %s", systemsRoot)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || e.Name() == paths.CurrentName {
			continue
		}
		path := fp.Join(systemsRoot, e.Name())
		if !isCandidateDir(e, path) {
			continue
		}
		fsutil.TryLazyUnmount(path)
		if err := fsutil.RecursiveDelete(path); err != nil {
			log.Logf("PurgeSiblings: deleting %s: %s", path, err)
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Logf("PurgeSiblings: removing %s: %s", path, err)
		}
	}
	return nil
}
