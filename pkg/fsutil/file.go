// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package fsutil contains filesystem primitives shared by the system
// selector, the golden-image installer, and the app store: file copy with
// metadata preservation, atomic rename, recursive delete bounded to a single
// mountpoint, and bind-mount helpers.
package fsutil

import (
	"io"
	"io/ioutil"
	"os"
	fp "path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/purecloudlabs/bootsel/pkg/log"
)

// FileExists reports whether path exists, treating any stat error other
// than "not exist" as if the file were absent - callers use this only for
// best-effort marker-file checks, never as a substitute for a real error
// check on a path they are about to act on.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Renames old in same dir, using newPfx + random suffix (via os.CreateTemp)
func RenameUnique(old, newPfx string) (success bool) {
	f, err := ioutil.TempFile(fp.Dir(old), newPfx)
	if err != nil {
		log.Logf("error %s creating temp file for %s", err, old)
		err = os.Remove(old)
		if err != nil {
			log.Logf("error %s deleting %s", err, old)
		}
		return false
	}
	newname := f.Name()
	f.Close()
	err = os.Remove(newname)
	if err != nil {
		log.Logf("error %s deleting temp file %s", err, newname)
	}
	err = os.Rename(old, newname)
	if err != nil {
		log.Logf("error %s renaming %s to %s", err, old, newname)
	}
	return err == nil
}

// WaitFor waits for a file to appear or times out. Returns true if file appears,
// false otherwise. Sleeps .1s between checks.
func WaitFor(path string, timeout time.Duration) (found bool) {
	stop := make(chan struct{})
	go func() {
		time.Sleep(timeout)
		close(stop)
	}()
	return WaitForChan(path, stop)
}

// WaitForChan is like WaitFor, but returns no later than when stop chan is closed
func WaitForChan(path string, stop chan struct{}) (found bool) {
	for {
		select {
		case <-stop:
			return
		case <-time.After(100 * time.Millisecond):
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			found = true
			break
		}
	}
	return
}

// WriteFile writes data to path atomically: write to a temp file in the same
// dir, fsync, then rename over the destination.
func WriteFile(path string, data []byte, mode os.FileMode) error {
	tmp, err := ioutil.TempFile(fp.Dir(path), fp.Base(path)+".tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err = os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ErrNotExist wraps os.ErrNotExist so callers of ReadFile can distinguish
// "file absent" from other read failures without sniffing os.IsNotExist
// themselves.
var ErrNotExist = errors.New("file does not exist")

// ReadFile reads at most cap bytes of path. Returns ErrNotExist (wrapped)
// when the file is absent, so callers can tell a missing status/index file
// from a real I/O error.
func ReadFile(path string, cap int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotExist, path)
		}
		return nil, err
	}
	defer f.Close()
	return ioutil.ReadAll(io.LimitReader(f, cap))
}
