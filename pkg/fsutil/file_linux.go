// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package fsutil

import (
	"fmt"
	"io"
	"os"
	fp "path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/u-root/u-root/pkg/mount"
	"golang.org/x/sys/unix"

	"github.com/purecloudlabs/bootsel/pkg/log"
)

// Copy a file. Assumes any dirs have already been created. Copies metadata.
func CopyFile(src, dest string, destFlags int) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return copyFileI(src, dest, info, destFlags)
}

//like CopyFile; use when file has already been stat'd.
func copyFileI(src, dest string, info os.FileInfo, destFlags int) error {
	out, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC|destFlags, 0666)
	if err != nil {
		return err
	}
	defer out.Close()
	in, err := os.OpenFile(src, os.O_RDONLY, 0400)
	if err != nil {
		return err
	}
	defer in.Close()
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if n < info.Size() {
		return fmt.Errorf("copied %d bytes, expected %d", n, info.Size())
	}
	err = out.Chmod(info.Mode())
	if err != nil {
		return err
	}
	sys := info.Sys().(*syscall.Stat_t)
	err = out.Chown(int(sys.Uid), int(sys.Gid))
	if err != nil {
		log.Logf("error %s setting uid/gid of %s\n", err, dest)
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}

// devOf returns the device id of the filesystem containing path, or 0 and an
// error if it cannot be determined.
func devOf(path string) (uint64, error) {
	var st syscall.Stat_t
	if err := syscall.Lstat(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Dev), nil
}

// RecursiveDelete removes path and its contents, but does not follow symlinks
// and refuses to cross into a different mounted filesystem - any subtree
// mounted from elsewhere is left alone rather than wiped out. It is not an
// error for path to not exist.
func RecursiveDelete(path string) error {
	rootDev, err := devOf(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	if err := recursiveDelete(path, rootDev); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Logf("RecursiveDelete: removing dir %s: %s", path, err)
	}
	return nil
}

func recursiveDelete(path string, rootDev uint64) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return errors.Wrapf(err, "reading dir %s", path)
	}
	for _, e := range entries {
		child := fp.Join(path, e.Name())
		isDir, err := entryIsDir(child, e)
		if err != nil {
			log.Logf("RecursiveDelete: %s, skipping", err)
			continue
		}
		if !isDir {
			if err := os.Remove(child); err != nil {
				log.Logf("RecursiveDelete: removing %s: %s", child, err)
			}
			continue
		}
		dev, err := devOf(child)
		if err != nil {
			log.Logf("RecursiveDelete: stat %s: %s", child, err)
			continue
		}
		if dev != rootDev {
			log.Logf("RecursiveDelete: %s is a separate mountpoint, not descending", child)
			continue
		}
		if err := recursiveDelete(child, rootDev); err != nil {
			log.Logf("RecursiveDelete: %s", err)
		}
		if err := os.Remove(child); err != nil {
			log.Logf("RecursiveDelete: removing dir %s: %s", child, err)
		}
	}
	return nil
}

// entryIsDir reports whether e is a directory, falling back to Lstat when the
// dirent's type is unknown (portable equivalent of the d_type/DT_UNKNOWN
// handling every readdir(3) caller needs).
func entryIsDir(path string, e os.DirEntry) (bool, error) {
	if t := e.Type(); t&os.ModeSymlink == 0 && t.IsDir() {
		return true, nil
	}
	if e.Type()&os.ModeSymlink != 0 {
		return false, nil
	}
	fi, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// Rename moves fromName to toName. If toName already exists (including as a
// non-empty directory), it is recursively deleted first and the rename is
// retried once.
func Rename(fromName, toName string) error {
	err := os.Rename(fromName, toName)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrExist) || isNotEmptyOrIsDir(err) {
		log.Logf("Rename: destination %s exists, deleting it", toName)
		if derr := RecursiveDelete(toName); derr != nil {
			log.Logf("Rename: deleting %s: %s", toName, derr)
		}
		if derr := os.Remove(toName); derr != nil && !os.IsNotExist(derr) {
			log.Logf("Rename: removing %s: %s", toName, derr)
		}
		return os.Rename(fromName, toName)
	}
	return err
}

func isNotEmptyOrIsDir(err error) bool {
	perr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	return perr.Err == syscall.ENOTEMPTY || perr.Err == syscall.EISDIR || perr.Err == syscall.EEXIST
}

// TryLazyUnmount attempts a lazy (detach) unmount of path, logging but not
// failing if path isn't a mountpoint at all.
func TryLazyUnmount(path string) {
	err := unix.Unmount(path, unix.MNT_DETACH)
	if err != nil && !errors.Is(err, unix.EINVAL) {
		log.Logf("lazy unmount of %s: %s", path, err)
	}
}

// BindMountIfNeeded bind-mounts src at dest unless dest is already a
// mountpoint.
func BindMountIfNeeded(src, dest string) error {
	mounted, err := isMountpoint(dest)
	if err != nil {
		return err
	}
	if mounted {
		return nil
	}
	if _, err := mount.Mount(src, dest, "", "", unix.MS_BIND); err != nil {
		return errors.Wrapf(err, "bind mounting %s at %s", src, dest)
	}
	return nil
}

func isMountpoint(path string) (bool, error) {
	data, err := os.ReadFile("/proc/self/mountinfo")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 5 && fields[4] == path {
			return true, nil
		}
	}
	return false, nil
}

// CopyTree recursively copies src to dest, preserving metadata. A symlink
// whose name already exists in dest is left as it is. If progress
// is non-nil, it is called with the cumulative byte count every time the
// running total crosses a 64MB boundary, and a human-readable running total
// is logged at the same cadence - mirrors the progress-callback pattern used
// for imaging large disk images.
func CopyTree(src, dest string, progress func(copied int64)) error {
	var copied int64
	const logEvery = 64 * 1024 * 1024
	var lastLogged int64

	return fp.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := fp.Rel(src, path)
		if err != nil {
			return err
		}
		destPath := fp.Join(dest, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := os.MkdirAll(destPath, info.Mode()); err != nil && !os.IsExist(err) {
				return errors.Wrapf(err, "creating %s", destPath)
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.Symlink(target, destPath); err != nil && !os.IsExist(err) {
				return err
			}
			return nil
		}
		if err := copyFileI(path, destPath, info, 0); err != nil {
			return errors.Wrapf(err, "copying %s", path)
		}
		copied += info.Size()
		if copied-lastLogged >= logEvery {
			log.Logf("CopyTree: %s copied so far", humanize.Bytes(uint64(copied)))
			lastLogged = copied
			if progress != nil {
				progress(copied)
			}
		}
		return nil
	})
}
