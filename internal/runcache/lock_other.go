// SPDX-License-Identifier: MPL-2.0

//go:build !linux && !darwin

package runcache

import (
	"errors"
	"os"
	"time"
)

// errFlockUnavailable makes the cache fall back to its in-process mutex.
var errFlockUnavailable = errors.New("flock not available on this platform")

// fileLock is the stub used where flock is unavailable. Release is a no-op.
type fileLock struct{}

func tryLock(string) (*fileLock, error) {
	return nil, errFlockUnavailable
}

// Release is a no-op.
func (l *fileLock) Release() {}

// replaceWithLink removes target and links it to prev, preferring a symbolic
// link and falling back to a hard link where symlinks need privileges.
func replaceWithLink(prev, target string) error {
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Symlink(prev, target); err != nil {
		return os.Link(prev, target)
	}
	return nil
}

// setModTime stamps path. Link timestamps cannot be set portably here, so
// the link target is stamped instead.
func setModTime(path string, t time.Time, _ bool) error {
	return os.Chtimes(path, t, t)
}
