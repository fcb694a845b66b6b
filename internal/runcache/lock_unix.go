// SPDX-License-Identifier: MPL-2.0

//go:build linux || darwin

package runcache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// errFlockUnavailable is never returned on platforms with flock.
var errFlockUnavailable = errors.New("flock not available on this platform")

// fileLock holds an exclusive flock. The kernel releases it if the process
// dies, so an orphaned zero-byte lock file is harmless.
type fileLock struct {
	file *os.File
}

// tryLock takes a non-blocking exclusive flock on path.
func tryLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, errLocked
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &fileLock{file: f}, nil
}

// Release unlocks and closes the lock file. It is safe on a nil lock and
// safe to call more than once.
func (l *fileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}

// replaceWithLink removes target and makes it a symbolic link to prev.
func replaceWithLink(prev, target string) error {
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(prev, target)
}

// setModTime sets the access and modification time of path. For a link the
// link itself is stamped, not the file it points to.
func setModTime(path string, t time.Time, link bool) error {
	if !link {
		return os.Chtimes(path, t, t)
	}
	ts := []unix.Timespec{unix.NsecToTimespec(t.UnixNano()), unix.NsecToTimespec(t.UnixNano())}
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, unix.AT_SYMLINK_NOFOLLOW)
}
