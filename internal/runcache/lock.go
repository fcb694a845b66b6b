// SPDX-License-Identifier: MPL-2.0

package runcache

import (
	"encoding/hex"
	"errors"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// errLocked is returned by tryLock when another holder has the lock.
var errLocked = errors.New("lock held elsewhere")

// lockPath names the lock file of key. Keys are hashed so that any
// coordinate string maps to a safe, fixed-length file name.
func lockPath(dir, key string) string {
	sum := blake3.Sum256([]byte(key))
	return filepath.Join(dir, hex.EncodeToString(sum[:16])+".lock")
}
