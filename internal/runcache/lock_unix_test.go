// SPDX-License-Identifier: MPL-2.0

//go:build linux || darwin

package runcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/invowk/extpack/internal/clock"
	"github.com/invowk/extpack/internal/retry"
)

func TestTryLock_Exclusive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "k.lock")
	held, err := tryLock(path)
	if err != nil {
		t.Fatalf("tryLock() error = %v", err)
	}
	if _, err := tryLock(path); !errors.Is(err, errLocked) {
		t.Fatalf("second tryLock() error = %v, want errLocked", err)
	}
	held.Release()
	held.Release()

	again, err := tryLock(path)
	if err != nil {
		t.Fatalf("tryLock() after Release error = %v", err)
	}
	again.Release()
}

func TestObtain_LockTimeout(t *testing.T) {
	t.Parallel()

	lockDir := t.TempDir()
	clk := clock.NewAutoFake(time.Time{})
	c := New(Options{
		Enabled: true,
		LockDir: lockDir,
		Retry:   retry.Policy{MaxAttempts: 4, BaseBackoff: 10 * time.Millisecond},
		Clock:   clk,
	})

	// Another process holding the key's lock file.
	held, err := tryLock(lockPath(lockDir, Key(sampleID, "1")))
	if err != nil {
		t.Fatalf("tryLock() error = %v", err)
	}
	defer held.Release()

	var calls atomic.Int32
	_, err = c.Obtain(context.Background(), Request{Identity: sampleID, DesiredVersion: "1", Target: filepath.Join(t.TempDir(), "x.zip")}, writer(&calls, "x"))
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("Obtain() error = %v, want ErrLockTimeout", err)
	}
	if calls.Load() != 0 {
		t.Error("producer ran without the lock")
	}
	if got := len(clk.Slept()); got != 3 {
		t.Errorf("waited %d times, want 3", got)
	}
}

func TestObtain_CancelledWhileWaitingForLock(t *testing.T) {
	t.Parallel()

	lockDir := t.TempDir()
	c := New(Options{
		Enabled: true,
		LockDir: lockDir,
		Retry:   retry.Policy{MaxAttempts: 100, BaseBackoff: time.Hour},
		Clock:   clock.NewFake(time.Time{}),
	})
	held, err := tryLock(lockPath(lockDir, Key(sampleID, "1")))
	if err != nil {
		t.Fatalf("tryLock() error = %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var calls atomic.Int32
	_, err = c.Obtain(ctx, Request{Identity: sampleID, DesiredVersion: "1", Target: filepath.Join(t.TempDir(), "x.zip")}, writer(&calls, "x"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Obtain() error = %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, ErrLockTimeout) {
		t.Error("cancellation reported as a lock timeout")
	}
}

func TestLockFileCreated(t *testing.T) {
	t.Parallel()

	lockDir := filepath.Join(t.TempDir(), "nested", "locks")
	c := New(Options{Enabled: true, LockDir: lockDir})
	var calls atomic.Int32
	if _, err := c.Obtain(context.Background(), Request{Identity: sampleID, DesiredVersion: "1", Target: filepath.Join(t.TempDir(), "x.zip")}, writer(&calls, "x")); err != nil {
		t.Fatalf("Obtain() error = %v", err)
	}
	if _, err := os.Stat(lockPath(lockDir, Key(sampleID, "1"))); err != nil {
		t.Errorf("lock file missing: %v", err)
	}
}
