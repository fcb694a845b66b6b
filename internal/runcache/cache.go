// SPDX-License-Identifier: MPL-2.0

package runcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/maps"

	"github.com/invowk/extpack/internal/clock"
	"github.com/invowk/extpack/internal/retry"
	"github.com/invowk/extpack/pkg/coords"
)

// lockDirName is the directory, below the lock root, holding per-key lock files.
const lockDirName = "extpack-locks"

// ErrLockTimeout is returned when the lock for a key could not be acquired
// within the retry budget.
var ErrLockTimeout = errors.New("timed out waiting for artifact lock")

// DefaultRetry is the lock acquisition budget used when Options.Retry is zero.
var DefaultRetry = retry.Policy{
	MaxAttempts: 50,
	BaseBackoff: 100 * time.Millisecond,
	MaxBackoff:  2 * time.Second,
}

type (
	// Request asks for the rewritten form of one artifact at Target.
	Request struct {
		Identity coords.Identity
		// DesiredVersion is the version the artifact is published under. It is
		// part of the cache key.
		DesiredVersion string
		Target         string
		// ModTime is stamped on Target once it exists. Zero leaves it alone.
		ModTime time.Time
	}

	// Producer writes the artifact to target.
	Producer func(ctx context.Context, target string) error

	// Result describes how a request was satisfied.
	Result struct {
		Path string
		// LinkedTo is the earlier output Path now links to. Empty when the
		// producer ran.
		LinkedTo string
	}

	// Options configures a Cache.
	Options struct {
		// Enabled turns memoization on. When false every request runs its
		// producer and nothing is recorded.
		Enabled bool
		// LockDir holds the cross-process lock files. Empty means
		// $XDG_RUNTIME_DIR/extpack-locks, or the same below os.TempDir().
		LockDir string
		Retry   retry.Policy
		Clock   clock.Clock
		Logger  *log.Logger
	}

	// Cache maps (identity, version) keys to produced output paths.
	Cache struct {
		opts    Options
		lockDir string

		mu      sync.Mutex
		entries map[string]string
		keyMu   map[string]*sync.Mutex
	}
)

// New creates an empty cache for one run.
func New(opts Options) *Cache {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetry
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	lockDir := opts.LockDir
	if lockDir == "" {
		lockDir = lockDirWith(os.Getenv)
	}
	return &Cache{
		opts:    opts,
		lockDir: lockDir,
		entries: make(map[string]string),
		keyMu:   make(map[string]*sync.Mutex),
	}
}

// Key returns the cache key of an (identity, version) pair.
func Key(id coords.Identity, desiredVersion string) string {
	return id.String() + "@" + desiredVersion
}

// Obtain satisfies req, running produce only if the key has not been
// produced before in this run.
func (c *Cache) Obtain(ctx context.Context, req Request, produce Producer) (Result, error) {
	target, err := filepath.Abs(req.Target)
	if err != nil {
		return Result{}, fmt.Errorf("resolve target %s: %w", req.Target, err)
	}
	if !c.opts.Enabled {
		return c.produce(ctx, req, target, produce)
	}

	key := Key(req.Identity, req.DesiredVersion)
	mu := c.keyLock(key)
	mu.Lock()
	defer mu.Unlock()

	lock, err := c.acquire(ctx, key)
	if err != nil {
		return Result{}, err
	}
	defer lock.Release()

	prev, ok := c.Lookup(req.Identity, req.DesiredVersion)
	if !ok {
		res, err := c.produce(ctx, req, target, produce)
		if err != nil {
			return Result{}, err
		}
		c.mu.Lock()
		c.entries[key] = target
		c.mu.Unlock()
		return res, nil
	}

	if prev == target {
		c.opts.Logger.Debugf("%s already produced at %s", key, target)
		return Result{Path: target}, c.stamp(target, req.ModTime, false)
	}
	c.opts.Logger.Debugf("linking %s to earlier output %s", target, prev)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}
	if err := replaceWithLink(prev, target); err != nil {
		return Result{}, fmt.Errorf("link %s to %s: %w", target, prev, err)
	}
	return Result{Path: target, LinkedTo: prev}, c.stamp(target, req.ModTime, true)
}

func (c *Cache) produce(ctx context.Context, req Request, target string, produce Producer) (Result, error) {
	if err := produce(ctx, target); err != nil {
		return Result{}, err
	}
	return Result{Path: target}, c.stamp(target, req.ModTime, false)
}

func (c *Cache) stamp(target string, t time.Time, link bool) error {
	if t.IsZero() {
		return nil
	}
	if err := setModTime(target, t, link); err != nil {
		return fmt.Errorf("set modification time of %s: %w", target, err)
	}
	return nil
}

// Lookup returns the output recorded for an (identity, version) pair.
func (c *Cache) Lookup(id coords.Identity, desiredVersion string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[Key(id, desiredVersion)]
	return p, ok
}

// Keys returns every recorded key in sorted order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := maps.Keys(c.entries)
	slices.Sort(keys)
	return keys
}

// Len returns the number of recorded keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	mu, ok := c.keyMu[key]
	if !ok {
		mu = &sync.Mutex{}
		c.keyMu[key] = mu
	}
	return mu
}

// acquire takes the cross-process lock for key, retrying with backoff while
// another holder has it.
func (c *Cache) acquire(ctx context.Context, key string) (*fileLock, error) {
	if err := os.MkdirAll(c.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir %s: %w", c.lockDir, err)
	}
	path := lockPath(c.lockDir, key)

	var lock *fileLock
	err := retry.Do(ctx, c.opts.Clock, c.opts.Retry, func(attempt int) (bool, error) {
		l, err := tryLock(path)
		switch {
		case err == nil:
			lock = l
			return false, nil
		case errors.Is(err, errLocked):
			if attempt == 0 {
				c.opts.Logger.Debugf("waiting for lock on %s", key)
			}
			return true, err
		default:
			return false, err
		}
	})
	switch {
	case err == nil:
		return lock, nil
	case errors.Is(err, errFlockUnavailable):
		c.opts.Logger.Debugf("file locks unavailable, %s serialized in-process only", key)
		return nil, nil
	case errors.Is(err, retry.ErrExhausted):
		return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, err)
	default:
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
}

// lockDirWith returns the lock directory using the provided getenv function.
func lockDirWith(getenv func(string) string) string {
	dir := getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, lockDirName)
}
