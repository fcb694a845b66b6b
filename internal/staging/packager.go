// SPDX-License-Identifier: MPL-2.0

package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/invowk/extpack/internal/runcache"
	"github.com/invowk/extpack/pkg/coords"
	"github.com/invowk/extpack/pkg/rewrite"
	"github.com/invowk/extpack/pkg/versionpolicy"
)

// Outcome says what happened to one artifact in one staging area.
type Outcome string

const (
	OutcomeRewritten     Outcome = "rewritten"
	OutcomePassedThrough Outcome = "passed-through"
	OutcomeLinked        Outcome = "linked"
	OutcomeExcluded      Outcome = "excluded"
	OutcomeIgnored       Outcome = "ignored"
	OutcomeDuplicate     Outcome = "duplicate"
)

type (
	// Artifact is a provisioned artifact: a local file and its identity.
	Artifact struct {
		Path     string
		Identity coords.Identity
	}

	// Record is the result of staging one artifact into one area.
	Record struct {
		Artifact      coords.Identity  `toml:"artifact" yaml:"artifact"`
		Source        string           `toml:"source" yaml:"source"`
		Target        string           `toml:"target,omitempty" yaml:"target,omitempty"`
		Version       string           `toml:"version,omitempty" yaml:"version,omitempty"`
		Outcome       Outcome          `toml:"outcome" yaml:"outcome"`
		ExtensionJars int              `toml:"extension_jars" yaml:"extension_jars"`
		LinkedTo      string           `toml:"linked_to,omitempty" yaml:"linked_to,omitempty"`
		Digest        string           `toml:"digest,omitempty" yaml:"digest,omitempty"`
		Changes       []rewrite.Change `toml:"changes,omitempty" yaml:"changes,omitempty"`
	}

	// Packager stages artifacts. The zero value is not usable; set at least
	// StagingDirs and Rewrite.
	Packager struct {
		// StagingDirs are the staging areas every artifact is placed into.
		StagingDirs []string
		// Rewrite configures the version rewrite of each archive.
		Rewrite rewrite.Options
		// Versions computes the staging version of an artifact.
		Versions versionpolicy.BuildNumber
		// ProcessSnapshotVersions collapses timestamped snapshot versions.
		ProcessSnapshotVersions bool
		// IncludeVersion puts the version in the staged file name.
		IncludeVersion bool
		// Filter selects which artifacts are staged.
		Filter coords.Filter
		// Cache memoizes rewrites across the run. Nil means a fresh disabled cache.
		Cache *runcache.Cache
		// Logger receives staging decisions at Info level.
		Logger *log.Logger
		// Jobs bounds StageAll concurrency. Zero or less means one.
		Jobs int

		once sync.Once
		mu   sync.Mutex
		seen map[string]bool
	}
)

func (p *Packager) init() {
	p.once.Do(func() {
		p.seen = make(map[string]bool)
		if p.Cache == nil {
			p.Cache = runcache.New(runcache.Options{Enabled: false, Logger: p.Logger})
		}
		if p.Logger == nil {
			p.Logger = log.New(io.Discard)
		}
	})
}

// Stage places one artifact into every staging area and returns one record
// per area. Excluded, ignored and duplicate artifacts yield a single record
// with no target.
func (p *Packager) Stage(ctx context.Context, a Artifact) ([]Record, error) {
	p.init()
	id := a.Identity
	skip := func(o Outcome) []Record {
		return []Record{{Artifact: id, Source: a.Path, Outcome: o}}
	}

	switch {
	case p.Filter.IsExcluded(id):
		p.Logger.Infof("Skipping %s because its classifier is excluded", id)
		return skip(OutcomeExcluded), nil
	case !p.Filter.IsProcessedGroup(id):
		p.Logger.Debugf("Skipping %s, group %s does not carry extensions", id, id.Group)
		return skip(OutcomeIgnored), nil
	case !p.markSeen(id):
		return skip(OutcomeDuplicate), nil
	}

	info, err := os.Stat(a.Path)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", id, err)
	}
	version := p.Versions.ArtifactVersion(id.Version, p.ProcessSnapshotVersions)
	fileName := coords.FileName(id.Artifact, version, id.Classifier, id.Type, p.IncludeVersion, false)

	records := make([]Record, 0, len(p.StagingDirs))
	for _, dir := range p.StagingDirs {
		rec, err := p.stageInto(ctx, a, coords.StagingPath(dir, version, id.Artifact, fileName), version, info.ModTime())
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *Packager) stageInto(ctx context.Context, a Artifact, target, version string, modTime time.Time) (Record, error) {
	id := a.Identity
	rec := Record{Artifact: id, Source: a.Path, Version: version}

	var rewritten rewrite.Result
	res, err := p.Cache.Obtain(ctx, runcache.Request{
		Identity:       id,
		DesiredVersion: version,
		Target:         target,
		ModTime:        modTime,
	}, func(ctx context.Context, target string) error {
		var err error
		rewritten, err = rewrite.RewriteFile(ctx, a.Path, target, id, p.Rewrite)
		return err
	})
	if err != nil {
		return Record{}, fmt.Errorf("stage %s: %w", id, err)
	}

	rec.Target = res.Path
	switch {
	case res.LinkedTo != "":
		rec.Outcome = OutcomeLinked
		rec.LinkedTo = res.LinkedTo
		p.Logger.Infof("Linked %s to %s", res.Path, res.LinkedTo)
	case rewritten.PassedThrough:
		rec.Outcome = OutcomePassedThrough
		p.Logger.Infof("Copied %s to %s", id, res.Path)
	default:
		rec.Outcome = OutcomeRewritten
		rec.ExtensionJars = rewritten.ExtensionJars
		rec.Changes = rewritten.Changes
		p.Logger.Infof("Rewrote %d extension jar(s) of %s into %s", rewritten.ExtensionJars, id, res.Path)
	}

	if rec.Digest, err = fileDigest(res.Path); err != nil {
		return Record{}, fmt.Errorf("digest %s: %w", res.Path, err)
	}
	return rec, nil
}

// StageAll stages artifacts concurrently, at most Jobs at a time, and returns
// the records in input order. The first failure cancels the remaining work.
func (p *Packager) StageAll(ctx context.Context, artifacts []Artifact) ([]Record, error) {
	p.init()
	results := make([][]Record, len(artifacts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Jobs, 1))
	for i, a := range artifacts {
		g.Go(func() error {
			recs, err := p.Stage(ctx, a)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []Record
	for _, recs := range results {
		records = append(records, recs...)
	}
	return records, nil
}

// markSeen records id and reports whether it was new.
func (p *Packager) markSeen(id coords.Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := id.String()
	if p.seen[key] {
		return false
	}
	p.seen[key] = true
	return true
}

func fileDigest(path string) (digest string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return rewrite.Digest(f)
}
