// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DefaultJobs bounds concurrent resolutions and installs.
const DefaultJobs = 4

// registryMu serializes registry read-modify-write cycles within the process.
var registryMu sync.Mutex

type (
	// SyncOptions are the inputs of one sync.
	SyncOptions struct {
		// ManifestPath is the wares.toml to read.
		ManifestPath string
		// LockPath is the wares.lock to read and write.
		LockPath string
		// CacheDir is the cache root; empty means DefaultCacheDir().
		CacheDir string
		// Groups are extra dependency groups on top of "dependencies".
		Groups []string
		// Force re-resolves even when the lock file is newer than the manifest.
		Force bool
		// First replaces the lock file instead of merging into it.
		First bool
		// Overrides maps dependency names to local directories used instead
		// of installing them.
		Overrides map[string]string
	}

	// SyncResult is the outcome of a sync.
	SyncResult struct {
		// Paths maps every requested dependency name to an absolute directory.
		Paths map[string]string
		// Updated is true when dependencies were re-resolved and the lock written.
		Updated bool
		// Lock is the lock file the install pass used.
		Lock *LockFile
	}

	// Syncer runs the resolve, lock and install pipeline.
	Syncer struct {
		resolver  *Resolver
		installer *Installer
		logger    *log.Logger
		jobs      int
		failFast  bool
		registry  bool
		now       func() time.Time
	}

	// SyncerOption configures a Syncer.
	SyncerOption func(*Syncer)
)

// WithLogger sets the logger used by the syncer and its installer.
func WithLogger(logger *log.Logger) SyncerOption {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJobs bounds concurrent resolutions and installs. Values below 1 are ignored.
func WithJobs(n int) SyncerOption {
	return func(s *Syncer) {
		if n > 0 {
			s.jobs = n
		}
	}
}

// WithFailFast cancels outstanding work at the first failure instead of
// collecting every dependency's error.
func WithFailFast(on bool) SyncerOption {
	return func(s *Syncer) { s.failFast = on }
}

// WithRegistry toggles recording installs in the cache registry.
func WithRegistry(on bool) SyncerOption {
	return func(s *Syncer) { s.registry = on }
}

// WithClock sets the time source for registry timestamps.
func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSyncer creates a syncer listing refs through lister and fetching
// through git.
func NewSyncer(lister RefLister, git Materializer, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		resolver: NewResolver(lister),
		logger:   log.New(io.Discard),
		jobs:     DefaultJobs,
		registry: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.installer = NewInstaller(git, s.logger)
	return s
}

// NeedsUpdate reports whether the lock file must be regenerated: when force
// is set, when the lock file is missing, or when the manifest was modified
// after it.
func NeedsUpdate(force bool, manifestPath, lockPath string) bool {
	if force {
		return true
	}
	lockInfo, err := os.Stat(lockPath)
	if err != nil {
		return true
	}
	manifestInfo, err := os.Stat(manifestPath)
	if err != nil {
		return false
	}
	return manifestInfo.ModTime().After(lockInfo.ModTime())
}

// Sync resolves (when needed) and installs the dependencies of the default
// group plus opts.Groups, returning their install paths.
//
// Errors for individual dependencies are joined unless the syncer is fail-fast.
func (s *Syncer) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if opts.CacheDir == "" {
		opts.CacheDir = DefaultCacheDir()
	}

	manifest, err := LoadManifest(opts.ManifestPath)
	if err != nil {
		return nil, err
	}
	deps, err := manifest.Select(opts.Groups)
	if err != nil {
		return nil, &Error{Kind: KindManifest, Op: "select dependency groups", Path: opts.ManifestPath, Err: err}
	}

	var lock *LockFile
	stale := NeedsUpdate(opts.Force, opts.ManifestPath, opts.LockPath)
	if !stale {
		lock, err = LoadLockFile(opts.LockPath)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if _, ok := lock.Get(dep.Name); !ok {
				s.logger.Info("lock file is missing a dependency, re-resolving", "dependency", dep.Name)
				stale = true
				break
			}
		}
	}

	if stale {
		lock, err = s.update(ctx, manifest.Version, deps, opts)
		if err != nil {
			return nil, err
		}
	}

	paths, err := s.install(ctx, lock, deps, opts)
	if err != nil {
		return nil, err
	}
	return &SyncResult{Paths: paths, Updated: stale, Lock: lock}, nil
}

// update resolves deps and writes the lock file, replacing it when
// opts.First is set and merging into it otherwise. It returns the lock
// file as written.
func (s *Syncer) update(ctx context.Context, version int64, deps []ManifestDependency, opts SyncOptions) (*LockFile, error) {
	fresh, err := s.resolveAll(ctx, deps)
	if err != nil {
		return nil, err
	}
	fresh.Version = version

	if opts.First {
		s.logger.Info("Writing " + filepath.Base(opts.LockPath))
		if err := fresh.Save(opts.LockPath); err != nil {
			return nil, err
		}
		return fresh, nil
	}

	existing, err := LoadLockFile(opts.LockPath)
	if errors.Is(err, fs.ErrNotExist) {
		existing = NewLockFile()
		existing.Version = version
	} else if err != nil {
		return nil, err
	}
	s.logger.Info("Merging " + filepath.Base(opts.LockPath))
	existing.Merge(fresh)
	if err := existing.Save(opts.LockPath); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Syncer) resolveAll(ctx context.Context, deps []ManifestDependency) (*LockFile, error) {
	locked := make([]LockedDependency, len(deps))
	errs := make([]error, len(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs)
	for i, dep := range deps {
		g.Go(func() error {
			s.logger.Debug("resolving", "dependency", dep.Name, "spec", dep.Spec.String())
			res, err := s.resolver.ResolveDependency(gctx, dep)
			if err != nil {
				if s.failFast {
					return err
				}
				errs[i] = err
				return nil
			}
			locked[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	lock := NewLockFile()
	for i, dep := range deps {
		lock.Insert(dep.Name, locked[i])
	}
	return lock, nil
}

func (s *Syncer) install(ctx context.Context, lock *LockFile, deps []ManifestDependency, opts SyncOptions) (map[string]string, error) {
	paths := make([]string, len(deps))
	installed := make([]bool, len(deps))
	errs := make([]error, len(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs)
	for i, dep := range deps {
		g.Go(func() error {
			path, fresh, err := s.installOne(gctx, lock, dep, opts)
			if err != nil {
				if s.failFast {
					return err
				}
				errs[i] = err
				return nil
			}
			paths[i] = path
			installed[i] = fresh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(deps))
	for i, dep := range deps {
		out[dep.Name] = paths[i]
	}
	if s.registry {
		if err := s.record(lock, deps, installed, opts.CacheDir); err != nil {
			s.logger.Warn("could not update cache registry", "err", err)
		}
	}
	return out, nil
}

// installOne returns the directory of dep and whether it came from the
// cache (rather than an override).
func (s *Syncer) installOne(ctx context.Context, lock *LockFile, dep ManifestDependency, opts SyncOptions) (string, bool, error) {
	if override, ok := opts.Overrides[dep.Name]; ok {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", false, &Error{Kind: KindIO, Op: "resolve override", Dependency: dep.Name, Path: override, Err: err}
		}
		s.logger.Debug("using override", "dependency", dep.Name, "path", abs)
		return abs, false, nil
	}

	locked, ok := lock.Get(dep.Name)
	if !ok {
		return "", false, &Error{Kind: KindLocking, Op: "look up lock entry", Dependency: dep.Name, Path: opts.LockPath, Err: errors.New("dependency is not in the lock file")}
	}
	path, err := s.installer.Install(ctx, locked, opts.CacheDir)
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) {
			werr.Dependency = dep.Name
		}
		return "", false, err
	}
	return path, true, nil
}

// record adds cache-backed installs to the registry in a single write.
func (s *Syncer) record(lock *LockFile, deps []ManifestDependency, installed []bool, cacheDir string) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	root, err := filepath.Abs(cacheDir)
	if err != nil {
		return err
	}
	reg, err := LoadRegistry(root)
	if err != nil {
		return err
	}
	changed := false
	now := s.now()
	for i, dep := range deps {
		if !installed[i] {
			continue
		}
		locked, _ := lock.Get(dep.Name)
		if reg.Record(dep.Name, locked, dep.Spec.String(), now) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return reg.Save(root)
}
