// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// refCacheSize bounds the number of remotes whose ref listings a session keeps.
const refCacheSize = 256

type (
	// Session scopes the syncs of one build invocation, typically one per
	// configured project tree. The first Sync of a session replaces the lock
	// file; once any Sync re-resolved, later ones re-resolve too and merge,
	// so each sub-project adds its dependencies to the shared lock without
	// replacing earlier resolutions.
	//
	// Syncs on one session are serialized.
	Session struct {
		mu      sync.Mutex
		syncer  *Syncer
		calls   int
		updated bool
	}

	// cachingLister memoizes successful ref listings per URL.
	cachingLister struct {
		next  RefLister
		cache *lru.Cache[GitURL, []RemoteRef]
	}
)

// NewSession creates a session whose syncs share one memo of remote ref
// listings.
func NewSession(lister RefLister, git Materializer, opts ...SyncerOption) (*Session, error) {
	cache, err := lru.New[GitURL, []RemoteRef](refCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create ref cache: %w", err)
	}
	memo := &cachingLister{next: lister, cache: cache}
	return &Session{syncer: NewSyncer(memo, git, opts...)}, nil
}

// Sync runs one sync. First and Force in opts are derived from the
// session's history: First is set until a sync succeeds, and Force is
// added once an earlier call re-resolved.
func (s *Session) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts.First = s.calls == 0
	opts.Force = opts.Force || s.updated

	res, err := s.syncer.Sync(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.calls++
	if res.Updated {
		s.updated = true
	}
	return res, nil
}

// Calls returns how many syncs of the session succeeded.
func (s *Session) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Updated reports whether any sync of the session re-resolved.
func (s *Session) Updated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

func (c *cachingLister) ListRefs(ctx context.Context, url GitURL) ([]RemoteRef, error) {
	if refs, ok := c.cache.Get(url); ok {
		return refs, nil
	}
	refs, err := c.next.ListRefs(ctx, url)
	if err != nil {
		return nil, err
	}
	c.cache.Add(url, refs)
	return refs, nil
}
