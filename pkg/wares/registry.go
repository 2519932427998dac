// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// RegistryFileName is the cache registry file kept in the cache root.
const RegistryFileName = "wares-registry.toml"

const registryVersion = 1

type (
	// RegistryEntry records one identity of a dependency present in the cache.
	RegistryEntry struct {
		Key    string `toml:"key"`
		URL    string `toml:"url"`
		Kind   string `toml:"kind"`
		Branch string `toml:"branch,omitempty"`
		Commit string `toml:"commit,omitempty"`
		// Selector is the manifest selector that produced the identity, when known.
		Selector    string    `toml:"selector,omitempty"`
		InstalledAt time.Time `toml:"installed_at"`
	}

	// Registry is an advisory index of cache entries keyed by dependency name
	// and resolved identity. The cache directory names alone are enough to
	// locate installs; the registry adds provenance for listing and pruning.
	Registry struct {
		Version      int                        `toml:"registry_version"`
		Dependencies map[string][]RegistryEntry `toml:"dependencies"`
	}
)

func lockKindName(k LockKind) string {
	switch k {
	case LockBranch:
		return "branch"
	case LockCommit:
		return "commit"
	default:
		return "latest"
	}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{Version: registryVersion, Dependencies: make(map[string][]RegistryEntry)}
}

// LoadRegistry reads the registry of cacheRoot. A missing file yields an
// empty registry.
func LoadRegistry(cacheRoot string) (*Registry, error) {
	path := filepath.Join(cacheRoot, RegistryFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, ioError("read cache registry", path, err)
	}

	reg := NewRegistry()
	if err := toml.Unmarshal(data, reg); err != nil {
		return nil, &Error{Kind: KindSerialization, Op: "decode cache registry", Path: path, Err: err}
	}
	if reg.Dependencies == nil {
		reg.Dependencies = make(map[string][]RegistryEntry)
	}
	return reg, nil
}

// Record adds an entry for (name, dep) unless one with the same cache key
// exists. It reports whether the registry changed.
func (r *Registry) Record(name string, dep LockedDependency, selector string, at time.Time) bool {
	key := CacheKey(dep)
	for _, e := range r.Dependencies[name] {
		if e.Key == key {
			return false
		}
	}
	r.Dependencies[name] = append(r.Dependencies[name], RegistryEntry{
		Key:         key,
		URL:         string(dep.URL),
		Kind:        lockKindName(dep.ID.Kind),
		Branch:      dep.ID.Branch,
		Commit:      string(dep.ID.Commit),
		Selector:    selector,
		InstalledAt: at.UTC(),
	})
	return true
}

// Lookup returns the entry of name whose identity equals id.
func (r *Registry) Lookup(name string, id LockedDependencyID) (RegistryEntry, bool) {
	for _, e := range r.Dependencies[name] {
		if e.Kind == lockKindName(id.Kind) && e.Branch == id.Branch && e.Commit == string(id.Commit) {
			return e, true
		}
	}
	return RegistryEntry{}, false
}

// Names returns the recorded dependency names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Dependencies))
	for name := range r.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prune drops entries whose cache directory no longer exists under
// cacheRoot and returns how many were removed.
func (r *Registry) Prune(cacheRoot string) int {
	removed := 0
	for name, entries := range r.Dependencies {
		kept := entries[:0]
		for _, e := range entries {
			if isDir(filepath.Join(cacheRoot, e.Key)) {
				kept = append(kept, e)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(r.Dependencies, name)
		} else {
			r.Dependencies[name] = kept
		}
	}
	return removed
}

// Save writes the registry into cacheRoot atomically.
func (r *Registry) Save(cacheRoot string) error {
	path := filepath.Join(cacheRoot, RegistryFileName)
	data, err := toml.Marshal(r)
	if err != nil {
		return &Error{Kind: KindSerialization, Op: "encode cache registry", Path: path, Err: err}
	}
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return ioError("create cache root", cacheRoot, err)
	}
	return writeFileAtomic(path, data, "cache registry")
}
