// SPDX-License-Identifier: MPL-2.0

package wares

import "os"

const (
	// CacheDirEnv is the environment variable selecting the cache root.
	CacheDirEnv = "WARES_CACHE"

	// DefaultCacheDirName is the cache root used when CacheDirEnv is unset,
	// relative to the working directory.
	DefaultCacheDirName = ".wares_cache"
)

// DefaultCacheDir returns the cache root from WARES_CACHE, falling back to
// ".wares_cache".
func DefaultCacheDir() string {
	return DefaultCacheDirWith(os.Getenv)
}

// DefaultCacheDirWith is DefaultCacheDir with an injectable environment
// lookup, so tests need not mutate process state.
func DefaultCacheDirWith(getenv func(string) string) string {
	if dir := getenv(CacheDirEnv); dir != "" {
		return dir
	}
	return DefaultCacheDirName
}
