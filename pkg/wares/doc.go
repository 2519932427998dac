// SPDX-License-Identifier: MPL-2.0

// Package wares fetches git-hosted dependencies for native build systems.
//
// A project declares its dependencies in a TOML manifest (wares.toml). Each
// dependency names a repository and a selector: a semver range, a branch, a
// tag, a full ref, an explicit commit, or nothing at all (the default branch).
//
// # Pipeline
//
// A sync runs the following stages:
//   - [LoadManifest]: parse the manifest into [ManifestDependency] values
//   - [Resolver]: turn each [Specifier] into a [LockedDependency] by listing remote refs
//   - [LockFile]: persist resolutions as JSON (wares.lock) and merge them across callers
//   - [Installer]: materialize each locked dependency under a content-addressed cache key
//   - [Syncer]: decide between re-resolving and trusting the lock, then install
//
// A [Session] scopes several syncs of one build invocation so that independent
// sub-projects layer their dependencies into a single shared lock file.
//
// # Cache Layout
//
// Installs live directly under the cache root in directories named by
// [CacheKey], for example "gh-acme-foo-<commit>" or "gh-acme-foo-main-latest".
// Entries are never mutated after they are created; floating identities
// (default branch, named branch) are refreshed only by clearing the cache.
package wares
