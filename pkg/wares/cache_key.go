// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"regexp"
	"strings"
	"unicode"
)

const unsafeFilenameChars = `/\<>:"|?*`

var genericRepoURLPattern = regexp.MustCompile(`^(?:[A-Za-z][A-Za-z0-9+.-]*://)?(?:www\.)?([A-Za-z0-9_./-]+?)\.git/?$`)

// CacheKey returns the directory name under the cache root for dep.
//
//	https://github.com/acme/foo.git @ main    -> gh-acme-foo-main-latest
//	https://gitlab.com/acme/foo.git @ default -> gl-acme-foo-latest
//	https://example.org/x/y.git     @ <oid>   -> example.org_x_y-<oid>
//
// The result is deterministic and safe to use as a single path component.
func CacheKey(dep LockedDependency) string {
	return repoKey(dep.URL) + "-" + idSuffix(dep.ID)
}

func repoKey(u GitURL) string {
	if provider, owner, repo, ok := hostedRepo(u); ok {
		prefix := "gh"
		if provider == ProviderGitLab {
			prefix = "gl"
		}
		return prefix + "-" + owner + "-" + repo
	}
	if m := genericRepoURLPattern.FindStringSubmatch(string(u)); m != nil {
		return SanitizeFilename(m[1])
	}
	return SanitizeFilename(string(u))
}

func idSuffix(id LockedDependencyID) string {
	switch id.Kind {
	case LockBranch:
		return SanitizeFilename(id.Branch) + "-latest"
	case LockCommit:
		return string(id.Commit)
	default:
		return "latest"
	}
}

// SanitizeFilename replaces control characters and characters that are
// reserved in file names on common platforms with '_'.
func SanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(unsafeFilenameChars, r) {
			return '_'
		}
		return r
	}, s)
}
