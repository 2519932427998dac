// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	// ErrInvalidVersionRange is the sentinel error wrapped by InvalidVersionRangeError.
	ErrInvalidVersionRange = errors.New("invalid version range")
	// ErrInvalidVersionTag is the sentinel error wrapped by VersionTagError.
	ErrInvalidVersionTag = errors.New("invalid version tag")

	// versionTagPattern matches "refs/tags/v1", "refs/tags/1.2" and
	// "refs/tags/v1.2.3-rc.1+build". Group 1 is the numeric core, group 2 the
	// prerelease/build suffix.
	versionTagPattern = regexp.MustCompile(
		`^refs/tags/v?((?:0|[1-9][0-9]*)(?:\.(?:0|[1-9][0-9]*)){0,2})((?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?)$`)
)

type (
	// VersionRange is a parsed semver range as written in a manifest.
	// Bare versions carry caret semantics ("1.2" means "^1.2"), comparators
	// are comma separated and "||" separates alternatives.
	VersionRange struct {
		raw         string
		constraints *semver.Constraints
	}

	// InvalidVersionRangeError is returned when a range cannot be parsed.
	InvalidVersionRangeError struct {
		Value string
		Err   error
	}

	// VersionTagError is returned when a tag looks like a version but does
	// not parse as one after padding.
	VersionTagError struct {
		Ref string
		Err error
	}
)

// Error implements the error interface.
func (e *InvalidVersionRangeError) Error() string {
	return fmt.Sprintf("invalid version range %q: %v", e.Value, e.Err)
}

// Unwrap returns ErrInvalidVersionRange for errors.Is() compatibility.
func (e *InvalidVersionRangeError) Unwrap() error { return ErrInvalidVersionRange }

// Error implements the error interface.
func (e *VersionTagError) Error() string {
	return fmt.Sprintf("invalid version tag %q: %v", e.Ref, e.Err)
}

// Unwrap returns ErrInvalidVersionTag for errors.Is() compatibility.
func (e *VersionTagError) Unwrap() error { return ErrInvalidVersionTag }

// ParseVersionRange parses a manifest version range.
func ParseVersionRange(s string) (VersionRange, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return VersionRange{}, &InvalidVersionRangeError{Value: s, Err: errors.New("empty range")}
	}
	c, err := semver.NewConstraint(caretDefault(raw))
	if err != nil {
		return VersionRange{}, &InvalidVersionRangeError{Value: s, Err: err}
	}
	return VersionRange{raw: raw, constraints: c}, nil
}

// MustParseVersionRange is like ParseVersionRange but panics on error.
func MustParseVersionRange(s string) VersionRange {
	r, err := ParseVersionRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the range as written.
func (r VersionRange) String() string { return r.raw }

// Matches reports whether v satisfies the range. Prereleases only match when
// the range itself names a prerelease.
func (r VersionRange) Matches(v *semver.Version) bool {
	if r.constraints == nil {
		return false
	}
	return r.constraints.Check(v)
}

// caretDefault rewrites bare comparators ("1.2", "v1") to caret comparators.
func caretDefault(raw string) string {
	alts := strings.Split(raw, "||")
	for i, alt := range alts {
		parts := strings.Split(alt, ",")
		for j, part := range parts {
			p := strings.TrimSpace(part)
			bare := strings.TrimPrefix(p, "v")
			if bare != "" && bare[0] >= '0' && bare[0] <= '9' {
				p = "^" + p
			}
			parts[j] = p
		}
		alts[i] = strings.Join(parts, ", ")
	}
	return strings.Join(alts, " || ")
}

// parseVersionTag extracts a version from a ref name. ok is false when the
// ref is not a version tag at all.
func parseVersionTag(ref string) (v *semver.Version, ok bool, err error) {
	m := versionTagPattern.FindStringSubmatch(ref)
	if m == nil {
		return nil, false, nil
	}
	v, err = semver.StrictNewVersion(padVersionCore(m[1]) + m[2])
	if err != nil {
		return nil, true, &VersionTagError{Ref: ref, Err: err}
	}
	return v, true, nil
}

// padVersionCore pads "2" to "2.0.0" and "2.3" to "2.3.0".
func padVersionCore(core string) string {
	for n := strings.Count(core, "."); n < 2; n++ {
		core += ".0"
	}
	return core
}

// selectVersion returns the commit of the highest version tag satisfying r.
// When several tags name the same version the one advertised last wins.
func selectVersion(refs []RemoteRef, r VersionRange) (GitCommit, *semver.Version, error) {
	byVersion := make(map[string]GitCommit)
	versions := make(map[string]*semver.Version)
	for _, ref := range refs {
		v, ok, err := parseVersionTag(ref.Name)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			continue
		}
		key := v.String()
		byVersion[key] = ref.Commit
		versions[key] = v
	}

	sorted := make([]*semver.Version, 0, len(versions))
	for _, v := range versions {
		sorted = append(sorted, v)
	}
	sort.Sort(sort.Reverse(semver.Collection(sorted)))

	for _, v := range sorted {
		if r.Matches(v) {
			return byVersion[v.String()], v, nil
		}
	}
	return "", nil, &NoVersionMatchError{Range: r.String()}
}
