// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"errors"
	"testing"
)

func TestParseVersionTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"refs/tags/v2", "2.0.0", true},
		{"refs/tags/2.3", "2.3.0", true},
		{"refs/tags/v2.3.4", "2.3.4", true},
		{"refs/tags/v2.3.4-rc.1", "2.3.4-rc.1", true},
		{"refs/tags/v2-rc.1", "2.0.0-rc.1", true},
		{"refs/tags/v1.0.0+build.7", "1.0.0+build.7", true},
		{"refs/tags/release-1", "", false},
		{"refs/tags/v1.2.3.4", "", false},
		{"refs/tags/v01.2.3", "", false},
		{"refs/heads/v1.0.0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()
			v, ok, err := parseVersionTag(tt.ref)
			if err != nil {
				t.Fatalf("parseVersionTag(%q) error = %v", tt.ref, err)
			}
			if ok != tt.wantOK {
				t.Fatalf("parseVersionTag(%q) ok = %v, want %v", tt.ref, ok, tt.wantOK)
			}
			if ok && v.String() != tt.want {
				t.Errorf("parseVersionTag(%q) = %s, want %s", tt.ref, v, tt.want)
			}
		})
	}
}

func TestParseVersionTag_Invalid(t *testing.T) {
	t.Parallel()

	_, ok, err := parseVersionTag("refs/tags/v1.0.0-01")
	if !ok {
		t.Fatal("tag should be recognized as a version tag")
	}
	if !errors.Is(err, ErrInvalidVersionTag) {
		t.Errorf("error = %v, want ErrInvalidVersionTag", err)
	}
}

func TestPadVersionCore(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{"2": "2.0.0", "2.3": "2.3.0", "2.3.4": "2.3.4"} {
		if got := padVersionCore(in); got != want {
			t.Errorf("padVersionCore(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCaretDefault(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"1.2":           "^1.2",
		">=1, <2":       ">=1, <2",
		"1.2 || 2":      "^1.2 || ^2",
		"~1.4":          "~1.4",
		"=1.0.0":        "=1.0.0",
		"*":             "*",
		"0.3, <0.3.5":   "^0.3, <0.3.5",
		" >= 1.0.0 ":    ">= 1.0.0",
		"^1.0 || =3.0":  "^1.0 || =3.0",
		"1.0.0-alpha.1": "^1.0.0-alpha.1",
	}
	for in, want := range tests {
		if got := caretDefault(in); got != want {
			t.Errorf("caretDefault(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseVersionRange(t *testing.T) {
	t.Parallel()

	if _, err := ParseVersionRange(""); !errors.Is(err, ErrInvalidVersionRange) {
		t.Errorf("ParseVersionRange(\"\") error = %v, want ErrInvalidVersionRange", err)
	}
	if _, err := ParseVersionRange("not a range"); !errors.Is(err, ErrInvalidVersionRange) {
		t.Errorf("ParseVersionRange(garbage) error = %v, want ErrInvalidVersionRange", err)
	}
	r, err := ParseVersionRange(" ^1.2 ")
	if err != nil {
		t.Fatalf("ParseVersionRange() error = %v", err)
	}
	if r.String() != "^1.2" {
		t.Errorf("String() = %q, want %q", r.String(), "^1.2")
	}
}

func TestSelectVersion(t *testing.T) {
	t.Parallel()

	refs := []RemoteRef{
		{Name: "refs/heads/main", Commit: commitN(100)},
		tagRef("v1.0.0", 1),
		tagRef("v1.2.0", 2),
		tagRef("v2.0.0", 3),
		tagRef("v2.1.0-rc.1", 4),
		tagRef("nightly", 5),
		tagRef("1.0.0", 9),
	}

	tests := []struct {
		name    string
		rng     string
		want    GitCommit
		wantErr error
	}{
		{"bounded_excludes_prerelease", ">=1.0.0, <2.0.0", commitN(2), nil},
		{"caret_major", "^2", commitN(3), nil},
		{"bare_is_caret", "1", commitN(2), nil},
		{"prerelease_opt_in", "2.1.0-rc.1", commitN(4), nil},
		{"duplicate_version_last_wins", "=1.0.0", commitN(9), nil},
		{"no_match", "^3", "", ErrNoVersionMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _, err := selectVersion(refs, MustParseVersionRange(tt.rng))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("selectVersion(%q) error = %v, want %v", tt.rng, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("selectVersion(%q) error = %v", tt.rng, err)
			}
			if got != tt.want {
				t.Errorf("selectVersion(%q) = %s, want %s", tt.rng, got, tt.want)
			}
		})
	}
}

func TestSelectVersion_NoTags(t *testing.T) {
	t.Parallel()

	_, _, err := selectVersion([]RemoteRef{{Name: "refs/heads/main", Commit: commitN(1)}}, MustParseVersionRange("*"))
	var noMatch *NoVersionMatchError
	if !errors.As(err, &noMatch) || noMatch.Range != "*" {
		t.Errorf("error = %v, want NoVersionMatchError naming the range", err)
	}
}
