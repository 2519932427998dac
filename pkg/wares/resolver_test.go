// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"context"
	"errors"
	"testing"
)

const testRepo GitURL = "https://github.com/acme/foo.git"

func newTestResolver() (*Resolver, *fakeRemote) {
	remote := newFakeRemote()
	remote.addRefs(testRepo,
		RemoteRef{Name: "refs/heads/main", Commit: commitN(100)},
		RemoteRef{Name: "refs/pull/7/head", Commit: commitN(70)},
		tagRef("v1.0.0", 1),
		tagRef("v1.4.2", 2),
		tagRef("v1.0+build.[1]", 3),
		tagRef("v1.0", 4),
	)
	return NewResolver(remote), remote
}

func TestResolver_OfflineSpecifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec Specifier
		want LockedDependencyID
	}{
		{"default", DefaultBranchSpec(), DefaultBranchID()},
		{"branch", BranchSpec("develop"), BranchID("develop")},
		{"commit", CommitSpec(commitN(42)), CommitID(commitN(42))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, remote := newTestResolver()
			got, err := r.Resolve(context.Background(), testRepo, tt.spec)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.URL != testRepo || got.ID != tt.want {
				t.Errorf("Resolve() = %+v, want %s", got, tt.want)
			}
			if n := remote.listCount(testRepo); n != 0 {
				t.Errorf("Resolve(%s) listed refs %d times, want no network access", tt.spec, n)
			}
		})
	}
}

func TestResolver_RemoteSpecifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec Specifier
		want GitCommit
	}{
		{"version", VersionSpec(MustParseVersionRange("^1.0")), commitN(2)},
		{"tag_with_metacharacters", TagSpec("v1.0+build.[1]"), commitN(3)},
		{"tag_exact_not_prefix", TagSpec("v1.0"), commitN(4)},
		{"rev", RevSpec("refs/pull/7/head"), commitN(70)},
		{"rev_branch_ref", RevSpec("refs/heads/main"), commitN(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, remote := newTestResolver()
			got, err := r.Resolve(context.Background(), testRepo, tt.spec)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.ID != CommitID(tt.want) {
				t.Errorf("Resolve(%s) = %s, want commit %s", tt.spec, got.ID, tt.want)
			}
			if n := remote.listCount(testRepo); n != 1 {
				t.Errorf("listed refs %d times, want 1", n)
			}
		})
	}
}

func TestResolver_NotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec Specifier
		want error
	}{
		{"version", VersionSpec(MustParseVersionRange("^9")), ErrNoVersionMatch},
		{"tag", TagSpec("v1.*"), ErrTagNotFound},
		{"rev_short_name", RevSpec("main"), ErrRevNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, _ := newTestResolver()
			_, err := r.Resolve(context.Background(), testRepo, tt.spec)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Resolve(%s) error = %v, want %v", tt.spec, err, tt.want)
			}
			if KindOf(err) != KindLocking {
				t.Errorf("kind = %s, want locking", KindOf(err))
			}
			var werr *Error
			if !errors.As(err, &werr) || werr.URL != testRepo {
				t.Errorf("error should carry the URL, got %v", err)
			}
		})
	}
}

func TestResolver_TransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	remote := newFakeRemote()
	remote.listErr = boom
	r := NewResolver(remote)

	_, err := r.ResolveDependency(context.Background(), ManifestDependency{
		Name: "foo",
		URL:  testRepo,
		Spec: TagSpec("v1"),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want transport error in chain", err)
	}
	var werr *Error
	if !errors.As(err, &werr) {
		t.Fatalf("error should be *Error, got %T", err)
	}
	if werr.Kind != KindLocking || werr.Dependency != "foo" {
		t.Errorf("Error = %+v, want locking kind for dependency foo", werr)
	}
}

func TestResolver_InvalidVersionTagPropagates(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.addRefs(testRepo, tagRef("v1.0.0-01", 1))
	r := NewResolver(remote)

	_, err := r.Resolve(context.Background(), testRepo, VersionSpec(MustParseVersionRange("*")))
	if !errors.Is(err, ErrInvalidVersionTag) {
		t.Fatalf("error = %v, want ErrInvalidVersionTag", err)
	}
	if errors.Is(err, ErrNoVersionMatch) {
		t.Error("parse failures must stay distinct from no-match")
	}
}
