// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoVersionMatch is the sentinel error wrapped by NoVersionMatchError.
	ErrNoVersionMatch = errors.New("no version tag satisfies the range")
	// ErrTagNotFound is the sentinel error wrapped by TagNotFoundError.
	ErrTagNotFound = errors.New("tag not found")
	// ErrRevNotFound is the sentinel error wrapped by RevNotFoundError.
	ErrRevNotFound = errors.New("ref not found")
)

type (
	// NoVersionMatchError is returned when no version tag satisfies a range.
	NoVersionMatchError struct {
		Range string
	}

	// TagNotFoundError is returned when the remote does not advertise the tag.
	TagNotFoundError struct {
		Tag string
	}

	// RevNotFoundError is returned when the remote does not advertise the ref.
	RevNotFoundError struct {
		Rev string
	}

	// Resolver turns specifiers into locked identities. Only version, tag
	// and rev specifiers touch the network.
	Resolver struct {
		lister RefLister
	}
)

// Error implements the error interface.
func (e *NoVersionMatchError) Error() string {
	return fmt.Sprintf("no version tag satisfies %q", e.Range)
}

// Unwrap returns ErrNoVersionMatch for errors.Is() compatibility.
func (e *NoVersionMatchError) Unwrap() error { return ErrNoVersionMatch }

// Error implements the error interface.
func (e *TagNotFoundError) Error() string {
	return fmt.Sprintf("tag %q not found", e.Tag)
}

// Unwrap returns ErrTagNotFound for errors.Is() compatibility.
func (e *TagNotFoundError) Unwrap() error { return ErrTagNotFound }

// Error implements the error interface.
func (e *RevNotFoundError) Error() string {
	return fmt.Sprintf("ref %q not found", e.Rev)
}

// Unwrap returns ErrRevNotFound for errors.Is() compatibility.
func (e *RevNotFoundError) Unwrap() error { return ErrRevNotFound }

// NewResolver creates a resolver that lists refs through lister.
func NewResolver(lister RefLister) *Resolver {
	return &Resolver{lister: lister}
}

// Resolve locks spec against the repository at url.
func (r *Resolver) Resolve(ctx context.Context, url GitURL, spec Specifier) (LockedDependency, error) {
	id, err := r.resolveID(ctx, url, spec)
	if err != nil {
		return LockedDependency{}, &Error{Kind: KindLocking, Op: "resolve " + spec.String(), URL: url, Err: err}
	}
	return LockedDependency{URL: url, ID: id}, nil
}

// ResolveDependency is Resolve with the dependency name attached to errors.
func (r *Resolver) ResolveDependency(ctx context.Context, dep ManifestDependency) (LockedDependency, error) {
	locked, err := r.Resolve(ctx, dep.URL, dep.Spec)
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) {
			werr.Dependency = dep.Name
		}
		return LockedDependency{}, err
	}
	return locked, nil
}

func (r *Resolver) resolveID(ctx context.Context, url GitURL, spec Specifier) (LockedDependencyID, error) {
	switch spec.Kind {
	case SpecDefaultBranch:
		return DefaultBranchID(), nil
	case SpecBranch:
		return BranchID(spec.Name), nil
	case SpecCommit:
		if err := spec.Commit.Validate(); err != nil {
			return LockedDependencyID{}, err
		}
		return CommitID(spec.Commit), nil
	}

	refs, err := r.lister.ListRefs(ctx, url)
	if err != nil {
		return LockedDependencyID{}, err
	}

	switch spec.Kind {
	case SpecVersion:
		commit, _, err := selectVersion(refs, spec.Range)
		if err != nil {
			return LockedDependencyID{}, err
		}
		return CommitID(commit), nil
	case SpecTag:
		if commit, ok := findRef(refs, "refs/tags/"+spec.Name); ok {
			return CommitID(commit), nil
		}
		return LockedDependencyID{}, &TagNotFoundError{Tag: spec.Name}
	case SpecRev:
		if commit, ok := findRef(refs, spec.Name); ok {
			return CommitID(commit), nil
		}
		return LockedDependencyID{}, &RevNotFoundError{Rev: spec.Name}
	default:
		return LockedDependencyID{}, fmt.Errorf("unsupported specifier kind %s", spec.Kind)
	}
}

// findRef returns the first advertised ref named exactly name.
func findRef(refs []RemoteRef, name string) (GitCommit, bool) {
	for _, ref := range refs {
		if ref.Name == name {
			return ref.Commit, true
		}
	}
	return "", false
}
