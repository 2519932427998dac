// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"errors"
	"strings"
)

// Error kinds. The zero value means the error did not originate in this package.
const (
	KindUnknown ErrorKind = iota
	// KindIO covers manifest, lock file and cache directory filesystem failures.
	KindIO
	// KindManifest covers syntactically or semantically invalid manifests.
	KindManifest
	// KindLocking covers resolution failures: transport errors, unmatched
	// version ranges, tags or refs.
	KindLocking
	// KindSerialization covers malformed lock files and registry files.
	KindSerialization
	// KindInstall covers failures while materializing a dependency.
	KindInstall
)

// Operation names callers may need to tell apart.
const (
	OpReadManifest = "read manifest"
	OpReadLockFile = "read lock file"
)

type (
	// ErrorKind discriminates the failure classes a sync can report.
	ErrorKind int

	// Error is the structured error returned by every exported operation in
	// this package that touches the filesystem or the network.
	//
	// Dependency, URL and Path are optional context; Err is the underlying cause.
	Error struct {
		Kind       ErrorKind
		Op         string
		Dependency string
		URL        GitURL
		Path       string
		Err        error
	}
)

// String returns the lowercase name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindManifest:
		return "manifest"
	case KindLocking:
		return "locking"
	case KindSerialization:
		return "serialization"
	case KindInstall:
		return "install"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Dependency != "" {
		b.WriteString(" ")
		b.WriteString(e.Dependency)
	}
	if e.URL != "" {
		b.WriteString(" (")
		b.WriteString(string(e.URL))
		b.WriteString(")")
	}
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error found in err's chain, walking
// into joined errors. It returns KindUnknown when none is present.
func KindOf(err error) ErrorKind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return KindUnknown
}

// Errors flattens err into the *Error values it carries. Joined errors are
// expanded; anything that is not an *Error is skipped.
func Errors(err error) []*Error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*Error
		for _, e := range joined.Unwrap() {
			out = append(out, Errors(e)...)
		}
		return out
	}
	var werr *Error
	if errors.As(err, &werr) {
		return []*Error{werr}
	}
	return nil
}

func ioError(op, path string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}
