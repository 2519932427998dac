// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LockFileName is the lock file name written next to the manifest.
const LockFileName = "wares.lock"

// Locked identity kinds. Only LockCommit is reproducible.
const (
	LockDefaultBranch LockKind = iota
	LockBranch
	LockCommit
)

// ErrInvalidLockFile is the sentinel error wrapped by lock file decoding errors.
var ErrInvalidLockFile = errors.New("invalid lock file")

type (
	// LockKind discriminates LockedDependencyID variants.
	LockKind int

	// LockedDependencyID is the concrete identity a specifier resolved to.
	LockedDependencyID struct {
		Kind   LockKind
		Branch string
		Commit GitCommit
	}

	// LockedDependency is the resolved form of one dependency.
	LockedDependency struct {
		URL GitURL
		ID  LockedDependencyID
	}

	// LockFile is the persisted set of resolutions, keyed by dependency name.
	LockFile struct {
		Version      int64                       `json:"lockfile_version"`
		Dependencies map[string]LockedDependency `json:"dependencies"`
	}

	// LockFieldError is returned when a lock entry lacks a required field or
	// carries a value of the wrong type.
	LockFieldError struct {
		Field  string
		Reason string
	}
)

// Error implements the error interface.
func (e *LockFieldError) Error() string {
	return fmt.Sprintf("lock entry field %q: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidLockFile for errors.Is() compatibility.
func (e *LockFieldError) Unwrap() error { return ErrInvalidLockFile }

// DefaultBranchID locks the default branch.
func DefaultBranchID() LockedDependencyID {
	return LockedDependencyID{Kind: LockDefaultBranch}
}

// BranchID locks a named branch.
func BranchID(name string) LockedDependencyID {
	return LockedDependencyID{Kind: LockBranch, Branch: name}
}

// CommitID locks an exact commit.
func CommitID(c GitCommit) LockedDependencyID {
	return LockedDependencyID{Kind: LockCommit, Commit: c}
}

// String renders the identity for humans.
func (id LockedDependencyID) String() string {
	switch id.Kind {
	case LockBranch:
		return "branch " + id.Branch
	case LockCommit:
		return "commit " + id.Commit.String()
	default:
		return "default branch"
	}
}

// Floating reports whether the identity moves as the remote changes.
func (id LockedDependencyID) Floating() bool { return id.Kind != LockCommit }

// MarshalJSON encodes {url, branch?|oid?}; the default branch carries no
// identity key.
func (d LockedDependency) MarshalJSON() ([]byte, error) {
	m := map[string]string{"url": string(d.URL)}
	switch d.ID.Kind {
	case LockBranch:
		m["branch"] = d.ID.Branch
	case LockCommit:
		m["oid"] = string(d.ID.Commit)
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an entry. Unknown keys are ignored; an entry without
// an identity key locks the default branch. When both "oid" and "branch" are
// present the commit wins.
func (d *LockedDependency) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return &LockFieldError{Field: k, Reason: "must be a string"}
		}
		fields[k] = s
	}

	url, ok := fields["url"]
	if !ok {
		return &LockFieldError{Field: "url", Reason: "missing"}
	}
	out := LockedDependency{URL: GitURL(url), ID: DefaultBranchID()}
	if oid, ok := fields["oid"]; ok {
		c, err := ParseGitCommit(oid)
		if err != nil {
			return err
		}
		out.ID = CommitID(c)
	} else if branch, ok := fields["branch"]; ok {
		out.ID = BranchID(branch)
	}
	*d = out
	return nil
}

// NewLockFile returns an empty version-0 lock file.
func NewLockFile() *LockFile {
	return &LockFile{Dependencies: make(map[string]LockedDependency)}
}

// Insert records dep under name, replacing any previous entry.
func (l *LockFile) Insert(name string, dep LockedDependency) {
	if l.Dependencies == nil {
		l.Dependencies = make(map[string]LockedDependency)
	}
	l.Dependencies[name] = dep
}

// Get returns the entry for name.
func (l *LockFile) Get(name string) (LockedDependency, bool) {
	dep, ok := l.Dependencies[name]
	return dep, ok
}

// Merge adds every entry of other whose name l does not already have.
// Existing entries are never overwritten, so merging is idempotent and the
// first writer of a name wins.
func (l *LockFile) Merge(other *LockFile) {
	if other == nil {
		return
	}
	for name, dep := range other.Dependencies {
		if _, exists := l.Dependencies[name]; !exists {
			l.Insert(name, dep)
		}
	}
}

// Names returns the locked dependency names in lexical order.
func (l *LockFile) Names() []string {
	names := make([]string, 0, len(l.Dependencies))
	for name := range l.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseLockFile decodes lock file content.
func ParseLockFile(data []byte) (*LockFile, error) {
	lock := NewLockFile()
	if err := json.Unmarshal(data, lock); err != nil {
		return nil, err
	}
	if lock.Dependencies == nil {
		lock.Dependencies = make(map[string]LockedDependency)
	}
	return lock, nil
}

// LoadLockFile reads the lock file at path. A missing file is an error that
// matches fs.ErrNotExist.
func LoadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioError(OpReadLockFile, path, err)
	}
	lock, err := ParseLockFile(data)
	if err != nil {
		return nil, &Error{Kind: KindSerialization, Op: "decode lock file", Path: path, Err: err}
	}
	return lock, nil
}

// Encode returns the JSON form of the lock file.
func (l *LockFile) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the lock file atomically through a temp file in the same
// directory.
func (l *LockFile) Save(path string) error {
	data, err := l.Encode()
	if err != nil {
		return &Error{Kind: KindSerialization, Op: "encode lock file", Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioError("create lock file directory", dir, err)
	}

	return writeFileAtomic(path, data, "lock file")
}

// writeFileAtomic stages data in a uniquely named hidden file next to path
// and renames it into place, so concurrent writers never share a staging file.
func writeFileAtomic(path string, data []byte, what string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return ioError("write "+what, path, err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return ioError("write "+what, path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return ioError("write "+what, path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return ioError("write "+what, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup of temp file
		return ioError("rename "+what, path, err)
	}
	return nil
}
