// SPDX-License-Identifier: MPL-2.0

package wares

import "fmt"

// Specifier kinds. A dependency without an explicit selector tracks its
// repository's default branch.
const (
	SpecDefaultBranch SpecifierKind = iota
	SpecBranch
	SpecCommit
	SpecTag
	SpecRev
	SpecVersion
)

type (
	// SpecifierKind discriminates the selector variants of a Specifier.
	SpecifierKind int

	// Specifier is the user-declared selector of which revision of a
	// repository to use. Exactly one of the payload fields is meaningful,
	// chosen by Kind.
	Specifier struct {
		Kind SpecifierKind
		// Name holds the branch, tag or full ref for SpecBranch, SpecTag and SpecRev.
		Name   string
		Commit GitCommit
		Range  VersionRange
	}
)

// String returns the name of the kind as used in the manifest table form.
func (k SpecifierKind) String() string {
	switch k {
	case SpecDefaultBranch:
		return "default"
	case SpecBranch:
		return "branch"
	case SpecCommit:
		return "commit"
	case SpecTag:
		return "tag"
	case SpecRev:
		return "rev"
	case SpecVersion:
		return "version"
	default:
		return fmt.Sprintf("SpecifierKind(%d)", int(k))
	}
}

// DefaultBranchSpec selects the repository's default branch.
func DefaultBranchSpec() Specifier { return Specifier{Kind: SpecDefaultBranch} }

// BranchSpec selects the tip of a named branch.
func BranchSpec(name string) Specifier { return Specifier{Kind: SpecBranch, Name: name} }

// CommitSpec pins an exact commit.
func CommitSpec(c GitCommit) Specifier { return Specifier{Kind: SpecCommit, Commit: c} }

// TagSpec selects a tag by exact name.
func TagSpec(name string) Specifier { return Specifier{Kind: SpecTag, Name: name} }

// RevSpec selects a full ref name such as "refs/pull/12/head".
func RevSpec(ref string) Specifier { return Specifier{Kind: SpecRev, Name: ref} }

// VersionSpec selects the highest version tag satisfying r.
func VersionSpec(r VersionRange) Specifier { return Specifier{Kind: SpecVersion, Range: r} }

// String renders the specifier for humans, e.g. "version ^1.2" or "branch main".
func (s Specifier) String() string {
	switch s.Kind {
	case SpecDefaultBranch:
		return "default branch"
	case SpecCommit:
		return "commit " + s.Commit.String()
	case SpecVersion:
		return "version " + s.Range.String()
	default:
		return s.Kind.String() + " " + s.Name
	}
}

// Equal reports whether two specifiers select the same thing.
func (s Specifier) Equal(o Specifier) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case SpecDefaultBranch:
		return true
	case SpecCommit:
		return s.Commit == o.Commit
	case SpecVersion:
		return s.Range.String() == o.Range.String()
	default:
		return s.Name == o.Name
	}
}

// compactSuffix returns the sigil form of the selector. Commits have no
// compact form.
func (s Specifier) compactSuffix() (string, bool) {
	switch s.Kind {
	case SpecDefaultBranch:
		return "", true
	case SpecVersion:
		return string(sigilVersion) + s.Range.String(), true
	case SpecBranch:
		return string(sigilBranch) + s.Name, true
	case SpecRev:
		return string(sigilRev) + s.Name, true
	case SpecTag:
		return string(sigilTag) + s.Name, true
	default:
		return "", false
	}
}
