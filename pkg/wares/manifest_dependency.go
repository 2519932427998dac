// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Providers accepted in the compact string form and the table "type" key.
const (
	ProviderGit    = "git"
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
)

const (
	sigilVersion = '@'
	sigilBranch  = '/'
	sigilRev     = '!'
	sigilTag     = '#'
)

// ErrInvalidManifest is the sentinel error wrapped by every manifest parse error.
var ErrInvalidManifest = errors.New("invalid manifest")

var (
	compactRepoPattern   = regexp.MustCompile(`^([\w.-]+)/([\w.-]+)`)
	compactGitURLPattern = regexp.MustCompile(`^(?:https://|ssh://|git@|file://)[\w.@:/~-]+\.git`)
	hostedRepoURLPattern = regexp.MustCompile(`^https://(github\.com|gitlab\.com)/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?/?$`)

	// selectorKeys lists the table keys that choose a revision.
	selectorKeys = []string{"version", "commit", "rev", "branch", "tag"}
)

type (
	// ManifestDependency is one named entry of a manifest dependency group.
	ManifestDependency struct {
		Name string
		URL  GitURL
		Spec Specifier
	}

	// MissingKeyError is returned when a required manifest key is absent.
	MissingKeyError struct {
		Dependency string
		Key        string
	}

	// WrongTypeError is returned when a manifest value has an unexpected type.
	WrongTypeError struct {
		Key  string
		Want string
	}

	// UnknownProviderError is returned for a provider other than git, github/gh or gitlab/gl.
	UnknownProviderError struct {
		Provider string
	}

	// SpecifierSyntaxError is returned when a compact specifier cannot be parsed.
	// Offending is the substring at which parsing stopped.
	SpecifierSyntaxError struct {
		Input     string
		Offending string
		Reason    string
	}

	// AmbiguousSpecifierError is returned when a dependency table sets more
	// than one selector key.
	AmbiguousSpecifierError struct {
		Dependency string
		Keys       []string
	}
)

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	if e.Dependency == "" {
		return fmt.Sprintf("missing key %q", e.Key)
	}
	return fmt.Sprintf("dependency %q: missing key %q", e.Dependency, e.Key)
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *MissingKeyError) Unwrap() error { return ErrInvalidManifest }

// Error implements the error interface.
func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("wrong type for key %q (want %s)", e.Key, e.Want)
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *WrongTypeError) Unwrap() error { return ErrInvalidManifest }

// Error implements the error interface.
func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q (want git, github/gh or gitlab/gl)", e.Provider)
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *UnknownProviderError) Unwrap() error { return ErrInvalidManifest }

// Error implements the error interface.
func (e *SpecifierSyntaxError) Error() string {
	return fmt.Sprintf("invalid specifier %q: %s at %q", e.Input, e.Reason, e.Offending)
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *SpecifierSyntaxError) Unwrap() error { return ErrInvalidManifest }

// Error implements the error interface.
func (e *AmbiguousSpecifierError) Error() string {
	return fmt.Sprintf("dependency %q sets more than one of %s: %s",
		e.Dependency, strings.Join(selectorKeys, "|"), strings.Join(e.Keys, ", "))
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *AmbiguousSpecifierError) Unwrap() error { return ErrInvalidManifest }

// normalizeProvider maps provider aliases to their canonical names.
func normalizeProvider(p string) (string, error) {
	switch p {
	case ProviderGit:
		return ProviderGit, nil
	case ProviderGitHub, "gh":
		return ProviderGitHub, nil
	case ProviderGitLab, "gl":
		return ProviderGitLab, nil
	default:
		return "", &UnknownProviderError{Provider: p}
	}
}

// hostedURL expands an owner/repository pair on a hosted provider.
func hostedURL(provider, owner, repo string) GitURL {
	host := "github.com"
	if provider == ProviderGitLab {
		host = "gitlab.com"
	}
	return GitURL(fmt.Sprintf("https://%s/%s/%s.git", host, owner, repo))
}

// hostedRepo splits a GitHub or GitLab HTTPS URL into its parts.
func hostedRepo(u GitURL) (provider, owner, repo string, ok bool) {
	m := hostedRepoURLPattern.FindStringSubmatch(string(u))
	if m == nil {
		return "", "", "", false
	}
	provider = ProviderGitHub
	if m[1] == "gitlab.com" {
		provider = ProviderGitLab
	}
	return provider, m[2], m[3], true
}

// ParseDependency parses the compact string form
// "<provider>:<owner>/<repo><sigil><selector>" (or "git:<url><sigil><selector>").
func ParseDependency(name, compact string) (ManifestDependency, error) {
	rawProvider, rest, found := strings.Cut(compact, ":")
	if !found {
		return ManifestDependency{}, &SpecifierSyntaxError{Input: compact, Offending: compact, Reason: "missing provider prefix"}
	}
	provider, err := normalizeProvider(rawProvider)
	if err != nil {
		return ManifestDependency{}, err
	}

	dep := ManifestDependency{Name: name}
	var tail string
	if provider == ProviderGit {
		loc := compactGitURLPattern.FindStringIndex(rest)
		if loc == nil {
			return ManifestDependency{}, &SpecifierSyntaxError{Input: compact, Offending: rest, Reason: "expected a repository URL ending in .git"}
		}
		dep.URL = GitURL(rest[:loc[1]])
		tail = rest[loc[1]:]
	} else {
		m := compactRepoPattern.FindStringSubmatchIndex(rest)
		if m == nil {
			return ManifestDependency{}, &SpecifierSyntaxError{Input: compact, Offending: rest, Reason: "expected owner/repository"}
		}
		owner := rest[m[2]:m[3]]
		repo := strings.TrimSuffix(rest[m[4]:m[5]], ".git")
		dep.URL = hostedURL(provider, owner, repo)
		tail = rest[m[1]:]
	}

	dep.Spec, err = parseSelector(compact, tail)
	if err != nil {
		return ManifestDependency{}, err
	}
	return dep, nil
}

// parseSelector parses the "<sigil><selector>" tail of a compact specifier.
func parseSelector(input, tail string) (Specifier, error) {
	if tail == "" {
		return DefaultBranchSpec(), nil
	}
	sel := tail[1:]
	switch tail[0] {
	case sigilVersion, sigilBranch, sigilRev, sigilTag:
		if sel == "" {
			return Specifier{}, &SpecifierSyntaxError{Input: input, Offending: tail, Reason: "empty selector"}
		}
	default:
		return Specifier{}, &SpecifierSyntaxError{Input: input, Offending: tail, Reason: "expected one of @ / ! #"}
	}

	switch tail[0] {
	case sigilVersion:
		r, err := ParseVersionRange(sel)
		if err != nil {
			return Specifier{}, err
		}
		return VersionSpec(r), nil
	case sigilBranch:
		return BranchSpec(sel), nil
	case sigilRev:
		return RevSpec(sel), nil
	default:
		return TagSpec(sel), nil
	}
}

// ParseDependencyTable parses the table form of a dependency:
//
//	foo = { type = "github", username = "acme", repository = "foo", tag = "v1" }
func ParseDependencyTable(name string, table map[string]any) (ManifestDependency, error) {
	rawProvider, err := requireString(name, table, "type")
	if err != nil {
		return ManifestDependency{}, err
	}
	provider, err := normalizeProvider(rawProvider)
	if err != nil {
		return ManifestDependency{}, err
	}

	dep := ManifestDependency{Name: name}
	if provider == ProviderGit {
		u, err := requireString(name, table, "url")
		if err != nil {
			return ManifestDependency{}, err
		}
		dep.URL = GitURL(u)
		if err := dep.URL.Validate(); err != nil {
			return ManifestDependency{}, err
		}
	} else {
		owner, err := requireString(name, table, "username")
		if err != nil {
			return ManifestDependency{}, err
		}
		repo, err := requireString(name, table, "repository")
		if err != nil {
			return ManifestDependency{}, err
		}
		dep.URL = hostedURL(provider, owner, repo)
	}

	var present []string
	for _, key := range selectorKeys {
		if _, ok := table[key]; ok {
			present = append(present, key)
		}
	}
	switch len(present) {
	case 0:
		dep.Spec = DefaultBranchSpec()
		return dep, nil
	case 1:
	default:
		return ManifestDependency{}, &AmbiguousSpecifierError{Dependency: name, Keys: present}
	}

	key := present[0]
	value, err := requireString(name, table, key)
	if err != nil {
		return ManifestDependency{}, err
	}
	switch key {
	case "version":
		r, err := ParseVersionRange(value)
		if err != nil {
			return ManifestDependency{}, err
		}
		dep.Spec = VersionSpec(r)
	case "commit":
		c, err := ParseGitCommit(value)
		if err != nil {
			return ManifestDependency{}, err
		}
		dep.Spec = CommitSpec(c)
	case "rev":
		dep.Spec = RevSpec(value)
	case "branch":
		dep.Spec = BranchSpec(value)
	case "tag":
		dep.Spec = TagSpec(value)
	}
	return dep, nil
}

func requireString(dep string, table map[string]any, key string) (string, error) {
	v, ok := table[key]
	if !ok {
		return "", &MissingKeyError{Dependency: dep, Key: key}
	}
	s, ok := v.(string)
	if !ok {
		return "", &WrongTypeError{Key: dep + "." + key, Want: "string"}
	}
	return s, nil
}

// Compact renders the dependency in compact string form. It reports false
// for commit pins, which only exist in table form.
func (d ManifestDependency) Compact() (string, bool) {
	suffix, ok := d.Spec.compactSuffix()
	if !ok {
		return "", false
	}
	if provider, owner, repo, hosted := hostedRepo(d.URL); hosted && hostedURL(provider, owner, repo) == d.URL {
		short := "gh"
		if provider == ProviderGitLab {
			short = "gl"
		}
		return fmt.Sprintf("%s:%s/%s%s", short, owner, repo, suffix), true
	}
	if loc := compactGitURLPattern.FindStringIndex(string(d.URL)); loc == nil || loc[1] != len(d.URL) {
		return "", false
	}
	return ProviderGit + ":" + string(d.URL) + suffix, true
}
