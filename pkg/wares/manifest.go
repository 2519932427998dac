// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/BurntSushi/toml"
)

const (
	// ManifestFileName is the manifest file name looked up in a project directory.
	ManifestFileName = "wares.toml"

	// DefaultGroup is the dependency group included in every sync.
	DefaultGroup = "dependencies"

	manifestVersionKey = "manifest_version"
)

type (
	// ManifestFile is a parsed wares.toml. Groups preserve document order.
	ManifestFile struct {
		Version int64
		Groups  map[string][]ManifestDependency

		groupOrder []string
	}

	// MissingGroupError is returned when a requested group is not declared.
	MissingGroupError struct {
		Group string
	}

	// DuplicateDependencyError is returned when a name appears in more than
	// one of the requested groups.
	DuplicateDependencyError struct {
		Name   string
		Groups [2]string
	}
)

// Error implements the error interface.
func (e *MissingGroupError) Error() string {
	return fmt.Sprintf("dependency group %q is not declared in the manifest", e.Group)
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *MissingGroupError) Unwrap() error { return ErrInvalidManifest }

// Error implements the error interface.
func (e *DuplicateDependencyError) Error() string {
	return fmt.Sprintf("dependency %q is declared in both %q and %q", e.Name, e.Groups[0], e.Groups[1])
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *DuplicateDependencyError) Unwrap() error { return ErrInvalidManifest }

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) (*ManifestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioError(OpReadManifest, path, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, &Error{Kind: KindManifest, Op: "parse manifest", Path: path, Err: err}
	}
	return m, nil
}

// ParseManifest parses manifest content. Every top-level key other than
// manifest_version must be a table of dependencies.
func ParseManifest(data []byte) (*ManifestFile, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	version, ok := raw[manifestVersionKey]
	if !ok {
		return nil, &MissingKeyError{Key: manifestVersionKey}
	}
	v, ok := version.(int64)
	if !ok {
		return nil, &WrongTypeError{Key: manifestVersionKey, Want: "integer"}
	}

	m := &ManifestFile{Version: v, Groups: make(map[string][]ManifestDependency)}
	groups, deps := documentOrder(md, raw)
	for _, group := range groups {
		table, ok := raw[group].(map[string]any)
		if !ok {
			return nil, &WrongTypeError{Key: group, Want: "table"}
		}
		list := make([]ManifestDependency, 0, len(table))
		for _, name := range deps[group] {
			dep, err := parseManifestEntry(name, table[name])
			if err != nil {
				return nil, err
			}
			list = append(list, dep)
		}
		m.Groups[group] = list
		m.groupOrder = append(m.groupOrder, group)
	}
	return m, nil
}

func parseManifestEntry(name string, value any) (ManifestDependency, error) {
	switch v := value.(type) {
	case string:
		return ParseDependency(name, v)
	case map[string]any:
		return ParseDependencyTable(name, v)
	default:
		return ManifestDependency{}, &WrongTypeError{Key: name, Want: "string or table"}
	}
}

// documentOrder recovers the order in which groups and their dependencies
// appear in the document. Keys the decoder did not report are appended in
// lexical order.
func documentOrder(md toml.MetaData, raw map[string]any) (groups []string, deps map[string][]string) {
	deps = make(map[string][]string)
	seen := make(map[string]bool)
	add := func(group, name string) {
		if !seen[group] {
			seen[group] = true
			groups = append(groups, group)
		}
		if name != "" && !slices.Contains(deps[group], name) {
			deps[group] = append(deps[group], name)
		}
	}

	for _, key := range md.Keys() {
		if len(key) == 0 || key[0] == manifestVersionKey {
			continue
		}
		if len(key) == 1 {
			add(key[0], "")
		} else {
			add(key[0], key[1])
		}
	}

	rest := make([]string, 0, len(raw))
	for group := range raw {
		if group != manifestVersionKey {
			rest = append(rest, group)
		}
	}
	sort.Strings(rest)
	for _, group := range rest {
		add(group, "")
		if table, ok := raw[group].(map[string]any); ok {
			names := make([]string, 0, len(table))
			for name := range table {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				add(group, name)
			}
		}
	}
	return groups, deps
}

// GroupNames returns the declared groups in document order.
func (m *ManifestFile) GroupNames() []string {
	return slices.Clone(m.groupOrder)
}

// Select returns the dependencies of the default group followed by those of
// each extra group, in document order. The default group may be absent;
// any extra group must be declared. Names must be unique across the result.
func (m *ManifestFile) Select(extraGroups []string) ([]ManifestDependency, error) {
	groups := []string{DefaultGroup}
	for _, g := range extraGroups {
		if g != DefaultGroup && !slices.Contains(groups, g) {
			groups = append(groups, g)
		}
	}

	var out []ManifestDependency
	owner := make(map[string]string)
	for _, g := range groups {
		list, ok := m.Groups[g]
		if !ok {
			if g == DefaultGroup {
				continue
			}
			return nil, &MissingGroupError{Group: g}
		}
		for _, dep := range list {
			if first, dup := owner[dep.Name]; dup {
				return nil, &DuplicateDependencyError{Name: dep.Name, Groups: [2]string{first, g}}
			}
			owner[dep.Name] = g
			out = append(out, dep)
		}
	}
	return out, nil
}

// DependencyNames returns the names Select would return.
func (m *ManifestFile) DependencyNames(extraGroups []string) ([]string, error) {
	deps, err := m.Select(extraGroups)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	return names, nil
}
