// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidGitURL is the sentinel error wrapped by InvalidGitURLError.
	ErrInvalidGitURL = errors.New("invalid git URL")
	// ErrInvalidGitCommit is the sentinel error wrapped by InvalidGitCommitError.
	ErrInvalidGitCommit = errors.New("invalid git commit")

	gitCommitPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

	gitURLSchemes = []string{"https://", "ssh://", "git@", "file://"}
)

type (
	// GitURL is a fetchable repository URL. Shorthand providers are expanded
	// before a GitURL is built, so values always carry a scheme.
	GitURL string

	// InvalidGitURLError is returned when a GitURL does not use a supported scheme.
	InvalidGitURLError struct {
		Value GitURL
	}

	// GitCommit is a full 40-character lowercase hexadecimal commit id.
	GitCommit string

	// InvalidGitCommitError is returned when a value is not exactly 40 hex digits.
	InvalidGitCommitError struct {
		Value string
	}
)

// Error implements the error interface.
func (e *InvalidGitURLError) Error() string {
	return fmt.Sprintf("invalid git URL %q (must start with https://, ssh://, git@ or file://)", e.Value)
}

// Unwrap returns ErrInvalidGitURL so callers can use errors.Is for programmatic detection.
func (e *InvalidGitURLError) Unwrap() error { return ErrInvalidGitURL }

// Validate returns nil if the GitURL uses a supported scheme.
func (u GitURL) Validate() error {
	s := string(u)
	for _, scheme := range gitURLSchemes {
		if strings.HasPrefix(s, scheme) && len(s) > len(scheme) {
			return nil
		}
	}
	return &InvalidGitURLError{Value: u}
}

// String returns the string representation of the GitURL.
func (u GitURL) String() string { return string(u) }

// Error implements the error interface.
func (e *InvalidGitCommitError) Error() string {
	return fmt.Sprintf("invalid git commit %q (must be 40 hexadecimal digits)", e.Value)
}

// Unwrap returns ErrInvalidGitCommit so callers can use errors.Is for programmatic detection.
func (e *InvalidGitCommitError) Unwrap() error { return ErrInvalidGitCommit }

// ParseGitCommit normalizes s to lowercase and validates it as a full commit id.
func ParseGitCommit(s string) (GitCommit, error) {
	c := GitCommit(strings.ToLower(strings.TrimSpace(s)))
	if err := c.Validate(); err != nil {
		return "", &InvalidGitCommitError{Value: s}
	}
	return c, nil
}

// Validate returns nil if the GitCommit is a 40-character lowercase hex id.
func (c GitCommit) Validate() error {
	if !gitCommitPattern.MatchString(string(c)) {
		return &InvalidGitCommitError{Value: string(c)}
	}
	return nil
}

// String returns the string representation of the GitCommit.
func (c GitCommit) String() string { return string(c) }
