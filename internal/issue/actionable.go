// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wares-build/wares/pkg/wares"
)

type (
	// ActionableError is an error with context for user-facing error messages:
	// what failed, for which dependency and resource, and how to fix it.
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("load config").
	//		WithResource("~/.config/wares/config.toml").
	//		WithSuggestion("Check the TOML syntax").
	//		Wrap(cause).
	//		Build()
	ActionableError struct {
		// Operation describes what was being attempted (e.g. "resolve tag v1.0").
		Operation string

		// Dependency is the manifest name of the dependency involved (optional).
		Dependency string

		// Resource identifies the file, path or URL involved (optional).
		Resource string

		// Suggestions provides hints on how to fix the issue (optional).
		Suggestions []string

		// Cause is the underlying error (optional).
		Cause error
	}

	// ErrorContext is a builder for ActionableError values.
	ErrorContext struct {
		operation   string
		dependency  string
		resource    string
		suggestions []string
		cause       error
	}

	// Report is the machine-readable form of one error, printed by backend mode.
	Report struct {
		Kind       string `json:"kind"`
		Operation  string `json:"operation,omitempty"`
		Dependency string `json:"dependency,omitempty"`
		URL        string `json:"url,omitempty"`
		Path       string `json:"path,omitempty"`
		Message    string `json:"message"`
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WrapWithOperation wraps an error with operation context.
func WrapWithOperation(err error, operation string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{Operation: operation, Cause: err}
}

// FromError converts one error into an ActionableError. A *wares.Error
// contributes its operation, dependency and resource; suggestions come from
// kind-specific hints.
func FromError(err error) *ActionableError {
	if err == nil {
		return nil
	}
	var ae *ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	out := &ActionableError{Operation: "sync dependencies", Cause: err}
	var werr *wares.Error
	if errors.As(err, &werr) {
		out.Operation = werr.Op
		out.Dependency = werr.Dependency
		out.Resource = werr.Path
		if out.Resource == "" {
			out.Resource = string(werr.URL)
		}
		out.Cause = werr.Err
	}
	out.Suggestions = suggestionsFor(err)
	return out
}

func suggestionsFor(err error) []string {
	switch {
	case errors.Is(err, wares.ErrNoVersionMatch):
		return []string{"Check the published tags with 'wares resolve <specifier>'", "Widen the version range or pin a tag"}
	case errors.Is(err, wares.ErrTagNotFound), errors.Is(err, wares.ErrRevNotFound):
		return []string{"Tags and refs are matched exactly; check the spelling against the remote"}
	}
	switch wares.KindOf(err) {
	case wares.KindManifest:
		return []string{"Check the manifest syntax; each dependency takes at most one selector"}
	case wares.KindSerialization:
		return []string{"Regenerate the lock file with 'wares sync --force'"}
	case wares.KindLocking:
		return []string{"Check network access and credentials (GITHUB_TOKEN, GITLAB_TOKEN, GIT_TOKEN)"}
	case wares.KindInstall:
		return []string{"Retry the sync; partial downloads are discarded"}
	default:
		return nil
	}
}

// Reports flattens err into one Report per *wares.Error it carries. Errors
// from outside the engine produce a single report of kind "unknown".
func Reports(err error) []Report {
	if err == nil {
		return nil
	}
	werrs := wares.Errors(err)
	if len(werrs) == 0 {
		return []Report{{Kind: wares.KindUnknown.String(), Message: err.Error()}}
	}
	out := make([]Report, 0, len(werrs))
	for _, e := range werrs {
		out = append(out, Report{
			Kind:       e.Kind.String(),
			Operation:  e.Op,
			Dependency: e.Dependency,
			URL:        string(e.URL),
			Path:       e.Path,
			Message:    e.Error(),
		})
	}
	return out
}

// Error implements the error interface.
func (e *ActionableError) Error() string {
	var msg strings.Builder

	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)

	if e.Dependency != "" {
		msg.WriteString(" ")
		msg.WriteString(e.Dependency)
	}
	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}

	return msg.String()
}

// Unwrap returns the underlying cause error for use with errors.Is/As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format returns the message followed by suggestions. When verbose is true
// the full error chain is appended.
//
//	failed to <operation> <dependency>: <resource>: <cause>
//	  • <suggestion>
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder

	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, suggestion := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(suggestion)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		err := e.Cause
		depth := 1
		for err != nil {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			err = errors.Unwrap(err)
			depth++
		}
	}

	return msg.String()
}

// WithOperation sets the operation being performed, as a verb phrase.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithDependency sets the dependency name.
func (c *ErrorContext) WithDependency(name string) *ErrorContext {
	c.dependency = name
	return c
}

// WithResource sets the resource (file, path, URL) involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion adds a suggestion. Can be called multiple times.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// Wrap sets the underlying cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build creates an ActionableError. It returns nil when no operation is set.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}
	return &ActionableError{
		Operation:   c.operation,
		Dependency:  c.dependency,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}

// BuildError is Build returning the error interface, nil when no operation is set.
func (c *ErrorContext) BuildError() error {
	ae := c.Build()
	if ae == nil {
		return nil
	}
	return ae
}
