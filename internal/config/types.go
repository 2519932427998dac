// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

var (
	// ErrInvalidJobs is returned when Jobs is below 1.
	ErrInvalidJobs = errors.New("invalid jobs")
	// ErrInvalidLogLevel is returned when LogLevel is not a known level.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidCacheDirPath is returned when CacheDir is whitespace-only.
	ErrInvalidCacheDirPath = errors.New("invalid cache dir path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is a charmbracelet/log level name: debug, info, warn, error or fatal.
	LogLevel string

	// Config holds the wares settings that are not specific to one project.
	Config struct {
		// CacheDir is the cache root. Empty means WARES_CACHE or ".wares_cache".
		CacheDir string `mapstructure:"cache_dir" toml:"cache_dir,omitempty"`
		// Jobs bounds concurrent resolutions and installs.
		Jobs int `mapstructure:"jobs" toml:"jobs"`
		// FailFast stops a sync at the first failing dependency.
		FailFast bool `mapstructure:"fail_fast" toml:"fail_fast"`
		// LogLevel is the minimum level logged to stderr.
		LogLevel LogLevel `mapstructure:"log_level" toml:"log_level"`
		// Registry toggles the cache registry file.
		Registry bool `mapstructure:"registry" toml:"registry"`
	}

	// InvalidConfigError collects every field error of a Config.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// Level returns the charmbracelet/log level.
func (l LogLevel) Level() (log.Level, error) {
	lvl, err := log.ParseLevel(string(l))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("%w: %q", ErrInvalidLogLevel, string(l))
	}
	return lvl, nil
}

// Validate returns an error when the level is unknown.
func (l LogLevel) Validate() error {
	_, err := l.Level()
	return err
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Jobs:     4,
		LogLevel: "info",
		Registry: true,
	}
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("%w: %d (must be at least 1)", ErrInvalidJobs, c.Jobs))
	}
	if err := c.LogLevel.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.CacheDir != "" && strings.TrimSpace(c.CacheDir) == "" {
		errs = append(errs, ErrInvalidCacheDirPath)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
