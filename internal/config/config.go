// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/wares-build/wares/internal/issue"
	"github.com/wares-build/wares/pkg/wares"
)

const (
	// AppName is the application name.
	AppName = "wares"
	// ConfigFileName is the name of the config file.
	ConfigFileName = "config.toml"
	// EnvFileName is the project-local dotenv file.
	EnvFileName = ".env"
	// EnvPrefix prefixes every environment variable wares reads.
	EnvPrefix = "WARES"
)

// envBindings maps config keys to environment variables. The cache root
// keeps the historical WARES_CACHE name.
var envBindings = []struct{ key, env string }{
	{"cache_dir", wares.CacheDirEnv},
	{"jobs", EnvPrefix + "_JOBS"},
	{"fail_fast", EnvPrefix + "_FAIL_FAST"},
	{"log_level", EnvPrefix + "_LOG_LEVEL"},
	{"registry", EnvPrefix + "_REGISTRY"},
}

// ConfigDir returns the wares configuration directory: %APPDATA%\wares on
// Windows, ~/Library/Application Support/wares on macOS and
// $XDG_CONFIG_HOME/wares (defaulting to ~/.config/wares) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions builds a Config from, in increasing precedence: defaults,
// the config file, the project .env file and the process environment. It
// returns the config file path that was read, if any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("jobs", defaults.Jobs)
	v.SetDefault("fail_fast", defaults.FailFast)
	v.SetDefault("log_level", string(defaults.LogLevel))
	v.SetDefault("registry", defaults.Registry)

	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, "", fmt.Errorf("bind %s: %w", b.env, err)
		}
	}

	resolvedPath, err := readConfigFile(v, opts)
	if err != nil {
		return nil, "", err
	}

	if err := applyEnvFile(v, opts.EnvFilePath); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("load environment file").
			WithResource(opts.EnvFilePath).
			WithSuggestion("Check that every line has the form KEY=value").
			Wrap(err).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("decode configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check that jobs is an integer and fail_fast a boolean").
			Wrap(err).
			BuildError()
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("jobs must be at least 1").
			WithSuggestion("log_level must be one of debug, info, warn, error, fatal").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// readConfigFile merges the TOML config file into v. An explicit path must
// exist; the default location is optional.
func readConfigFile(v *viper.Viper, opts LoadOptions) (string, error) {
	path := opts.ConfigFilePath
	if path == "" {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return "", err
		}
		path = filepath.Join(cfgDir, ConfigFileName)
		if !fileExists(path) {
			return "", nil
		}
	} else if !fileExists(path) {
		return "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Use 'wares config show' to see the effective configuration").
			Wrap(fmt.Errorf("config file not found: %s", path)).
			BuildError()
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Check that the file contains valid TOML").
			WithSuggestion("Known keys: cache_dir, jobs, fail_fast, log_level, registry").
			Wrap(err).
			BuildError()
	}
	return path, nil
}

// applyEnvFile feeds dotenv values for bound variables into v unless the
// process environment already sets them. A missing file is not an error.
func applyEnvFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, b := range envBindings {
		if _, set := os.LookupEnv(b.env); set {
			continue
		}
		if val, ok := values[b.env]; ok {
			v.Set(b.key, val)
		}
	}
	return nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Encode renders cfg as TOML, the format of the config file.
func Encode(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
