// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/wares-build/wares/internal/config"
	"github.com/wares-build/wares/internal/issue"
	"github.com/wares-build/wares/pkg/wares"
)

// errConfigLoad marks configuration failures so reports can point at the
// configuration help page.
var errConfigLoad = errors.New("configuration")

type (
	// GitClient lists remote refs and materializes checkouts.
	GitClient interface {
		wares.RefLister
		wares.Materializer
	}

	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App and delegate through it.
	App struct {
		Config config.Provider
		Git    GitClient
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Git    GitClient
		Stdout io.Writer
		Stderr io.Writer
	}

	// rootOptions holds the persistent flags shared by every subcommand.
	rootOptions struct {
		verbose    bool
		configPath string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Git == nil {
		deps.Git = wares.NewGitFetcher()
	}
	return &App{
		Config: deps.Config,
		Git:    deps.Git,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// loadConfig reads the configuration, picking up the .env file of projectDir.
func (a *App) loadConfig(ctx context.Context, opts *rootOptions, projectDir string) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: opts.configPath,
		EnvFilePath:    filepath.Join(projectDir, config.EnvFileName),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfigLoad, err)
	}
	return cfg, nil
}

// newLogger returns the stderr logger for one command run. --verbose wins
// over the configured level.
func (a *App) newLogger(cfg *config.Config, verbose bool) *log.Logger {
	level, err := cfg.LogLevel.Level()
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Level:  level,
		Prefix: config.AppName,
	})
}

// cacheRoot picks the cache directory: the --cache flag, then the configured
// cache_dir (which WARES_CACHE feeds), then the built-in fallback.
func cacheRoot(flag string, cfg *config.Config) string {
	switch {
	case flag != "":
		return flag
	case cfg != nil && cfg.CacheDir != "":
		return cfg.CacheDir
	default:
		return wares.DefaultCacheDir()
	}
}

// reportError prints err for a human reader and returns the ExitError the
// handler should return. Joined errors get one block each.
func (a *App) reportError(err error, verbose bool) error {
	werrs := wares.Errors(err)
	if len(werrs) <= 1 {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(issue.FromError(err), verbose))
	} else {
		fmt.Fprintln(a.stderr, ErrorStyle.Render(fmt.Sprintf("%d dependencies failed:", len(werrs))))
		for _, werr := range werrs {
			fmt.Fprintln(a.stderr, "\n"+formatErrorForDisplay(issue.FromError(werr), verbose))
		}
	}

	if verbose {
		page := issue.Classify(err)
		if errors.Is(err, errConfigLoad) {
			page = issue.Get(issue.ConfigLoadFailedId)
		}
		if page != nil {
			if rendered, rerr := page.Render("auto"); rerr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}
	return &ExitError{Code: 1}
}
