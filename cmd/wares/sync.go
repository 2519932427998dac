// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wares-build/wares/internal/issue"
	"github.com/wares-build/wares/pkg/wares"
)

// overrideArgPrefix marks override arguments passed after "--".
const overrideArgPrefix = "--override:"

// ErrInvalidOverride is returned for an override that is not name=path.
var ErrInvalidOverride = errors.New("invalid override")

type (
	syncOptions struct {
		root      string
		currents  []string
		cache     string
		first     bool
		force     bool
		backend   bool
		overrides []string
	}

	// backendPaths is printed on stdout by a successful --backend sync.
	backendPaths struct {
		Paths map[string]string `json:"paths"`
	}

	// backendError is printed on stdout by a failed --backend sync. Errors
	// lists every failure when more than one dependency failed.
	backendError struct {
		Error  issue.Report   `json:"error"`
		Errors []issue.Report `json:"errors,omitempty"`
	}
)

func newSyncCommand(app *App, root *rootOptions) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync [groups...] [-- --override:name=path...]",
		Short: "Resolve, lock and install dependencies",
		Long: `Resolve the dependencies of wares.toml, update wares.lock and install
every dependency into the cache.

The "dependencies" group is always installed; name extra groups as
arguments. The lock file is only re-resolved when it is missing, older than
the manifest, or --force is given.

Several --current directories may be given to sync the sub-projects of one
tree into the lock file of --root. The first one replaces the lock file and
the others merge into it.`,
		Example: `  wares sync
  wares sync dev-dependencies --force
  wares sync --override fmt=../fmt
  wares sync --root . --current libs/a --current libs/b
  wares sync --backend --first -- --override:fmt=../fmt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runSync(cmd.Context(), root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.root, "root", "r", ".", "directory holding wares.lock")
	cmd.Flags().StringArrayVarP(&opts.currents, "current", "c", nil, "directory holding wares.toml (default is --root, repeatable)")
	cmd.Flags().StringVar(&opts.cache, "cache", "", "cache directory (default is $WARES_CACHE or ./.wares_cache)")
	cmd.Flags().BoolVarP(&opts.first, "first", "f", false, "replace the lock file instead of merging into it (backend mode)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "re-resolve even when the lock file is up to date")
	cmd.Flags().BoolVarP(&opts.backend, "backend", "b", false, "print a JSON result for build system integration")
	cmd.Flags().StringArrayVar(&opts.overrides, "override", nil, "use a local directory for a dependency (name=path, repeatable)")
	_ = cmd.Flags().MarkHidden("first")

	return cmd
}

func (a *App) runSync(ctx context.Context, root *rootOptions, opts *syncOptions, args []string) error {
	groups, extra := splitSyncArgs(args)
	overrides, err := parseOverrides(opts.overrides, extra)
	if err != nil {
		return a.syncFailed(opts.backend, root.verbose, err)
	}

	cfg, err := a.loadConfig(ctx, root, opts.root)
	if err != nil {
		return a.syncFailed(opts.backend, root.verbose, err)
	}
	logger := a.newLogger(cfg, root.verbose)
	syncerOpts := []wares.SyncerOption{
		wares.WithLogger(logger),
		wares.WithJobs(cfg.Jobs),
		wares.WithFailFast(cfg.FailFast),
		wares.WithRegistry(cfg.Registry),
	}

	currents := opts.currents
	if len(currents) == 0 {
		currents = []string{opts.root}
	}
	syncOpts := func(current string) wares.SyncOptions {
		return wares.SyncOptions{
			ManifestPath: filepath.Join(current, wares.ManifestFileName),
			LockPath:     filepath.Join(opts.root, wares.LockFileName),
			CacheDir:     cacheRoot(opts.cache, cfg),
			Groups:       groups,
			Force:        opts.force,
			First:        opts.first,
			Overrides:    overrides,
		}
	}

	paths := make(map[string]string)
	var updated bool
	if opts.backend && len(currents) == 1 {
		// The build system tracks First across its own invocations.
		res, err := wares.NewSyncer(a.Git, a.Git, syncerOpts...).Sync(ctx, syncOpts(currents[0]))
		if err != nil {
			return a.syncFailed(opts.backend, root.verbose, err)
		}
		maps.Copy(paths, res.Paths)
		updated = res.Updated
	} else {
		session, err := wares.NewSession(a.Git, a.Git, syncerOpts...)
		if err != nil {
			return a.syncFailed(opts.backend, root.verbose, err)
		}
		for _, current := range currents {
			logger.Debug("syncing project", "manifest", filepath.Join(current, wares.ManifestFileName))
			res, err := session.Sync(ctx, syncOpts(current))
			if err != nil {
				return a.syncFailed(opts.backend, root.verbose, err)
			}
			maps.Copy(paths, res.Paths)
		}
		updated = session.Updated()
	}

	if opts.backend {
		return writeBackendResult(a.stdout, backendPaths{Paths: paths})
	}
	printInstalled(a.stdout, paths, updated)
	return nil
}

// syncFailed reports err as JSON in backend mode and as formatted text otherwise.
func (a *App) syncFailed(backend, verbose bool, err error) error {
	if !backend {
		return a.reportError(err, verbose)
	}
	reports := issue.Reports(err)
	result := backendError{Error: reports[0]}
	if len(reports) > 1 {
		result.Errors = reports
	}
	if werr := writeBackendResult(a.stdout, result); werr != nil {
		return werr
	}
	return &ExitError{Code: 1}
}

func writeBackendResult(w io.Writer, result any) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write backend result: %w", err)
	}
	return nil
}

func printInstalled(w io.Writer, paths map[string]string, updated bool) {
	for _, name := range slices.Sorted(maps.Keys(paths)) {
		fmt.Fprintf(w, "%s %s installed to %s\n", SuccessStyle.Render("✓"), NameStyle.Render(name), pathStyle.Render(paths[name]))
	}
	if updated {
		fmt.Fprintln(w, SubtitleStyle.Render("Updated "+wares.LockFileName))
	}
}

// splitSyncArgs separates dependency groups from "--override:" arguments.
func splitSyncArgs(args []string) (groups, overrides []string) {
	for _, arg := range args {
		if strings.HasPrefix(arg, overrideArgPrefix) {
			overrides = append(overrides, strings.TrimPrefix(arg, overrideArgPrefix))
			continue
		}
		groups = append(groups, arg)
	}
	return groups, overrides
}

// parseOverrides turns name=path pairs into a map. Later pairs win.
func parseOverrides(lists ...[]string) (map[string]string, error) {
	out := make(map[string]string)
	for _, list := range lists {
		for _, pair := range list {
			name, path, ok := strings.Cut(pair, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" || path == "" {
				return nil, fmt.Errorf("%w %q: want name=path", ErrInvalidOverride, pair)
			}
			out[name] = path
		}
	}
	return out, nil
}
