// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wares-build/wares/internal/issue"
	"github.com/wares-build/wares/pkg/wares"
)

type cacheOptions struct {
	dir string
}

func newCacheCommand(app *App, root *rootOptions) *cobra.Command {
	opts := &cacheOptions{}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the dependency cache",
		Long: `Inspect and maintain the shared dependency cache.

Every installed dependency lives in one directory of the cache root named
after its repository and locked identity. The cache registry records which
manifest selector produced each entry.`,
	}
	cmd.PersistentFlags().StringVar(&opts.dir, "cache", "", "cache directory (default is $WARES_CACHE or ./.wares_cache)")

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := app.cacheDir(cmd.Context(), root, opts)
			if err != nil {
				return app.reportError(err, root.verbose)
			}
			fmt.Fprintln(app.stdout, dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runCacheList(cmd.Context(), root, opts)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Drop registry entries whose cache directory is gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runCachePrune(cmd.Context(), root, opts)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached dependency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runCacheClear(cmd.Context(), root, opts)
		},
	})

	return cmd
}

// cacheDir returns the absolute cache root for the current directory.
func (a *App) cacheDir(ctx context.Context, root *rootOptions, opts *cacheOptions) (string, error) {
	cfg, err := a.loadConfig(ctx, root, ".")
	if err != nil {
		return "", err
	}
	dir, err := filepath.Abs(cacheRoot(opts.dir, cfg))
	if err != nil {
		return "", issue.WrapWithOperation(err, "resolve cache directory")
	}
	return dir, nil
}

func (a *App) runCacheList(ctx context.Context, root *rootOptions, opts *cacheOptions) error {
	dir, err := a.cacheDir(ctx, root, opts)
	if err != nil {
		return a.reportError(err, root.verbose)
	}
	reg, err := wares.LoadRegistry(dir)
	if err != nil {
		return a.reportError(err, root.verbose)
	}

	names := reg.Names()
	if len(names) == 0 {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render("No cached dependencies in "+dir))
		return nil
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Cached dependencies")+SubtitleStyle.Render(" ("+dir+")"))
	for _, name := range names {
		fmt.Fprintln(a.stdout, NameStyle.Render(name))
		for _, e := range reg.Dependencies[name] {
			line := "  " + e.Key
			if e.Selector != "" {
				line += SubtitleStyle.Render("  from " + e.Selector)
			}
			if _, err := os.Stat(filepath.Join(dir, e.Key)); err != nil {
				line += WarningStyle.Render("  (missing)")
			}
			fmt.Fprintln(a.stdout, line)
		}
	}
	return nil
}

func (a *App) runCachePrune(ctx context.Context, root *rootOptions, opts *cacheOptions) error {
	dir, err := a.cacheDir(ctx, root, opts)
	if err != nil {
		return a.reportError(err, root.verbose)
	}
	reg, err := wares.LoadRegistry(dir)
	if err != nil {
		return a.reportError(err, root.verbose)
	}
	removed := reg.Prune(dir)
	if removed > 0 {
		if err := reg.Save(dir); err != nil {
			return a.reportError(err, root.verbose)
		}
	}
	fmt.Fprintf(a.stdout, "%s pruned %d registry entries\n", SuccessStyle.Render("✓"), removed)
	return nil
}

// runCacheClear removes the cache root with everything in it.
func (a *App) runCacheClear(ctx context.Context, root *rootOptions, opts *cacheOptions) error {
	dir, err := a.cacheDir(ctx, root, opts)
	if err != nil {
		return a.reportError(err, root.verbose)
	}
	if err := os.RemoveAll(dir); err != nil {
		return a.reportError(issue.NewErrorContext().
			WithOperation("clear cache").
			WithResource(dir).
			WithSuggestion("Check that no build is using the cache and that you can write to it").
			Wrap(err).
			BuildError(), root.verbose)
	}
	fmt.Fprintf(a.stdout, "%s cleared %s\n", SuccessStyle.Render("✓"), dir)
	return nil
}
