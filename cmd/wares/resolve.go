// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wares-build/wares/pkg/wares"
)

func newResolveCommand(app *App, root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve <specifier>",
		Short: "Show what a compact specifier resolves to",
		Long: `Resolve a compact dependency specifier against its remote without
touching the lock file or the cache.

Specifiers take the form <provider>:<owner>/<repo> followed by an optional
selector: @<version range>, /<branch>, #<tag> or !<ref>.`,
		Example: `  wares resolve gh:fmtlib/fmt@10
  wares resolve gl:acme/lib#v1.2.0
  wares resolve git:https://example.org/x/y.git/develop --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runResolve(cmd.Context(), root, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the lock file entry as JSON")

	return cmd
}

func (a *App) runResolve(ctx context.Context, root *rootOptions, compact string, asJSON bool) error {
	dep, err := wares.ParseDependency(compact, compact)
	if err != nil {
		return a.reportError(&wares.Error{Kind: wares.KindManifest, Op: "parse specifier", Err: err}, root.verbose)
	}

	locked, err := wares.NewResolver(a.Git).ResolveDependency(ctx, dep)
	if err != nil {
		return a.reportError(err, root.verbose)
	}

	if asJSON {
		data, err := json.MarshalIndent(locked, "", "  ")
		if err != nil {
			return fmt.Errorf("encode lock entry: %w", err)
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	fmt.Fprintf(a.stdout, "%s %s\n", SubtitleStyle.Render("url:      "), locked.URL)
	fmt.Fprintf(a.stdout, "%s %s\n", SubtitleStyle.Render("selector: "), dep.Spec.String())
	fmt.Fprintf(a.stdout, "%s %s\n", SubtitleStyle.Render("locked:   "), NameStyle.Render(locked.ID.String()))
	fmt.Fprintf(a.stdout, "%s %s\n", SubtitleStyle.Render("cache key:"), wares.CacheKey(locked))
	return nil
}
