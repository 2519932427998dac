// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"errors"
	"io/fs"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/wares-build/wares/pkg/wares"
)

type Id int

const (
	ManifestNotFoundId Id = iota + 1
	ManifestInvalidId
	GroupNotFoundId
	LockFileInvalidId
	VersionNotFoundId
	RefNotFoundId
	RemoteUnreachableId
	InstallFailedId
	CacheUnwritableId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // links shown under "See also"
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the issue with the glamour style at stylePath ("auto",
// "dark", "notty", or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No wares.toml found!

wares reads its dependencies from a manifest next to your project.

## Things you can try
- Create one in the project root:
~~~toml
manifest_version = 1

[dependencies]
fmt = "gh:fmtlib/fmt@^10"
~~~
- Point at another project with ` + "`--root`" + ` or ` + "`--current`",
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# The manifest could not be parsed!

## Things you can try
- Check that ` + "`manifest_version`" + ` is an integer
- Check that every dependency is either a compact string such as
  ` + "`gh:owner/repo@^1.2`" + ` or a table with a ` + "`type`" + ` key
- Use at most one of ` + "`version`, `commit`, `rev`, `branch`, `tag`" + ` per dependency`,
	}

	groupNotFoundIssue = &Issue{
		id: GroupNotFoundId,
		mdMsg: `
# Dependency group not found!

An extra group was requested but the manifest has no table with that name.

## Things you can try
- List the tables in your wares.toml and check the spelling
- Drop the group from the command line`,
	}

	lockFileInvalidIssue = &Issue{
		id: LockFileInvalidId,
		mdMsg: `
# wares.lock is corrupt!

## Things you can try
- Regenerate it from the manifest:
~~~
$ wares sync --force
~~~`,
	}

	versionNotFoundIssue = &Issue{
		id: VersionNotFoundId,
		mdMsg: `
# No tag satisfies the version range!

Only tags named like ` + "`v1.2.3`, `1.2` or `v2`" + ` are considered, and
pre-releases only match ranges that name a pre-release.

## Things you can try
- Inspect the published tags:
~~~
$ wares resolve gh:owner/repo@*
~~~
- Widen the range, or pin a tag with ` + "`#tag`" + ` instead`,
	}

	refNotFoundIssue = &Issue{
		id: RefNotFoundId,
		mdMsg: `
# Tag or ref not found!

Tags and refs are matched exactly. A ` + "`rev`" + ` must be a full ref
name such as ` + "`refs/heads/main`" + `.

## Things you can try
- Check the spelling against the remote's refs
- Use a branch selector if the name is a branch`,
	}

	remoteUnreachableIssue = &Issue{
		id: RemoteUnreachableId,
		mdMsg: `
# Could not reach the remote repository!

## Things you can try
- Check your network connection
- For private repositories set ` + "`GITHUB_TOKEN`, `GITLAB_TOKEN` or `GIT_TOKEN`" + `
- For SSH remotes make sure a key exists in ` + "`~/.ssh`",
	}

	installFailedIssue = &Issue{
		id: InstallFailedId,
		mdMsg: `
# Installing a dependency failed!

Partial downloads are discarded, so retrying is safe.

## Things you can try
- Run the sync again
- Check that the locked commit still exists on the remote
- Regenerate the lock file with ` + "`wares sync --force`",
	}

	cacheUnwritableIssue = &Issue{
		id: CacheUnwritableId,
		mdMsg: `
# The cache directory is not writable!

## Things you can try
- Check the permissions of the cache root
- Choose another location with ` + "`WARES_CACHE`" + ` or ` + "`--cache`",
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load the wares configuration!

## Things you can try
- Check the TOML syntax of your config file
- Remove the file to fall back to defaults
- Pass another file with ` + "`--config`",
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():  manifestNotFoundIssue,
		manifestInvalidIssue.Id():   manifestInvalidIssue,
		groupNotFoundIssue.Id():     groupNotFoundIssue,
		lockFileInvalidIssue.Id():   lockFileInvalidIssue,
		versionNotFoundIssue.Id():   versionNotFoundIssue,
		refNotFoundIssue.Id():       refNotFoundIssue,
		remoteUnreachableIssue.Id(): remoteUnreachableIssue,
		installFailedIssue.Id():     installFailedIssue,
		cacheUnwritableIssue.Id():   cacheUnwritableIssue,
		configLoadFailedIssue.Id():  configLoadFailedIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	out := maps.Values(issues)
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// Classify picks the issue that best explains err, or nil when none applies.
func Classify(err error) *Issue {
	if err == nil {
		return nil
	}
	var missingGroup *wares.MissingGroupError
	switch {
	case errors.As(err, &missingGroup):
		return Get(GroupNotFoundId)
	case errors.Is(err, wares.ErrNoVersionMatch), errors.Is(err, wares.ErrInvalidVersionTag):
		return Get(VersionNotFoundId)
	case errors.Is(err, wares.ErrTagNotFound), errors.Is(err, wares.ErrRevNotFound):
		return Get(RefNotFoundId)
	}

	switch wares.KindOf(err) {
	case wares.KindIO:
		if errors.Is(err, fs.ErrNotExist) && isManifestError(err) {
			return Get(ManifestNotFoundId)
		}
		return Get(CacheUnwritableId)
	case wares.KindManifest:
		return Get(ManifestInvalidId)
	case wares.KindSerialization:
		return Get(LockFileInvalidId)
	case wares.KindLocking:
		return Get(RemoteUnreachableId)
	case wares.KindInstall:
		return Get(InstallFailedId)
	default:
		return nil
	}
}

func isManifestError(err error) bool {
	var werr *wares.Error
	return errors.As(err, &werr) && werr.Op == wares.OpReadManifest
}
