// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage/memory"
)

const (
	peeledSuffix = "^{}"
	pinnedRef    = "refs/wares/pinned"
)

type (
	// RemoteRef is one advertised ref of a remote repository.
	RemoteRef struct {
		// Name is the full ref name, e.g. "refs/tags/v1.2.0".
		Name   string
		Commit GitCommit
	}

	// RefLister lists the refs a remote advertises, in advertisement order.
	RefLister interface {
		ListRefs(ctx context.Context, url GitURL) ([]RemoteRef, error)
	}

	// Materializer populates an existing empty directory with a checkout.
	Materializer interface {
		// CloneBranch makes a depth-1 clone of branch, or of the default
		// branch when branch is empty.
		CloneBranch(ctx context.Context, url GitURL, branch, dest string) error
		// FetchCommit initializes a repository, fetches exactly commit at
		// depth 1 and hard-resets the worktree to it.
		FetchCommit(ctx context.Context, url GitURL, commit GitCommit, dest string) error
	}

	// GitFetcher implements RefLister and Materializer with go-git.
	GitFetcher struct {
		sshAuth  transport.AuthMethod
		getenv   func(string) string
		override transport.AuthMethod
	}

	// GitFetcherOption configures a GitFetcher.
	GitFetcherOption func(*GitFetcher)
)

// WithAuth overrides credential discovery.
func WithAuth(auth transport.AuthMethod) GitFetcherOption {
	return func(f *GitFetcher) { f.override = auth }
}

// NewGitFetcher creates a fetcher. Unless WithAuth is given, SSH remotes use
// the first key found in ~/.ssh and HTTPS remotes use the token of their
// host: GITHUB_TOKEN for github.com, GITLAB_TOKEN for gitlab.com and
// GIT_TOKEN for anything else. Public repositories need no credentials.
func NewGitFetcher(opts ...GitFetcherOption) *GitFetcher {
	f := &GitFetcher{sshAuth: sshKeyAuth(), getenv: os.Getenv}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ListRefs lists the remote's refs without cloning. When the server
// advertises a peeled entry for an annotated tag, the peeled commit replaces
// the tag object id in place.
func (f *GitFetcher) ListRefs(ctx context.Context, url GitURL) ([]RemoteRef, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{string(url)},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{
		Auth:          f.authFor(url),
		PeelingOption: git.AppendPeeled,
	})
	if err != nil {
		return nil, fmt.Errorf("list remote refs: %w", err)
	}
	return collectRefs(refs), nil
}

// collectRefs flattens go-git references, skipping symbolic refs such as HEAD.
func collectRefs(refs []*plumbing.Reference) []RemoteRef {
	out := make([]RemoteRef, 0, len(refs))
	index := make(map[string]int, len(refs))
	var peeled []RemoteRef
	for _, ref := range refs {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		name := ref.Name().String()
		commit := GitCommit(ref.Hash().String())
		if base, ok := strings.CutSuffix(name, peeledSuffix); ok {
			peeled = append(peeled, RemoteRef{Name: base, Commit: commit})
			continue
		}
		index[name] = len(out)
		out = append(out, RemoteRef{Name: name, Commit: commit})
	}
	for _, p := range peeled {
		if i, ok := index[p.Name]; ok {
			out[i].Commit = p.Commit
		}
	}
	return out
}

// CloneBranch implements Materializer.
func (f *GitFetcher) CloneBranch(ctx context.Context, url GitURL, branch, dest string) error {
	opts := &git.CloneOptions{
		URL:          string(url),
		Auth:         f.authFor(url),
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}
	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		return fmt.Errorf("clone: %w", err)
	}
	return nil
}

// FetchCommit implements Materializer.
func (f *GitFetcher) FetchCommit(ctx context.Context, url GitURL, commit GitCommit, dest string) error {
	repo, err := git.PlainInit(dest, false)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	remote, err := repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{string(url)},
	})
	if err != nil {
		return fmt.Errorf("add remote: %w", err)
	}

	err = remote.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(fmt.Sprintf("%s:%s", commit, pinnedRef))},
		Depth:      1,
		Auth:       f.authFor(url),
		Tags:       git.NoTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch %s: %w", commit, err)
	}

	// A fresh repository's HEAD points at an unborn branch, which Reset
	// cannot move. Detach HEAD onto the fetched commit first.
	hash := plumbing.NewHash(string(commit))
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, hash)); err != nil {
		return fmt.Errorf("detach HEAD: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: hash, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("reset to %s: %w", commit, err)
	}
	return nil
}

// authFor picks SSH credentials for SSH remotes and the host's token for
// HTTPS remotes. Other schemes get none.
func (f *GitFetcher) authFor(url GitURL) transport.AuthMethod {
	if f.override != nil {
		return f.override
	}
	s := string(url)
	switch {
	case strings.HasPrefix(s, "git@"), strings.HasPrefix(s, "ssh://"):
		return f.sshAuth
	case strings.HasPrefix(s, "https://"):
		if f.getenv == nil {
			return nil
		}
		u, err := neturl.Parse(s)
		if err != nil {
			return nil
		}
		return tokenAuth(f.getenv, u.Hostname())
	default:
		return nil
	}
}

func sshKeyAuth() transport.AuthMethod {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		keyPath := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(keyPath); err != nil {
			continue
		}
		if auth, err := ssh.NewPublicKeysFromFile("git", keyPath, ""); err == nil {
			return auth
		}
	}
	return nil
}

// tokenAuth returns the token credentials for host. A host-specific token is
// never sent to another host.
func tokenAuth(getenv func(string) string, host string) transport.AuthMethod {
	env, user := "GIT_TOKEN", "git"
	switch strings.ToLower(host) {
	case "github.com":
		env, user = "GITHUB_TOKEN", "x-access-token"
	case "gitlab.com":
		env, user = "GITLAB_TOKEN", "gitlab-ci-token"
	}
	token := getenv(env)
	if token == "" {
		return nil
	}
	return &http.BasicAuth{Username: user, Password: token}
}
