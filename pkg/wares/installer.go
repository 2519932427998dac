// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

type (
	// Installer materializes locked dependencies into a cache root.
	Installer struct {
		git    Materializer
		logger *log.Logger
	}

	// InstallResult describes one install.
	InstallResult struct {
		Path string
		Key  string
		// Hit is true when the cache entry already existed.
		Hit bool
	}
)

// NewInstaller creates an installer. A nil logger discards output.
func NewInstaller(git Materializer, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Installer{git: git, logger: logger}
}

// Install returns the absolute install path of dep under cacheRoot, fetching
// it first when the cache entry is absent.
func (i *Installer) Install(ctx context.Context, dep LockedDependency, cacheRoot string) (string, error) {
	res, err := i.InstallResult(ctx, dep, cacheRoot)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// InstallResult is Install reporting whether the cache was hit.
//
// A fresh install is written into a temporary sibling directory and renamed
// into place, so an entry at the final path is always complete. When a
// concurrent installer wins the rename, its entry is used and ours dropped.
func (i *Installer) InstallResult(ctx context.Context, dep LockedDependency, cacheRoot string) (InstallResult, error) {
	root, err := filepath.Abs(cacheRoot)
	if err != nil {
		return InstallResult{}, ioError("resolve cache root", cacheRoot, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return InstallResult{}, ioError("create cache root", root, err)
	}

	key := CacheKey(dep)
	target := filepath.Join(root, key)
	if isDir(target) {
		i.logger.Debug("cache hit", "url", dep.URL, "key", key)
		return InstallResult{Path: target, Key: key, Hit: true}, nil
	}

	tmp, err := os.MkdirTemp(root, "."+key+".tmp-")
	if err != nil {
		return InstallResult{}, ioError("create staging directory", root, err)
	}

	i.logger.Info("Installing", "url", dep.URL, "id", dep.ID.String(), "path", target)
	if err := i.materialize(ctx, dep, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return InstallResult{}, &Error{Kind: KindInstall, Op: "install " + dep.ID.String(), URL: dep.URL, Path: target, Err: err}
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.RemoveAll(tmp)
		if isDir(target) {
			i.logger.Debug("lost install race", "key", key)
			return InstallResult{Path: target, Key: key, Hit: true}, nil
		}
		return InstallResult{}, &Error{Kind: KindInstall, Op: "move install into place", URL: dep.URL, Path: target, Err: err}
	}
	return InstallResult{Path: target, Key: key}, nil
}

func (i *Installer) materialize(ctx context.Context, dep LockedDependency, dest string) error {
	switch dep.ID.Kind {
	case LockCommit:
		return i.git.FetchCommit(ctx, dep.URL, dep.ID.Commit, dest)
	case LockBranch:
		return i.git.CloneBranch(ctx, dep.URL, dep.ID.Branch, dest)
	case LockDefaultBranch:
		return i.git.CloneBranch(ctx, dep.URL, "", dest)
	default:
		return fmt.Errorf("unsupported lock kind %d", int(dep.ID.Kind))
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
