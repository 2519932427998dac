// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestInstaller_MissThenHit(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	inst := NewInstaller(remote, nil)
	root := t.TempDir()
	dep := LockedDependency{URL: testRepo, ID: BranchID("main")}

	first, err := inst.InstallResult(context.Background(), dep, root)
	if err != nil {
		t.Fatalf("InstallResult() error = %v", err)
	}
	if first.Hit {
		t.Error("first install should be a miss")
	}
	if first.Path != filepath.Join(root, "gh-acme-foo-main-latest") {
		t.Errorf("Path = %q", first.Path)
	}
	if _, err := os.Stat(filepath.Join(first.Path, fakeMarker)); err != nil {
		t.Errorf("installed directory should hold the checkout: %v", err)
	}

	second, err := inst.InstallResult(context.Background(), dep, root)
	if err != nil {
		t.Fatalf("InstallResult() error = %v", err)
	}
	if !second.Hit || second.Path != first.Path {
		t.Errorf("second install = %+v, want hit at %q", second, first.Path)
	}
	if n := remote.materializeCount(); n != 1 {
		t.Errorf("materialized %d times, want 1", n)
	}
}

func TestInstaller_Routing(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	inst := NewInstaller(remote, nil)
	root := t.TempDir()
	ctx := context.Background()

	if _, err := inst.Install(ctx, LockedDependency{URL: testRepo, ID: CommitID(commitN(7))}, root); err != nil {
		t.Fatalf("Install(commit) error = %v", err)
	}
	if _, err := inst.Install(ctx, LockedDependency{URL: testRepo, ID: DefaultBranchID()}, root); err != nil {
		t.Fatalf("Install(default) error = %v", err)
	}
	if _, err := inst.Install(ctx, LockedDependency{URL: testRepo, ID: BranchID("dev")}, root); err != nil {
		t.Fatalf("Install(branch) error = %v", err)
	}

	remote.mu.Lock()
	defer remote.mu.Unlock()
	if len(remote.fetches) != 1 || remote.fetches[0] != commitN(7) {
		t.Errorf("fetches = %v, want the pinned commit only", remote.fetches)
	}
	if len(remote.clones) != 2 || remote.clones[0] != "" || remote.clones[1] != "dev" {
		t.Errorf("clones = %q, want default branch then dev", remote.clones)
	}
}

func TestInstaller_FailureLeavesNoEntry(t *testing.T) {
	t.Parallel()

	boom := errors.New("remote hung up")
	remote := newFakeRemote()
	remote.getErr = boom
	inst := NewInstaller(remote, nil)
	root := t.TempDir()

	_, err := inst.Install(context.Background(), LockedDependency{URL: testRepo, ID: DefaultBranchID()}, root)
	if !errors.Is(err, boom) {
		t.Fatalf("Install() error = %v, want the fetch error", err)
	}
	if KindOf(err) != KindInstall {
		t.Errorf("kind = %s, want install", KindOf(err))
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cache root should be empty after a failed install, got %v", entries)
	}
}

func TestInstaller_ConcurrentSameKey(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	inst := NewInstaller(remote, nil)
	root := t.TempDir()
	dep := LockedDependency{URL: testRepo, ID: CommitID(commitN(3))}

	const n = 8
	paths := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i], errs[i] = inst.Install(context.Background(), dep, root)
		}()
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("Install #%d error = %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Errorf("Install #%d path = %q, want %q", i, paths[i], paths[0])
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("staging directory %q left behind", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("cache root holds %d entries, want 1", len(entries))
	}
}

func TestInstaller_RelativeRootIsAbsolute(t *testing.T) {
	remote := newFakeRemote()
	inst := NewInstaller(remote, nil)
	t.Chdir(t.TempDir())

	path, err := inst.Install(context.Background(), LockedDependency{URL: testRepo, ID: DefaultBranchID()}, "cache")
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Errorf("Install() = %q, want an absolute path", path)
	}
}
