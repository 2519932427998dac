// SPDX-License-Identifier: MPL-2.0

package wares

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const fakeMarker = "WARES_FAKE_CHECKOUT"

// fakeRemote is an in-memory RefLister and Materializer.
type fakeRemote struct {
	mu sync.Mutex

	refs    map[GitURL][]RemoteRef
	listErr error
	getErr  error

	lists   map[GitURL]int
	clones  []string
	fetches []GitCommit
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		refs:  make(map[GitURL][]RemoteRef),
		lists: make(map[GitURL]int),
	}
}

func (f *fakeRemote) addRefs(url GitURL, refs ...RemoteRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[url] = append(f.refs[url], refs...)
}

func (f *fakeRemote) ListRefs(_ context.Context, url GitURL) ([]RemoteRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[url]++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]RemoteRef(nil), f.refs[url]...), nil
}

func (f *fakeRemote) CloneBranch(_ context.Context, url GitURL, branch, dest string) error {
	f.mu.Lock()
	f.clones = append(f.clones, branch)
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, fakeMarker), []byte(fmt.Sprintf("%s %s", url, branch)), 0o644)
}

func (f *fakeRemote) FetchCommit(_ context.Context, url GitURL, commit GitCommit, dest string) error {
	f.mu.Lock()
	f.fetches = append(f.fetches, commit)
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, fakeMarker), []byte(fmt.Sprintf("%s %s", url, commit)), 0o644)
}

func (f *fakeRemote) listCount(url GitURL) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists[url]
}

func (f *fakeRemote) materializeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clones) + len(f.fetches)
}

// commitN returns a deterministic valid commit id.
func commitN(n int) GitCommit {
	return GitCommit(fmt.Sprintf("%040x", n))
}

func tagRef(name string, n int) RemoteRef {
	return RemoteRef{Name: "refs/tags/" + name, Commit: commitN(n)}
}
