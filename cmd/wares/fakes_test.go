// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wares-build/wares/internal/config"
	"github.com/wares-build/wares/pkg/wares"
)

const (
	fooRepo wares.GitURL = "https://github.com/acme/foo.git"
	barRepo wares.GitURL = "https://github.com/acme/bar.git"
)

// fakeGit serves refs from memory and writes a marker file as the checkout.
type fakeGit struct {
	mu    sync.Mutex
	refs  map[wares.GitURL][]wares.RemoteRef
	lists int
}

func newFakeGit() *fakeGit {
	return &fakeGit{refs: map[wares.GitURL][]wares.RemoteRef{
		fooRepo: {
			{Name: "refs/heads/main", Commit: commitN(100)},
			{Name: "refs/tags/v1.0.0", Commit: commitN(1)},
			{Name: "refs/tags/v1.2.0", Commit: commitN(2)},
			{Name: "refs/tags/v2.0.0", Commit: commitN(3)},
		},
		barRepo: {
			{Name: "refs/tags/v0.1.0", Commit: commitN(20)},
		},
	}}
}

func (f *fakeGit) ListRefs(_ context.Context, url wares.GitURL) ([]wares.RemoteRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	refs, ok := f.refs[url]
	if !ok {
		return nil, fmt.Errorf("repository %s not found", url)
	}
	return append([]wares.RemoteRef(nil), refs...), nil
}

func (f *fakeGit) CloneBranch(_ context.Context, url wares.GitURL, branch, dest string) error {
	return os.WriteFile(filepath.Join(dest, "CHECKOUT"), []byte(string(url)+" "+branch), 0o644)
}

func (f *fakeGit) FetchCommit(_ context.Context, url wares.GitURL, commit wares.GitCommit, dest string) error {
	return os.WriteFile(filepath.Join(dest, "CHECKOUT"), []byte(string(url)+" "+string(commit)), 0o644)
}

// stubConfig returns a fixed configuration.
type stubConfig struct {
	cfg  *config.Config
	err  error
	path string
}

func (s *stubConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := *s.cfg
	return &cfg, nil
}

func (s *stubConfig) Path() string { return s.path }

type testApp struct {
	app    *App
	git    *fakeGit
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ta := &testApp{
		git:    newFakeGit(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	ta.app = NewApp(Dependencies{
		Config: &stubConfig{cfg: config.DefaultConfig()},
		Git:    ta.git,
		Stdout: ta.stdout,
		Stderr: ta.stderr,
	})
	return ta
}

// run executes the root command with args, bypassing fang.
func (ta *testApp) run(args ...string) error {
	root := NewRootCommand(ta.app)
	root.SetArgs(args)
	root.SetOut(ta.stdout)
	root.SetErr(ta.stderr)
	return root.ExecuteContext(context.Background())
}

func commitN(n int) wares.GitCommit {
	return wares.GitCommit(fmt.Sprintf("%040x", n))
}
