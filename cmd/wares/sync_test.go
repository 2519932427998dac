// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wares-build/wares/internal/config"
	"github.com/wares-build/wares/internal/testutil"
	"github.com/wares-build/wares/pkg/wares"
)

const fooBarManifest = `manifest_version = 1

[dependencies]
foo = "gh:acme/foo@^1.0"
bar = "gh:acme/bar@0.1"
`

// writeManifest writes a manifest into dir and backdates it so a lock file
// written afterwards counts as fresh.
func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	testutil.WriteStale(t, filepath.Join(dir, wares.ManifestFileName), content)
}

func decodeBackend(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("backend output %q is not JSON: %v", data, err)
	}
}

func TestSyncCommand_Backend(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache")
	writeManifest(t, dir, fooBarManifest)

	if err := ta.run("sync", "--root", dir, "--cache", cache, "--backend"); err != nil {
		t.Fatalf("sync error = %v, stderr:\n%s", err, ta.stderr)
	}

	var out backendPaths
	decodeBackend(t, ta.stdout.Bytes(), &out)
	want := map[string]string{
		"foo": filepath.Join(cache, "gh-acme-foo-"+string(commitN(2))),
		"bar": filepath.Join(cache, "gh-acme-bar-"+string(commitN(20))),
	}
	for name, path := range want {
		if out.Paths[name] != path {
			t.Errorf("paths[%s] = %q, want %q", name, out.Paths[name], path)
		}
		if _, err := os.Stat(filepath.Join(path, "CHECKOUT")); err != nil {
			t.Errorf("%s was not installed: %v", name, err)
		}
	}

	lock, err := wares.LoadLockFile(filepath.Join(dir, wares.LockFileName))
	if err != nil {
		t.Fatalf("LoadLockFile() error = %v", err)
	}
	if got, _ := lock.Get("foo"); got.ID != wares.CommitID(commitN(2)) {
		t.Errorf("locked foo = %v", got.ID)
	}

	// A second run reads the fresh lock file without listing refs.
	lists := ta.git.lists
	ta.stdout.Reset()
	if err := ta.run("sync", "--root", dir, "--cache", cache, "--backend"); err != nil {
		t.Fatalf("second sync error = %v", err)
	}
	if ta.git.lists != lists {
		t.Errorf("fresh sync listed refs %d times", ta.git.lists-lists)
	}
}

func TestSyncCommand_BackendError(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	dir := t.TempDir()
	writeManifest(t, dir, "manifest_version = 1\n\n[dependencies]\nfoo = \"gh:acme/foo@^9.0\"\n")

	err := ta.run("sync", "--root", dir, "--cache", filepath.Join(dir, "cache"), "--backend")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("sync error = %v, want ExitError code 1", err)
	}

	var out backendError
	decodeBackend(t, ta.stdout.Bytes(), &out)
	if out.Error.Kind != "locking" || out.Error.Dependency != "foo" || out.Error.URL != string(fooRepo) {
		t.Errorf("error = %+v", out.Error)
	}
	if out.Errors != nil {
		t.Errorf("errors = %+v, want omitted for a single failure", out.Errors)
	}
	if _, err := os.Stat(filepath.Join(dir, wares.LockFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("failed sync should not write a lock file, stat error = %v", err)
	}
}

func TestSyncCommand_BackendErrorsCollected(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	dir := t.TempDir()
	writeManifest(t, dir, "manifest_version = 1\n\n[dependencies]\nfoo = \"gh:acme/foo@^9.0\"\nbar = \"gh:acme/bar@^5\"\n")

	if err := ta.run("sync", "--root", dir, "--cache", filepath.Join(dir, "cache"), "--backend"); err == nil {
		t.Fatal("sync expected error")
	}

	var out backendError
	decodeBackend(t, ta.stdout.Bytes(), &out)
	if len(out.Errors) != 2 || out.Errors[0].Dependency != "foo" || out.Errors[1].Dependency != "bar" {
		t.Errorf("errors = %+v, want foo then bar", out.Errors)
	}
}

func TestSyncCommand_Overrides(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	dir := t.TempDir()
	writeManifest(t, dir, fooBarManifest)
	vendored := filepath.Join(dir, "vendor", "foo")

	err := ta.run("sync", "--root", dir, "--cache", filepath.Join(dir, "cache"), "--backend",
		"--override", "bar=/opt/bar", "--", "--override:foo="+vendored)
	if err != nil {
		t.Fatalf("sync error = %v, stderr:\n%s", err, ta.stderr)
	}

	var out backendPaths
	decodeBackend(t, ta.stdout.Bytes(), &out)
	if out.Paths["foo"] != vendored {
		t.Errorf("paths[foo] = %q, want %q", out.Paths["foo"], vendored)
	}
	wantBar, _ := filepath.Abs("/opt/bar")
	if out.Paths["bar"] != wantBar {
		t.Errorf("paths[bar] = %q, want %q", out.Paths["bar"], wantBar)
	}
}

func TestSyncCommand_InvalidOverride(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	dir := t.TempDir()
	writeManifest(t, dir, fooBarManifest)

	if err := ta.run("sync", "--root", dir, "--backend", "--override", "foo"); err == nil {
		t.Fatal("sync expected error")
	}
	var out backendError
	decodeBackend(t, ta.stdout.Bytes(), &out)
	if out.Error.Kind != "unknown" || !strings.Contains(out.Error.Message, "invalid override") {
		t.Errorf("error = %+v", out.Error)
	}
}

func TestSyncCommand_SubProjects(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	root := t.TempDir()
	libA := filepath.Join(root, "libs", "a")
	libB := filepath.Join(root, "libs", "b")
	writeManifest(t, libA, "manifest_version = 1\n\n[dependencies]\nfoo = \"gh:acme/foo@^1.0\"\n")
	writeManifest(t, libB, "manifest_version = 1\n\n[dependencies]\nbar = \"gh:acme/bar@0.1\"\n")

	err := ta.run("sync", "--root", root, "--current", libA, "--current", libB,
		"--cache", filepath.Join(root, "cache"), "--backend")
	if err != nil {
		t.Fatalf("sync error = %v, stderr:\n%s", err, ta.stderr)
	}

	var out backendPaths
	decodeBackend(t, ta.stdout.Bytes(), &out)
	if len(out.Paths) != 2 {
		t.Errorf("paths = %v, want foo and bar", out.Paths)
	}
	lock, err := wares.LoadLockFile(filepath.Join(root, wares.LockFileName))
	if err != nil {
		t.Fatalf("LoadLockFile() error = %v", err)
	}
	if got := lock.Names(); len(got) != 2 {
		t.Errorf("lock names = %v, want both sub-projects merged", got)
	}
}

func TestSyncCommand_Interactive(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	dir := t.TempDir()
	writeManifest(t, dir, fooBarManifest)

	if err := ta.run("sync", "--root", dir, "--cache", filepath.Join(dir, "cache")); err != nil {
		t.Fatalf("sync error = %v, stderr:\n%s", err, ta.stderr)
	}
	out := ta.stdout.String()
	for _, want := range []string{"foo", "bar", "installed to", "Updated " + wares.LockFileName} {
		if !strings.Contains(out, want) {
			t.Errorf("output = %q, want %q", out, want)
		}
	}
}

func TestSyncCommand_InteractiveError(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	dir := t.TempDir()

	err := ta.run("sync", "--root", dir, "--cache", filepath.Join(dir, "cache"))
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Err != nil {
		t.Fatalf("sync error = %v, want a reported ExitError", err)
	}
	stderr := ta.stderr.String()
	if !strings.Contains(stderr, wares.OpReadManifest) || !strings.Contains(stderr, "wares.toml") {
		t.Errorf("stderr = %q, want the manifest read failure", stderr)
	}
}

func TestSyncCommand_ConfigError(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.app.Config = &stubConfig{err: config.ErrInvalidJobs}

	if err := ta.run("sync", "--root", t.TempDir()); err == nil {
		t.Fatal("sync expected error")
	}
	if !strings.Contains(ta.stderr.String(), "invalid jobs") {
		t.Errorf("stderr = %q, want the config error", ta.stderr.String())
	}
}

func TestSplitSyncArgs(t *testing.T) {
	t.Parallel()

	groups, overrides := splitSyncArgs([]string{"dev-dependencies", "--override:fmt=../fmt", "docs"})
	if len(groups) != 2 || groups[0] != "dev-dependencies" || groups[1] != "docs" {
		t.Errorf("groups = %v", groups)
	}
	if len(overrides) != 1 || overrides[0] != "fmt=../fmt" {
		t.Errorf("overrides = %v", overrides)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		lists   [][]string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "flags and args",
			lists: [][]string{{"fmt=../fmt"}, {"glfw=C:/deps/glfw"}},
			want:  map[string]string{"fmt": "../fmt", "glfw": "C:/deps/glfw"},
		},
		{
			name:  "later wins",
			lists: [][]string{{"fmt=a"}, {"fmt=b"}},
			want:  map[string]string{"fmt": "b"},
		},
		{
			name:  "path keeps equals signs",
			lists: [][]string{{"x=dir=1"}},
			want:  map[string]string{"x": "dir=1"},
		},
		{name: "missing separator", lists: [][]string{{"fmt"}}, wantErr: true},
		{name: "empty name", lists: [][]string{{"=../fmt"}}, wantErr: true},
		{name: "empty path", lists: [][]string{{"fmt="}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseOverrides(tt.lists...)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOverride) {
					t.Errorf("parseOverrides() error = %v, want ErrInvalidOverride", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseOverrides() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseOverrides() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseOverrides()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
