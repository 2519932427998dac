// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteFile_CreatesParents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b", "wares.toml")
	WriteFile(t, path, "manifest_version = 1\n")

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "manifest_version = 1\n" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
}

func TestWriteStale(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wares.toml")
	WriteStale(t, path, "")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if age := time.Since(info.ModTime()); age < 59*time.Minute {
		t.Errorf("file age = %v, want about an hour", age)
	}
}

func TestUnsetEnv(t *testing.T) {
	const key = "WARES_TESTUTIL_PROBE"
	t.Setenv(key, "set")

	UnsetEnv(t, key)
	if _, ok := os.LookupEnv(key); ok {
		t.Errorf("%s should be unset", key)
	}
}
