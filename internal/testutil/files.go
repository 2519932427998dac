// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile writes content to path, creating parent directories.
// The test fails immediately if either step fails.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// Touch sets both the access and modification time of path to at.
func Touch(t testing.TB, path string, at time.Time) {
	t.Helper()
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("failed to set times of %s: %v", path, err)
	}
}

// WriteStale writes content to path and backdates it by an hour, so a lock
// file written afterwards is newer by a margin no file system rounds away.
func WriteStale(t testing.TB, path, content string) {
	t.Helper()
	WriteFile(t, path, content)
	Touch(t, path, time.Now().Add(-time.Hour))
}
