// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"testing"
)

// UnsetEnv removes keys from the environment for the duration of the test.
// The previous values are restored on cleanup. Like t.Setenv it cannot be
// used in parallel tests.
func UnsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset env %s: %v", key, err)
		}
	}
}
