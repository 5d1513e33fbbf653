// Package testing switches the binaries into test mode when imported for side
// effects from a _test.go file.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		if os.Getenv("SESSION_SECRET") == "" {
			_ = os.Setenv("SESSION_SECRET", "test-secret-test-secret-test-secret")
		}
		if os.Getenv("AUDIT_SINK") == "" {
			_ = os.Setenv("AUDIT_SINK", "memory")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from packages that need the environment set
// before any test runs.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
