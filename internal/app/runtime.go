package app

import (
	"os"
	"sync"
)

// TestModeEnv, when set to "1", makes the binaries exit before touching Postgres or Redis.
const TestModeEnv = "LANDHUB_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the process runs under a test binary. The value is read once.
func InTestMode() bool {
	return testMode()
}
