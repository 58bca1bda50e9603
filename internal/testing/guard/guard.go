// Package guard switches the process into test mode when imported, so
// packages that build the full application skip runtime side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("COSTLENS_TEST_MODE") == "" {
			_ = os.Setenv("COSTLENS_TEST_MODE", "1")
		}
	})
}
