// Package guard forces test mode before any package under test reads the
// flag. Import it blank from test files that exercise runtime wiring.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SALESPULSE_TEST_MODE") == "" {
			_ = os.Setenv("SALESPULSE_TEST_MODE", "1")
		}
	})
}
