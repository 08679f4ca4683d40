// Package guard forces test mode for any package that imports it, keeping
// entrypoint smoke tests from starting servers or touching live backends.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("QUIPU_TEST_MODE") == "" {
			_ = os.Setenv("QUIPU_TEST_MODE", "1")
		}
	})
}
