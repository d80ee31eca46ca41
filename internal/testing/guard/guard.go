// Package guard flips the process into test mode as a side effect of being
// imported. Packages whose tests must never touch real infrastructure
// import it blank.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PANTRYPLAN_TEST_MODE") == "" {
			_ = os.Setenv("PANTRYPLAN_TEST_MODE", "1")
		}
	})
}
