package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("BOOKKEEPING_TEST_MODE", "1")
		if os.Getenv("PG_DSN") == "" {
			_ = os.Setenv("PG_DSN", "postgres://127.0.0.1:0/bookkeeping_test?sslmode=disable")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
