package fuzzer

import (
	"os"
	"testing"

	"alma.local/greybox/executor"
)

func TestMain(m *testing.M) {
	executor.Main()
	os.Exit(m.Run())
}
