package executor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"alma.local/greybox/coverage"
	"alma.local/greybox/harness"
)

// Main turns the process into a sandbox child when it was launched by a
// Sandbox, and exits once the harness returns. In any other launch it returns
// immediately. Call it first in main, or in TestMain for test binaries that
// run sandboxes.
func Main() {
	name, ok := os.LookupEnv(envTarget)
	if !ok {
		return
	}
	os.Exit(runChild(name))
}

func runChild(name string) int {
	report := os.NewFile(reportFD, "report")
	defer report.Close()

	size, err := strconv.Atoi(os.Getenv(envMapSize))
	if err != nil {
		fmt.Fprintf(os.Stderr, "greybox child: bad map size: %v\n", err)
		return exitSetup
	}
	region, err := coverage.OpenRegion(mapFD, size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "greybox child: %v\n", err)
		return exitSetup
	}
	if err := coverage.Register(region.Map()); err != nil {
		fmt.Fprintf(os.Stderr, "greybox child: %v\n", err)
		return exitSetup
	}
	target, err := harness.Lookup(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "greybox child: %v\n", err)
		return exitSetup
	}
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "greybox child: read input: %v\n", err)
		return exitSetup
	}

	// From here on any exit is the harness's doing.
	if _, err := report.Write([]byte{readyMarker}); err != nil {
		fmt.Fprintf(os.Stderr, "greybox child: write marker: %v\n", err)
		return exitSetup
	}

	start := time.Now()
	code := target.Run(input)
	rep := Report{Code: int64(code), Elapsed: uint64(time.Since(start))}

	buf, _ := rep.MarshalSSZ()
	if _, err := report.Write(buf); err != nil {
		fmt.Fprintf(os.Stderr, "greybox child: write report: %v\n", err)
		return 1
	}
	return 0
}
