// Command tsdbctl is an operator CLI for a tsdb directory: appending a
// sample, querying events or stats, listing channels, and finalizing a
// day file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tsdbctl: %v\n", err)
		os.Exit(1)
	}
}
