// erpkb is a knowledge resolution daemon for ERP integration agents.
// It serves catalog lookups, typo-tolerant matching and payload validation
// over a Unix socket.
package main

import (
	"os"

	"github.com/corey/erpkb/cmd/erpkb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
