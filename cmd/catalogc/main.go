// Package main provides the catalogc command.
package main

import (
	"os"

	"github.com/estuary/flow-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
