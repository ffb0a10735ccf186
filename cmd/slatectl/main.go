// Package main is the entry point for the slate admin CLI.
package main

import (
	"os"

	"github.com/good-yellow-bee/slate/cmd/slatectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
