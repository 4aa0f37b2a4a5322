// Package main is the entry point for the streamshot application.
package main

import (
	"os"

	"github.com/jmylchreest/streamshot/cmd/streamshot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
