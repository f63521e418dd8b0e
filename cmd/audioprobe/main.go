// Package main is the entry point for the audioprobe command.
package main

import (
	"os"

	"github.com/simonhull/audioprobe/cmd/audioprobe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
