// Package main provides the entry point for the scholia CLI.
package main

import (
	"os"

	"github.com/scholia-dev/scholia/cmd/scholia/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
