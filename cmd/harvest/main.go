// Package main is the entry point for the harvest CLI.
package main

import (
	"os"

	"github.com/use-agent/harvest/cmd/harvest/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
