// Package main is the entry point for the clipseek application.
package main

import (
	"os"

	"github.com/clipseek/clipseek/cmd/clipseek/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
