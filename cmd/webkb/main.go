// Package main provides the entry point for the webkb CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/webkb/cmd/webkb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
