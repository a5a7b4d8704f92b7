// Package main provides loanctl, the administrative CLI that provisions,
// resets, seeds and checks the loan tracker database.
package main

import (
	"fmt"
	"os"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "loanctl"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
