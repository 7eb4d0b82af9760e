// Package main provides the persona CLI for classifying a player's games
// and scoring their playing-style traits.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
