// Package main provides the matchmaker command line: the HTTP service and a
// simulator that exercises a running instance.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "matchmaker",
	Short: "Employee task matching service",
	Long: "matchmaker ranks employees for tasks by skills, availability, experience and learned " +
		"preferences, tracks task lifecycles against a CSV roster and keeps a performance leaderboard.",
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
