package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "creditguard",
	Short: "Creditguard - usage quota proxy for metered LLM APIs",
	Long: `Creditguard is an admission-controlled proxy for metered LLM APIs.

It enforces per-tier usage quotas in front of an upstream provider:
  - Request, token and cost limits per hour and per day
  - A per-request token cap
  - A circuit breaker that halts traffic near the daily spend limit
  - Usage and breaker endpoints for dashboards and operators`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
}
