package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "aratta",
	Short: "Aratta - self-healing LLM gateway",
	Long: `Aratta is a self-healing LLM gateway that fronts multiple providers
behind one canonical API.

It routes requests by model alias, falls back across providers with
per-provider circuit breakers, and monitors adapter errors: when a
provider starts failing in a healable way, a local model diagnoses the
failure, a search-capable cloud model retrieves current documentation,
and the proposed fix is versioned, verified, and auditable.`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default <home>/config.yaml)")
}
