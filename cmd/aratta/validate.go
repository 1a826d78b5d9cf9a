package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aratta-hq/aratta/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without starting the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		cfg, err := config.LoadWithEnvOverrides(path)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Printf("Configuration valid: %s\n", path)
		fmt.Printf("  Listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("  Default provider: %s\n", cfg.Behavior.DefaultProvider)
		fmt.Printf("  Configured providers: %v\n", cfg.ProviderNames())
		available := cfg.AvailableProviders()
		fmt.Printf("  Available now (keys present): %v\n", available)
		if len(available) == 0 {
			fmt.Println("  Warning: no provider has its credentials set")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
