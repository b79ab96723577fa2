// Package main is the entry point for the vidembed CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixml/vidembed/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vidembed",
		Short:         "Video clip embedding pipeline",
		Long:          `vidembed segments a video corpus into clips, embeds each clip with a pluggable encoder and stores the vectors in a pluggable vector store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(encodeCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(listCmd())
	cmd.AddCommand(mcpCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
