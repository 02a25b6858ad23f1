package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "gatectl",
		Short: "Operator CLI for the accessgate sidecar",
		Long: `gatectl talks to a running accessgate sidecar over its bridge API.

It can check health, inspect connected actors, ban and unban accounts,
change trust levels, force identity refreshes and follow the directive
stream sent to the game host.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load key from file if not provided via flag/env
			if err := cfg.LoadKey(); err != nil {
				return err
			}

			client = NewClient(cfg.ServerURL, cfg.Key)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Sidecar URL (env: GATECTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Key, "key", cfg.Key, "Bridge key (env: ACCESSGATE_BRIDGE_KEY)")
	rootCmd.PersistentFlags().StringVar(&cfg.KeyFile, "key-file", cfg.KeyFile, "Bridge key file path (env: GATECTL_KEY_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newActorCmd())
	rootCmd.AddCommand(newBanCmd())
	rootCmd.AddCommand(newUnbanCmd())
	rootCmd.AddCommand(newTrustCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newHashKeyCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
