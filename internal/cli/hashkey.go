package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/accessgate/internal/services/auth"
)

func newHashKeyCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print a bcrypt hash of a bridge key for server.bridge_key_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashKey(args[0], cost)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (default 10)")

	return cmd
}
