package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newBanCmd() *cobra.Command {
	var days int
	var by string

	cmd := &cobra.Command{
		Use:   "ban <name> <reason...>",
		Short: "Ban an account",
		Long:  "Ban an account by name. Without --days the ban is permanent. A connected actor is disconnected.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}

			req := map[string]any{
				"name":   args[0],
				"reason": strings.Join(args[1:], " "),
				"days":   days,
			}
			if by != "" {
				req["by"] = by
			}
			var result Identity

			if err := client.Post("/api/v1/admin/ban", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Ban duration in days (0 = permanent)")
	cmd.Flags().StringVar(&by, "by", "", "Acting actor id (default: operator)")

	return cmd
}

func newUnbanCmd() *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "unban <name>",
		Short: "Lift a ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"name": args[0]}
			if by != "" {
				req["by"] = by
			}
			var result Identity

			if err := client.Post("/api/v1/admin/unban", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "Acting actor id (default: operator)")

	return cmd
}

func newTrustCmd() *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "trust <name> <level>",
		Short: "Set an account's trust level (0-3)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid level %q: %w", args[1], err)
			}

			req := map[string]any{"name": args[0], "level": level}
			if by != "" {
				req["by"] = by
			}
			var result Identity

			if err := client.Post("/api/v1/admin/trust", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "Acting actor id (default: operator)")

	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <id>",
		Short: "Refresh a connected actor's identity from the identity service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Identity

			if err := client.Post("/api/v1/admin/sync/"+url.PathEscape(args[0]), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
