package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newActorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actor",
		Short: "Inspect connected actors",
	}

	cmd.AddCommand(newActorShowCmd())

	return cmd
}

func newActorShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an actor's gate state, identity and playtime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ActorStatus

			if err := client.Get("/api/v1/actors/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
