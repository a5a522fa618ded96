package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/kontrakt/pkg/api"
	"github.com/rhuss/kontrakt/pkg/app"
)

func newTurnCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "turn MESSAGE...",
		Short: "Run one assistant turn for a user",
		Long: `Run one assistant turn for a user and print the answer. The turn is
recorded in the user's session exactly as if it came through the server.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireUser(); err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), c.cfg, slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Engine.HandleTurn(cmd.Context(), c.user, &api.TurnRequest{Message: strings.Join(args, " ")})
			if err != nil {
				return describe(err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Fprintln(out, resp.Answer)
			for _, w := range resp.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full turn response as JSON")
	return cmd
}
