package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/kontrakt/pkg/api"
)

func newHistoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear a user's transcript",
	}
	cmd.AddCommand(newHistoryShowCmd(c), newHistoryClearCmd(c))
	return cmd
}

func newHistoryShowCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the transcript the way the model sees it",
		Long: `Print the user's live transcript rendered through the prompt template.
A session idle for longer than the session TTL is reported as empty and
removed from the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireUser(); err != nil {
				return err
			}
			eng, closeStore, err := c.historyEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			out := cmd.OutOrStdout()
			if asJSON {
				resp, err := eng.GetHistory(cmd.Context(), c.user)
				if err != nil {
					return describe(err)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			sess, err := eng.History(cmd.Context(), c.user)
			if err != nil {
				return err
			}
			if len(sess.Messages) == 0 {
				fmt.Fprintf(out, "no active session for %s\n", c.user)
				return nil
			}
			text, err := eng.RenderHistory(cmd.Context(), c.user)
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)
			if exp := eng.ExpiresAt(sess); !exp.IsZero() {
				fmt.Fprintf(out, "\n%d messages, expires %s\n", len(sess.Messages), exp.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the canonical transcript as JSON")
	return cmd
}

func newHistoryClearCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the user's transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireUser(); err != nil {
				return err
			}
			eng, closeStore, err := c.historyEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := eng.ClearHistory(cmd.Context(), c.user); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared session of %s\n", c.user)
			return nil
		},
	}
}

// describe flattens an API error to its message for terminal output.
func describe(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Type, apiErr.Message)
	}
	return err
}
