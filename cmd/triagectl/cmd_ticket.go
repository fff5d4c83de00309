package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newTicketCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ticket <id>",
		Short: "Triage one stored ticket and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.TriageByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newActionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "actions <id>",
		Short: "Print a ticket's audit trail as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actions, err := a.store.ListActions(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list actions: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), actions)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
