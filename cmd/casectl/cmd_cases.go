package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"casework/internal/casefile"
	"casework/internal/casestore"
)

func newCasesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Inspect decided cases in the local database",
	}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List decided cases, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := g.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), casestore.Filter{
				Status: casefile.Status(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CASE\tSTATUS\tSCORE\tDECIDED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n",
					r.CaseID, r.Status(), r.Decision.Score, r.DecidedAt().UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&status, "status", "", "only cases with this decision status")
	list.Flags().IntVar(&limit, "limit", casestore.DefaultListLimit, "maximum number of cases")

	get := &cobra.Command{
		Use:   "get CASE_ID",
		Short: "Print a stored case as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), record)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}
