package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"venuerag/internal/retrieval"
)

func newRetrieveCmd(a *app) *cobra.Command {
	var (
		flags   filterFlags
		query   string
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Filter the knowledge base and rank the matches against a query",
		Long: `Load the knowledge base, keep the records matching the filter flags and,
when --query is given, rank them by similarity to the query. Results are
printed as a JSON array.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			overview, err := svc.Reload(cmd.Context())
			if err != nil {
				return fmt.Errorf("load knowledge base: %w", err)
			}
			if summary {
				cmd.PrintErrln(overview.String())
				if overview.Highlights != "" {
					cmd.PrintErrln(overview.Highlights)
				}
			}

			records, err := svc.Retrieve(cmd.Context(), filter, query, flags.topK)
			if err != nil {
				return fmt.Errorf("retrieve: %w", err)
			}
			data, err := retrieval.MarshalRecords(records)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&query, "query", "q", "", "free-text query used for ranking")
	cmd.Flags().BoolVar(&summary, "summary", false, "print a corpus overview to stderr")
	return cmd
}
