package main

import (
	"fmt"

	"github.com/Amund211/uniresolve/internal/logging"
	"github.com/spf13/cobra"
)

func newRecordCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "record <entry>",
		Short: "Print the UniProt flat-file record of an entry",
		Long: `The record command fetches the flat-file text of an entry and prints it as-is.
The text is printed even when the service answers with an error page.`,
		Example: `  uniresolve record B3AT_HUMAN`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			u, err := opts.newUniProt(0)
			if err != nil {
				return err
			}

			record, err := u.FetchRecord(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to fetch record for %s: %w", args[0], err)
			}

			if record.StatusCode != 200 {
				logging.FromContext(ctx).WarnContext(ctx, "Record request returned an unexpected status", "status", record.StatusCode, "url", record.URL)
			}

			fmt.Fprint(cmd.OutOrStdout(), record.Text)
			return nil
		},
	}
}
